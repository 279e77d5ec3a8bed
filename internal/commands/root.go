package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCommand creates the admin CLI with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "reconctl",
		Short: "Statement reconciliation administration",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newMigrateCommand())
	rootCmd.AddCommand(newSuggestionsCommand())

	return rootCmd
}
