package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newSuggestionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggestions",
		Short: "Manage match suggestions",
	}
	cmd.AddCommand(newGenerateCommand(), newListCommand(), newBulkAcceptCommand())
	return cmd
}

func newGenerateCommand() *cobra.Command {
	var flags filterFlags
	var minScore float64

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Rebuild pending suggestions from the unreconciled pools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := flags.filter()
			if err != nil {
				return err
			}
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.stop()

			if !cmd.Flags().Changed("min-score") {
				minScore = float64(e.cfg.Reconciliation.SuggestionThreshold) / 100
			}
			n, err := e.svc.Suggestions.Regenerate(cmd.Context(), f, minScore)
			if err != nil {
				return fmt.Errorf("generating suggestions: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %d suggestions\n", n)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "lowest score kept, 0 to 1 (default from SUGGESTION_THRESHOLD)")
	return cmd
}

func newListCommand() *cobra.Command {
	var flags filterFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending suggestions, best first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := flags.filter()
			if err != nil {
				return err
			}
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.stop()

			pending, err := e.svc.Suggestions.ListPending(cmd.Context(), f)
			if err != nil {
				return fmt.Errorf("listing suggestions: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tSCORE\tDATE\tSTATEMENTS\tTRANSACTIONS")
			for _, s := range pending {
				fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%d\t%d\n",
					s.ID, s.MatchType, s.Score, s.ItemDate.Format("2006-01-02"), len(s.StatementItemIDs), len(s.TransactionIDs))
			}
			return w.Flush()
		},
	}

	flags.register(cmd)
	return cmd
}

func newBulkAcceptCommand() *cobra.Command {
	var flags filterFlags
	var user string

	cmd := &cobra.Command{
		Use:   "bulk-accept",
		Short: "Accept every pending suggestion above the configured score",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := flags.filter()
			if err != nil {
				return err
			}
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.stop()

			res, err := e.svc.Suggestions.BulkAcceptHighConfidence(cmd.Context(), f, user)
			if err != nil {
				return fmt.Errorf("bulk accept: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n", res.Notice.Level, res.Notice.Message)
			for _, failure := range res.Failures {
				fmt.Fprintf(out, "  %s: %s\n", failure.SuggestionID, failure.Error)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&user, "user", "reconctl", "user recorded as the decider")
	return cmd
}
