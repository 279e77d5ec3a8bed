// Package services wires the repositories into the application services so
// the HTTP server and the admin CLI share one construction path.
package services

import (
	"statement-reconciliation-backend/internal/cache"
	"statement-reconciliation-backend/internal/config"
	"statement-reconciliation-backend/internal/repository"
	"statement-reconciliation-backend/internal/services/matching"
	"statement-reconciliation-backend/internal/services/reconciliation"
	"statement-reconciliation-backend/internal/services/suggestions"

	"gorm.io/gorm"
)

type Services struct {
	Reconciliation *reconciliation.ReconciliationService
	Suggestions    *suggestions.Manager
}

func New(db *gorm.DB, c cache.Cache, cfg config.ReconciliationConfig) *Services {
	statementRepo := repository.NewStatementItemRepository(db)
	transactionRepo := repository.NewLedgerTransactionRepository(db)
	linkRepo := repository.NewLinkRepository(db)
	suggestionRepo := repository.NewSuggestionRepository(db)

	reconService := reconciliation.NewReconciliationService(
		statementRepo,
		transactionRepo,
		linkRepo,
		c,
		matching.NewRanker(cfg.SuggestionThreshold),
	)

	generator := matching.NewGenerator(statementRepo, transactionRepo, suggestionRepo)
	manager := suggestions.NewManager(
		suggestionRepo,
		generator,
		reconService,
		cfg.BulkAcceptMinScore,
		cfg.BulkAcceptConcurrency,
	)

	return &Services{Reconciliation: reconService, Suggestions: manager}
}
