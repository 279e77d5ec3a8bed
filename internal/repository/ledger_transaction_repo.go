package repository

import (
	"context"
	"time"

	"statement-reconciliation-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LedgerTransactionRepository struct {
	db *gorm.DB
}

func NewLedgerTransactionRepository(db *gorm.DB) *LedgerTransactionRepository {
	return &LedgerTransactionRepository{db: db}
}

// ListEligible returns paid transactions that no statement item points to,
// directly or through a batch link, most recent first.
func (r *LedgerTransactionRepository) ListEligible(ctx context.Context, f models.Filter) ([]models.LedgerTransaction, error) {
	var txs []models.LedgerTransaction
	err := r.db.WithContext(ctx).
		Model(&models.LedgerTransaction{}).
		Scopes(filterScope(f, "ledger_transactions", "occurred_on")).
		Where("ledger_transactions.status = ?", models.TransactionPaid).
		Where("NOT EXISTS (SELECT 1 FROM batch_links bl WHERE bl.transaction_id = ledger_transactions.id)").
		Where("NOT EXISTS (SELECT 1 FROM statement_items si WHERE si.linked_transaction_id = ledger_transactions.id)").
		Order("ledger_transactions.occurred_on DESC, ledger_transactions.created_at DESC").
		Find(&txs).Error
	if err != nil {
		return nil, storeErr("list transactions", err)
	}
	return txs, nil
}

func (r *LedgerTransactionRepository) GetByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]models.LedgerTransaction, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var txs []models.LedgerTransaction
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Find(&txs).Error
	if err != nil {
		return nil, storeErr("get transactions", err)
	}
	return txs, nil
}

func (r *LedgerTransactionRepository) Create(ctx context.Context, t *models.LedgerTransaction) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	return storeErr("create transaction", r.db.WithContext(ctx).Create(t).Error)
}
