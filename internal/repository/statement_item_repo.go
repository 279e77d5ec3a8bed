package repository

import (
	"context"
	"time"

	"statement-reconciliation-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StatementItemRepository struct {
	db *gorm.DB
}

func NewStatementItemRepository(db *gorm.DB) *StatementItemRepository {
	return &StatementItemRepository{db: db}
}

// ListUnreconciled returns the statement items still waiting for a link,
// most recent first.
func (r *StatementItemRepository) ListUnreconciled(ctx context.Context, f models.Filter) ([]models.StatementItem, error) {
	var items []models.StatementItem
	err := r.db.WithContext(ctx).
		Model(&models.StatementItem{}).
		Scopes(filterScope(f, "statement_items", "occurred_on")).
		Where("statement_items.reconciled = ?", false).
		Order("statement_items.occurred_on DESC, statement_items.created_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, storeErr("list statement items", err)
	}
	return items, nil
}

// GetByIDs fetches the tenant's statement items with the given ids. Missing
// ids are simply absent from the result.
func (r *StatementItemRepository) GetByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]models.StatementItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []models.StatementItem
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Find(&items).Error
	if err != nil {
		return nil, storeErr("get statement items", err)
	}
	return items, nil
}

// Create inserts a statement item as the import process would.
func (r *StatementItemRepository) Create(ctx context.Context, item *models.StatementItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	return storeErr("create statement item", r.db.WithContext(ctx).Create(item).Error)
}
