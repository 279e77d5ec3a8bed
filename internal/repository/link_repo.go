package repository

import (
	"context"
	"fmt"
	"time"

	"statement-reconciliation-backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LinkRepository struct {
	db *gorm.DB
}

func NewLinkRepository(db *gorm.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

// ApplyLink reconciles the statement items against the transactions in a
// single database transaction.
func (r *LinkRepository) ApplyLink(
	ctx context.Context,
	tenantID uuid.UUID,
	statementIDs, transactionIDs []uuid.UUID,
	performedBy string,
) (models.MatchType, error) {
	var link appliedLink
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if link, err = applyLinkTx(tx, tenantID, statementIDs, transactionIDs); err != nil {
			return err
		}
		return tx.Create(&models.MatchAuditLog{
			ID:               uuid.New(),
			TenantID:         tenantID,
			Action:           models.AuditLinkApplied,
			MatchType:        link.shape,
			StatementItemIDs: datatypes.JSONSlice[uuid.UUID](link.statementIDs),
			TransactionIDs:   datatypes.JSONSlice[uuid.UUID](link.transactionIDs),
			PerformedBy:      performedBy,
			CreatedAt:        time.Now().UTC(),
		}).Error
	})
	if err != nil {
		return "", storeErr("apply link", err)
	}
	return link.shape, nil
}

// appliedLink is what applyLinkTx committed, with duplicate ids dropped.
type appliedLink struct {
	shape          models.MatchType
	statementIDs   []uuid.UUID
	transactionIDs []uuid.UUID
}

// applyLinkTx performs the link writes inside an open transaction.
//
// A single transaction id marks every statement item reconciled and points
// it at that transaction (1:1, N:1). A single statement item with several
// transactions is marked reconciled and gets one batch link per transaction
// (1:N). Anything else is ErrUnsupportedMatchShape.
//
// Shape is checked before any query. The locked rows must be unreconciled,
// paid, unlinked and balance exactly before anything is written.
func applyLinkTx(tx *gorm.DB, tenantID uuid.UUID, statementIDs, transactionIDs []uuid.UUID) (appliedLink, error) {
	statementIDs = dedupe(statementIDs)
	transactionIDs = dedupe(transactionIDs)

	shape, err := models.ShapeOf(len(statementIDs), len(transactionIDs))
	if err != nil {
		return appliedLink{}, err
	}

	var items []models.StatementItem
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id IN ?", tenantID, statementIDs).
		Find(&items).Error
	if err != nil {
		return appliedLink{}, err
	}
	if len(items) != len(statementIDs) {
		return appliedLink{}, fmt.Errorf("statement items: %w", models.ErrNotFound)
	}
	for _, item := range items {
		if item.Reconciled {
			return appliedLink{}, fmt.Errorf("statement item %s: %w", item.ID, models.ErrConcurrentModification)
		}
	}

	var txs []models.LedgerTransaction
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id IN ?", tenantID, transactionIDs).
		Find(&txs).Error
	if err != nil {
		return appliedLink{}, err
	}
	if len(txs) != len(transactionIDs) {
		return appliedLink{}, fmt.Errorf("transactions: %w", models.ErrNotFound)
	}
	for _, t := range txs {
		if t.Status != models.TransactionPaid {
			return appliedLink{}, fmt.Errorf("transaction %s is %s: %w", t.ID, t.Status, models.ErrNotEligible)
		}
	}

	var linked int64
	if err := tx.Model(&models.BatchLink{}).Where("transaction_id IN ?", transactionIDs).Count(&linked).Error; err != nil {
		return appliedLink{}, err
	}
	if linked > 0 {
		return appliedLink{}, fmt.Errorf("transaction already batch linked: %w", models.ErrConcurrentModification)
	}
	if err := tx.Model(&models.StatementItem{}).Where("linked_transaction_id IN ?", transactionIDs).Count(&linked).Error; err != nil {
		return appliedLink{}, err
	}
	if linked > 0 {
		return appliedLink{}, fmt.Errorf("transaction already linked: %w", models.ErrConcurrentModification)
	}

	if diff := signedTotal(items).Sub(signedTotal(txs)); !diff.IsZero() {
		return appliedLink{}, &models.ImbalanceError{Difference: diff}
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"reconciled":    true,
		"reconciled_at": now,
	}
	if shape != models.MatchOneToMany {
		updates["linked_transaction_id"] = transactionIDs[0]
	}

	res := tx.Model(&models.StatementItem{}).
		Where("tenant_id = ? AND id IN ? AND reconciled = ?", tenantID, statementIDs, false).
		Updates(updates)
	if res.Error != nil {
		return appliedLink{}, res.Error
	}
	if res.RowsAffected != int64(len(statementIDs)) {
		return appliedLink{}, models.ErrConcurrentModification
	}

	if shape == models.MatchOneToMany {
		links := make([]models.BatchLink, 0, len(transactionIDs))
		for _, id := range transactionIDs {
			links = append(links, models.BatchLink{
				ID:              uuid.New(),
				TenantID:        tenantID,
				StatementItemID: statementIDs[0],
				TransactionID:   id,
				CreatedAt:       now,
			})
		}
		if err := tx.Create(&links).Error; err != nil {
			return appliedLink{}, err
		}
	}

	return appliedLink{shape: shape, statementIDs: statementIDs, transactionIDs: transactionIDs}, nil
}

func signedTotal[T interface{ SignedAmount() decimal.Decimal }](rows []T) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.SignedAmount())
	}
	return total
}
