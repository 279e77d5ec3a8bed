package repository

import (
	"errors"
	"time"

	"statement-reconciliation-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Migrate creates or updates every table the reconciliation engine uses.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.StatementItem{},
		&models.LedgerTransaction{},
		&models.BatchLink{},
		&models.MatchSuggestion{},
		&models.MatchAuditLog{},
	)
}

// filterScope applies tenant, account and inclusive date range conditions.
func filterScope(f models.Filter, table, dateColumn string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Where(table+".tenant_id = ?", f.TenantID)
		if f.AccountID != nil {
			db = db.Where(table+".account_id = ?", *f.AccountID)
		}
		if !f.From.IsZero() {
			db = db.Where(table+"."+dateColumn+" >= ?", startOfDay(f.From))
		}
		if !f.To.IsZero() {
			db = db.Where(table+"."+dateColumn+" < ?", startOfDay(f.To).AddDate(0, 0, 1))
		}
		return db
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// storeErr passes domain errors through and wraps everything else.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if models.IsDomainError(err) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ErrNotFound
	}
	return &models.StoreError{Op: op, Err: err}
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
