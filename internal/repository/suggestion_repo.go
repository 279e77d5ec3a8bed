package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"statement-reconciliation-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SuggestionRepository struct {
	db *gorm.DB
}

func NewSuggestionRepository(db *gorm.DB) *SuggestionRepository {
	return &SuggestionRepository{db: db}
}

// ListPending returns pending suggestions for the filter, best score first.
func (r *SuggestionRepository) ListPending(ctx context.Context, f models.Filter) ([]models.MatchSuggestion, error) {
	var out []models.MatchSuggestion
	err := r.db.WithContext(ctx).
		Model(&models.MatchSuggestion{}).
		Scopes(filterScope(f, "match_suggestions", "item_date")).
		Where("match_suggestions.status = ?", models.SuggestionPending).
		Order("match_suggestions.score DESC, match_suggestions.created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, storeErr("list suggestions", err)
	}
	return out, nil
}

func (r *SuggestionRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.MatchSuggestion, error) {
	var s models.MatchSuggestion
	err := r.db.WithContext(ctx).First(&s, "tenant_id = ? AND id = ?", tenantID, id).Error
	if err != nil {
		return nil, storeErr("get suggestion", err)
	}
	return &s, nil
}

func (r *SuggestionRepository) Create(ctx context.Context, s *models.MatchSuggestion) error {
	prepareSuggestion(s)
	return storeErr("create suggestion", r.db.WithContext(ctx).Create(s).Error)
}

// ReplacePending drops the filter's pending suggestions and stores the new
// set. Decided suggestions are kept.
func (r *SuggestionRepository) ReplacePending(ctx context.Context, f models.Filter, suggestions []models.MatchSuggestion) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Scopes(filterScope(f, "match_suggestions", "item_date")).
			Where("match_suggestions.status = ?", models.SuggestionPending).
			Delete(&models.MatchSuggestion{}).Error
		if err != nil {
			return err
		}
		if len(suggestions) == 0 {
			return nil
		}
		for i := range suggestions {
			prepareSuggestion(&suggestions[i])
		}
		return tx.CreateInBatches(suggestions, 100).Error
	})
	return storeErr("replace suggestions", err)
}

// ApplySuggestion links the suggestion's statement items and transactions
// and marks it accepted, atomically.
func (r *SuggestionRepository) ApplySuggestion(ctx context.Context, tenantID, id uuid.UUID, userID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s, err := lockPending(tx, tenantID, id)
		if err != nil {
			return err
		}
		link, err := applyLinkTx(tx, tenantID, s.StatementItemIDs, s.TransactionIDs)
		if err != nil {
			return err
		}
		if err := decide(tx, s, models.SuggestionAccepted, userID); err != nil {
			return err
		}
		return tx.Create(&models.MatchAuditLog{
			ID:               uuid.New(),
			TenantID:         tenantID,
			Action:           models.AuditSuggestionAccepted,
			MatchType:        link.shape,
			StatementItemIDs: s.StatementItemIDs,
			TransactionIDs:   s.TransactionIDs,
			SuggestionID:     &s.ID,
			PerformedBy:      userID,
			CreatedAt:        time.Now().UTC(),
		}).Error
	})
	return storeErr("apply suggestion", err)
}

// RejectSuggestion marks the suggestion rejected. Nothing else changes.
func (r *SuggestionRepository) RejectSuggestion(ctx context.Context, tenantID, id uuid.UUID, userID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s, err := lockPending(tx, tenantID, id)
		if err != nil {
			return err
		}
		if err := decide(tx, s, models.SuggestionRejected, userID); err != nil {
			return err
		}
		return tx.Create(&models.MatchAuditLog{
			ID:               uuid.New(),
			TenantID:         tenantID,
			Action:           models.AuditSuggestionRejected,
			MatchType:        s.MatchType,
			StatementItemIDs: s.StatementItemIDs,
			TransactionIDs:   s.TransactionIDs,
			SuggestionID:     &s.ID,
			PerformedBy:      userID,
			CreatedAt:        time.Now().UTC(),
		}).Error
	})
	return storeErr("reject suggestion", err)
}

func lockPending(tx *gorm.DB, tenantID, id uuid.UUID) (*models.MatchSuggestion, error) {
	var s models.MatchSuggestion
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&s, "tenant_id = ? AND id = ?", tenantID, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("suggestion %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if s.Status != models.SuggestionPending {
		return nil, fmt.Errorf("suggestion %s is %s: %w", id, s.Status, models.ErrInvalidSuggestionState)
	}
	return &s, nil
}

func decide(tx *gorm.DB, s *models.MatchSuggestion, status models.SuggestionStatus, userID string) error {
	now := time.Now().UTC()
	res := tx.Model(&models.MatchSuggestion{}).
		Where("id = ? AND status = ?", s.ID, models.SuggestionPending).
		Updates(map[string]interface{}{
			"status":     status,
			"decided_by": userID,
			"decided_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return models.ErrInvalidSuggestionState
	}
	s.Status = status
	s.DecidedBy = userID
	s.DecidedAt = &now
	return nil
}

func prepareSuggestion(s *models.MatchSuggestion) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = models.SuggestionPending
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
}
