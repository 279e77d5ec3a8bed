package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type MatchType string

const (
	MatchOneToOne  MatchType = "1:1"
	MatchOneToMany MatchType = "1:N"
	MatchManyToOne MatchType = "N:1"
)

// ShapeOf reports the link shape for the given side sizes. Many-to-many
// has no shape and returns ErrUnsupportedMatchShape.
func ShapeOf(statements, transactions int) (MatchType, error) {
	switch {
	case statements == 0 || transactions == 0:
		return "", ErrEmptySelection
	case statements == 1 && transactions == 1:
		return MatchOneToOne, nil
	case transactions == 1:
		return MatchManyToOne, nil
	case statements == 1:
		return MatchOneToMany, nil
	default:
		return "", ErrUnsupportedMatchShape
	}
}

type SuggestionStatus string

const (
	SuggestionPending  SuggestionStatus = "pending"
	SuggestionAccepted SuggestionStatus = "accepted"
	SuggestionRejected SuggestionStatus = "rejected"
)

// MatchSuggestion is a machine-scored candidate match. Once accepted or
// rejected it is never modified again.
type MatchSuggestion struct {
	ID               uuid.UUID                      `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID         uuid.UUID                      `gorm:"type:uuid;index" json:"tenant_id"`
	AccountID        uuid.UUID                      `gorm:"type:uuid;index" json:"account_id"`
	MatchType        MatchType                      `json:"match_type"`
	StatementItemIDs datatypes.JSONSlice[uuid.UUID] `json:"statement_item_ids"`
	TransactionIDs   datatypes.JSONSlice[uuid.UUID] `json:"transaction_ids"`
	Score            float64                        `gorm:"index" json:"score"`
	Features         datatypes.JSON                 `json:"features"`
	Status           SuggestionStatus               `gorm:"index" json:"status"`
	ItemDate         time.Time                      `gorm:"index" json:"item_date"`
	DecidedBy        string                         `json:"decided_by,omitempty"`
	DecidedAt        *time.Time                     `json:"decided_at,omitempty"`
	CreatedAt        time.Time                      `json:"created_at"`
}

func (s MatchSuggestion) IsTerminal() bool {
	return s.Status == SuggestionAccepted || s.Status == SuggestionRejected
}
