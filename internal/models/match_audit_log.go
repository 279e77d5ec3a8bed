package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type AuditAction string

const (
	AuditLinkApplied        AuditAction = "link_applied"
	AuditSuggestionAccepted AuditAction = "suggestion_accepted"
	AuditSuggestionRejected AuditAction = "suggestion_rejected"
)

// MatchAuditLog records every link and suggestion decision.
type MatchAuditLog struct {
	ID               uuid.UUID                      `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID         uuid.UUID                      `gorm:"type:uuid;index" json:"tenant_id"`
	Action           AuditAction                    `gorm:"index" json:"action"`
	MatchType        MatchType                      `json:"match_type"`
	StatementItemIDs datatypes.JSONSlice[uuid.UUID] `json:"statement_item_ids"`
	TransactionIDs   datatypes.JSONSlice[uuid.UUID] `json:"transaction_ids"`
	SuggestionID     *uuid.UUID                     `gorm:"type:uuid;index" json:"suggestion_id,omitempty"`
	PerformedBy      string                         `json:"performed_by"`
	Reason           string                         `json:"reason,omitempty"`
	CreatedAt        time.Time                      `json:"created_at"`
}
