package models

import (
	"time"

	"github.com/google/uuid"
)

// BatchLink is one edge of a 1:N match. A transaction is linked at most once.
type BatchLink struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID        uuid.UUID `gorm:"type:uuid;index" json:"tenant_id"`
	StatementItemID uuid.UUID `gorm:"type:uuid;index" json:"statement_item_id"`
	TransactionID   uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"transaction_id"`
	CreatedAt       time.Time `json:"created_at"`
}
