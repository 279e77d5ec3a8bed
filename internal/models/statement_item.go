package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type StatementDirection string

const (
	DirectionCredit StatementDirection = "credit"
	DirectionDebit  StatementDirection = "debit"
)

// StatementItem is one line of an imported bank statement.
type StatementItem struct {
	ID                  uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID            uuid.UUID          `gorm:"type:uuid;index" json:"tenant_id"`
	AccountID           uuid.UUID          `gorm:"type:uuid;index" json:"account_id"`
	Date                time.Time          `gorm:"column:occurred_on;index" json:"date"`
	Description         string             `json:"description"`
	Amount              decimal.Decimal    `gorm:"type:numeric(15,2)" json:"amount"`
	Direction           StatementDirection `gorm:"index" json:"direction"`
	Reconciled          bool               `gorm:"index" json:"reconciled"`
	LinkedTransactionID *uuid.UUID         `gorm:"type:uuid;index" json:"linked_transaction_id"`
	ReconciledAt        *time.Time         `json:"reconciled_at,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
}

// SignedAmount is positive for credits and negative for debits.
func (s StatementItem) SignedAmount() decimal.Decimal {
	if s.Direction == DirectionDebit {
		return s.Amount.Neg()
	}
	return s.Amount
}
