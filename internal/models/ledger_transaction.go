package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionDirection string

const (
	DirectionInflow  TransactionDirection = "entrada"
	DirectionOutflow TransactionDirection = "saida"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionPaid      TransactionStatus = "paid"
	TransactionCancelled TransactionStatus = "cancelled"
)

// LedgerTransaction is an internally recorded movement. Only paid
// transactions can be reconciled.
type LedgerTransaction struct {
	ID          uuid.UUID            `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID    uuid.UUID            `gorm:"type:uuid;index" json:"tenant_id"`
	AccountID   uuid.UUID            `gorm:"type:uuid;index" json:"account_id"`
	Date        time.Time            `gorm:"column:occurred_on;index" json:"date"`
	Description string               `json:"description"`
	Amount      decimal.Decimal      `gorm:"type:numeric(15,2)" json:"amount"`
	Direction   TransactionDirection `gorm:"index" json:"direction"`
	Status      TransactionStatus    `gorm:"index" json:"status"`
	CreatedAt   time.Time            `json:"created_at"`
}

// SignedAmount is positive for inflows and negative for outflows.
func (t LedgerTransaction) SignedAmount() decimal.Decimal {
	if t.Direction == DirectionOutflow {
		return t.Amount.Neg()
	}
	return t.Amount
}
