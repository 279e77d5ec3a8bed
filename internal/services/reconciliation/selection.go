package reconciliation

import (
	"sort"

	"statement-reconciliation-backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Selection is the two-sided set of entries a user is about to link. Totals
// are signed: credits and inflows count positive, debits and outflows
// negative.
type Selection struct {
	statements   map[uuid.UUID]models.StatementItem
	transactions map[uuid.UUID]models.LedgerTransaction
}

type Summary struct {
	StatementIDs     []uuid.UUID      `json:"statement_ids"`
	TransactionIDs   []uuid.UUID      `json:"transaction_ids"`
	TotalStatement   decimal.Decimal  `json:"total_statement"`
	TotalTransaction decimal.Decimal  `json:"total_transaction"`
	Difference       decimal.Decimal  `json:"difference"`
	CanConfirm       bool             `json:"can_confirm"`
	MatchType        models.MatchType `json:"match_type,omitempty"`
}

func NewSelection() *Selection {
	return &Selection{
		statements:   make(map[uuid.UUID]models.StatementItem),
		transactions: make(map[uuid.UUID]models.LedgerTransaction),
	}
}

// ToggleStatement selects the item, or deselects it if already selected.
// It reports whether the item is selected afterwards.
func (s *Selection) ToggleStatement(item models.StatementItem) bool {
	if _, ok := s.statements[item.ID]; ok {
		delete(s.statements, item.ID)
		return false
	}
	s.statements[item.ID] = item
	return true
}

func (s *Selection) ToggleTransaction(tx models.LedgerTransaction) bool {
	if _, ok := s.transactions[tx.ID]; ok {
		delete(s.transactions, tx.ID)
		return false
	}
	s.transactions[tx.ID] = tx
	return true
}

func (s *Selection) HasStatement(id uuid.UUID) bool {
	_, ok := s.statements[id]
	return ok
}

func (s *Selection) HasTransaction(id uuid.UUID) bool {
	_, ok := s.transactions[id]
	return ok
}

func (s *Selection) Clear() {
	s.statements = make(map[uuid.UUID]models.StatementItem)
	s.transactions = make(map[uuid.UUID]models.LedgerTransaction)
}

func (s *Selection) StatementIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s.statements))
	for id := range s.statements {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

func (s *Selection) TransactionIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s.transactions))
	for id := range s.transactions {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

// StatementItems returns the selected statement items ordered by id.
func (s *Selection) StatementItems() []models.StatementItem {
	items := make([]models.StatementItem, 0, len(s.statements))
	for _, id := range s.StatementIDs() {
		items = append(items, s.statements[id])
	}
	return items
}

func (s *Selection) TotalStatement() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.statements {
		total = total.Add(item.SignedAmount())
	}
	return total
}

func (s *Selection) TotalTransaction() decimal.Decimal {
	total := decimal.Zero
	for _, tx := range s.transactions {
		total = total.Add(tx.SignedAmount())
	}
	return total
}

func (s *Selection) Difference() decimal.Decimal {
	return s.TotalStatement().Sub(s.TotalTransaction())
}

// CanConfirm reports whether both sides are non-empty and balance exactly.
func (s *Selection) CanConfirm() bool {
	return len(s.statements) > 0 && len(s.transactions) > 0 && s.Difference().IsZero()
}

// Validate returns the reason the selection cannot be linked, if any.
func (s *Selection) Validate() error {
	if len(s.statements) == 0 || len(s.transactions) == 0 {
		return models.ErrEmptySelection
	}
	if diff := s.Difference(); !diff.IsZero() {
		return &models.ImbalanceError{Difference: diff}
	}
	_, err := models.ShapeOf(len(s.statements), len(s.transactions))
	return err
}

func (s *Selection) Summary() Summary {
	sum := Summary{
		StatementIDs:     s.StatementIDs(),
		TransactionIDs:   s.TransactionIDs(),
		TotalStatement:   s.TotalStatement(),
		TotalTransaction: s.TotalTransaction(),
		Difference:       s.Difference(),
		CanConfirm:       s.CanConfirm(),
	}
	if shape, err := models.ShapeOf(len(s.statements), len(s.transactions)); err == nil {
		sum.MatchType = shape
	}
	return sum
}

func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
}
