package reconciliation

import (
	"context"
	"sync"
	"time"

	"statement-reconciliation-backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	tenant  = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001")
	account = uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000002")
	day0    = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
)

// memStore is an in-memory stand-in for the gorm repositories.
type memStore struct {
	mu         sync.Mutex
	items      map[uuid.UUID]*models.StatementItem
	txs        map[uuid.UUID]*models.LedgerTransaction
	linked     map[uuid.UUID]bool
	listCalls  int
	applyCalls int
	applyErr   error
	// afterList runs once, outside the lock, after the next statement listing
	afterList  func()
}

func newMemStore() *memStore {
	return &memStore{
		items:  make(map[uuid.UUID]*models.StatementItem),
		txs:    make(map[uuid.UUID]*models.LedgerTransaction),
		linked: make(map[uuid.UUID]bool),
	}
}

func (m *memStore) addStatement(amount string, dir models.StatementDirection, days int) models.StatementItem {
	item := models.StatementItem{
		ID:        uuid.New(),
		TenantID:  tenant,
		AccountID: account,
		Date:      day0.AddDate(0, 0, days),
		Amount:    decimal.RequireFromString(amount),
		Direction: dir,
	}
	m.items[item.ID] = &item
	return item
}

func (m *memStore) addTransaction(amount string, dir models.TransactionDirection, days int) models.LedgerTransaction {
	tx := models.LedgerTransaction{
		ID:        uuid.New(),
		TenantID:  tenant,
		AccountID: account,
		Date:      day0.AddDate(0, 0, days),
		Amount:    decimal.RequireFromString(amount),
		Direction: dir,
		Status:    models.TransactionPaid,
	}
	m.txs[tx.ID] = &tx
	return tx
}

type statementSide struct{ *memStore }

func (s statementSide) ListUnreconciled(_ context.Context, f models.Filter) ([]models.StatementItem, error) {
	s.mu.Lock()
	s.listCalls++
	var out []models.StatementItem
	for _, item := range s.items {
		if item.TenantID == f.TenantID && !item.Reconciled {
			out = append(out, *item)
		}
	}
	hook := s.afterList
	s.afterList = nil
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return out, nil
}

func (s statementSide) GetByIDs(_ context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]models.StatementItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.StatementItem
	for _, id := range ids {
		if item, ok := s.items[id]; ok && item.TenantID == tenantID {
			out = append(out, *item)
		}
	}
	return out, nil
}

type transactionSide struct{ *memStore }

func (s transactionSide) ListEligible(_ context.Context, f models.Filter) ([]models.LedgerTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	var out []models.LedgerTransaction
	for _, tx := range s.txs {
		if tx.TenantID == f.TenantID && !s.linked[tx.ID] {
			out = append(out, *tx)
		}
	}
	return out, nil
}

func (s transactionSide) GetByIDs(_ context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]models.LedgerTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.LedgerTransaction
	for _, id := range ids {
		if tx, ok := s.txs[id]; ok && tx.TenantID == tenantID {
			out = append(out, *tx)
		}
	}
	return out, nil
}

func (m *memStore) ApplyLink(_ context.Context, _ uuid.UUID, statementIDs, transactionIDs []uuid.UUID, _ string) (models.MatchType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyCalls++
	if m.applyErr != nil {
		return "", m.applyErr
	}
	shape, err := models.ShapeOf(len(statementIDs), len(transactionIDs))
	if err != nil {
		return "", err
	}
	for _, id := range statementIDs {
		m.items[id].Reconciled = true
	}
	for _, id := range transactionIDs {
		m.linked[id] = true
	}
	return shape, nil
}
