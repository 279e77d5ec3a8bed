package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"statement-reconciliation-backend/internal/cache"
	"statement-reconciliation-backend/internal/models"
	"statement-reconciliation-backend/internal/services/matching"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type StatementStore interface {
	ListUnreconciled(ctx context.Context, f models.Filter) ([]models.StatementItem, error)
	GetByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]models.StatementItem, error)
}

type TransactionStore interface {
	ListEligible(ctx context.Context, f models.Filter) ([]models.LedgerTransaction, error)
	GetByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]models.LedgerTransaction, error)
}

type LinkStore interface {
	ApplyLink(ctx context.Context, tenantID uuid.UUID, statementIDs, transactionIDs []uuid.UUID, performedBy string) (models.MatchType, error)
}

type ReconciliationService struct {
	statements   StatementStore
	transactions TransactionStore
	links        LinkStore
	cache        cache.Cache
	ranker       matching.Ranker
	sessions     sync.Map // sessionID -> *Session
	sessionIdle  time.Duration
	now          func() time.Time
}

func NewReconciliationService(
	statements StatementStore,
	transactions TransactionStore,
	links LinkStore,
	c cache.Cache,
	ranker matching.Ranker,
) *ReconciliationService {
	return &ReconciliationService{
		statements:   statements,
		transactions: transactions,
		links:        links,
		cache:        c,
		ranker:       ranker,
		sessionIdle:  DefaultSessionIdleTimeout,
		now:          time.Now,
	}
}

// LinkResult describes a committed link.
type LinkResult struct {
	MatchType      models.MatchType `json:"match_type"`
	StatementIDs   []uuid.UUID      `json:"statement_ids"`
	TransactionIDs []uuid.UUID      `json:"transaction_ids"`
}

// PoolSummary totals the unreconciled pools for a filter.
type PoolSummary struct {
	StatementCount   int             `json:"statement_count"`
	StatementTotal   decimal.Decimal `json:"statement_total"`
	TransactionCount int             `json:"transaction_count"`
	TransactionTotal decimal.Decimal `json:"transaction_total"`
	Difference       decimal.Decimal `json:"difference"`
}

// ListStatementItems returns the unreconciled statement pool, cached per filter.
func (s *ReconciliationService) ListStatementItems(ctx context.Context, f models.Filter) ([]models.StatementItem, error) {
	return cached(ctx, s.cache, "statements:"+f.Key(), f.Tags(), func() ([]models.StatementItem, error) {
		return s.statements.ListUnreconciled(ctx, f)
	})
}

// ListTransactions returns the eligible transaction pool, cached per filter.
func (s *ReconciliationService) ListTransactions(ctx context.Context, f models.Filter) ([]models.LedgerTransaction, error) {
	return cached(ctx, s.cache, "transactions:"+f.Key(), f.Tags(), func() ([]models.LedgerTransaction, error) {
		return s.transactions.ListEligible(ctx, f)
	})
}

// Candidates ranks the transaction pool against the selected statement items.
func (s *ReconciliationService) Candidates(ctx context.Context, f models.Filter, selected []uuid.UUID) ([]matching.Candidate, error) {
	var items []models.StatementItem
	if len(selected) > 0 {
		pool, err := s.ListStatementItems(ctx, f)
		if err != nil {
			return nil, err
		}
		byID := make(map[uuid.UUID]models.StatementItem, len(pool))
		for _, item := range pool {
			byID[item.ID] = item
		}
		for _, id := range selected {
			item, ok := byID[id]
			if !ok {
				return nil, fmt.Errorf("statement item %s: %w", id, models.ErrNotFound)
			}
			items = append(items, item)
		}
	}

	txs, err := s.ListTransactions(ctx, f)
	if err != nil {
		return nil, err
	}
	return s.ranker.Rank(items, txs), nil
}

func (s *ReconciliationService) Summary(ctx context.Context, f models.Filter) (PoolSummary, error) {
	items, err := s.ListStatementItems(ctx, f)
	if err != nil {
		return PoolSummary{}, err
	}
	txs, err := s.ListTransactions(ctx, f)
	if err != nil {
		return PoolSummary{}, err
	}

	sum := PoolSummary{
		StatementCount:   len(items),
		StatementTotal:   decimal.Zero,
		TransactionCount: len(txs),
		TransactionTotal: decimal.Zero,
	}
	for _, item := range items {
		sum.StatementTotal = sum.StatementTotal.Add(item.SignedAmount())
	}
	for _, tx := range txs {
		sum.TransactionTotal = sum.TransactionTotal.Add(tx.SignedAmount())
	}
	sum.Difference = sum.StatementTotal.Sub(sum.TransactionTotal)
	return sum, nil
}

// ApplyLink validates and commits a link. The entries are re-read from the
// store and the balance is checked before anything is written.
func (s *ReconciliationService) ApplyLink(
	ctx context.Context,
	tenantID uuid.UUID,
	userID string,
	statementIDs, transactionIDs []uuid.UUID,
) (*LinkResult, error) {
	statementIDs, transactionIDs = uniqueIDs(statementIDs), uniqueIDs(transactionIDs)
	if len(statementIDs) == 0 || len(transactionIDs) == 0 {
		return nil, models.ErrEmptySelection
	}

	items, err := s.statements.GetByIDs(ctx, tenantID, statementIDs)
	if err != nil {
		return nil, err
	}
	txs, err := s.transactions.GetByIDs(ctx, tenantID, transactionIDs)
	if err != nil {
		return nil, err
	}

	sel := NewSelection()
	for _, item := range items {
		sel.ToggleStatement(item)
	}
	for _, tx := range txs {
		sel.ToggleTransaction(tx)
	}
	if len(sel.statements) != len(statementIDs) {
		return nil, fmt.Errorf("statement items: %w", models.ErrNotFound)
	}
	if len(sel.transactions) != len(transactionIDs) {
		return nil, fmt.Errorf("transactions: %w", models.ErrNotFound)
	}
	if err := sel.Validate(); err != nil {
		return nil, err
	}

	stmtIDs, txIDs := sel.StatementIDs(), sel.TransactionIDs()
	shape, err := s.links.ApplyLink(ctx, tenantID, stmtIDs, txIDs, userID)
	if err != nil {
		return nil, err
	}
	log.Printf("applied %s link by %s: %d statement items, %d transactions", shape, userID, len(stmtIDs), len(txIDs))

	if err := s.InvalidatePools(ctx, tenantID, accountsOf(items, txs)...); err != nil {
		log.Printf("cache invalidation after link failed: %v", err)
	}

	return &LinkResult{MatchType: shape, StatementIDs: stmtIDs, TransactionIDs: txIDs}, nil
}

// InvalidatePools drops the cached pools that may contain entries of the
// given accounts.
func (s *ReconciliationService) InvalidatePools(ctx context.Context, tenantID uuid.UUID, accountIDs ...uuid.UUID) error {
	return s.cache.InvalidateTags(ctx, models.PoolTags(tenantID, accountIDs...)...)
}

// InvalidateEntries drops the pools of every account holding one of the
// given entries. The tenant-wide pools are dropped even when the lookup
// fails.
func (s *ReconciliationService) InvalidateEntries(ctx context.Context, tenantID uuid.UUID, statementIDs, transactionIDs []uuid.UUID) error {
	items, itemErr := s.statements.GetByIDs(ctx, tenantID, statementIDs)
	txs, txErr := s.transactions.GetByIDs(ctx, tenantID, transactionIDs)
	err := s.InvalidatePools(ctx, tenantID, accountsOf(items, txs)...)
	return errors.Join(itemErr, txErr, err)
}

func accountsOf(items []models.StatementItem, txs []models.LedgerTransaction) []uuid.UUID {
	accounts := make([]uuid.UUID, 0, len(items)+len(txs))
	for _, item := range items {
		accounts = append(accounts, item.AccountID)
	}
	for _, tx := range txs {
		accounts = append(accounts, tx.AccountID)
	}
	return accounts
}

// cached serves a pool from c, loading and storing it on a miss. Cache
// failures fall back to the loader. A pool whose tags were invalidated while
// it loaded is returned but not stored.
func cached[T any](ctx context.Context, c cache.Cache, key string, tags []string, load func() ([]T, error)) ([]T, error) {
	var out []T
	ok, err := c.Get(ctx, key, &out)
	if err != nil {
		log.Printf("cache read %s failed: %v", key, err)
	}
	if ok {
		return out, nil
	}

	version, verr := c.Version(ctx, tags...)
	if verr != nil {
		log.Printf("cache version %s failed: %v", key, verr)
	}
	out, err = load()
	if err != nil {
		return nil, err
	}
	if verr != nil {
		return out, nil
	}
	stored, err := c.SetIfUnchanged(ctx, key, out, version, tags...)
	if err != nil {
		log.Printf("cache write %s failed: %v", key, err)
	} else if !stored {
		log.Printf("cache write %s skipped: invalidated during load", key)
	}
	return out, nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
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
