package suggestions

import (
	"context"
	"fmt"
	"log"
	"sync"

	"statement-reconciliation-backend/internal/models"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultBulkMinScore    = 0.9
	DefaultBulkConcurrency = 8
)

// Store is the suggestion side of the entity store. ApplySuggestion and
// RejectSuggestion are atomic procedures that also record the decision.
type Store interface {
	ListPending(ctx context.Context, f models.Filter) ([]models.MatchSuggestion, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (*models.MatchSuggestion, error)
	ApplySuggestion(ctx context.Context, tenantID, id uuid.UUID, userID string) error
	RejectSuggestion(ctx context.Context, tenantID, id uuid.UUID, userID string) error
}

// Scorer (re)computes pending suggestions for a filter.
type Scorer interface {
	Generate(ctx context.Context, f models.Filter, minScore float64) (int, error)
}

// PoolInvalidator drops the cached candidate pools holding the given entries.
type PoolInvalidator interface {
	InvalidateEntries(ctx context.Context, tenantID uuid.UUID, statementIDs, transactionIDs []uuid.UUID) error
}

type Manager struct {
	store       Store
	scorer      Scorer
	pools       PoolInvalidator
	minScore    float64
	concurrency int

	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}
	regen    singleflight.Group
}

func NewManager(store Store, scorer Scorer, pools PoolInvalidator, minScore float64, concurrency int) *Manager {
	if minScore <= 0 {
		minScore = DefaultBulkMinScore
	}
	if concurrency <= 0 {
		concurrency = DefaultBulkConcurrency
	}
	return &Manager{
		store:       store,
		scorer:      scorer,
		pools:       pools,
		minScore:    minScore,
		concurrency: concurrency,
		inflight:    make(map[uuid.UUID]struct{}),
	}
}

func (m *Manager) ListPending(ctx context.Context, f models.Filter) ([]models.MatchSuggestion, error) {
	return m.store.ListPending(ctx, f)
}

// Accept applies a pending suggestion on behalf of userID.
func (m *Manager) Accept(ctx context.Context, tenantID, id uuid.UUID, userID string) error {
	return m.decide(ctx, tenantID, id, func(s *models.MatchSuggestion) error {
		if err := m.store.ApplySuggestion(ctx, tenantID, s.ID, userID); err != nil {
			return err
		}
		log.Printf("suggestion %s (%s, score %.2f) accepted by %s", s.ID, s.MatchType, s.Score, userID)
		return nil
	})
}

// Reject records the rejection. Statement items and transactions are untouched.
func (m *Manager) Reject(ctx context.Context, tenantID, id uuid.UUID, userID string) error {
	return m.decide(ctx, tenantID, id, func(s *models.MatchSuggestion) error {
		if err := m.store.RejectSuggestion(ctx, tenantID, s.ID, userID); err != nil {
			return err
		}
		log.Printf("suggestion %s rejected by %s", s.ID, userID)
		return nil
	})
}

// decide runs fn for a pending suggestion while holding its in-flight slot,
// then refreshes the pools of every account its entries belong to.
func (m *Manager) decide(ctx context.Context, tenantID, id uuid.UUID, fn func(*models.MatchSuggestion) error) error {
	if !m.acquire(id) {
		return fmt.Errorf("suggestion %s: %w", id, models.ErrSuggestionInFlight)
	}
	defer m.release(id)

	s, err := m.store.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if s.Status != models.SuggestionPending {
		return fmt.Errorf("suggestion %s is %s: %w", id, s.Status, models.ErrInvalidSuggestionState)
	}
	if err := fn(s); err != nil {
		return err
	}

	stmtIDs, txIDs := []uuid.UUID(s.StatementItemIDs), []uuid.UUID(s.TransactionIDs)
	if err := m.pools.InvalidateEntries(ctx, tenantID, stmtIDs, txIDs); err != nil {
		log.Printf("cache invalidation after suggestion %s failed: %v", id, err)
	}
	return nil
}

func (m *Manager) acquire(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.inflight[id]; busy {
		return false
	}
	m.inflight[id] = struct{}{}
	return true
}

func (m *Manager) release(id uuid.UUID) {
	m.mu.Lock()
	delete(m.inflight, id)
	m.mu.Unlock()
}

type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeWarning NoticeLevel = "warning"
)

type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

type Failure struct {
	SuggestionID uuid.UUID `json:"suggestion_id"`
	Error        string    `json:"error"`
	err          error
}

func (f Failure) Unwrap() error {
	return f.err
}

type BulkResult struct {
	TotalAttempted int       `json:"total_attempted"`
	FailedCount    int       `json:"failed_count"`
	Failures       []Failure `json:"failures"`
	Notice         Notice    `json:"notice"`
}

// BulkAcceptHighConfidence accepts every pending suggestion scoring at least
// the configured minimum. Acceptances run concurrently and fail
// independently: every attempt settles before the result is returned and a
// failure never cancels or undoes another acceptance.
func (m *Manager) BulkAcceptHighConfidence(ctx context.Context, f models.Filter, userID string) (*BulkResult, error) {
	pending, err := m.store.ListPending(ctx, f)
	if err != nil {
		return nil, err
	}

	var targets []models.MatchSuggestion
	for _, s := range pending {
		if s.Score >= m.minScore {
			targets = append(targets, s)
		}
	}

	errs := make([]error, len(targets))
	var g errgroup.Group
	g.SetLimit(m.concurrency)
	for i, s := range targets {
		g.Go(func() error {
			errs[i] = m.Accept(ctx, f.TenantID, s.ID, userID)
			// never surface the error to the group, siblings keep running
			return nil
		})
	}
	_ = g.Wait()

	res := &BulkResult{TotalAttempted: len(targets), Failures: []Failure{}}
	for i, err := range errs {
		if err == nil {
			continue
		}
		res.FailedCount++
		res.Failures = append(res.Failures, Failure{SuggestionID: targets[i].ID, Error: err.Error(), err: err})
	}

	if res.FailedCount > 0 {
		res.Notice = Notice{
			Level:   NoticeWarning,
			Message: fmt.Sprintf("%d of %d suggestions could not be accepted", res.FailedCount, res.TotalAttempted),
		}
	} else {
		res.Notice = Notice{
			Level:   NoticeSuccess,
			Message: fmt.Sprintf("%d suggestions accepted", res.TotalAttempted),
		}
	}
	log.Printf("bulk accept for %s by %s: %d attempted, %d failed", f.Key(), userID, res.TotalAttempted, res.FailedCount)
	return res, nil
}

// Regenerate asks the scorer to rebuild the filter's suggestions. Identical
// requests already running share one scorer call.
func (m *Manager) Regenerate(ctx context.Context, f models.Filter, minScore float64) (int, error) {
	key := fmt.Sprintf("%s:%.4f", f.Key(), minScore)
	// joined callers share the run, so one caller going away must not end it
	shared := context.WithoutCancel(ctx)
	v, err, joined := m.regen.Do(key, func() (interface{}, error) {
		return m.scorer.Generate(shared, f, minScore)
	})
	if err != nil {
		return 0, err
	}
	if joined {
		log.Printf("regenerate for %s joined a running request", f.Key())
	}
	return v.(int), nil
}
