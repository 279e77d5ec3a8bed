package reconciliation

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"statement-reconciliation-backend/internal/models"
	"statement-reconciliation-backend/internal/services/matching"

	"github.com/google/uuid"
)

// Session holds one user's in-progress selection against a filtered pool.
// Operations on a session are serialized, so a toggle waits for a running
// confirmation to finish.
type Session struct {
	ID        uuid.UUID
	Filter    models.Filter
	mu        sync.Mutex
	selection *Selection
	lastUsed  atomic.Int64 // unix nanos
}

// DefaultSessionIdleTimeout is how long an untouched session survives.
const DefaultSessionIdleTimeout = 30 * time.Minute

type SessionView struct {
	ID         uuid.UUID              `json:"id"`
	Selection  Summary                `json:"selection"`
	Statements []models.StatementItem `json:"statement_items"`
	Candidates []matching.Candidate   `json:"candidates"`
}

// CreateSession starts a session and drops the ones left idle too long.
func (s *ReconciliationService) CreateSession(f models.Filter) uuid.UUID {
	now := s.now()
	s.sweepSessions(now)

	sess := &Session{ID: uuid.New(), Filter: f, selection: NewSelection()}
	sess.lastUsed.Store(now.UnixNano())
	s.sessions.Store(sess.ID, sess)
	return sess.ID
}

// sweepSessions skips sessions with an operation in flight.
func (s *ReconciliationService) sweepSessions(now time.Time) {
	cutoff := now.Add(-s.sessionIdle).UnixNano()
	swept := 0
	s.sessions.Range(func(key, val interface{}) bool {
		sess := val.(*Session)
		if sess.lastUsed.Load() >= cutoff || !sess.mu.TryLock() {
			return true
		}
		s.sessions.Delete(key)
		sess.mu.Unlock()
		swept++
		return true
	})
	if swept > 0 {
		log.Printf("dropped %d idle reconciliation sessions", swept)
	}
}

func (s *ReconciliationService) session(tenantID, id uuid.UUID) (*Session, error) {
	val, ok := s.sessions.Load(id)
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, models.ErrNotFound)
	}
	sess := val.(*Session)
	if sess.Filter.TenantID != tenantID {
		return nil, fmt.Errorf("session %s: %w", id, models.ErrNotFound)
	}
	sess.lastUsed.Store(s.now().UnixNano())
	return sess, nil
}

func (s *ReconciliationService) DeleteSession(tenantID, id uuid.UUID) error {
	if _, err := s.session(tenantID, id); err != nil {
		return err
	}
	s.sessions.Delete(id)
	return nil
}

// ToggleStatement selects or deselects a statement item from the session's
// unreconciled pool.
func (s *ReconciliationService) ToggleStatement(ctx context.Context, tenantID, sessionID, itemID uuid.UUID) (Summary, error) {
	sess, err := s.session(tenantID, sessionID)
	if err != nil {
		return Summary{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.selection.HasStatement(itemID) {
		sess.selection.ToggleStatement(models.StatementItem{ID: itemID})
		return sess.selection.Summary(), nil
	}

	pool, err := s.ListStatementItems(ctx, sess.Filter)
	if err != nil {
		return Summary{}, err
	}
	for _, item := range pool {
		if item.ID == itemID {
			sess.selection.ToggleStatement(item)
			return sess.selection.Summary(), nil
		}
	}
	return Summary{}, fmt.Errorf("statement item %s: %w", itemID, models.ErrNotFound)
}

func (s *ReconciliationService) ToggleTransaction(ctx context.Context, tenantID, sessionID, txID uuid.UUID) (Summary, error) {
	sess, err := s.session(tenantID, sessionID)
	if err != nil {
		return Summary{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.selection.HasTransaction(txID) {
		sess.selection.ToggleTransaction(models.LedgerTransaction{ID: txID})
		return sess.selection.Summary(), nil
	}

	pool, err := s.ListTransactions(ctx, sess.Filter)
	if err != nil {
		return Summary{}, err
	}
	for _, tx := range pool {
		if tx.ID == txID {
			sess.selection.ToggleTransaction(tx)
			return sess.selection.Summary(), nil
		}
	}
	return Summary{}, fmt.Errorf("transaction %s: %w", txID, models.ErrNotFound)
}

func (s *ReconciliationService) ClearSession(tenantID, sessionID uuid.UUID) (Summary, error) {
	sess, err := s.session(tenantID, sessionID)
	if err != nil {
		return Summary{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.selection.Clear()
	return sess.selection.Summary(), nil
}

// ViewSession returns the selection totals, the statement pool and the
// transaction candidates ranked against the selection.
func (s *ReconciliationService) ViewSession(ctx context.Context, tenantID, sessionID uuid.UUID) (*SessionView, error) {
	sess, err := s.session(tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	items, err := s.ListStatementItems(ctx, sess.Filter)
	if err != nil {
		return nil, err
	}
	txs, err := s.ListTransactions(ctx, sess.Filter)
	if err != nil {
		return nil, err
	}
	return &SessionView{
		ID:         sess.ID,
		Selection:  sess.selection.Summary(),
		Statements: items,
		Candidates: s.ranker.Rank(sess.selection.StatementItems(), txs),
	}, nil
}

// ConfirmSession links the session's selection and clears it on success.
// On failure the selection is kept so the user can correct it.
func (s *ReconciliationService) ConfirmSession(ctx context.Context, tenantID, sessionID uuid.UUID, userID string) (*LinkResult, error) {
	sess, err := s.session(tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.selection.Validate(); err != nil {
		return nil, err
	}
	res, err := s.ApplyLink(ctx, tenantID, userID, sess.selection.StatementIDs(), sess.selection.TransactionIDs())
	if err != nil {
		return nil, err
	}
	sess.selection.Clear()
	return res, nil
}
