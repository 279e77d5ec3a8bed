package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"statement-reconciliation-backend/internal/cache"
	"statement-reconciliation-backend/internal/config"
	"statement-reconciliation-backend/internal/models"
	"statement-reconciliation-backend/internal/repository"
	"statement-reconciliation-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	tenant  = uuid.MustParse("44444444-4444-4444-4444-444444444444")
	account = uuid.MustParse("55555555-5555-5555-5555-555555555555")
	opDate  = time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)
)

type server struct {
	t      *testing.T
	router *gin.Engine
	db     *gorm.DB
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "recon.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// sqlite allows one writer; bulk accepts queue on the pool instead
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, repository.Migrate(db))

	cfg := config.Default().Reconciliation
	r := gin.New()
	RegisterRoutes(r, services.New(db, cache.NewMemory(time.Minute), cfg), cfg)
	return &server{t: t, router: r, db: db}
}

func (s *server) statement(amount string) models.StatementItem {
	s.t.Helper()
	item := models.StatementItem{
		TenantID:  tenant,
		AccountID: account,
		Date:      opDate,
		Amount:    decimal.RequireFromString(amount),
		Direction: models.DirectionCredit,
	}
	require.NoError(s.t, repository.NewStatementItemRepository(s.db).Create(context.Background(), &item))
	return item
}

func (s *server) transaction(amount string) models.LedgerTransaction {
	s.t.Helper()
	tx := models.LedgerTransaction{
		TenantID:  tenant,
		AccountID: account,
		Date:      opDate,
		Amount:    decimal.RequireFromString(amount),
		Direction: models.DirectionInflow,
		Status:    models.TransactionPaid,
	}
	require.NoError(s.t, repository.NewLedgerTransactionRepository(s.db).Create(context.Background(), &tx))
	return tx
}

func (s *server) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenant.String())
	req.Header.Set("X-User-ID", "alice")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type itemsResponse[T any] struct {
	Items []T `json:"items"`
}

type linkResponse struct {
	Link struct {
		MatchType models.MatchType `json:"match_type"`
	} `json:"link"`
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequiresTenantHeaders(t *testing.T) {
	s := newServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/reconciliation/statement-items", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/reconciliation/statement-items", nil)
	req.Header.Set("X-Tenant-ID", tenant.String())
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code, "user header is required too")
}

func TestFilterValidation(t *testing.T) {
	s := newServer(t)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/reconciliation/statement-items?from=10-04-2025", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/reconciliation/statement-items?account_id=x", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/reconciliation/statement-items?from=2025-04-11&to=2025-04-10", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/reconciliation/statement-items?from=2025-04-10&to=2025-04-10", nil).Code)
}

func TestApplyLink_ManyToOneRefreshesPools(t *testing.T) {
	s := newServer(t)
	s1, s2 := s.statement("100.00"), s.statement("50.00")
	t1 := s.transaction("150.00")
	s.transaction("99.00")

	// warm the cache before linking
	stmts := decode[itemsResponse[models.StatementItem]](t, s.do(http.MethodGet, "/api/reconciliation/statement-items", nil))
	require.Len(t, stmts.Items, 2)

	w := s.do(http.MethodPost, "/api/reconciliation/links", gin.H{
		"statement_ids":   []uuid.UUID{s1.ID, s2.ID},
		"transaction_ids": []uuid.UUID{t1.ID},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.MatchManyToOne, decode[linkResponse](t, w).Link.MatchType)

	stmts = decode[itemsResponse[models.StatementItem]](t, s.do(http.MethodGet, "/api/reconciliation/statement-items", nil))
	assert.Empty(t, stmts.Items)
	txs := decode[itemsResponse[models.LedgerTransaction]](t, s.do(http.MethodGet, "/api/reconciliation/transactions", nil))
	require.Len(t, txs.Items, 1)
	assert.NotEqual(t, t1.ID, txs.Items[0].ID)

	// the same entries cannot be linked twice
	w = s.do(http.MethodPost, "/api/reconciliation/links", gin.H{
		"statement_ids":   []uuid.UUID{s1.ID, s2.ID},
		"transaction_ids": []uuid.UUID{t1.ID},
	})
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
}

func TestApplyLink_Rejections(t *testing.T) {
	s := newServer(t)
	s1, s2 := s.statement("100.00"), s.statement("50.00")
	t1, t2 := s.transaction("120.00"), s.transaction("30.00")

	w := s.do(http.MethodPost, "/api/reconciliation/links", gin.H{
		"statement_ids":   []uuid.UUID{s1.ID},
		"transaction_ids": []uuid.UUID{t1.ID},
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode[map[string]interface{}](t, w)
	assert.Equal(t, "-20", body["difference"])

	w = s.do(http.MethodPost, "/api/reconciliation/links", gin.H{
		"statement_ids":   []uuid.UUID{s1.ID, s2.ID},
		"transaction_ids": []uuid.UUID{t1.ID, t2.ID},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "many-to-many")

	w = s.do(http.MethodPost, "/api/reconciliation/links", gin.H{
		"statement_ids":   []uuid.UUID{},
		"transaction_ids": []uuid.UUID{t1.ID},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "empty side")

	w = s.do(http.MethodPost, "/api/reconciliation/links", gin.H{
		"statement_ids":   []uuid.UUID{uuid.New()},
		"transaction_ids": []uuid.UUID{t1.ID},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	stmts := decode[itemsResponse[models.StatementItem]](t, s.do(http.MethodGet, "/api/reconciliation/statement-items", nil))
	assert.Len(t, stmts.Items, 2, "nothing was reconciled")
}

func TestTransactions_RankedAgainstSelection(t *testing.T) {
	s := newServer(t)
	item := s.statement("100.00")
	s.transaction("75.00")
	exact := s.transaction("100.00")

	w := s.do(http.MethodGet, "/api/reconciliation/transactions?statement_item_id="+item.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[itemsResponse[struct {
		ID           uuid.UUID `json:"id"`
		Score        *int      `json:"score"`
		IsSuggestion bool      `json:"is_suggestion"`
	}]](t, w)
	require.Len(t, res.Items, 2)
	assert.Equal(t, exact.ID, res.Items[0].ID)
	require.NotNil(t, res.Items[0].Score)
	assert.Equal(t, 100, *res.Items[0].Score)
	assert.True(t, res.Items[0].IsSuggestion)
}

func TestSummary(t *testing.T) {
	s := newServer(t)
	s.statement("100.00")
	s.transaction("40.00")

	w := s.do(http.MethodGet, "/api/reconciliation/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]interface{}](t, w)
	assert.EqualValues(t, 1, body["statement_count"])
	assert.Equal(t, "60", body["difference"])
}

func TestSessionFlow(t *testing.T) {
	s := newServer(t)
	item := s.statement("100.00")
	tx := s.transaction("100.00")

	w := s.do(http.MethodPost, "/api/reconciliation/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[map[string]string](t, w)["session_id"]
	base := "/api/reconciliation/sessions/" + id

	type summary struct {
		CanConfirm bool             `json:"can_confirm"`
		MatchType  models.MatchType `json:"match_type"`
	}
	sum := decode[summary](t, s.do(http.MethodPost, base+"/statement-items/"+item.ID.String()+"/toggle", nil))
	assert.False(t, sum.CanConfirm)
	sum = decode[summary](t, s.do(http.MethodPost, base+"/transactions/"+tx.ID.String()+"/toggle", nil))
	assert.True(t, sum.CanConfirm)
	assert.Equal(t, models.MatchOneToOne, sum.MatchType)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, base+"/transactions/"+uuid.NewString()+"/toggle", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, base, nil).Code)

	w = s.do(http.MethodPost, base+"/confirm", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.MatchOneToOne, decode[linkResponse](t, w).Link.MatchType)

	assert.Equal(t, http.StatusUnprocessableEntity, s.do(http.MethodPost, base+"/confirm", nil).Code, "selection was cleared")
	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, base+"/clear", nil).Code)
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, base, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, base, nil).Code)
}

func TestSuggestions_RegenerateAcceptReject(t *testing.T) {
	s := newServer(t)
	s.statement("100.00")
	s.statement("50.00")
	s.transaction("100.00")
	s.transaction("50.00")

	w := s.do(http.MethodPost, "/api/suggestions/regenerate", gin.H{"min_score": 0.9})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 2, decode[map[string]interface{}](t, w)["created"])

	pending := decode[itemsResponse[models.MatchSuggestion]](t, s.do(http.MethodGet, "/api/suggestions", nil))
	require.Len(t, pending.Items, 2)
	first, second := pending.Items[0].ID.String(), pending.Items[1].ID.String()

	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/suggestions/"+first+"/accept", nil).Code)
	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, "/api/suggestions/"+first+"/accept", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/suggestions/"+second+"/reject", nil).Code)
	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, "/api/suggestions/"+second+"/accept", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/api/suggestions/"+uuid.NewString()+"/accept", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/suggestions/not-an-id/accept", nil).Code)

	stmts := decode[itemsResponse[models.StatementItem]](t, s.do(http.MethodGet, "/api/reconciliation/statement-items", nil))
	assert.Len(t, stmts.Items, 1, "only the accepted suggestion reconciled an item")
}

func TestSuggestions_BulkAccept(t *testing.T) {
	s := newServer(t)
	s.statement("100.00")
	s.statement("50.00")
	s.transaction("100.00")
	s.transaction("50.00")

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/suggestions/regenerate", gin.H{"min_score": 0.9}).Code)

	w := s.do(http.MethodPost, "/api/suggestions/bulk-accept", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[struct {
		TotalAttempted int `json:"total_attempted"`
		FailedCount    int `json:"failed_count"`
		Notice         struct {
			Level string `json:"level"`
		} `json:"notice"`
	}](t, w)
	assert.Equal(t, 2, res.TotalAttempted)
	assert.Zero(t, res.FailedCount)
	assert.Equal(t, "success", res.Notice.Level)

	stmts := decode[itemsResponse[models.StatementItem]](t, s.do(http.MethodGet, "/api/reconciliation/statement-items", nil))
	assert.Empty(t, stmts.Items)
	pending := decode[itemsResponse[models.MatchSuggestion]](t, s.do(http.MethodGet, "/api/suggestions", nil))
	assert.Empty(t, pending.Items)
}

func TestSuggestions_AcceptAcrossAccountsRefreshesBothPools(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	other := uuid.MustParse("99999999-9999-9999-9999-999999999999")

	item := s.statement("80.00")
	tx := models.LedgerTransaction{
		TenantID:  tenant,
		AccountID: other,
		Date:      opDate,
		Amount:    decimal.RequireFromString("80.00"),
		Direction: models.DirectionInflow,
		Status:    models.TransactionPaid,
	}
	require.NoError(t, repository.NewLedgerTransactionRepository(s.db).Create(ctx, &tx))

	otherPool := "/api/reconciliation/transactions?account_id=" + other.String()
	txs := decode[itemsResponse[models.LedgerTransaction]](t, s.do(http.MethodGet, otherPool, nil))
	require.Len(t, txs.Items, 1)

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/suggestions/regenerate", gin.H{"min_score": 0.9}).Code)
	pending := decode[itemsResponse[models.MatchSuggestion]](t, s.do(http.MethodGet, "/api/suggestions", nil))
	require.Len(t, pending.Items, 1)
	assert.Equal(t, account, pending.Items[0].AccountID)
	assert.Equal(t, []uuid.UUID{item.ID}, []uuid.UUID(pending.Items[0].StatementItemIDs))

	w := s.do(http.MethodPost, "/api/suggestions/"+pending.Items[0].ID.String()+"/accept", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	txs = decode[itemsResponse[models.LedgerTransaction]](t, s.do(http.MethodGet, otherPool, nil))
	assert.Empty(t, txs.Items, "linked transaction must leave the other account's pool")
}

func TestSuggestions_ImbalancedAcceptIsRejected(t *testing.T) {
	s := newServer(t)
	s.statement("100.00")
	s.transaction("70.00")

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/suggestions/regenerate", gin.H{"min_score": 0.5}).Code)
	pending := decode[itemsResponse[models.MatchSuggestion]](t, s.do(http.MethodGet, "/api/suggestions", nil))
	require.Len(t, pending.Items, 1)

	w := s.do(http.MethodPost, "/api/suggestions/"+pending.Items[0].ID.String()+"/accept", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	stmts := decode[itemsResponse[models.StatementItem]](t, s.do(http.MethodGet, "/api/reconciliation/statement-items", nil))
	assert.Len(t, stmts.Items, 1)
}
