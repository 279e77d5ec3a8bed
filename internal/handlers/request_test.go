package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"statement-reconciliation-backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondError_StatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err    error
		status int
	}{
		{models.ErrUnsupportedMatchShape, http.StatusUnprocessableEntity},
		{models.ErrEmptySelection, http.StatusUnprocessableEntity},
		{&models.ImbalanceError{Difference: decimal.NewFromInt(5)}, http.StatusUnprocessableEntity},
		{fmt.Errorf("suggestion x: %w", models.ErrInvalidSuggestionState), http.StatusConflict},
		{models.ErrConcurrentModification, http.StatusConflict},
		{models.ErrSuggestionInFlight, http.StatusConflict},
		{models.ErrNotEligible, http.StatusConflict},
		{fmt.Errorf("session: %w", models.ErrNotFound), http.StatusNotFound},
		{&models.StoreError{Op: "list", Err: errors.New("connection refused")}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			respondError(c, tc.err)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestRespondError_HidesStoreDetail(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	respondError(c, &models.StoreError{Op: "list", Err: errors.New("password=secret")})
	assert.NotContains(t, w.Body.String(), "secret")
}

func filterContext(query string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	c.Set(tenantKey, uuid.MustParse("66666666-6666-6666-6666-666666666666"))
	return c, w
}

func TestParseFilter(t *testing.T) {
	account := uuid.New()
	c, _ := filterContext("account_id=" + account.String() + "&from=2025-01-01&to=2025-01-31")
	f, ok := parseFilter(c)
	require.True(t, ok)
	require.NotNil(t, f.AccountID)
	assert.Equal(t, account, *f.AccountID)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), f.From)
	assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), f.To)

	c, _ = filterContext("")
	f, ok = parseFilter(c)
	require.True(t, ok)
	assert.Nil(t, f.AccountID)
	assert.True(t, f.From.IsZero())

	for _, q := range []string{"account_id=nope", "from=01/02/2025", "to=2025-13-01", "from=2025-02-01&to=2025-01-01"} {
		c, w := filterContext(q)
		_, ok := parseFilter(c)
		assert.False(t, ok, q)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestRequireTenant(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", RequireTenant(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tenant": tenantID(c), "user": userID(c)})
	})

	tenant := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TenantHeader, tenant.String())
	req.Header.Set(UserHeader, "bob")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), tenant.String())
	assert.Contains(t, w.Body.String(), "bob")

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TenantHeader, "not-a-uuid")
	req.Header.Set(UserHeader, "bob")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
