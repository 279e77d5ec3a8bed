package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"statement-reconciliation-backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	TenantHeader = "X-Tenant-ID"
	UserHeader   = "X-User-ID"

	tenantKey = "tenant_id"
	userKey   = "user_id"
)

// RequireTenant resolves the tenant and acting user from request headers.
// Authentication happens upstream.
func RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, err := uuid.Parse(c.GetHeader(TenantHeader))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing or invalid " + TenantHeader + " header"})
			return
		}
		userID := c.GetHeader(UserHeader)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing " + UserHeader + " header"})
			return
		}
		c.Set(tenantKey, tenantID)
		c.Set(userKey, userID)
		c.Next()
	}
}

func tenantID(c *gin.Context) uuid.UUID {
	return c.MustGet(tenantKey).(uuid.UUID)
}

func userID(c *gin.Context) string {
	return c.GetString(userKey)
}

// parseFilter reads account_id, from and to from the query string.
func parseFilter(c *gin.Context) (models.Filter, bool) {
	f := models.Filter{TenantID: tenantID(c)}

	if v := c.Query("account_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account_id"})
			return f, false
		}
		f.AccountID = &id
	}

	var ok bool
	if f.From, ok = parseDate(c, "from"); !ok {
		return f, false
	}
	if f.To, ok = parseDate(c, "to"); !ok {
		return f, false
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from must not be after to"})
		return f, false
	}
	return f, true
}

func parseDate(c *gin.Context, name string) (time.Time, bool) {
	v := c.Query(name)
	if v == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(models.DateLayout, v)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name + " date, expected yyyy-mm-dd"})
		return time.Time{}, false
	}
	return t, true
}

func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + param})
		return uuid.Nil, false
	}
	return id, true
}

// respondError maps domain errors to HTTP statuses. Store failures are
// logged and reported without detail.
func respondError(c *gin.Context, err error) {
	var imbalance *models.ImbalanceError
	switch {
	case errors.As(err, &imbalance):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "difference": imbalance.Difference})
	case errors.Is(err, models.ErrUnsupportedMatchShape),
		errors.Is(err, models.ErrEmptySelection):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInvalidSuggestionState),
		errors.Is(err, models.ErrConcurrentModification),
		errors.Is(err, models.ErrSuggestionInFlight),
		errors.Is(err, models.ErrNotEligible):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		log.Printf("ERROR %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
