package handler

import (
	"errors"
	"io"
	"net/http"

	"statement-reconciliation-backend/internal/models"
	"statement-reconciliation-backend/internal/services/suggestions"

	"github.com/gin-gonic/gin"
)

type SuggestionHandler struct {
	manager            *suggestions.Manager
	regenerateMinScore float64
}

// NewSuggestionHandler builds the handler. regenerateMinScore applies when a
// regenerate request names none.
func NewSuggestionHandler(m *suggestions.Manager, regenerateMinScore float64) *SuggestionHandler {
	return &SuggestionHandler{manager: m, regenerateMinScore: regenerateMinScore}
}

func (h *SuggestionHandler) List(c *gin.Context) {
	f, ok := parseFilter(c)
	if !ok {
		return
	}
	pending, err := h.manager.ListPending(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	if pending == nil {
		pending = []models.MatchSuggestion{}
	}
	c.JSON(http.StatusOK, gin.H{"items": pending})
}

func (h *SuggestionHandler) Accept(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.manager.Accept(c.Request.Context(), tenantID(c), id, userID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "suggestion accepted", "suggestion_id": id})
}

func (h *SuggestionHandler) Reject(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.manager.Reject(c.Request.Context(), tenantID(c), id, userID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "suggestion rejected", "suggestion_id": id})
}

// BulkAccept always answers 200 once the batch has run; per-suggestion
// failures are reported in the body.
func (h *SuggestionHandler) BulkAccept(c *gin.Context) {
	f, ok := parseFilter(c)
	if !ok {
		return
	}
	res, err := h.manager.BulkAcceptHighConfidence(c.Request.Context(), f, userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *SuggestionHandler) Regenerate(c *gin.Context) {
	f, ok := parseFilter(c)
	if !ok {
		return
	}
	var payload struct {
		MinScore *float64 `json:"min_score"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	minScore := h.regenerateMinScore
	if payload.MinScore != nil {
		minScore = *payload.MinScore
	}
	if minScore < 0 || minScore > 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "min_score must be between 0 and 1"})
		return
	}

	n, err := h.manager.Regenerate(c.Request.Context(), f, minScore)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "suggestions regenerated", "created": n})
}
