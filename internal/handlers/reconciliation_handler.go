package handler

import (
	"context"
	"net/http"

	"statement-reconciliation-backend/internal/models"
	service "statement-reconciliation-backend/internal/services/reconciliation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ReconciliationHandler struct {
	service *service.ReconciliationService
}

func NewReconciliationHandler(s *service.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{service: s}
}

func (h *ReconciliationHandler) ListStatementItems(c *gin.Context) {
	f, ok := parseFilter(c)
	if !ok {
		return
	}
	items, err := h.service.ListStatementItems(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	if items == nil {
		items = []models.StatementItem{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// ListTransactions returns the eligible pool, ranked against the
// statement_item_id query values when given.
func (h *ReconciliationHandler) ListTransactions(c *gin.Context) {
	f, ok := parseFilter(c)
	if !ok {
		return
	}
	var selected []uuid.UUID
	for _, v := range c.QueryArray("statement_item_id") {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid statement_item_id"})
			return
		}
		selected = append(selected, id)
	}

	candidates, err := h.service.Candidates(c.Request.Context(), f, selected)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": candidates})
}

func (h *ReconciliationHandler) Summary(c *gin.Context) {
	f, ok := parseFilter(c)
	if !ok {
		return
	}
	sum, err := h.service.Summary(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *ReconciliationHandler) ApplyLink(c *gin.Context) {
	var payload struct {
		StatementIDs   []uuid.UUID `json:"statement_ids"`
		TransactionIDs []uuid.UUID `json:"transaction_ids"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	res, err := h.service.ApplyLink(c.Request.Context(), tenantID(c), userID(c), payload.StatementIDs, payload.TransactionIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "link applied", "link": res})
}

func (h *ReconciliationHandler) CreateSession(c *gin.Context) {
	f, ok := parseFilter(c)
	if !ok {
		return
	}
	id := h.service.CreateSession(f)
	c.JSON(http.StatusCreated, gin.H{"session_id": id})
}

func (h *ReconciliationHandler) GetSession(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	view, err := h.service.ViewSession(c.Request.Context(), tenantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *ReconciliationHandler) DeleteSession(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteSession(tenantID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ReconciliationHandler) ToggleStatement(c *gin.Context) {
	h.toggle(c, "itemId", h.service.ToggleStatement)
}

func (h *ReconciliationHandler) ToggleTransaction(c *gin.Context) {
	h.toggle(c, "txId", h.service.ToggleTransaction)
}

func (h *ReconciliationHandler) toggle(c *gin.Context, param string, fn func(ctx context.Context, tenantID, sessionID, entryID uuid.UUID) (service.Summary, error)) {
	sessionID, ok := parseID(c, "id")
	if !ok {
		return
	}
	entryID, ok := parseID(c, param)
	if !ok {
		return
	}
	sum, err := fn(c.Request.Context(), tenantID(c), sessionID, entryID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *ReconciliationHandler) ClearSession(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	sum, err := h.service.ClearSession(tenantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *ReconciliationHandler) ConfirmSession(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	res, err := h.service.ConfirmSession(c.Request.Context(), tenantID(c), id, userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "link applied", "link": res})
}
