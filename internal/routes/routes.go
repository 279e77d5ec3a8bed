package routes

import (
	"github.com/gin-gonic/gin"

	"statement-reconciliation-backend/internal/config"
	handler "statement-reconciliation-backend/internal/handlers"
	"statement-reconciliation-backend/internal/services"
)

func RegisterRoutes(r *gin.Engine, svc *services.Services, cfg config.ReconciliationConfig) {
	reconHandler := handler.NewReconciliationHandler(svc.Reconciliation)
	suggestionHandler := handler.NewSuggestionHandler(svc.Suggestions, float64(cfg.SuggestionThreshold)/100)

	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	tenant := api.Group("", handler.RequireTenant())

	recon := tenant.Group("/reconciliation")
	recon.GET("/statement-items", reconHandler.ListStatementItems)
	recon.GET("/transactions", reconHandler.ListTransactions)
	recon.GET("/summary", reconHandler.Summary)
	recon.POST("/links", reconHandler.ApplyLink)

	// Selection sessions
	sessions := recon.Group("/sessions")
	sessions.POST("", reconHandler.CreateSession)
	sessions.GET("/:id", reconHandler.GetSession)
	sessions.DELETE("/:id", reconHandler.DeleteSession)
	sessions.POST("/:id/statement-items/:itemId/toggle", reconHandler.ToggleStatement)
	sessions.POST("/:id/transactions/:txId/toggle", reconHandler.ToggleTransaction)
	sessions.POST("/:id/clear", reconHandler.ClearSession)
	sessions.POST("/:id/confirm", reconHandler.ConfirmSession)

	sugg := tenant.Group("/suggestions")
	{
		sugg.GET("", suggestionHandler.List)
		sugg.POST("/bulk-accept", suggestionHandler.BulkAccept)
		sugg.POST("/regenerate", suggestionHandler.Regenerate)
		sugg.POST("/:id/accept", suggestionHandler.Accept)
		sugg.POST("/:id/reject", suggestionHandler.Reject)
	}
}
