package router

import (
	"github.com/gin-gonic/gin"
	"github.com/shipbox/billing/internal/interfaces/http/handler"
	"github.com/shipbox/billing/internal/interfaces/http/middleware"
)

// Handlers are the billing endpoints to mount
type Handlers struct {
	Billing  *handler.BillingHandler
	Webhook  *handler.WebhookHandler
	Admin    *handler.AdminHandler
	Internal *handler.InternalHandler
	Health   *handler.HealthHandler
}

// Tokens are the shared secrets guarding the admin and internal groups.
// An empty token closes its group.
type Tokens struct {
	Admin    string
	Internal string
}

const apiBase = "/api/v1"

// Setup mounts the full billing route table on engine:
//
//	GET  /health
//	POST /webhooks/stripe
//	     /api/v1/billing/*   X-User-ID
//	     /api/v1/admin/*     X-Admin-Token
//	     /internal/v1/*      X-Internal-Token
func Setup(engine *gin.Engine, h Handlers, tokens Tokens) {
	engine.GET("/health", h.Health.Health)

	webhooks := NewRouteGroup("/webhooks").
		POST("/stripe", h.Webhook.HandleStripeWebhook)

	internal := NewRouteGroup("/internal/v1",
		middleware.RequireToken(middleware.InternalTokenHeader, tokens.Internal)).
		POST("/usage", h.Internal.ReportUsage).
		POST("/usage/tokens", h.Internal.ReportTokenUsage).
		POST("/starter-credits", h.Internal.GrantStarterCredits)
	internal.Group("/quota").
		POST("/sandbox", h.Internal.CheckSandboxQuota).
		POST("/balance", h.Internal.CheckBalance)

	billing := NewRouteGroup("/billing", middleware.UserIdentity()).
		GET("/balance", h.Billing.GetBalance).
		GET("/transactions", h.Billing.ListTransactions).
		GET("/consumption", h.Billing.GetConsumption).
		POST("/checkout", h.Billing.CreateCheckout).
		POST("/portal", h.Billing.CreatePortal)

	admin := NewRouteGroup("/admin",
		middleware.RequireToken(middleware.AdminTokenHeader, tokens.Admin)).
		GET("/stats", h.Admin.GetStats).
		POST("/topup", h.Admin.TopUp)

	NewRouter(engine).
		Mount("", webhooks, internal).
		Mount(apiBase, billing, admin).
		Setup()
}
