package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	billingapp "github.com/shipbox/billing/internal/application/billing"
	"github.com/shipbox/billing/internal/interfaces/http/dto"
	"github.com/shipbox/billing/internal/interfaces/http/middleware"
)

// BillingHandler serves the signed-in user's own billing endpoints.
// Routes sit behind middleware.UserIdentity.
type BillingHandler struct {
	BaseHandler
	ledger   *billingapp.LedgerService
	checkout *billingapp.CheckoutService
}

// NewBillingHandler creates a new BillingHandler
func NewBillingHandler(ledger *billingapp.LedgerService, checkout *billingapp.CheckoutService) *BillingHandler {
	return &BillingHandler{
		ledger:   ledger,
		checkout: checkout,
	}
}

// GetBalance handles GET /api/v1/billing/balance
func (h *BillingHandler) GetBalance(c *gin.Context) {
	balance, err := h.ledger.Balance(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewBalanceResponse(balance))
}

// ListTransactions handles GET /api/v1/billing/transactions?limit=N
func (h *BillingHandler) ListTransactions(c *gin.Context) {
	var query dto.TransactionListQuery
	if !h.BindQuery(c, &query) {
		return
	}

	txs, err := h.ledger.Transactions(c.Request.Context(), middleware.GetUserID(c), query.Limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewTransactionResponses(txs))
}

// GetConsumption handles GET /api/v1/billing/consumption?periodStart=unix
func (h *BillingHandler) GetConsumption(c *gin.Context) {
	var query dto.ConsumptionQuery
	if !h.BindQuery(c, &query) {
		return
	}

	var periodStart time.Time
	if query.PeriodStart > 0 {
		periodStart = time.Unix(query.PeriodStart, 0)
	}

	total, from, err := h.ledger.Consumption(c.Request.Context(), middleware.GetUserID(c), periodStart)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ConsumptionResponse{
		ConsumptionCredits: total,
		PeriodStart:        from.Unix(),
	})
}

// CreateCheckout handles POST /api/v1/billing/checkout
func (h *BillingHandler) CreateCheckout(c *gin.Context) {
	var req dto.CheckoutRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.checkout.CreateCheckout(c.Request.Context(), billingapp.CheckoutRequest{
		UserID:        middleware.GetUserID(c),
		AmountCredits: req.AmountCredits,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.CheckoutResponse{SessionID: result.SessionID, URL: result.URL})
}

// CreatePortal handles POST /api/v1/billing/portal
func (h *BillingHandler) CreatePortal(c *gin.Context) {
	url, err := h.checkout.CreatePortal(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.PortalResponse{URL: url})
}
