package handler

import (
	"github.com/gin-gonic/gin"
	billingapp "github.com/shipbox/billing/internal/application/billing"
	"github.com/shipbox/billing/internal/interfaces/http/dto"
)

// OperatorHeader names the operator performing an admin action, for the audit metadata
const OperatorHeader = "X-Operator"

// AdminHandler serves operator endpoints guarded by the admin token
type AdminHandler struct {
	BaseHandler
	ledger *billingapp.LedgerService
	stats  *billingapp.AdminStatsService
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(ledger *billingapp.LedgerService, stats *billingapp.AdminStatsService) *AdminHandler {
	return &AdminHandler{
		ledger: ledger,
		stats:  stats,
	}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats, err := h.stats.Stats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewStatsResponse(stats))
}

// TopUp handles POST /api/v1/admin/topup
func (h *AdminHandler) TopUp(c *gin.Context) {
	var req dto.TopUpRequest
	if !h.BindJSON(c, &req) {
		return
	}

	operator := c.GetHeader(OperatorHeader)
	if operator == "" {
		operator = "admin"
	}

	tx, err := h.ledger.TopUp(c.Request.Context(), req.UserID, req.AmountCredits, req.Reason, operator)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.NewTransactionResponse(tx))
}
