package handler

import (
	"github.com/gin-gonic/gin"
	billingapp "github.com/shipbox/billing/internal/application/billing"
	"github.com/shipbox/billing/internal/interfaces/http/dto"
)

// InternalHandler serves the service-to-service endpoints used by the
// sandbox orchestrator and the LLM proxy. Routes sit behind the internal token.
type InternalHandler struct {
	BaseHandler
	metering *billingapp.MeteringService
	starter  *billingapp.StarterCreditService
	quota    *billingapp.QuotaGuard
}

// NewInternalHandler creates a new InternalHandler
func NewInternalHandler(
	metering *billingapp.MeteringService,
	starter *billingapp.StarterCreditService,
	quota *billingapp.QuotaGuard,
) *InternalHandler {
	return &InternalHandler{
		metering: metering,
		starter:  starter,
		quota:    quota,
	}
}

// ReportUsage handles POST /internal/v1/usage
func (h *InternalHandler) ReportUsage(c *gin.Context) {
	var req dto.ReportUsageRequest
	if !h.BindJSON(c, &req) {
		return
	}

	tx, err := h.metering.ReportUsage(c.Request.Context(), req.UserID, req.SessionID, req.DurationMs)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewUsageResponse(tx))
}

// ReportTokenUsage handles POST /internal/v1/usage/tokens
func (h *InternalHandler) ReportTokenUsage(c *gin.Context) {
	var req dto.ReportTokenUsageRequest
	if !h.BindJSON(c, &req) {
		return
	}

	tx, err := h.metering.ReportTokenUsage(c.Request.Context(),
		req.UserID, req.SessionID, req.Service, req.InputTokens, req.OutputTokens, req.Model)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewUsageResponse(tx))
}

// GrantStarterCredits handles POST /internal/v1/starter-credits
func (h *InternalHandler) GrantStarterCredits(c *gin.Context) {
	var req dto.UserRequest
	if !h.BindJSON(c, &req) {
		return
	}

	granted, err := h.starter.Grant(c.Request.Context(), req.UserID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.StarterCreditsResponse{Granted: granted})
}

// CheckSandboxQuota handles POST /internal/v1/quota/sandbox.
// A rejection answers 429.
func (h *InternalHandler) CheckSandboxQuota(c *gin.Context) {
	var req dto.UserRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.quota.CheckSandboxQuota(c.Request.Context(), req.UserID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.QuotaCheckResponse{Allowed: true})
}

// CheckBalance handles POST /internal/v1/quota/balance.
// An unfunded balance answers 402.
func (h *InternalHandler) CheckBalance(c *gin.Context) {
	var req dto.UserRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.quota.CheckBalance(c.Request.Context(), req.UserID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.QuotaCheckResponse{Allowed: true})
}
