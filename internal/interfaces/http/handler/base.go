// Package handler adapts the billing application services to HTTP.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shipbox/billing/internal/domain/ledger"
	"github.com/shipbox/billing/internal/domain/shared"
	"github.com/shipbox/billing/internal/interfaces/http/dto"
	"github.com/shipbox/billing/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponse(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// BindJSON binds the body into req and answers 400 on failure.
// Returns false when the handler should stop.
func (h *BaseHandler) BindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// BindQuery binds the query string into req and answers 400 on failure
func (h *BaseHandler) BindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// ledgerErrorCodes maps the ledger taxonomy to API error codes
var ledgerErrorCodes = map[ledger.ErrorKind]string{
	ledger.KindLedgerWrite:         dto.ErrCodeLedgerWrite,
	ledger.KindLedgerRead:          dto.ErrCodeLedgerRead,
	ledger.KindQuotaExceeded:       dto.ErrCodeQuotaExceeded,
	ledger.KindInsufficientBalance: dto.ErrCodeInsufficientBalance,
	ledger.KindWebhookSignature:    dto.ErrCodeWebhookSignature,
}

// ledgerErrorMessages are the client-facing texts. Storage errors carry
// driver detail, so their own messages never reach the response.
var ledgerErrorMessages = map[ledger.ErrorKind]string{
	ledger.KindLedgerWrite:      "The ledger could not record the change, please retry",
	ledger.KindLedgerRead:       "The ledger is temporarily unavailable, please retry",
	ledger.KindWebhookSignature: "Webhook signature verification failed",
}

// HandleError converts ledger and domain errors to HTTP responses.
// Anything unclassified is a 500 without detail.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID := middleware.GetRequestID(c)

	kind := ledger.KindOf(err)
	if code, ok := ledgerErrorCodes[kind]; ok {
		message, ok := ledgerErrorMessages[kind]
		if !ok {
			message = err.Error()
		}
		resp := dto.NewErrorResponse(code, message, requestID)
		resp.Error.Retryable = kind.Retryable()
		c.JSON(dto.GetHTTPStatus(code), resp)
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponse(code, domainErr.Message, requestID))
		return
	}

	c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(
		dto.ErrCodeInternal,
		"An unexpected error occurred",
		requestID,
	))
}
