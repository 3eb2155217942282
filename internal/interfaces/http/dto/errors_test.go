package dto

import (
	"net/http"
	"testing"
	"time"

	"github.com/shipbox/billing/internal/domain/ledger"
	"github.com/stretchr/testify/assert"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeUnknown, http.StatusInternalServerError},
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeUnavailable, http.StatusServiceUnavailable},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodePayloadTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeForbidden, http.StatusForbidden},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeLedgerWrite, http.StatusServiceUnavailable},
		{ErrCodeLedgerRead, http.StatusServiceUnavailable},
		{ErrCodeQuotaExceeded, http.StatusTooManyRequests},
		{ErrCodeInsufficientBalance, http.StatusPaymentRequired},
		{ErrCodeWebhookSignature, http.StatusBadRequest},
		// Unknown code should return 500
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"NOT_FOUND", ErrCodeNotFound},
		{"ALREADY_EXISTS", ErrCodeAlreadyExists},
		{"INVALID_INPUT", ErrCodeInvalidInput},
		{"UNAUTHORIZED", ErrCodeUnauthorized},
		{"UNAVAILABLE", ErrCodeUnavailable},
		// API codes pass through unchanged
		{ErrCodeNotFound, ErrCodeNotFound},
		{"CUSTOM_ERROR", "CUSTOM_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeErrorCode(tt.input))
		})
	}
}

func TestNormalizedDomainCodesHaveStatus(t *testing.T) {
	for legacy, code := range DomainErrorCodeMapping {
		_, ok := ErrorCodeHTTPStatus[code]
		assert.True(t, ok, "%s maps to %s which has no HTTP status", legacy, code)
	}
}

func TestNewValidationErrorResponse(t *testing.T) {
	resp := NewValidationErrorResponse("Request validation failed", "req-1", []ValidationDetail{
		{Field: "amountCredits", Message: "This field is required"},
	})

	assert.False(t, resp.Success)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "req-1", resp.Error.RequestID)
	assert.Len(t, resp.Error.Details, 1)
}

func TestBillingResponses(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("balance", func(t *testing.T) {
		resp := NewBalanceResponse(&ledger.UserBalance{UserID: "u1", BalanceCredits: -1050, UpdatedAt: at})
		assert.Equal(t, int64(-1050), resp.BalanceCredits)
		assert.Equal(t, "-£10.50", resp.BalanceDisplay)
		assert.Equal(t, at.Unix(), resp.UpdatedAt)

		zero := NewBalanceResponse(ledger.ZeroBalance("u2"))
		assert.Zero(t, zero.UpdatedAt)
		assert.Equal(t, "£0.00", zero.BalanceDisplay)
	})

	t.Run("usage without a debit", func(t *testing.T) {
		resp := NewUsageResponse(nil)
		assert.False(t, resp.Recorded)
		assert.Nil(t, resp.Transaction)
	})

	t.Run("usage with a debit", func(t *testing.T) {
		resp := NewUsageResponse(&ledger.Transaction{
			ID: "tx-1", UserID: "u1", AmountCredits: -10, Type: ledger.TransactionTypeUsage, CreatedAt: at,
		})
		assert.True(t, resp.Recorded)
		assert.Equal(t, "usage", resp.Transaction.Type)
		assert.Equal(t, at.Unix(), resp.Transaction.CreatedAt)
	})

	t.Run("transactions keep order", func(t *testing.T) {
		out := NewTransactionResponses([]*ledger.Transaction{
			{ID: "b", Type: ledger.TransactionTypeTopUp, CreatedAt: at},
			{ID: "a", Type: ledger.TransactionTypeStarter, CreatedAt: at},
		})
		assert.Equal(t, "b", out[0].ID)
		assert.Equal(t, "a", out[1].ID)
		assert.NotNil(t, NewTransactionResponses(nil))
	})
}
