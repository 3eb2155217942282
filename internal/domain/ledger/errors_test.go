package ledger

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name      string
		err       error
		kind      ErrorKind
		retryable bool
	}{
		{"write", NewLedgerWriteError("apply", "u1", cause), KindLedgerWrite, true},
		{"read", NewLedgerReadError("balance", "u1", cause), KindLedgerRead, true},
		{"quota", &QuotaExceededError{UserID: "u1", Active: 3, Limit: 3}, KindQuotaExceeded, false},
		{"balance", &InsufficientBalanceError{UserID: "u1"}, KindInsufficientBalance, false},
		{"signature", &WebhookSignatureError{Err: cause}, KindWebhookSignature, false},
		{"wrapped write", fmt.Errorf("report usage: %w", NewLedgerWriteError("apply", "u1", cause)), KindLedgerWrite, true},
		{"foreign", cause, KindUnknown, false},
		{"nil", nil, KindUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind := KindOf(tt.err)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.retryable, kind.Retryable())
		})
	}
}

func TestErrorMessages(t *testing.T) {
	cause := errors.New("disk full")

	writeErr := NewLedgerWriteError("apply", "u1", cause)
	assert.ErrorIs(t, writeErr, cause)
	assert.Contains(t, writeErr.Error(), "u1")

	sigErr := &WebhookSignatureError{Err: cause}
	assert.Contains(t, sigErr.Error(), "webhook signature verification failed")
	assert.Equal(t, http.StatusBadRequest, sigErr.HTTPStatusCode())

	quotaErr := &QuotaExceededError{UserID: "u4", Active: 3, Limit: 3}
	assert.Equal(t, http.StatusTooManyRequests, quotaErr.HTTPStatusCode())
	assert.Equal(t, "quota exceeded for user u4: 3 of 3 active resources", quotaErr.Error())

	balanceErr := &InsufficientBalanceError{UserID: "u5", BalanceCredits: -20}
	assert.Equal(t, http.StatusPaymentRequired, balanceErr.HTTPStatusCode())
	assert.Equal(t, "INSUFFICIENT_BALANCE", KindInsufficientBalance.String())
}
