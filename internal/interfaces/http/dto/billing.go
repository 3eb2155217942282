package dto

import "github.com/shipbox/billing/internal/domain/ledger"

// BalanceResponse is a user's credit balance
type BalanceResponse struct {
	UserID         string `json:"userId"`
	BalanceCredits int64  `json:"balanceCredits"`
	BalanceDisplay string `json:"balanceDisplay"`
	UpdatedAt      int64  `json:"updatedAt"`
}

// NewBalanceResponse converts a domain balance
func NewBalanceResponse(b *ledger.UserBalance) BalanceResponse {
	resp := BalanceResponse{
		UserID:         b.UserID,
		BalanceCredits: b.BalanceCredits,
		BalanceDisplay: ledger.FormatCredits(b.BalanceCredits),
	}
	if !b.UpdatedAt.IsZero() {
		resp.UpdatedAt = b.UpdatedAt.Unix()
	}
	return resp
}

// TransactionResponse is one ledger entry. Timestamps are unix seconds.
type TransactionResponse struct {
	ID            string         `json:"id"`
	UserID        string         `json:"userId"`
	AmountCredits int64          `json:"amountCredits"`
	Type          string         `json:"type"`
	Description   string         `json:"description"`
	CreatedAt     int64          `json:"createdAt"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// NewTransactionResponse converts a domain transaction
func NewTransactionResponse(tx *ledger.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:            tx.ID,
		UserID:        tx.UserID,
		AmountCredits: tx.AmountCredits,
		Type:          tx.Type.String(),
		Description:   tx.Description,
		CreatedAt:     tx.CreatedAt.Unix(),
		Metadata:      tx.Metadata,
	}
}

// NewTransactionResponses converts a page of transactions
func NewTransactionResponses(txs []*ledger.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, NewTransactionResponse(tx))
	}
	return out
}

// TransactionListQuery is the query of GET /billing/transactions
type TransactionListQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}

// ConsumptionQuery is the query of GET /billing/consumption
type ConsumptionQuery struct {
	// PeriodStart is a unix timestamp in seconds
	PeriodStart int64 `form:"periodStart" binding:"omitempty,min=0"`
}

// ConsumptionResponse is the sum of debits in a window
type ConsumptionResponse struct {
	ConsumptionCredits int64 `json:"consumptionCredits"`
	PeriodStart        int64 `json:"periodStart"`
}

// CheckoutRequest starts a credit purchase
type CheckoutRequest struct {
	AmountCredits int64 `json:"amountCredits" binding:"required"`
}

// CheckoutResponse is the hosted payment page to redirect to
type CheckoutResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// PortalResponse is the billing portal to redirect to
type PortalResponse struct {
	URL string `json:"url"`
}

// WebhookResponse acknowledges a payment webhook delivery
type WebhookResponse struct {
	Received  bool   `json:"received"`
	Outcome   string `json:"outcome,omitempty"`
	EventID   string `json:"eventId,omitempty"`
	EventType string `json:"eventType,omitempty"`
	Message   string `json:"message,omitempty"`
}

// StatsResponse summarizes the ledger for operators
type StatsResponse struct {
	TotalUsers          int64  `json:"totalUsers"`
	ActiveUsers24h      int64  `json:"activeUsers24h"`
	TotalRevenueCredits int64  `json:"totalRevenueCredits"`
	RevenueTodayCredits int64  `json:"revenueTodayCredits"`
	TotalRevenueDisplay string `json:"totalRevenueDisplay"`
}

// NewStatsResponse converts domain stats
func NewStatsResponse(s *ledger.Stats) StatsResponse {
	return StatsResponse{
		TotalUsers:          s.TotalUsers,
		ActiveUsers24h:      s.ActiveUsers24h,
		TotalRevenueCredits: s.TotalRevenueCredits,
		RevenueTodayCredits: s.RevenueTodayCredits,
		TotalRevenueDisplay: ledger.FormatCredits(s.TotalRevenueCredits),
	}
}

// TopUpRequest is an operator's manual credit grant
type TopUpRequest struct {
	UserID        string `json:"userId" binding:"required,max=128"`
	AmountCredits int64  `json:"amountCredits" binding:"required,gt=0"`
	Reason        string `json:"reason" binding:"max=255"`
}

// ReportUsageRequest reports wall-clock sandbox usage
type ReportUsageRequest struct {
	UserID     string `json:"userId" binding:"required,max=128"`
	SessionID  string `json:"sessionId" binding:"required,max=128"`
	DurationMs int64  `json:"durationMs" binding:"gte=0"`
}

// ReportTokenUsageRequest reports LLM token usage
type ReportTokenUsageRequest struct {
	UserID       string `json:"userId" binding:"required,max=128"`
	SessionID    string `json:"sessionId" binding:"required,max=128"`
	Service      string `json:"service" binding:"required,max=64"`
	InputTokens  int64  `json:"inputTokens" binding:"gte=0"`
	OutputTokens int64  `json:"outputTokens" binding:"gte=0"`
	Model        string `json:"model" binding:"required,max=128"`
}

// UsageResponse is the debit a usage report produced, if any
type UsageResponse struct {
	Recorded    bool                 `json:"recorded"`
	Transaction *TransactionResponse `json:"transaction,omitempty"`
}

// NewUsageResponse converts an optional debit
func NewUsageResponse(tx *ledger.Transaction) UsageResponse {
	if tx == nil {
		return UsageResponse{}
	}
	resp := NewTransactionResponse(tx)
	return UsageResponse{Recorded: true, Transaction: &resp}
}

// UserRequest names the user an internal call acts on
type UserRequest struct {
	UserID string `json:"userId" binding:"required,max=128"`
}

// StarterCreditsResponse reports whether a starter grant happened
type StarterCreditsResponse struct {
	Granted bool `json:"granted"`
}

// QuotaCheckResponse is the verdict of a quota or balance check
type QuotaCheckResponse struct {
	Allowed bool `json:"allowed"`
}
