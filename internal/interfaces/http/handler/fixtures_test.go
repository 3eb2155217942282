package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	billingapp "github.com/shipbox/billing/internal/application/billing"
	"github.com/shipbox/billing/internal/domain/ledger"
	"github.com/shipbox/billing/internal/domain/metering"
	"github.com/shipbox/billing/internal/infrastructure/billing"
	"github.com/shipbox/billing/internal/infrastructure/persistence"
	"github.com/shipbox/billing/internal/interfaces/http/dto"
	"github.com/shipbox/billing/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

const testWebhookSecret = "whsec_handler_test"

type stubGateway struct {
	checkoutInput billing.CheckoutInput
	portalFor     string
	err           error
}

func (g *stubGateway) CreateCheckoutSession(_ context.Context, input billing.CheckoutInput) (*billing.CheckoutSession, error) {
	g.checkoutInput = input
	if g.err != nil {
		return nil, g.err
	}
	return &billing.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/cs_test_1"}, nil
}

func (g *stubGateway) CreatePortalSession(_ context.Context, customerID string) (string, error) {
	g.portalFor = customerID
	if g.err != nil {
		return "", g.err
	}
	return "https://billing.stripe.com/p/session_1", nil
}

type stubSessions struct {
	count int64
	err   error
}

func (s *stubSessions) CountSessions(context.Context, string) (int64, error) {
	return s.count, s.err
}

// failingStore reports every write as a ledger outage
type failingStore struct {
	*persistence.MemoryLedgerStore
}

func (s failingStore) ApplyTransaction(_ context.Context, entry ledger.Entry) (*ledger.Transaction, error) {
	return nil, ledger.NewLedgerWriteError("apply", entry.UserID, errors.New("connection reset"))
}

func (s failingStore) GetBalance(_ context.Context, userID string) (*ledger.UserBalance, error) {
	return nil, ledger.NewLedgerReadError("get_balance", userID, errors.New("connection reset"))
}

// env wires real services over an in-memory ledger
type env struct {
	store    ledger.Store
	mem      *persistence.MemoryLedgerStore
	gateway  *stubGateway
	sessions *stubSessions
	router   *gin.Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()
	mem := persistence.NewMemoryLedgerStore()
	return newEnvWithStore(t, mem, mem)
}

func newEnvWithStore(t *testing.T, store ledger.Store, mem *persistence.MemoryLedgerStore) *env {
	t.Helper()
	logger := zap.NewNop()
	e := &env{
		store:    store,
		mem:      mem,
		gateway:  &stubGateway{},
		sessions: &stubSessions{},
	}

	ledgerSvc := billingapp.NewLedgerService(store, nil, nil, logger)
	checkout := billingapp.NewCheckoutService(store, e.gateway, billingapp.DefaultMinTopUpCredits, logger)
	processor := billingapp.NewWebhookProcessor(billingapp.WebhookProcessorConfig{
		Config: &billing.StripeConfig{WebhookSecret: testWebhookSecret, Currency: "gbp"},
		Store:  store,
		Logger: logger,
	})
	meteringSvc := billingapp.NewMeteringService(billingapp.MeteringServiceConfig{
		Store:  store,
		Rates:  metering.DefaultRates(),
		Logger: logger,
	})
	starter := billingapp.NewStarterCreditService(billingapp.StarterCreditServiceConfig{
		Store:  store,
		Logger: logger,
	})
	quota := billingapp.NewQuotaGuard(billingapp.QuotaGuardConfig{
		Store:    store,
		Sessions: e.sessions,
		Logger:   logger,
	})

	billingH := NewBillingHandler(ledgerSvc, checkout)
	webhookH := NewWebhookHandler(processor, logger)
	adminH := NewAdminHandler(ledgerSvc, billingapp.NewAdminStatsService(store))
	internalH := NewInternalHandler(meteringSvc, starter, quota)

	r := gin.New()
	r.Use(middleware.RequestID())
	r.POST("/webhooks/stripe", webhookH.HandleStripeWebhook)

	user := r.Group("/api/v1/billing", middleware.UserIdentity())
	user.GET("/balance", billingH.GetBalance)
	user.GET("/transactions", billingH.ListTransactions)
	user.GET("/consumption", billingH.GetConsumption)
	user.POST("/checkout", billingH.CreateCheckout)
	user.POST("/portal", billingH.CreatePortal)

	admin := r.Group("/api/v1/admin")
	admin.GET("/stats", adminH.GetStats)
	admin.POST("/topup", adminH.TopUp)

	internal := r.Group("/internal/v1")
	internal.POST("/usage", internalH.ReportUsage)
	internal.POST("/usage/tokens", internalH.ReportTokenUsage)
	internal.POST("/starter-credits", internalH.GrantStarterCredits)
	internal.POST("/quota/sandbox", internalH.CheckSandboxQuota)
	internal.POST("/quota/balance", internalH.CheckBalance)

	e.router = r
	return e
}

func (e *env) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(middleware.UserIDHeader, userID)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *env) credit(t *testing.T, userID string, amount int64) {
	t.Helper()
	_, err := e.mem.ApplyTransaction(context.Background(), ledger.Entry{
		UserID:        userID,
		AmountCredits: amount,
		Type:          ledger.TransactionTypeTopUp,
		Description:   "seed",
	})
	require.NoError(t, err)
}

// decode unmarshals the envelope and its data into out
func decode(t *testing.T, w *httptest.ResponseRecorder, out any) dto.Response {
	t.Helper()
	var raw struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *dto.ErrorInfo  `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw), w.Body.String())
	if out != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, out))
	}
	return dto.Response{Success: raw.Success, Error: raw.Error}
}

func assertStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
}
