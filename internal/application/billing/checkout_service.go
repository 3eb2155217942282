package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shipbox/billing/internal/domain/ledger"
	"github.com/shipbox/billing/internal/domain/shared"
	"github.com/shipbox/billing/internal/infrastructure/billing"
	"go.uber.org/zap"
)

// DefaultMinTopUpCredits is the smallest checkout amount (£5.00)
const DefaultMinTopUpCredits = 500

// CheckoutRequest asks for a hosted payment page for a credit top-up
type CheckoutRequest struct {
	UserID        string `validate:"required"`
	AmountCredits int64  `validate:"min_topup"`
}

// CheckoutResult is the hosted payment page to redirect the user to
type CheckoutResult struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// CheckoutService starts Stripe checkout and portal sessions for a user
type CheckoutService struct {
	store    ledger.Store
	gateway  PaymentGateway
	minTopUp int64
	validate *validator.Validate
	logger   *zap.Logger
}

// NewCheckoutService creates a new CheckoutService. A nil gateway leaves the
// service in place but every call fails with shared.ErrUnavailable.
func NewCheckoutService(store ledger.Store, gateway PaymentGateway, minTopUpCredits int64, logger *zap.Logger) *CheckoutService {
	if minTopUpCredits <= 0 {
		minTopUpCredits = DefaultMinTopUpCredits
	}

	v, err := newCheckoutValidator(minTopUpCredits)
	if err != nil {
		panic(err)
	}

	return &CheckoutService{
		store:    store,
		gateway:  gateway,
		minTopUp: minTopUpCredits,
		validate: v,
		logger:   logger,
	}
}

func newCheckoutValidator(minTopUpCredits int64) (*validator.Validate, error) {
	v := validator.New()
	err := v.RegisterValidation("min_topup", func(fl validator.FieldLevel) bool {
		return fl.Field().Int() >= minTopUpCredits
	})
	if err != nil {
		return nil, fmt.Errorf("register min_topup validation: %w", err)
	}
	return v, nil
}

// MinTopUpCredits returns the configured minimum checkout amount
func (s *CheckoutService) MinTopUpCredits() int64 {
	return s.minTopUp
}

// CreateCheckout creates a payment-mode checkout session tagged with the
// user id and amount, which the webhook reads back on completion.
func (s *CheckoutService) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	if s.gateway == nil {
		return nil, shared.ErrUnavailable
	}

	customerID, err := s.store.GetPaymentCustomerID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, billing.CheckoutInput{
		UserID:        req.UserID,
		AmountCredits: req.AmountCredits,
		CustomerID:    customerID,
	})
	if err != nil {
		s.logger.Error("Failed to create checkout session",
			zap.String("user_id", req.UserID),
			zap.Int64("amount_credits", req.AmountCredits),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Checkout session created",
		zap.String("user_id", req.UserID),
		zap.String("session_id", session.ID),
		zap.Int64("amount_credits", req.AmountCredits))

	return &CheckoutResult{SessionID: session.ID, URL: session.URL}, nil
}

// CreatePortal returns a billing portal url for a user who has paid before
func (s *CheckoutService) CreatePortal(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", shared.ErrInvalidInput.WithMessage("User id is required")
	}
	if s.gateway == nil {
		return "", shared.ErrUnavailable
	}

	customerID, err := s.store.GetPaymentCustomerID(ctx, userID)
	if err != nil {
		return "", err
	}
	if customerID == "" {
		return "", shared.ErrNotFound.WithMessage("No billing account found, make a purchase first")
	}

	return s.gateway.CreatePortalSession(ctx, customerID)
}

func (s *CheckoutService) validateRequest(req CheckoutRequest) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Tag() == "min_topup" {
				return shared.ErrInvalidInput.WithMessage(
					fmt.Sprintf("Minimum top-up is %d credits (%s)", s.minTopUp, ledger.FormatCredits(s.minTopUp)))
			}
		}
		return shared.ErrInvalidInput.WithMessage(fmt.Sprintf("%s is %s", verrs[0].Field(), verrs[0].Tag()))
	}
	return err
}
