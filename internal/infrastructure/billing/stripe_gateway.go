package billing

import (
	"context"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v81"
	portalsession "github.com/stripe/stripe-go/v81/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v81/checkout/session"
	"go.uber.org/zap"
)

// CheckoutProductName is the line item shown on the Stripe checkout page
const CheckoutProductName = "Shipbox Credits"

// CheckoutInput describes a credit pack purchase
type CheckoutInput struct {
	UserID        string
	AmountCredits int64
	// CustomerID reuses a known Stripe customer; empty lets Stripe create one
	CustomerID string
}

// CheckoutSession is the hosted checkout page created for a purchase
type CheckoutSession struct {
	ID  string
	URL string
}

// StripeGateway creates Stripe checkout and billing portal sessions
type StripeGateway struct {
	config *StripeConfig
	logger *zap.Logger
}

// NewStripeGateway creates a new Stripe gateway
func NewStripeGateway(config *StripeConfig, logger *zap.Logger) (*StripeGateway, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.InitStripeClient()

	return &StripeGateway{config: config, logger: logger}, nil
}

// CreateCheckoutSession creates a one-off payment session. One credit costs
// one minor currency unit, so the unit amount equals the credit count.
// The webhook reads userId and amountCredits back from the metadata.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, input CheckoutInput) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(g.config.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(CheckoutProductName),
						Description: stripe.String(fmt.Sprintf("%d compute credits", input.AmountCredits)),
					},
					UnitAmount: stripe.Int64(input.AmountCredits),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(g.config.SuccessURL()),
		CancelURL:  stripe.String(g.config.CancelURL()),
	}
	if input.CustomerID != "" {
		params.Customer = stripe.String(input.CustomerID)
	}
	params.Context = ctx
	params.AddMetadata("userId", input.UserID)
	params.AddMetadata("amountCredits", strconv.FormatInt(input.AmountCredits, 10))

	sess, err := checkoutsession.New(params)
	if err != nil {
		g.logger.Error("Failed to create Stripe checkout session",
			zap.String("user_id", input.UserID),
			zap.Int64("amount_credits", input.AmountCredits),
			zap.Error(err))
		return nil, fmt.Errorf("stripe: failed to create checkout session: %w", err)
	}
	if sess.URL == "" {
		return nil, fmt.Errorf("stripe: checkout session %s has no url", sess.ID)
	}

	g.logger.Info("Created Stripe checkout session",
		zap.String("user_id", input.UserID),
		zap.String("session_id", sess.ID),
		zap.Int64("amount_credits", input.AmountCredits))

	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// CreatePortalSession creates a billing portal session for an existing customer
func (g *StripeGateway) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(g.config.PortalReturnURL()),
	}
	params.Context = ctx

	sess, err := portalsession.New(params)
	if err != nil {
		g.logger.Error("Failed to create Stripe portal session",
			zap.String("customer_id", customerID),
			zap.Error(err))
		return "", fmt.Errorf("stripe: failed to create portal session: %w", err)
	}
	return sess.URL, nil
}
