package billing

import (
	"fmt"
	"strings"

	"github.com/shipbox/billing/internal/infrastructure/config"
	"github.com/stripe/stripe-go/v81"
)

// StripeConfig holds configuration for the Stripe integration
type StripeConfig struct {
	// SecretKey is the Stripe secret API key (sk_test_xxx or sk_live_xxx)
	SecretKey string

	// WebhookSecret is the signing secret of the webhook endpoint (whsec_xxx)
	WebhookSecret string

	// IsTestMode indicates if using Stripe test mode
	IsTestMode bool

	// Currency of the credit packs; 100 credits are one unit of it
	Currency string

	// AppURL is the dashboard base URL that checkout and the portal return to
	AppURL string
}

// NewStripeConfig builds the Stripe configuration from application config
func NewStripeConfig(cfg *config.Config) *StripeConfig {
	return &StripeConfig{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		IsTestMode:    cfg.Stripe.IsTestMode,
		Currency:      cfg.Stripe.Currency,
		AppURL:        strings.TrimRight(cfg.App.URL, "/"),
	}
}

// Validate validates the Stripe configuration
func (c *StripeConfig) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("stripe: secret key is required")
	}
	if c.IsTestMode && !strings.HasPrefix(c.SecretKey, "sk_test") {
		return fmt.Errorf("stripe: test mode enabled but secret key is not a test key")
	}
	if !c.IsTestMode && !strings.HasPrefix(c.SecretKey, "sk_live") {
		return fmt.Errorf("stripe: live mode enabled but secret key is not a live key")
	}
	if c.Currency == "" {
		return fmt.Errorf("stripe: currency is required")
	}
	if c.AppURL == "" {
		return fmt.Errorf("stripe: app url is required for redirects")
	}
	return nil
}

// SuccessURL is where checkout redirects after payment
func (c *StripeConfig) SuccessURL() string {
	return c.AppURL + "/billing?success=true"
}

// CancelURL is where checkout redirects when the user backs out
func (c *StripeConfig) CancelURL() string {
	return c.AppURL + "/billing?canceled=true"
}

// PortalReturnURL is where the billing portal sends the user back to
func (c *StripeConfig) PortalReturnURL() string {
	return c.AppURL + "/billing"
}

// InitStripeClient initializes the Stripe client with the configured API key
func (c *StripeConfig) InitStripeClient() {
	stripe.Key = c.SecretKey
}
