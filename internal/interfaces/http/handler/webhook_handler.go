package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	billingapp "github.com/shipbox/billing/internal/application/billing"
	"github.com/shipbox/billing/internal/domain/ledger"
	"github.com/shipbox/billing/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// Maximum webhook payload size (64KB - Stripe webhooks are typically small)
const maxWebhookPayloadSize = 65536

// StripeSignatureHeader carries the webhook signature
const StripeSignatureHeader = "Stripe-Signature"

// WebhookHandler receives Stripe webhooks. Deliveries are authenticated by
// signature, not by the caller's identity.
type WebhookHandler struct {
	BaseHandler
	processor *billingapp.WebhookProcessor
	logger    *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(processor *billingapp.WebhookProcessor, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		processor: processor,
		logger:    logger,
	}
}

// HandleStripeWebhook handles POST /webhooks/stripe.
//
// Bad signatures answer 400. Ledger failures answer 5xx so Stripe
// redelivers; the idempotency key makes the retry safe. Every other
// outcome answers 200 so Stripe stops retrying.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	// Stripe requires the raw body for signature verification
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookPayloadSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.WebhookResponse{Message: "Failed to read request body"})
		return
	}
	if len(payload) > maxWebhookPayloadSize {
		c.JSON(http.StatusRequestEntityTooLarge, dto.WebhookResponse{Message: "Payload too large"})
		return
	}

	signature := c.GetHeader(StripeSignatureHeader)
	if signature == "" {
		c.JSON(http.StatusBadRequest, dto.WebhookResponse{Message: "Missing Stripe-Signature header"})
		return
	}

	result, err := h.processor.Process(c.Request.Context(), payload, signature)
	if err != nil {
		if ledger.KindOf(err) == ledger.KindWebhookSignature {
			c.JSON(http.StatusBadRequest, dto.WebhookResponse{
				Outcome: string(billingapp.WebhookRejected),
				Message: "Webhook signature verification failed",
			})
			return
		}
		h.logger.Error("Webhook processing failed, asking Stripe to redeliver", zap.Error(err))
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.WebhookResponse{
		Received:  true,
		Outcome:   string(result.Outcome),
		EventID:   result.EventID,
		EventType: result.EventType,
		Message:   result.Reason,
	})
}
