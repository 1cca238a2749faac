package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/asinehq/asine-console/internal/payments"
	"github.com/asinehq/asine-console/internal/services"
	apperrors "github.com/asinehq/asine-console/pkg/errors"
	"github.com/asinehq/asine-console/pkg/logger"
	"github.com/asinehq/asine-console/pkg/response"
)

const signatureHeader = "Stripe-Signature"

// WebhookHandler receives payment-processor webhook deliveries, verifies
// their signatures and hands the normalised events to the billing service.
type WebhookHandler struct {
	gateway payments.Gateway
	billing *services.BillingService
	log     *zap.Logger
}

// NewWebhookHandler constructs the handler.
func NewWebhookHandler(gateway payments.Gateway, billing *services.BillingService) *WebhookHandler {
	return &WebhookHandler{
		gateway: gateway,
		billing: billing,
		log:     logger.WithModule("handlers.webhook"),
	}
}

// HandleStripe processes one webhook delivery. Signature failures and
// malformed payloads are 400s; processing failures surface with their own
// status so the processor retries.
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, apperrors.NewBadRequest("Could not read request body"))
		return
	}

	event, err := h.gateway.ParseEvent(payload, c.GetHeader(signatureHeader))
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			h.log.Warn("webhook signature verification failed", zap.Error(err))
			response.Error(c, apperrors.ErrInvalidSignature)
			return
		}
		response.Error(c, apperrors.NewBadRequest("Could not parse webhook payload"))
		return
	}

	if err := h.billing.HandleEvent(requestContext(c), event); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"received": true})
}
