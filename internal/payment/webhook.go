package payment

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/ataa-platform/ataa/internal/shared"
)

// maxWebhookBody bounds the event payload size per Stripe's guidance.
const maxWebhookBody = 65536

// WebhookHandler consumes processor events. Payment status only ever enters
// the platform through here (or the reconciliation job), never through the
// client-controlled redirect query parameters.
type WebhookHandler struct {
	logger     *slog.Logger
	secret     func() string
	settlement *Settlement
}

// NewWebhookHandler builds a WebhookHandler.
func NewWebhookHandler(logger *slog.Logger, secret func() string, settlement *Settlement) *WebhookHandler {
	return &WebhookHandler{logger: logger, secret: secret, settlement: settlement}
}

// MountRoutes registers the webhook endpoint.
func (h *WebhookHandler) MountRoutes(r chi.Router) {
	r.Post("/payment-webhook", h.handle)
}

func (h *WebhookHandler) handle(w http.ResponseWriter, r *http.Request) {
	secret := ""
	if h.secret != nil {
		secret = h.secret()
	}
	if secret == "" {
		shared.RespondError(w, http.StatusInternalServerError, ErrCredentialMissing.Error())
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, "unreadable payload")
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), secret)
	if err != nil {
		if h.logger != nil {
			h.logger.Warn("webhook signature rejected", slog.Any("error", err))
		}
		shared.RespondError(w, http.StatusBadRequest, "signature verification failed")
		return
	}

	if event.Type != "checkout.session.completed" {
		// Unhandled event types are acknowledged so the processor stops
		// retrying them.
		shared.RespondJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "malformed event payload")
		return
	}

	if err := h.settlement.SettleCompleted(r.Context(), fromStripeSession(&sess)); err != nil {
		if h.logger != nil {
			h.logger.Error("settle completed session", slog.String("session_id", sess.ID), slog.Any("error", err))
		}
		shared.RespondError(w, http.StatusInternalServerError, "settlement failed")
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]bool{"received": true})
}
