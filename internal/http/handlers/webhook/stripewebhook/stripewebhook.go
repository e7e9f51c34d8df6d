// Package stripewebhook implements the HTTP handler receiving billing
// provider events. Signature verification gates every request; handler
// failures answer 500 so the provider redelivers.
package stripewebhook

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	stripe "github.com/stripe/stripe-go/v76"

	"github.com/synergyhq/billing-portal/internal/http/response"
	"github.com/synergyhq/billing-portal/internal/lib/apperr"
	"github.com/synergyhq/billing-portal/internal/lib/sl"
)

// Stripe caps event payloads well below this.
const maxBodyBytes = 65536

// Verifier checks the webhook signature and parses the event.
type Verifier interface {
	ConstructWebhookEvent(payload []byte, sigHeader string) (stripe.Event, error)
}

// Reconciler applies a verified event to local state.
type Reconciler interface {
	HandleEvent(ctx context.Context, event stripe.Event) error
}

type Handler struct {
	log        *slog.Logger
	verifier   Verifier
	reconciler Reconciler
}

func New(log *slog.Logger, verifier Verifier, reconciler Reconciler) *Handler {
	return &Handler{
		log:        log,
		verifier:   verifier,
		reconciler: reconciler,
	}
}

// ServeHTTP godoc
// @Summary Receive billing provider events
// @Description Verifies the Stripe-Signature header and reconciles local billing state
// @Tags Webhooks
// @Accept json
// @Produce json
// @Success 200 {object} map[string]bool "Acknowledgement"
// @Failure 401 {object} response.ErrorResponse "Invalid signature"
// @Failure 500 {object} response.ErrorResponse "Handler failure, event will be redelivered"
// @Router /webhooks/stripe [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.webhook.stripewebhook"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read request body", sl.Err(err))
		response.RenderError(w, r, apperr.Validation("Invalid request body", nil))
		return
	}

	event, err := h.verifier.ConstructWebhookEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		log.Warn("webhook signature rejected", sl.Err(err))
		response.RenderError(w, r, apperr.Authentication("Invalid webhook signature"))
		return
	}

	if err := h.reconciler.HandleEvent(r.Context(), event); err != nil {
		log.Error("failed to process event",
			slog.String("event_id", event.ID),
			slog.String("event_type", string(event.Type)),
			sl.Err(err))
		response.RenderError(w, r, apperr.Internal(err))
		return
	}

	// The provider only checks the status code; the acknowledgement body is
	// the bare object its contract shows, not the portal envelope.
	render.JSON(w, r, map[string]bool{"received": true})
}
