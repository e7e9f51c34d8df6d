// Package cancel implements the HTTP handler for scheduling a subscription
// cancellation at period end.
package cancel

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/synergyhq/billing-portal/internal/http/middlewarectx"
	"github.com/synergyhq/billing-portal/internal/http/response"
	"github.com/synergyhq/billing-portal/internal/lib/apperr"
	"github.com/synergyhq/billing-portal/internal/lib/sl"
	"github.com/synergyhq/billing-portal/internal/models"
)

// BillingService defines the cancellation scheduling operation.
type BillingService interface {
	CancelAtPeriodEnd(ctx context.Context, accountUID, subscriptionID string) (*models.Subscription, error)
}

type Handler struct {
	log            *slog.Logger
	billingService BillingService
}

func New(log *slog.Logger, billingService BillingService) *Handler {
	return &Handler{
		log:            log,
		billingService: billingService,
	}
}

// ServeHTTP godoc
// @Summary Cancel a subscription at period end
// @Description Access continues until the end of the paid period. Repeating the call is a no-op.
// @Tags Subscriptions
// @Produce json
// @Param id path string true "Subscription id"
// @Success 200 {object} response.Response "Cancellation scheduled"
// @Failure 400 {object} response.ErrorResponse "Subscription is already canceled"
// @Failure 401 {object} response.ErrorResponse "Not authenticated"
// @Failure 404 {object} response.ErrorResponse "Subscription not found"
// @Failure 502 {object} response.ErrorResponse "Payment provider unavailable"
// @Router /subscriptions/{id}/cancel [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.cancel"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	account, ok := middlewarectx.Account(r.Context())
	if !ok {
		log.Error("account missing from context")
		response.RenderError(w, r, apperr.Authentication(""))
		return
	}

	subscriptionID := chi.URLParam(r, "id")
	if subscriptionID == "" {
		response.RenderError(w, r, apperr.Validation("Missing subscription id", nil))
		return
	}

	subscription, err := h.billingService.CancelAtPeriodEnd(r.Context(), account.UID, subscriptionID)
	if err != nil {
		log.Error("failed to schedule cancellation", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	log.Info("cancellation scheduled", slog.String("subscription_id", subscriptionID))
	render.JSON(w, r, response.OK("Subscription will be canceled at period end", map[string]any{
		"subscription": subscription,
	}))
}
