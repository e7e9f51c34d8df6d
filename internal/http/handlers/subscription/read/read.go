// Package read implements the HTTP handler for fetching one subscription.
package read

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

// BillingService defines the subscription read operation.
type BillingService interface {
	GetSubscription(ctx context.Context, accountUID, subscriptionID string) (*models.Subscription, error)
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
// @Summary Get one subscription
// @Description Returns a subscription owned by the current account
// @Tags Subscriptions
// @Produce json
// @Param id path string true "Subscription id"
// @Success 200 {object} response.Response "Subscription"
// @Failure 401 {object} response.ErrorResponse "Not authenticated"
// @Failure 404 {object} response.ErrorResponse "Subscription not found"
// @Router /subscriptions/{id} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.read"

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

	subscription, err := h.billingService.GetSubscription(r.Context(), account.UID, subscriptionID)
	if err != nil {
		log.Info("subscription read rejected", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	render.JSON(w, r, response.OK("Subscription retrieved", map[string]any{
		"subscription": subscription,
	}))
}
