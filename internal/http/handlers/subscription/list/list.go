// Package list implements the HTTP handler for listing the account's
// subscriptions.
package list

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/synergyhq/billing-portal/internal/http/middlewarectx"
	"github.com/synergyhq/billing-portal/internal/http/response"
	"github.com/synergyhq/billing-portal/internal/lib/apperr"
	"github.com/synergyhq/billing-portal/internal/lib/sl"
	"github.com/synergyhq/billing-portal/internal/models"
)

// BillingService defines the subscription listing operation.
type BillingService interface {
	ListSubscriptions(ctx context.Context, accountUID string) ([]*models.Subscription, error)
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
// @Summary List subscriptions
// @Tags Subscriptions
// @Produce json
// @Success 200 {object} response.Response "Subscriptions"
// @Failure 401 {object} response.ErrorResponse "Not authenticated"
// @Router /subscriptions [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.list"

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

	subscriptions, err := h.billingService.ListSubscriptions(r.Context(), account.UID)
	if err != nil {
		log.Error("failed to list subscriptions", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	render.JSON(w, r, response.OK("Subscriptions retrieved", map[string]any{
		"subscriptions": subscriptions,
	}))
}
