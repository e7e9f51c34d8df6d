// Package create implements the HTTP handler for subscribing to a service.
package create

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/synergyhq/billing-portal/internal/http/middlewarectx"
	"github.com/synergyhq/billing-portal/internal/http/response"
	"github.com/synergyhq/billing-portal/internal/lib/apperr"
	"github.com/synergyhq/billing-portal/internal/lib/sl"
	"github.com/synergyhq/billing-portal/internal/models"
)

// Request names the service to subscribe to.
type Request struct {
	ServiceID string `json:"service_id" validate:"required,uuid"`
}

// BillingService defines the subscribe operation.
type BillingService interface {
	Subscribe(ctx context.Context, accountUID, serviceID string) (*models.Subscription, error)
}

type Handler struct {
	log            *slog.Logger
	billingService BillingService
	validate       *validator.Validate
}

func New(log *slog.Logger, billingService BillingService) *Handler {
	return &Handler{
		log:            log,
		billingService: billingService,
		validate:       validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Subscribe to a service
// @Description Creates a provider subscription and its local mirror row
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Param request body Request true "Service to subscribe to"
// @Success 201 {object} response.Response "Subscription created"
// @Failure 400 {object} response.ErrorResponse "Invalid request body"
// @Failure 401 {object} response.ErrorResponse "Not authenticated"
// @Failure 404 {object} response.ErrorResponse "Service not found"
// @Failure 409 {object} response.ErrorResponse "Already subscribed"
// @Failure 502 {object} response.ErrorResponse "Payment provider unavailable"
// @Router /subscriptions [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.create"

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

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.RenderError(w, r, apperr.Validation("Invalid request body", nil))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		response.RenderError(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	subscription, err := h.billingService.Subscribe(r.Context(), account.UID, req.ServiceID)
	if err != nil {
		log.Error("failed to subscribe", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	log.Info("subscription created",
		slog.String("account_uid", account.UID),
		slog.String("subscription_id", subscription.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OK("Subscription created successfully", map[string]any{
		"subscription": subscription,
	}))
}
