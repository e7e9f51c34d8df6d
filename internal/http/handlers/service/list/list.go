// Package list implements the HTTP handler for the public service catalog.
package list

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/synergyhq/billing-portal/internal/http/response"
	"github.com/synergyhq/billing-portal/internal/lib/sl"
	"github.com/synergyhq/billing-portal/internal/models"
)

// BillingService defines the catalog listing operation.
type BillingService interface {
	ListServices(ctx context.Context) ([]*models.Service, error)
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
// @Summary List active services
// @Description Returns the purchasable service catalog ordered by price
// @Tags Services
// @Produce json
// @Success 200 {object} response.Response "Service catalog"
// @Failure 500 {object} response.ErrorResponse "Server error"
// @Router /services [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.service.list"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	services, err := h.billingService.ListServices(r.Context())
	if err != nil {
		log.Error("failed to list services", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	render.JSON(w, r, response.OK("Services retrieved", map[string]any{
		"services": services,
	}))
}
