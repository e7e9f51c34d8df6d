// Package list implements the HTTP handler for the payment history.
package list

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/synergyhq/billing-portal/internal/http/middlewarectx"
	"github.com/synergyhq/billing-portal/internal/http/response"
	"github.com/synergyhq/billing-portal/internal/lib/apperr"
	"github.com/synergyhq/billing-portal/internal/lib/sl"
	"github.com/synergyhq/billing-portal/internal/models"
)

// BillingService defines the payment history operation.
type BillingService interface {
	ListPayments(ctx context.Context, accountUID string, limit, offset int) ([]*models.Payment, error)
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
// @Summary List payments
// @Tags Payments
// @Produce json
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Page offset" default(0)
// @Success 200 {object} response.Response "Payments"
// @Failure 401 {object} response.ErrorResponse "Not authenticated"
// @Router /payments [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.list"

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

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	payments, err := h.billingService.ListPayments(r.Context(), account.UID, limit, offset)
	if err != nil {
		log.Error("failed to list payments", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	render.JSON(w, r, response.OK("Payments retrieved", map[string]any{
		"payments": payments,
	}))
}
