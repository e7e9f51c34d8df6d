// Package list implements the HTTP handler for the invoice history.
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

// BillingService defines the invoice history operation.
type BillingService interface {
	ListInvoices(ctx context.Context, accountUID string, limit, offset int) ([]*models.Invoice, error)
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
// @Summary List invoices
// @Tags Invoices
// @Produce json
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Page offset" default(0)
// @Success 200 {object} response.Response "Invoices"
// @Failure 401 {object} response.ErrorResponse "Not authenticated"
// @Router /invoices [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.invoice.list"

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

	invoices, err := h.billingService.ListInvoices(r.Context(), account.UID, limit, offset)
	if err != nil {
		log.Error("failed to list invoices", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	render.JSON(w, r, response.OK("Invoices retrieved", map[string]any{
		"invoices": invoices,
	}))
}
