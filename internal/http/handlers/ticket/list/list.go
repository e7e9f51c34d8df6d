// Package list implements the HTTP handler for listing support tickets.
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

// TicketService defines the ticket listing operation.
type TicketService interface {
	List(ctx context.Context, accountUID string, limit, offset int) ([]*models.SupportTicket, error)
}

type Handler struct {
	log           *slog.Logger
	ticketService TicketService
}

func New(log *slog.Logger, ticketService TicketService) *Handler {
	return &Handler{
		log:           log,
		ticketService: ticketService,
	}
}

// ServeHTTP godoc
// @Summary List support tickets
// @Tags Support
// @Produce json
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Page offset" default(0)
// @Success 200 {object} response.Response "Tickets"
// @Failure 401 {object} response.ErrorResponse "Not authenticated"
// @Router /tickets [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.ticket.list"

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

	tickets, err := h.ticketService.List(r.Context(), account.UID, limit, offset)
	if err != nil {
		log.Error("failed to list tickets", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	render.JSON(w, r, response.OK("Tickets retrieved", map[string]any{
		"tickets": tickets,
	}))
}
