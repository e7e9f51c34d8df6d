// Package create implements the HTTP handler for opening a support ticket.
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

// Request carries the new ticket fields.
type Request struct {
	Subject     string `json:"subject" validate:"required,min=3,max=200"`
	Description string `json:"description" validate:"required,min=10,max=5000"`
	Priority    string `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
}

// TicketService defines the ticket creation operation.
type TicketService interface {
	Create(ctx context.Context, accountUID, subject, description, priority string) (*models.SupportTicket, error)
}

type Handler struct {
	log           *slog.Logger
	ticketService TicketService
	validate      *validator.Validate
}

func New(log *slog.Logger, ticketService TicketService) *Handler {
	return &Handler{
		log:           log,
		ticketService: ticketService,
		validate:      validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Open a support ticket
// @Tags Support
// @Accept json
// @Produce json
// @Param request body Request true "Ticket details"
// @Success 201 {object} response.Response "Ticket opened"
// @Failure 400 {object} response.ErrorResponse "Invalid request body"
// @Failure 401 {object} response.ErrorResponse "Not authenticated"
// @Router /tickets [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.ticket.create"

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

	ticket, err := h.ticketService.Create(r.Context(), account.UID, req.Subject,
		req.Description, req.Priority)
	if err != nil {
		log.Error("failed to open ticket", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	log.Info("ticket opened", slog.String("ticket_id", ticket.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OK("Ticket opened successfully", map[string]any{
		"ticket": ticket,
	}))
}
