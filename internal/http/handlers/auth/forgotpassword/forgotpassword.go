// Package forgotpassword implements the HTTP handler that starts the
// password-reset flow.
package forgotpassword

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/synergyhq/billing-portal/internal/http/response"
	"github.com/synergyhq/billing-portal/internal/lib/apperr"
	"github.com/synergyhq/billing-portal/internal/lib/sl"
)

// Request carries the email to reset.
type Request struct {
	Email string `json:"email" validate:"required,email"`
}

// AuthService defines the reset-request operation.
type AuthService interface {
	RequestPasswordReset(ctx context.Context, email string) error
}

type Handler struct {
	log         *slog.Logger
	authService AuthService
	validate    *validator.Validate
}

func New(log *slog.Logger, authService AuthService) *Handler {
	return &Handler{
		log:         log,
		authService: authService,
		validate:    validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Request a password reset
// @Description Queues a reset email. The response does not reveal whether the email is registered.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body Request true "Account email"
// @Success 200 {object} response.Response "Reset requested"
// @Failure 400 {object} response.ErrorResponse "Invalid request body"
// @Router /auth/forgot-password [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.forgotpassword"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

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

	if err := h.authService.RequestPasswordReset(r.Context(), req.Email); err != nil {
		log.Error("failed to start password reset", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	render.JSON(w, r, response.OK("If the email is registered, a reset link has been sent", nil))
}
