// Package resetpassword implements the HTTP handler that completes the
// password-reset flow.
package resetpassword

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

// Request carries the single-use token and the new password.
type Request struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

// AuthService defines the reset-completion operation.
type AuthService interface {
	ResetPassword(ctx context.Context, tokenValue, newPassword string) error
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
// @Summary Reset a password
// @Description Consumes a reset token, sets the new password and revokes all sessions
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body Request true "Token and new password"
// @Success 200 {object} response.Response "Password updated"
// @Failure 400 {object} response.ErrorResponse "Invalid request body"
// @Failure 401 {object} response.ErrorResponse "Invalid or expired reset token"
// @Router /auth/reset-password [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.resetpassword"

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

	if err := h.authService.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		log.Info("password reset rejected", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	log.Info("password reset completed")
	render.JSON(w, r, response.OK("Password updated successfully", nil))
}
