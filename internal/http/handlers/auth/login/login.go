// Package login implements the HTTP handler for session login.
package login

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/synergyhq/billing-portal/internal/http/cookies"
	"github.com/synergyhq/billing-portal/internal/http/response"
	"github.com/synergyhq/billing-portal/internal/lib/apperr"
	"github.com/synergyhq/billing-portal/internal/lib/sl"
	"github.com/synergyhq/billing-portal/internal/services/auth"
)

// Request carries the login credentials.
type Request struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthService defines the credential check operation.
type AuthService interface {
	Login(ctx context.Context, email, rawPassword string) (*auth.Session, error)
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
// @Summary Log in
// @Description Verifies credentials and starts a session
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body Request true "Credentials"
// @Success 200 {object} response.Response "Session started"
// @Failure 400 {object} response.ErrorResponse "Invalid request body"
// @Failure 401 {object} response.ErrorResponse "Invalid email or password"
// @Router /auth/login [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"

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

	session, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		log.Info("login rejected")
		response.RenderError(w, r, err)
		return
	}

	cookies.SetSession(w, session.Token, session.ExpiresAt)

	log.Info("login success", slog.String("account_uid", session.Account.UID))
	render.JSON(w, r, response.OK("Logged in successfully", map[string]any{
		"account": session.Account,
	}))
}
