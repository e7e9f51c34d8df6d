// Package register implements the HTTP handler for account registration.
package register

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

// Request carries the registration form. The client sends the company name
// under companyName.
type Request struct {
	Name     string `json:"companyName" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// AuthService defines the account registration operation.
type AuthService interface {
	Register(ctx context.Context, name, email, rawPassword string) (*auth.Session, error)
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
// @Summary Register a new account
// @Description Creates an account, links a billing customer and starts a session
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body Request true "New account details"
// @Success 201 {object} response.Response "Account created"
// @Failure 400 {object} response.ErrorResponse "Invalid request body"
// @Failure 409 {object} response.ErrorResponse "Email already registered"
// @Failure 500 {object} response.ErrorResponse "Server error"
// @Router /auth/register [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.register"

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

	session, err := h.authService.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		log.Error("registration failed", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	cookies.SetSession(w, session.Token, session.ExpiresAt)

	log.Info("account registered", slog.String("account_uid", session.Account.UID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OK("Account created successfully", map[string]any{
		"company": session.Account,
	}))
}
