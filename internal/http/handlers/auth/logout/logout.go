// Package logout implements the HTTP handler for ending a session.
package logout

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/synergyhq/billing-portal/internal/http/cookies"
	"github.com/synergyhq/billing-portal/internal/http/middlewarectx"
	"github.com/synergyhq/billing-portal/internal/http/response"
	"github.com/synergyhq/billing-portal/internal/lib/sl"
)

// AuthService defines the session revocation operation.
type AuthService interface {
	Logout(ctx context.Context, sessionToken string) error
}

type Handler struct {
	log         *slog.Logger
	authService AuthService
}

func New(log *slog.Logger, authService AuthService) *Handler {
	return &Handler{
		log:         log,
		authService: authService,
	}
}

// ServeHTTP godoc
// @Summary Log out
// @Description Revokes the current session and clears the cookie. Safe to repeat.
// @Tags Auth
// @Produce json
// @Success 200 {object} response.Response "Session ended"
// @Router /auth/logout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.logout"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if cookie, err := r.Cookie(middlewarectx.SessionCookie); err == nil && cookie.Value != "" {
		if err := h.authService.Logout(r.Context(), cookie.Value); err != nil {
			// Logout stays idempotent toward the client even when
			// revocation fails server-side.
			log.Error("failed to revoke session", sl.Err(err))
		}
	}

	cookies.ClearSession(w)
	render.JSON(w, r, response.OK("Logged out successfully", nil))
}
