// Package middlewarectx contains the HTTP middleware for session
// authentication and per-client rate limiting.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/synergyhq/billing-portal/internal/http/response"
	"github.com/synergyhq/billing-portal/internal/lib/apperr"
	"github.com/synergyhq/billing-portal/internal/lib/token"
	"github.com/synergyhq/billing-portal/internal/models"
)

// SessionCookie is the name of the cookie carrying the opaque session token.
const SessionCookie = "session_token"

// Key is the type for request context keys set by this package.
type Key string

const (
	// AccountKey holds the authenticated *models.Account.
	AccountKey Key = "account"
)

// Authenticator resolves a session token to its account.
type Authenticator interface {
	Authenticate(ctx context.Context, sessionToken string) (*models.Account, *token.SessionClaims, error)
}

// Account extracts the authenticated account from the request context.
func Account(ctx context.Context) (*models.Account, bool) {
	account, ok := ctx.Value(AccountKey).(*models.Account)
	return account, ok
}

// SessionMiddleware returns middleware that requires a valid session cookie.
// On success the account is stored in the request context.
func SessionMiddleware(authService Authenticator, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.SessionMiddleware"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			cookie, err := r.Cookie(SessionCookie)
			if err != nil || cookie.Value == "" {
				log.Info("missing session cookie")
				response.RenderError(w, r, apperr.Authentication(""))
				return
			}

			account, _, err := authService.Authenticate(r.Context(), cookie.Value)
			if err != nil {
				log.Info("session rejected")
				response.RenderError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), AccountKey, account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
