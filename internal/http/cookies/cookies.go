// Package cookies centralizes the session cookie attributes so every
// handler issues and clears it the same way.
package cookies

import (
	"net/http"
	"time"

	"github.com/synergyhq/billing-portal/internal/http/middlewarectx"
)

// SetSession writes the session cookie with the portal's standard
// attributes. The Secure flag relies on the deployment terminating TLS.
func SetSession(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     middlewarectx.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearSession expires the session cookie immediately.
func ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middlewarectx.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}
