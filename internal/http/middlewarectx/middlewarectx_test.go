package middlewarectx

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/synergyhq/billing-portal/internal/lib/apperr"
	"github.com/synergyhq/billing-portal/internal/lib/token"
	"github.com/synergyhq/billing-portal/internal/models"
	"github.com/synergyhq/billing-portal/internal/services/auth"
)

type AuthMock struct{ mock.Mock }

func (m *AuthMock) Authenticate(ctx context.Context, sessionToken string) (*models.Account, *token.SessionClaims, error) {
	args := m.Called(ctx, sessionToken)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*models.Account), args.Get(1).(*token.SessionClaims), args.Error(2)
}

// auth.Service must remain assignable to the Authenticator interface.
var _ Authenticator = (*auth.Service)(nil)

func NewNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func nextHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		account, ok := Account(r.Context())
		if ok {
			w.Header().Set("X-Account-UID", account.UID)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestSessionMiddleware_ValidCookie(t *testing.T) {
	authService := new(AuthMock)
	authService.On("Authenticate", mock.Anything, "tok-1").
		Return(&models.Account{UID: "uid-1"}, &token.SessionClaims{}, nil)

	var called bool
	handler := SessionMiddleware(authService, NewNoopLogger())(nextHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/account", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "tok-1"})
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "uid-1", rr.Header().Get("X-Account-UID"))
}

func TestSessionMiddleware_MissingCookie(t *testing.T) {
	authService := new(AuthMock)

	var called bool
	handler := SessionMiddleware(authService, NewNoopLogger())(nextHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/account", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, string(apperr.CodeAuthentication), body.Error.Code)
	authService.AssertNotCalled(t, "Authenticate", mock.Anything, mock.Anything)
}

func TestSessionMiddleware_RejectedSession(t *testing.T) {
	authService := new(AuthMock)
	authService.On("Authenticate", mock.Anything, "stale").
		Return(nil, nil, apperr.Authentication("Session expired"))

	var called bool
	handler := SessionMiddleware(authService, NewNoopLogger())(nextHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/account", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "stale"})
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRateLimiter_BlocksAfterBurst(t *testing.T) {
	rl := NewRateLimiter(1, 2)

	var called bool
	handler := rl.Middleware(NewNoopLogger())(nextHandler(&called))

	var lastCode int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/services", nil)
		req.RemoteAddr = "10.0.0.1:51000"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		lastCode = rr.Code
	}

	assert.Equal(t, http.StatusTooManyRequests, lastCode)
}

func TestRateLimiter_IsolatesClients(t *testing.T) {
	rl := NewRateLimiter(1, 1)

	var called bool
	handler := rl.Middleware(NewNoopLogger())(nextHandler(&called))

	first := httptest.NewRequest(http.MethodGet, "/api/v1/services", nil)
	first.RemoteAddr = "10.0.0.1:51000"
	rrFirst := httptest.NewRecorder()
	handler.ServeHTTP(rrFirst, first)

	second := httptest.NewRequest(http.MethodGet, "/api/v1/services", nil)
	second.RemoteAddr = "10.0.0.2:51000"
	rrSecond := httptest.NewRecorder()
	handler.ServeHTTP(rrSecond, second)

	assert.Equal(t, http.StatusOK, rrFirst.Code)
	assert.Equal(t, http.StatusOK, rrSecond.Code)
}
