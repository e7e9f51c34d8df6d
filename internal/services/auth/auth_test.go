package auth

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/synergyhq/billing-portal/internal/lib/apperr"
	"github.com/synergyhq/billing-portal/internal/lib/password"
	"github.com/synergyhq/billing-portal/internal/lib/token"
	"github.com/synergyhq/billing-portal/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) CreateAccount(ctx context.Context, account models.Account) (string, error) {
	args := m.Called(ctx, account)
	return args.String(0), args.Error(1)
}

func (m *RepoMock) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *RepoMock) GetAccount(ctx context.Context, accountUID string) (*models.Account, error) {
	args := m.Called(ctx, accountUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *RepoMock) SetStripeCustomerID(ctx context.Context, accountUID, customerID string) error {
	return m.Called(ctx, accountUID, customerID).Error(0)
}

func (m *RepoMock) UpdateAccountProfile(ctx context.Context, accountUID string, name string,
	billingEmail, billingAddress *string) (int, error) {
	args := m.Called(ctx, accountUID, name, billingEmail, billingAddress)
	return args.Int(0), args.Error(1)
}

func (m *RepoMock) CreateSession(ctx context.Context, session models.Session) error {
	return m.Called(ctx, session).Error(0)
}

func (m *RepoMock) GetSession(ctx context.Context, id string) (*models.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *RepoMock) DeleteSession(ctx context.Context, id string) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}

func (m *RepoMock) CreateResetToken(ctx context.Context, resetToken models.PasswordResetToken) error {
	return m.Called(ctx, resetToken).Error(0)
}

func (m *RepoMock) GetResetToken(ctx context.Context, value string) (*models.PasswordResetToken, error) {
	args := m.Called(ctx, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PasswordResetToken), args.Error(1)
}

func (m *RepoMock) DeleteResetToken(ctx context.Context, value string) (int, error) {
	args := m.Called(ctx, value)
	return args.Int(0), args.Error(1)
}

func (m *RepoMock) ResetAccountPassword(ctx context.Context, accountUID, passwordHash string) error {
	return m.Called(ctx, accountUID, passwordHash).Error(0)
}

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	args := m.Called(ctx, email, name)
	return args.String(0), args.Error(1)
}

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) Publish(routingKey string, message any) error {
	return m.Called(routingKey, message).Error(0)
}

func NewNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func newTestService(repo *RepoMock, gateway *GatewayMock, publisher *PublisherMock) *Service {
	return New(repo, gateway, publisher,
		token.NewMaker("test-secret", 24*time.Hour),
		NewNoopLogger(), 24*time.Hour, time.Hour, "https://portal.example.com")
}

func TestRegister_Success(t *testing.T) {
	repo := new(RepoMock)
	gateway := new(GatewayMock)
	publisher := new(PublisherMock)

	repo.On("GetAccountByEmail", mock.Anything, "new@example.com").
		Return(nil, sql.ErrNoRows)
	repo.On("CreateAccount", mock.Anything, mock.MatchedBy(func(a models.Account) bool {
		return a.Email == "new@example.com" &&
			a.Status == models.AccountStatusTrial &&
			a.TrialEndsAt != nil &&
			a.PasswordHash != "secret-password"
	})).Return("uid-1", nil)
	gateway.On("CreateCustomer", mock.Anything, "new@example.com", "New User").
		Return("cus_1", nil)
	repo.On("SetStripeCustomerID", mock.Anything, "uid-1", "cus_1").Return(nil)
	repo.On("CreateSession", mock.Anything, mock.MatchedBy(func(s models.Session) bool {
		return s.AccountUID == "uid-1" && len(s.ID) == 32 && s.Payload != ""
	})).Return(nil)

	session, err := newTestService(repo, gateway, publisher).
		Register(context.Background(), "New User", "new@example.com", "secret-password")

	require.NoError(t, err)
	assert.Len(t, session.Token, 32)
	assert.True(t, session.Account.BillingLinked())
	repo.AssertExpectations(t)
	gateway.AssertExpectations(t)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	repo := new(RepoMock)
	repo.On("GetAccountByEmail", mock.Anything, "taken@example.com").
		Return(&models.Account{UID: "uid-1"}, nil)

	_, err := newTestService(repo, new(GatewayMock), new(PublisherMock)).
		Register(context.Background(), "User", "taken@example.com", "irrelevant")

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.CodeConflict, appErr.Code)
	repo.AssertNotCalled(t, "CreateAccount", mock.Anything, mock.Anything)
}

func TestRegister_GatewayFailureDoesNotBlock(t *testing.T) {
	repo := new(RepoMock)
	gateway := new(GatewayMock)

	repo.On("GetAccountByEmail", mock.Anything, mock.Anything).Return(nil, sql.ErrNoRows)
	repo.On("CreateAccount", mock.Anything, mock.Anything).Return("uid-1", nil)
	gateway.On("CreateCustomer", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("stripe is down"))
	repo.On("CreateSession", mock.Anything, mock.Anything).Return(nil)

	session, err := newTestService(repo, gateway, new(PublisherMock)).
		Register(context.Background(), "User", "new@example.com", "secret-password")

	require.NoError(t, err)
	assert.False(t, session.Account.BillingLinked())
	repo.AssertNotCalled(t, "SetStripeCustomerID", mock.Anything, mock.Anything, mock.Anything)
}

func TestLogin(t *testing.T) {
	hashed, err := password.GetHash("correct-password")
	require.NoError(t, err)

	account := &models.Account{UID: "uid-1", Email: "user@example.com", PasswordHash: hashed}

	tests := []struct {
		name     string
		email    string
		password string
		setup    func(repo *RepoMock)
		wantErr  bool
	}{
		{
			name:     "success",
			email:    "user@example.com",
			password: "correct-password",
			setup: func(repo *RepoMock) {
				repo.On("GetAccountByEmail", mock.Anything, "user@example.com").Return(account, nil)
				repo.On("CreateSession", mock.Anything, mock.Anything).Return(nil)
			},
		},
		{
			name:     "wrong password",
			email:    "user@example.com",
			password: "wrong-password",
			setup: func(repo *RepoMock) {
				repo.On("GetAccountByEmail", mock.Anything, "user@example.com").Return(account, nil)
			},
			wantErr: true,
		},
		{
			name:     "unknown email",
			email:    "nobody@example.com",
			password: "correct-password",
			setup: func(repo *RepoMock) {
				repo.On("GetAccountByEmail", mock.Anything, "nobody@example.com").
					Return(nil, sql.ErrNoRows)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			tt.setup(repo)

			session, err := newTestService(repo, new(GatewayMock), new(PublisherMock)).
				Login(context.Background(), tt.email, tt.password)

			if tt.wantErr {
				var appErr *apperr.Error
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, apperr.CodeAuthentication, appErr.Code)
				// wrong password and unknown email read the same
				assert.Equal(t, "Invalid email or password", appErr.Message)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, session.Token)
		})
	}
}

func TestAuthenticate_ValidSession(t *testing.T) {
	maker := token.NewMaker("test-secret", 24*time.Hour)
	payload, err := maker.GenerateSessionPayload("uid-1", "user@example.com")
	require.NoError(t, err)

	repo := new(RepoMock)
	repo.On("GetSession", mock.Anything, "sess-1").Return(&models.Session{
		ID:         "sess-1",
		AccountUID: "uid-1",
		Payload:    payload,
		ExpiresAt:  time.Now().Add(time.Hour),
	}, nil)
	repo.On("GetAccount", mock.Anything, "uid-1").
		Return(&models.Account{UID: "uid-1", Email: "user@example.com"}, nil)

	svc := New(repo, new(GatewayMock), new(PublisherMock), maker,
		NewNoopLogger(), 24*time.Hour, time.Hour, "https://portal.example.com")

	account, claims, err := svc.Authenticate(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", account.UID)
	assert.Equal(t, "user@example.com", claims.Email)
}

func TestAuthenticate_ExpiredSessionIsDeleted(t *testing.T) {
	repo := new(RepoMock)
	repo.On("GetSession", mock.Anything, "sess-1").Return(&models.Session{
		ID:        "sess-1",
		ExpiresAt: time.Now().Add(-time.Minute),
	}, nil)
	repo.On("DeleteSession", mock.Anything, "sess-1").Return(1, nil)

	_, _, err := newTestService(repo, new(GatewayMock), new(PublisherMock)).
		Authenticate(context.Background(), "sess-1")

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.CodeAuthentication, appErr.Code)
	repo.AssertCalled(t, "DeleteSession", mock.Anything, "sess-1")
}

func TestAuthenticate_UnknownSession(t *testing.T) {
	repo := new(RepoMock)
	repo.On("GetSession", mock.Anything, "missing").Return(nil, sql.ErrNoRows)

	_, _, err := newTestService(repo, new(GatewayMock), new(PublisherMock)).
		Authenticate(context.Background(), "missing")

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.CodeAuthentication, appErr.Code)
}

func TestRequestPasswordReset_KnownEmail(t *testing.T) {
	repo := new(RepoMock)
	publisher := new(PublisherMock)

	repo.On("GetAccountByEmail", mock.Anything, "user@example.com").
		Return(&models.Account{UID: "uid-1", Name: "User", Email: "user@example.com"}, nil)
	repo.On("CreateResetToken", mock.Anything, mock.MatchedBy(func(rt models.PasswordResetToken) bool {
		return rt.AccountUID == "uid-1" && len(rt.Token) == 64
	})).Return(nil)
	publisher.On("Publish", "password-reset", mock.MatchedBy(func(msg any) bool {
		m, ok := msg.(PasswordResetMessage)
		return ok && m.Email == "user@example.com" &&
			len(m.ResetURL) > len("https://portal.example.com/reset-password?token=")
	})).Return(nil)

	err := newTestService(repo, new(GatewayMock), publisher).
		RequestPasswordReset(context.Background(), "user@example.com")

	require.NoError(t, err)
	publisher.AssertExpectations(t)
}

func TestRequestPasswordReset_UnknownEmailIsSilent(t *testing.T) {
	repo := new(RepoMock)
	publisher := new(PublisherMock)
	repo.On("GetAccountByEmail", mock.Anything, "nobody@example.com").
		Return(nil, sql.ErrNoRows)

	err := newTestService(repo, new(GatewayMock), publisher).
		RequestPasswordReset(context.Background(), "nobody@example.com")

	require.NoError(t, err)
	repo.AssertNotCalled(t, "CreateResetToken", mock.Anything, mock.Anything)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestResetPassword(t *testing.T) {
	valid := &models.PasswordResetToken{
		Token:      "tok",
		AccountUID: "uid-1",
		ExpiresAt:  time.Now().Add(time.Hour),
	}
	expired := &models.PasswordResetToken{
		Token:      "tok",
		AccountUID: "uid-1",
		ExpiresAt:  time.Now().Add(-time.Minute),
	}

	tests := []struct {
		name     string
		setup    func(repo *RepoMock)
		wantCode apperr.Code
	}{
		{
			name: "success",
			setup: func(repo *RepoMock) {
				repo.On("GetResetToken", mock.Anything, "tok").Return(valid, nil)
				repo.On("ResetAccountPassword", mock.Anything, "uid-1", mock.Anything).Return(nil)
				repo.On("DeleteResetToken", mock.Anything, "tok").Return(1, nil)
			},
		},
		{
			name: "unknown token",
			setup: func(repo *RepoMock) {
				repo.On("GetResetToken", mock.Anything, "tok").Return(nil, sql.ErrNoRows)
			},
			wantCode: apperr.CodeAuthentication,
		},
		{
			name: "expired token",
			setup: func(repo *RepoMock) {
				repo.On("GetResetToken", mock.Anything, "tok").Return(expired, nil)
				repo.On("DeleteResetToken", mock.Anything, "tok").Return(1, nil)
			},
			wantCode: apperr.CodeAuthentication,
		},
		{
			name: "token already consumed",
			setup: func(repo *RepoMock) {
				repo.On("GetResetToken", mock.Anything, "tok").Return(valid, nil)
				repo.On("ResetAccountPassword", mock.Anything, "uid-1", mock.Anything).Return(nil)
				repo.On("DeleteResetToken", mock.Anything, "tok").Return(0, nil)
			},
			wantCode: apperr.CodeAuthentication,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			tt.setup(repo)

			err := newTestService(repo, new(GatewayMock), new(PublisherMock)).
				ResetPassword(context.Background(), "tok", "brand-new-password")

			if tt.wantCode != "" {
				var appErr *apperr.Error
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, tt.wantCode, appErr.Code)
				return
			}
			require.NoError(t, err)
		})
	}
}
