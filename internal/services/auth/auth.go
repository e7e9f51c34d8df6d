// Package auth contains the session and credential logic: registration,
// login, logout, lazy session expiry and the password reset flow.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/synergyhq/billing-portal/internal/lib/apperr"
	"github.com/synergyhq/billing-portal/internal/lib/password"
	"github.com/synergyhq/billing-portal/internal/lib/rabbitmq"
	"github.com/synergyhq/billing-portal/internal/lib/sl"
	"github.com/synergyhq/billing-portal/internal/lib/token"
	"github.com/synergyhq/billing-portal/internal/models"
)

const (
	sessionIDBytes  = 16
	resetTokenBytes = 32
	trialDays       = 14
)

// Repository is the storage contract the auth service needs.
type Repository interface {
	CreateAccount(ctx context.Context, account models.Account) (string, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	GetAccount(ctx context.Context, accountUID string) (*models.Account, error)
	SetStripeCustomerID(ctx context.Context, accountUID, customerID string) error
	UpdateAccountProfile(ctx context.Context, accountUID string, name string,
		billingEmail, billingAddress *string) (int, error)

	CreateSession(ctx context.Context, session models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	DeleteSession(ctx context.Context, id string) (int, error)

	CreateResetToken(ctx context.Context, resetToken models.PasswordResetToken) error
	GetResetToken(ctx context.Context, value string) (*models.PasswordResetToken, error)
	DeleteResetToken(ctx context.Context, value string) (int, error)
	ResetAccountPassword(ctx context.Context, accountUID, passwordHash string) error
}

// CustomerCreator registers accounts with the payment provider.
type CustomerCreator interface {
	CreateCustomer(ctx context.Context, email, name string) (string, error)
}

// Publisher pushes notification messages onto the broker.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// PasswordResetMessage is the payload consumed by the notifier.
type PasswordResetMessage struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	ResetURL string `json:"reset_url"`
}

// Session is what a successful login yields: the opaque cookie value and its
// expiry.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Account   *models.Account
}

// Service implements the auth operations.
type Service struct {
	repo          Repository
	gateway       CustomerCreator
	publisher     Publisher
	tokens        token.Maker
	log           *slog.Logger
	sessionTTL    time.Duration
	resetTokenTTL time.Duration
	baseURL       string
}

// New creates an auth Service.
func New(repo Repository, gateway CustomerCreator, publisher Publisher, tokens token.Maker,
	log *slog.Logger, sessionTTL, resetTokenTTL time.Duration, baseURL string) *Service {
	return &Service{
		repo:          repo,
		gateway:       gateway,
		publisher:     publisher,
		tokens:        tokens,
		log:           log,
		sessionTTL:    sessionTTL,
		resetTokenTTL: resetTokenTTL,
		baseURL:       baseURL,
	}
}

// Register creates a trial account, links it to the payment provider on a
// best-effort basis and logs the new account in.
func (s *Service) Register(ctx context.Context, name, email, rawPassword string) (*Session, error) {
	if _, err := s.repo.GetAccountByEmail(ctx, email); err == nil {
		return nil, apperr.Conflict("An account with this email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return nil, err
	}

	trialEndsAt := time.Now().UTC().AddDate(0, 0, trialDays)
	account := models.Account{
		Name:         name,
		Email:        email,
		PasswordHash: hashed,
		Status:       models.AccountStatusTrial,
		TrialEndsAt:  &trialEndsAt,
	}
	uid, err := s.repo.CreateAccount(ctx, account)
	if err != nil {
		return nil, err
	}
	account.UID = uid

	// Provider linkage must not block registration. An unlinked account is
	// linked later, on the first billing action.
	customerID, err := s.gateway.CreateCustomer(ctx, email, name)
	if err != nil {
		s.log.Warn("failed to create provider customer at registration",
			slog.String("account_uid", uid), sl.Err(err))
	} else if err := s.repo.SetStripeCustomerID(ctx, uid, customerID); err != nil {
		s.log.Warn("failed to link provider customer",
			slog.String("account_uid", uid), sl.Err(err))
	} else {
		account.StripeCustomerID = &customerID
	}

	return s.createSession(ctx, &account)
}

// Login verifies credentials and opens a session. Unknown email and wrong
// password yield the same error.
func (s *Service) Login(ctx context.Context, email, rawPassword string) (*Session, error) {
	account, err := s.repo.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.Authentication("Invalid email or password")
		}
		return nil, err
	}
	if err := password.CompareHash(account.PasswordHash, rawPassword); err != nil {
		return nil, apperr.Authentication("Invalid email or password")
	}
	return s.createSession(ctx, account)
}

// Logout deletes the session. Unknown tokens are fine: logout is idempotent.
func (s *Service) Logout(ctx context.Context, sessionToken string) error {
	_, err := s.repo.DeleteSession(ctx, sessionToken)
	return err
}

// Authenticate resolves a session token to its account. Expired or tampered
// sessions are deleted on sight.
func (s *Service) Authenticate(ctx context.Context, sessionToken string) (*models.Account, *token.SessionClaims, error) {
	session, err := s.repo.GetSession(ctx, sessionToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, apperr.Authentication("")
		}
		return nil, nil, err
	}

	if time.Now().After(session.ExpiresAt) {
		if _, err := s.repo.DeleteSession(ctx, sessionToken); err != nil {
			s.log.Warn("failed to delete expired session", sl.Err(err))
		}
		return nil, nil, apperr.Authentication("Session expired")
	}

	claims, err := s.tokens.ParseSessionPayload(session.Payload)
	if err != nil {
		if _, delErr := s.repo.DeleteSession(ctx, sessionToken); delErr != nil {
			s.log.Warn("failed to delete invalid session", sl.Err(delErr))
		}
		return nil, nil, apperr.Authentication("")
	}

	account, err := s.repo.GetAccount(ctx, claims.AccountUID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, apperr.Authentication("")
		}
		return nil, nil, err
	}
	return account, claims, nil
}

// RequestPasswordReset issues a reset token and queues the email. The return
// is identical whether or not the email exists.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	account, err := s.repo.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}

	value, err := token.NewOpaque(resetTokenBytes)
	if err != nil {
		return err
	}
	resetToken := models.PasswordResetToken{
		Token:      value,
		AccountUID: account.UID,
		ExpiresAt:  time.Now().Add(s.resetTokenTTL),
	}
	if err := s.repo.CreateResetToken(ctx, resetToken); err != nil {
		return err
	}

	msg := PasswordResetMessage{
		Email:    account.Email,
		Name:     account.Name,
		ResetURL: fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, value),
	}
	if err := s.publisher.Publish(rabbitmq.RoutingKeyPasswordReset, msg); err != nil {
		s.log.Error("failed to queue password reset email",
			slog.String("account_uid", account.UID), sl.Err(err))
	}
	return nil
}

// ResetPassword consumes a reset token, replaces the password hash and
// revokes every session of the account.
func (s *Service) ResetPassword(ctx context.Context, tokenValue, newPassword string) error {
	resetToken, err := s.repo.GetResetToken(ctx, tokenValue)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.Authentication("Invalid or expired reset token")
		}
		return err
	}

	if time.Now().After(resetToken.ExpiresAt) {
		if _, err := s.repo.DeleteResetToken(ctx, tokenValue); err != nil {
			s.log.Warn("failed to delete expired reset token", sl.Err(err))
		}
		return apperr.Authentication("Invalid or expired reset token")
	}

	hashed, err := password.GetHash(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.ResetAccountPassword(ctx, resetToken.AccountUID, hashed); err != nil {
		return err
	}

	deleted, err := s.repo.DeleteResetToken(ctx, tokenValue)
	if err != nil {
		return err
	}
	if deleted == 0 {
		// A concurrent reset consumed the token first.
		return apperr.Authentication("Invalid or expired reset token")
	}
	return nil
}

// UpdateProfile changes the editable account fields and returns the fresh
// account.
func (s *Service) UpdateProfile(ctx context.Context, accountUID, name string,
	billingEmail, billingAddress *string) (*models.Account, error) {
	rows, err := s.repo.UpdateAccountProfile(ctx, accountUID, name, billingEmail, billingAddress)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, apperr.NotFound("Account")
	}
	return s.repo.GetAccount(ctx, accountUID)
}

func (s *Service) createSession(ctx context.Context, account *models.Account) (*Session, error) {
	id, err := token.NewOpaque(sessionIDBytes)
	if err != nil {
		return nil, err
	}
	payload, err := s.tokens.GenerateSessionPayload(account.UID, account.Email)
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(s.sessionTTL)
	session := models.Session{
		ID:         id,
		AccountUID: account.UID,
		Payload:    payload,
		ExpiresAt:  expiresAt,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return &Session{Token: id, ExpiresAt: expiresAt, Account: account}, nil
}
