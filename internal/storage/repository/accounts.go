package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/synergyhq/billing-portal/internal/models"
)

// CreateAccount stores a new account and returns its UID.
func (s *Storage) CreateAccount(ctx context.Context, account models.Account) (string, error) {
	const op = "storage.CreateAccount"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newUID string
	query := `INSERT INTO accounts (name, email, password_hash, status, trial_ends_at)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING uid;`
	if err := s.DB.QueryRowContext(ctx, query,
		account.Name, account.Email, account.PasswordHash, account.Status,
		account.TrialEndsAt).Scan(&newUID); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newUID, nil
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	a := &models.Account{}
	var trialEndsAt sql.NullTime
	var stripeCustomerID, billingEmail, billingAddress sql.NullString

	if err := row.Scan(&a.UID, &a.Name, &a.Email, &a.PasswordHash, &a.Status,
		&trialEndsAt, &stripeCustomerID, &billingEmail, &billingAddress,
		&a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}

	if trialEndsAt.Valid {
		a.TrialEndsAt = &trialEndsAt.Time
	}
	if stripeCustomerID.Valid {
		a.StripeCustomerID = &stripeCustomerID.String
	}
	if billingEmail.Valid {
		a.BillingEmail = &billingEmail.String
	}
	if billingAddress.Valid {
		a.BillingAddress = &billingAddress.String
	}
	return a, nil
}

const accountColumns = `uid, name, email, password_hash, status, trial_ends_at,
			      stripe_customer_id, billing_email, billing_address, created_at, updated_at`

// GetAccountByEmail returns the account with the given email.
func (s *Storage) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	const op = "storage.GetAccountByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + accountColumns + `
			  FROM accounts
			  WHERE email = $1`
	account, err := scanAccount(s.DB.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return account, nil
}

// GetAccount returns the account with the given UID.
func (s *Storage) GetAccount(ctx context.Context, accountUID string) (*models.Account, error) {
	const op = "storage.GetAccount"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + accountColumns + `
			  FROM accounts
			  WHERE uid = $1`
	account, err := scanAccount(s.DB.QueryRowContext(ctx, query, accountUID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return account, nil
}

// GetAccountByStripeCustomerID returns the account linked to a payment
// provider customer.
func (s *Storage) GetAccountByStripeCustomerID(ctx context.Context, customerID string) (*models.Account, error) {
	const op = "storage.GetAccountByStripeCustomerID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + accountColumns + `
			  FROM accounts
			  WHERE stripe_customer_id = $1`
	account, err := scanAccount(s.DB.QueryRowContext(ctx, query, customerID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return account, nil
}

// UpdateAccountProfile updates the editable profile fields and returns the
// number of affected rows.
func (s *Storage) UpdateAccountProfile(ctx context.Context, accountUID string,
	name string, billingEmail, billingAddress *string) (int, error) {
	const op = "storage.UpdateAccountProfile"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE accounts
			  SET name = $1, billing_email = $2, billing_address = $3, updated_at = now()
			  WHERE uid = $4`
	result, err := s.DB.ExecContext(ctx, query, name, billingEmail, billingAddress, accountUID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// SetStripeCustomerID links the account to a payment provider customer.
func (s *Storage) SetStripeCustomerID(ctx context.Context, accountUID, customerID string) error {
	const op = "storage.SetStripeCustomerID"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE accounts
			  SET stripe_customer_id = $1, updated_at = now()
			  WHERE uid = $2`
	if _, err := s.DB.ExecContext(ctx, query, customerID, accountUID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateAccountStatus sets the lifecycle status of an account.
func (s *Storage) UpdateAccountStatus(ctx context.Context, accountUID, status string) error {
	const op = "storage.UpdateAccountStatus"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE accounts
			  SET status = $1, updated_at = now()
			  WHERE uid = $2`
	if _, err := s.DB.ExecContext(ctx, query, status, accountUID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ResetAccountPassword replaces the password hash and revokes every session
// of the account in a single transaction.
func (s *Storage) ResetAccountPassword(ctx context.Context, accountUID, passwordHash string) error {
	const op = "storage.ResetAccountPassword"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err = tx.ExecContext(ctx,
		`UPDATE accounts SET password_hash = $1, updated_at = now() WHERE uid = $2`,
		passwordHash, accountUID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM sessions WHERE account_uid = $1`, accountUID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
