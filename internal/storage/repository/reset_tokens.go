package repository

import (
	"context"
	"fmt"

	"github.com/synergyhq/billing-portal/internal/models"
)

// CreateResetToken stores a new password reset token.
func (s *Storage) CreateResetToken(ctx context.Context, token models.PasswordResetToken) error {
	const op = "storage.CreateResetToken"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO password_reset_tokens (token, account_uid, expires_at)
			  VALUES ($1, $2, $3)`
	if _, err := s.DB.ExecContext(ctx, query,
		token.Token, token.AccountUID, token.ExpiresAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetResetToken returns a reset token row by its value.
func (s *Storage) GetResetToken(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	const op = "storage.GetResetToken"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT token, account_uid, expires_at
			  FROM password_reset_tokens
			  WHERE token = $1`
	result := &models.PasswordResetToken{}
	if err := s.DB.QueryRowContext(ctx, query, token).Scan(
		&result.Token, &result.AccountUID, &result.ExpiresAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// DeleteResetToken consumes a reset token and returns the number of deleted
// rows.
func (s *Storage) DeleteResetToken(ctx context.Context, token string) (int, error) {
	const op = "storage.DeleteResetToken"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM password_reset_tokens WHERE token = $1`
	result, err := s.DB.ExecContext(ctx, query, token)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}
