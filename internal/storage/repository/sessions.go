package repository

import (
	"context"
	"fmt"

	"github.com/synergyhq/billing-portal/internal/models"
)

// CreateSession stores a new session row.
func (s *Storage) CreateSession(ctx context.Context, session models.Session) error {
	const op = "storage.CreateSession"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO sessions (id, account_uid, token, expires_at)
			  VALUES ($1, $2, $3, $4)`
	if _, err := s.DB.ExecContext(ctx, query,
		session.ID, session.AccountUID, session.Payload, session.ExpiresAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetSession returns the session with the given opaque id.
func (s *Storage) GetSession(ctx context.Context, id string) (*models.Session, error) {
	const op = "storage.GetSession"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, account_uid, token, expires_at
			  FROM sessions
			  WHERE id = $1`
	session := &models.Session{}
	if err := s.DB.QueryRowContext(ctx, query, id).Scan(
		&session.ID, &session.AccountUID, &session.Payload, &session.ExpiresAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return session, nil
}

// DeleteSession removes a single session and returns the number of deleted
// rows.
func (s *Storage) DeleteSession(ctx context.Context, id string) (int, error) {
	const op = "storage.DeleteSession"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM sessions WHERE id = $1`
	result, err := s.DB.ExecContext(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}
