package repository

import (
	"context"
	"fmt"

	"github.com/synergyhq/billing-portal/internal/models"
)

// CreateTicket stores a new support ticket and returns its id.
func (s *Storage) CreateTicket(ctx context.Context, ticket models.SupportTicket) (string, error) {
	const op = "storage.CreateTicket"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO support_tickets (account_uid, subject, description, priority, status)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING id`
	var newID string
	if err := s.DB.QueryRowContext(ctx, query,
		ticket.AccountUID, ticket.Subject, ticket.Description, ticket.Priority,
		ticket.Status).Scan(&newID); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetTicket fetches one support ticket by id.
func (s *Storage) GetTicket(ctx context.Context, ticketID string) (*models.SupportTicket, error) {
	const op = "storage.GetTicket"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, account_uid, subject, description, priority, status,
			      created_at, updated_at
			  FROM support_tickets
			  WHERE id = $1`
	var t models.SupportTicket
	if err := s.DB.QueryRowContext(ctx, query, ticketID).Scan(&t.ID, &t.AccountUID,
		&t.Subject, &t.Description, &t.Priority, &t.Status, &t.CreatedAt,
		&t.UpdatedAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &t, nil
}

// ListTicketsByAccount returns the tickets of an account, newest first.
func (s *Storage) ListTicketsByAccount(ctx context.Context, accountUID string, limit, offset int) ([]*models.SupportTicket, error) {
	const op = "storage.ListTicketsByAccount"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, account_uid, subject, description, priority, status,
			      created_at, updated_at
			  FROM support_tickets
			  WHERE account_uid = $1
			  ORDER BY created_at DESC
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, accountUID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.SupportTicket
	for rows.Next() {
		var t models.SupportTicket
		if err = rows.Scan(&t.ID, &t.AccountUID, &t.Subject, &t.Description,
			&t.Priority, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
