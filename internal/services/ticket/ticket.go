package ticket

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/synergyhq/billing-portal/internal/lib/apperr"
	"github.com/synergyhq/billing-portal/internal/models"
)

// Repository defines storage behavior for support tickets.
type Repository interface {
	CreateTicket(ctx context.Context, ticket models.SupportTicket) (string, error)
	GetTicket(ctx context.Context, ticketID string) (*models.SupportTicket, error)
	ListTicketsByAccount(ctx context.Context, accountUID string, limit, offset int) ([]*models.SupportTicket, error)
}

type Service struct {
	repo Repository
	log  *slog.Logger
}

func New(repo Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log,
	}
}

// Create opens a new support ticket for the account. An empty priority
// defaults to medium.
func (s *Service) Create(ctx context.Context, accountUID, subject, description, priority string) (*models.SupportTicket, error) {
	const op = "ticket.Create"

	if priority == "" {
		priority = models.TicketPriorityMedium
	}
	switch priority {
	case models.TicketPriorityLow, models.TicketPriorityMedium,
		models.TicketPriorityHigh, models.TicketPriorityUrgent:
	default:
		return nil, apperr.Validation("Invalid ticket priority",
			map[string]string{"priority": "must be one of low, medium, high, urgent"})
	}

	id, err := s.repo.CreateTicket(ctx, models.SupportTicket{
		AccountUID:  accountUID,
		Subject:     subject,
		Description: description,
		Priority:    priority,
		Status:      models.TicketStatusOpen,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("support ticket opened",
		slog.String("ticket_id", id),
		slog.String("account_uid", accountUID),
		slog.String("priority", priority))

	ticket, err := s.repo.GetTicket(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ticket, nil
}

// List returns a page of the account's tickets, newest first.
func (s *Service) List(ctx context.Context, accountUID string, limit, offset int) ([]*models.SupportTicket, error) {
	const op = "ticket.List"

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	tickets, err := s.repo.ListTicketsByAccount(ctx, accountUID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return tickets, nil
}
