package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/synergyhq/billing-portal/internal/models"
)

// ListActiveServices returns the sellable service catalog.
func (s *Storage) ListActiveServices(ctx context.Context) ([]*models.Service, error) {
	const op = "storage.ListActiveServices"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, name, description, price_cents, billing_cycle, features,
			      tier, stripe_price_id, status
			  FROM services
			  WHERE status = 'active'
			  ORDER BY price_cents`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Service
	for rows.Next() {
		var svc models.Service
		var features []byte
		if err = rows.Scan(&svc.ID, &svc.Name, &svc.Description, &svc.PriceCents,
			&svc.BillingCycle, &features, &svc.Tier, &svc.StripePriceID, &svc.Status); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err = json.Unmarshal(features, &svc.Features); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &svc)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// GetServiceByStripePriceID resolves a provider price id to the catalog
// entry.
func (s *Storage) GetServiceByStripePriceID(ctx context.Context, stripePriceID string) (*models.Service, error) {
	const op = "storage.GetServiceByStripePriceID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, name, description, price_cents, billing_cycle, features,
			      tier, stripe_price_id, status
			  FROM services
			  WHERE stripe_price_id = $1`
	var svc models.Service
	var features []byte
	if err := s.DB.QueryRowContext(ctx, query, stripePriceID).Scan(
		&svc.ID, &svc.Name, &svc.Description, &svc.PriceCents, &svc.BillingCycle,
		&features, &svc.Tier, &svc.StripePriceID, &svc.Status); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal(features, &svc.Features); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &svc, nil
}

// GetService returns a catalog entry by its id.
func (s *Storage) GetService(ctx context.Context, id string) (*models.Service, error) {
	const op = "storage.GetService"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, name, description, price_cents, billing_cycle, features,
			      tier, stripe_price_id, status
			  FROM services
			  WHERE id = $1`
	var svc models.Service
	var features []byte
	if err := s.DB.QueryRowContext(ctx, query, id).Scan(
		&svc.ID, &svc.Name, &svc.Description, &svc.PriceCents, &svc.BillingCycle,
		&features, &svc.Tier, &svc.StripePriceID, &svc.Status); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal(features, &svc.Features); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &svc, nil
}
