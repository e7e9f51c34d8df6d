package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/synergyhq/billing-portal/internal/models"
)

// CreateSubscription inserts a subscription row. A prior canceled row for
// the same (account, service) pair is reused; an active one makes the insert
// a no-op so the caller can detect the conflict by the empty id.
func (s *Storage) CreateSubscription(ctx context.Context, sub models.Subscription) (string, error) {
	const op = "storage.CreateSubscription"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscriptions (account_uid, service_id, status, stripe_subscription_id,
			      current_period_start, current_period_end)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  ON CONFLICT (account_uid, service_id) DO UPDATE
			  SET status = EXCLUDED.status,
			      stripe_subscription_id = EXCLUDED.stripe_subscription_id,
			      current_period_start = EXCLUDED.current_period_start,
			      current_period_end = EXCLUDED.current_period_end,
			      cancel_at_period_end = FALSE,
			      updated_at = now()
			  WHERE subscriptions.status = 'canceled'
			  RETURNING id`
	var newID string
	err := s.DB.QueryRowContext(ctx, query,
		sub.AccountUID, sub.ServiceID, sub.Status, sub.StripeSubscriptionID,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd).Scan(&newID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

const subscriptionColumns = `sub.id, sub.account_uid, sub.service_id, sub.status,
			      sub.stripe_subscription_id, sub.current_period_start, sub.current_period_end,
			      sub.cancel_at_period_end, sub.created_at, sub.updated_at,
			      svc.name, svc.price_cents, svc.billing_cycle`

func scanSubscription(scan func(dest ...any) error) (*models.Subscription, error) {
	var sub models.Subscription
	var periodStart, periodEnd sql.NullTime
	if err := scan(&sub.ID, &sub.AccountUID, &sub.ServiceID, &sub.Status,
		&sub.StripeSubscriptionID, &periodStart, &periodEnd,
		&sub.CancelAtPeriodEnd, &sub.CreatedAt, &sub.UpdatedAt,
		&sub.ServiceName, &sub.PriceCents, &sub.BillingCycle); err != nil {
		return nil, err
	}
	if periodStart.Valid {
		sub.CurrentPeriodStart = &periodStart.Time
	}
	if periodEnd.Valid {
		sub.CurrentPeriodEnd = &periodEnd.Time
	}
	return &sub, nil
}

// GetSubscription returns a subscription with its joined catalog fields.
func (s *Storage) GetSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	const op = "storage.GetSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions sub
			  JOIN services svc ON svc.id = sub.service_id
			  WHERE sub.id = $1`
	row := s.DB.QueryRowContext(ctx, query, id)
	sub, err := scanSubscription(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// GetSubscriptionByStripeID resolves a provider subscription id to the local
// row.
func (s *Storage) GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	const op = "storage.GetSubscriptionByStripeID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions sub
			  JOIN services svc ON svc.id = sub.service_id
			  WHERE sub.stripe_subscription_id = $1`
	row := s.DB.QueryRowContext(ctx, query, stripeSubscriptionID)
	sub, err := scanSubscription(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// ListSubscriptionsByAccount returns all subscriptions of an account with
// joined catalog fields.
func (s *Storage) ListSubscriptionsByAccount(ctx context.Context, accountUID string) ([]*models.Subscription, error) {
	const op = "storage.ListSubscriptionsByAccount"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions sub
			  JOIN services svc ON svc.id = sub.service_id
			  WHERE sub.account_uid = $1
			  ORDER BY sub.created_at DESC`
	rows, err := s.DB.QueryContext(ctx, query, accountUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, sub)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ActiveSubscriptionExists reports whether the account already holds a
// non-canceled subscription to the service.
func (s *Storage) ActiveSubscriptionExists(ctx context.Context, accountUID, serviceID string) (bool, error) {
	const op = "storage.ActiveSubscriptionExists"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT EXISTS (
			      SELECT 1 FROM subscriptions
			      WHERE account_uid = $1 AND service_id = $2 AND status <> 'canceled'
			  )`
	var exists bool
	if err := s.DB.QueryRowContext(ctx, query, accountUID, serviceID).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// CountActiveSubscriptionsByAccount returns how many non-canceled
// subscriptions the account holds.
func (s *Storage) CountActiveSubscriptionsByAccount(ctx context.Context, accountUID string) (int, error) {
	const op = "storage.CountActiveSubscriptionsByAccount"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT count(*) FROM subscriptions
			  WHERE account_uid = $1 AND status <> 'canceled'`
	var count int
	if err := s.DB.QueryRowContext(ctx, query, accountUID).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

// MarkCancelScheduled flags a subscription for cancelation at period end.
func (s *Storage) MarkCancelScheduled(ctx context.Context, id string) (int, error) {
	const op = "storage.MarkCancelScheduled"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET status = 'cancel_scheduled', cancel_at_period_end = TRUE, updated_at = now()
			  WHERE id = $1 AND status <> 'canceled'`
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

// SyncSubscriptionByStripeID applies provider state to the local row. Used
// only by webhook reconciliation; repeated delivery of the same event leaves
// the row unchanged. Nil period bounds keep the stored values, so a deletion
// event does not erase the last known billing period.
func (s *Storage) SyncSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID, status string,
	periodStart, periodEnd *time.Time, cancelAtPeriodEnd bool) (int, error) {
	const op = "storage.SyncSubscriptionByStripeID"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET status = $1,
			      current_period_start = COALESCE($2, current_period_start),
			      current_period_end = COALESCE($3, current_period_end),
			      cancel_at_period_end = $4, updated_at = now()
			  WHERE stripe_subscription_id = $5`
	result, err := s.DB.ExecContext(ctx, query,
		status, periodStart, periodEnd, cancelAtPeriodEnd, stripeSubscriptionID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}
