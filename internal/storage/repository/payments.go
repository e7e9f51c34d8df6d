package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/synergyhq/billing-portal/internal/models"
)

// CreatePayment records a new charge attempt and returns its id. Keyed on
// stripe_payment_intent_id so a duplicate webhook insert is a no-op.
func (s *Storage) CreatePayment(ctx context.Context, payment models.Payment) (string, error) {
	const op = "storage.CreatePayment"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO payments (account_uid, subscription_id, amount_cents, currency,
			      stripe_payment_intent_id, status)
			  VALUES ($1, NULLIF($2, '')::UUID, $3, $4, $5, $6)
			  ON CONFLICT (stripe_payment_intent_id) DO NOTHING
			  RETURNING id`
	var newID string
	err := s.DB.QueryRowContext(ctx, query,
		payment.AccountUID, payment.SubscriptionID, payment.AmountCents, payment.Currency,
		payment.StripePaymentIntentID, payment.Status).Scan(&newID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// SettlePayment finalizes a charge attempt identified by its payment intent.
func (s *Storage) SettlePayment(ctx context.Context, stripePaymentIntentID, status string,
	stripeChargeID, errorMessage *string) (int, error) {
	const op = "storage.SettlePayment"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE payments
			  SET status = $1, stripe_charge_id = $2, error_message = $3, updated_at = now()
			  WHERE stripe_payment_intent_id = $4`
	result, err := s.DB.ExecContext(ctx, query,
		status, stripeChargeID, errorMessage, stripePaymentIntentID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ListPaymentsByAccount returns the charge history of an account, newest
// first.
func (s *Storage) ListPaymentsByAccount(ctx context.Context, accountUID string, limit, offset int) ([]*models.Payment, error) {
	const op = "storage.ListPaymentsByAccount"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, account_uid, COALESCE(subscription_id::TEXT, ''), amount_cents, currency,
			      stripe_payment_intent_id, stripe_charge_id, status, error_message,
			      created_at, updated_at
			  FROM payments
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

	var result []*models.Payment
	for rows.Next() {
		var p models.Payment
		var chargeID, errorMessage sql.NullString
		if err = rows.Scan(&p.ID, &p.AccountUID, &p.SubscriptionID, &p.AmountCents,
			&p.Currency, &p.StripePaymentIntentID, &chargeID, &p.Status,
			&errorMessage, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if chargeID.Valid {
			p.StripeChargeID = &chargeID.String
		}
		if errorMessage.Valid {
			p.ErrorMessage = &errorMessage.String
		}
		result = append(result, &p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
