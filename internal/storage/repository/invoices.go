package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/synergyhq/billing-portal/internal/models"
)

// UpsertInvoice mirrors a provider invoice into the local table. Keyed on
// stripe_invoice_id so repeated webhook deliveries collapse into one row; a
// redelivered creation event after the invoice was paid must not regress the
// paid state, so the conflict arm writes nothing.
func (s *Storage) UpsertInvoice(ctx context.Context, invoice models.Invoice) error {
	const op = "storage.UpsertInvoice"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO invoices (account_uid, invoice_number, amount_cents, currency,
			      status, stripe_invoice_id, due_date, paid_at, pdf_url)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			  ON CONFLICT (stripe_invoice_id) DO NOTHING`
	if _, err := s.DB.ExecContext(ctx, query,
		invoice.AccountUID, invoice.InvoiceNumber, invoice.AmountCents, invoice.Currency,
		invoice.Status, invoice.StripeInvoiceID, invoice.DueDate, invoice.PaidAt,
		invoice.PDFURL); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// MarkInvoicePaid settles a mirrored invoice.
func (s *Storage) MarkInvoicePaid(ctx context.Context, stripeInvoiceID string, paidAt time.Time) (int, error) {
	const op = "storage.MarkInvoicePaid"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE invoices
			  SET status = 'paid', paid_at = $1
			  WHERE stripe_invoice_id = $2`
	result, err := s.DB.ExecContext(ctx, query, paidAt, stripeInvoiceID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ListInvoicesByAccount returns the billing history of an account, newest
// first.
func (s *Storage) ListInvoicesByAccount(ctx context.Context, accountUID string, limit, offset int) ([]*models.Invoice, error) {
	const op = "storage.ListInvoicesByAccount"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, account_uid, invoice_number, amount_cents, currency, status,
			      stripe_invoice_id, due_date, paid_at, pdf_url, created_at
			  FROM invoices
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

	var result []*models.Invoice
	for rows.Next() {
		var inv models.Invoice
		var dueDate, paidAt sql.NullTime
		var pdfURL sql.NullString
		if err = rows.Scan(&inv.ID, &inv.AccountUID, &inv.InvoiceNumber, &inv.AmountCents,
			&inv.Currency, &inv.Status, &inv.StripeInvoiceID, &dueDate, &paidAt,
			&pdfURL, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if dueDate.Valid {
			inv.DueDate = &dueDate.Time
		}
		if paidAt.Valid {
			inv.PaidAt = &paidAt.Time
		}
		if pdfURL.Valid {
			inv.PDFURL = &pdfURL.String
		}
		result = append(result, &inv)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
