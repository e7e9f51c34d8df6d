package models

import "time"

// Service catalog statuses.
const (
	ServiceStatusActive   = "active"
	ServiceStatusInactive = "inactive"
)

// Subscription statuses.
const (
	SubscriptionStatusActive          = "active"
	SubscriptionStatusPaused          = "paused"
	SubscriptionStatusCanceled        = "canceled"
	SubscriptionStatusCancelScheduled = "cancel_scheduled"
)

// Invoice statuses.
const (
	InvoiceStatusOpen = "open"
	InvoiceStatusPaid = "paid"
)

// Payment statuses.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
)

// Service is a sellable offering. Read-mostly seed data managed outside the
// portal.
type Service struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	PriceCents    int64    `json:"price_cents"`
	BillingCycle  string   `json:"billing_cycle"` // monthly | yearly
	Features      []string `json:"features"`
	Tier          string   `json:"tier"`
	StripePriceID string   `json:"-"`
	Status        string   `json:"status"` // active | inactive
}

// Subscription links an Account to a Service. At most one row exists per
// (account, service) pair; after creation it is updated only by webhook
// reconciliation.
type Subscription struct {
	ID                   string     `json:"id"`
	AccountUID           string     `json:"account_uid"`
	ServiceID            string     `json:"service_id"`
	Status               string     `json:"status"`
	StripeSubscriptionID string     `json:"-"`
	CurrentPeriodStart   *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool       `json:"cancel_at_period_end"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`

	// Joined service fields for listings.
	ServiceName  string `json:"service_name"`
	PriceCents   int64  `json:"price_cents"`
	BillingCycle string `json:"billing_cycle"`
}

// Invoice mirrors an external invoice. Rows are created and updated only by
// webhook events, never by user actions.
type Invoice struct {
	ID              string     `json:"id"`
	AccountUID      string     `json:"account_uid"`
	InvoiceNumber   string     `json:"invoice_number"`
	AmountCents     int64      `json:"amount_cents"`
	Currency        string     `json:"currency"`
	Status          string     `json:"status"`
	StripeInvoiceID string     `json:"-"`
	DueDate         *time.Time `json:"due_date,omitempty"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	PDFURL          *string    `json:"pdf_url,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Payment records a locally initiated charge attempt.
type Payment struct {
	ID                    string    `json:"id"`
	AccountUID            string    `json:"account_uid"`
	SubscriptionID        string    `json:"subscription_id,omitempty"`
	AmountCents           int64     `json:"amount_cents"`
	Currency              string    `json:"currency"`
	StripePaymentIntentID string    `json:"-"`
	StripeChargeID        *string   `json:"-"`
	Status                string    `json:"status"`
	ErrorMessage          *string   `json:"error_message,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}
