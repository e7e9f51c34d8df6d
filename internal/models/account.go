// Package models contains the domain entities of the billing portal:
// accounts, sessions, service offerings, subscriptions, invoices, payments
// and support tickets. The structures are shared by the business logic and
// the storage layer; every entity is owned exclusively by the relational
// store.
package models

import "time"

// Account lifecycle statuses. Transitions after registration are driven by
// webhook reconciliation.
const (
	AccountStatusTrial    = "trial"
	AccountStatusActive   = "active"
	AccountStatusPaused   = "paused"
	AccountStatusCanceled = "canceled"
)

// Account represents a registered company.
type Account struct {
	UID              string     `json:"uid"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"`
	Status           string     `json:"status"` // trial | active | paused | canceled
	TrialEndsAt      *time.Time `json:"trial_ends_at,omitempty"`
	StripeCustomerID *string    `json:"-"`
	BillingEmail     *string    `json:"billing_email,omitempty"`
	BillingAddress   *string    `json:"billing_address,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// BillingLinked reports whether the account has an external billing
// customer. Registration creates the customer best-effort, so a fresh
// account can legitimately be unlinked until a later sync.
func (a *Account) BillingLinked() bool {
	return a.StripeCustomerID != nil && *a.StripeCustomerID != ""
}

// Session is a server-persisted, time-bounded proof of authentication.
// The ID is the opaque cookie value; Payload is the signed claims blob
// issued alongside it.
type Session struct {
	ID         string
	AccountUID string
	Payload    string
	ExpiresAt  time.Time
}

// PasswordResetToken is a single-use, short-lived credential for the
// password-reset flow.
type PasswordResetToken struct {
	Token      string
	AccountUID string
	ExpiresAt  time.Time
}
