// Package reconciler applies payment provider webhook events to local state.
// Every handler tolerates at-least-once delivery: inserts are
// conflict-tolerant upserts and updates set absolute state, so a redelivered
// event is a no-op. A missing local correlate fails the event so the provider
// redelivers after the racing local write has landed.
package reconciler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v76"

	"github.com/synergyhq/billing-portal/internal/lib/rabbitmq"
	"github.com/synergyhq/billing-portal/internal/lib/sl"
	"github.com/synergyhq/billing-portal/internal/metrics"
	"github.com/synergyhq/billing-portal/internal/models"
	"github.com/synergyhq/billing-portal/internal/services/billing"
)

// Repository is the storage contract the reconciler needs.
type Repository interface {
	GetAccountByStripeCustomerID(ctx context.Context, customerID string) (*models.Account, error)
	UpdateAccountStatus(ctx context.Context, accountUID, status string) error
	GetServiceByStripePriceID(ctx context.Context, stripePriceID string) (*models.Service, error)

	CreateSubscription(ctx context.Context, sub models.Subscription) (string, error)
	SyncSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID, status string,
		periodStart, periodEnd *time.Time, cancelAtPeriodEnd bool) (int, error)

	UpsertInvoice(ctx context.Context, invoice models.Invoice) error
	MarkInvoicePaid(ctx context.Context, stripeInvoiceID string, paidAt time.Time) (int, error)
	SettlePayment(ctx context.Context, stripePaymentIntentID, status string,
		stripeChargeID, errorMessage *string) (int, error)
}

// Publisher pushes notification messages onto the broker.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// PaymentFailedMessage is the payload consumed by the notifier.
type PaymentFailedMessage struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Reason      string `json:"reason"`
}

// Service dispatches verified webhook events to their handlers.
type Service struct {
	repo      Repository
	publisher Publisher
	log       *slog.Logger
}

// New creates a reconciler Service.
func New(repo Repository, publisher Publisher, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		log:       log,
	}
}

// HandleEvent routes one verified event. Unknown event kinds are logged and
// accepted. A failed handler returns an error so the transport responds 500
// and the provider redelivers.
func (s *Service) HandleEvent(ctx context.Context, event stripe.Event) error {
	log := s.log.With(
		slog.String("event_id", event.ID),
		slog.String("event_type", string(event.Type)),
	)

	var err error
	outcome := "ok"
	switch event.Type {
	case "payment_intent.succeeded":
		err = s.handlePaymentSucceeded(ctx, log, event.Data.Raw)
	case "payment_intent.payment_failed":
		err = s.handlePaymentFailed(ctx, log, event.Data.Raw)
	case "customer.subscription.created":
		err = s.handleSubscriptionCreated(ctx, log, event.Data.Raw)
	case "customer.subscription.updated":
		err = s.handleSubscriptionUpdated(ctx, log, event.Data.Raw)
	case "customer.subscription.deleted":
		err = s.handleSubscriptionDeleted(ctx, log, event.Data.Raw)
	case "invoice.created":
		err = s.handleInvoiceCreated(ctx, log, event.Data.Raw)
	case "invoice.paid":
		err = s.handleInvoicePaid(ctx, log, event.Data.Raw)
	default:
		log.Info("ignoring unhandled event kind")
		outcome = "ignored"
	}

	if err != nil {
		outcome = "error"
		log.Error("event handling failed", sl.Err(err))
	}
	metrics.WebhookEventsTotal.WithLabelValues(string(event.Type), outcome).Inc()
	return err
}

func (s *Service) handlePaymentSucceeded(ctx context.Context, log *slog.Logger, raw json.RawMessage) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(raw, &intent); err != nil {
		return err
	}

	var chargeID *string
	if intent.LatestCharge != nil {
		chargeID = &intent.LatestCharge.ID
	}
	rows, err := s.repo.SettlePayment(ctx, intent.ID, models.PaymentStatusSucceeded, chargeID, nil)
	if err != nil {
		return err
	}
	if rows == 0 {
		// The event may race ahead of the local insert. Failing here makes
		// the provider redeliver once the local row exists.
		log.Warn("no local payment for intent", slog.String("intent_id", intent.ID))
		return fmt.Errorf("no local payment for intent %s", intent.ID)
	}
	metrics.PaymentsSettledTotal.WithLabelValues(models.PaymentStatusSucceeded).Inc()
	return nil
}

func (s *Service) handlePaymentFailed(ctx context.Context, log *slog.Logger, raw json.RawMessage) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(raw, &intent); err != nil {
		return err
	}

	reason := "payment declined"
	if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
		reason = intent.LastPaymentError.Msg
	}
	rows, err := s.repo.SettlePayment(ctx, intent.ID, models.PaymentStatusFailed, nil, &reason)
	if err != nil {
		return err
	}
	if rows == 0 {
		log.Warn("no local payment for intent", slog.String("intent_id", intent.ID))
		return fmt.Errorf("no local payment for intent %s", intent.ID)
	}
	metrics.PaymentsSettledTotal.WithLabelValues(models.PaymentStatusFailed).Inc()

	if intent.Customer != nil {
		account, err := s.repo.GetAccountByStripeCustomerID(ctx, intent.Customer.ID)
		if err != nil {
			log.Warn("no account for failed payment notification", sl.Err(err))
			return nil
		}
		msg := PaymentFailedMessage{
			Email:       account.Email,
			Name:        account.Name,
			AmountCents: intent.Amount,
			Currency:    string(intent.Currency),
			Reason:      reason,
		}
		if err := s.publisher.Publish(rabbitmq.RoutingKeyPaymentFailed, msg); err != nil {
			log.Error("failed to queue payment failed email", sl.Err(err))
		}
	}
	return nil
}

func (s *Service) handleSubscriptionCreated(ctx context.Context, log *slog.Logger, raw json.RawMessage) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return err
	}
	if sub.Customer == nil || sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
		// Malformed payload, redelivery cannot fix it.
		log.Warn("subscription event missing customer or price")
		return nil
	}

	account, err := s.repo.GetAccountByStripeCustomerID(ctx, sub.Customer.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("no account for provider customer", slog.String("customer_id", sub.Customer.ID))
			return fmt.Errorf("no account for provider customer %s", sub.Customer.ID)
		}
		return err
	}
	service, err := s.repo.GetServiceByStripePriceID(ctx, sub.Items.Data[0].Price.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("no catalog entry for provider price",
				slog.String("price_id", sub.Items.Data[0].Price.ID))
			return fmt.Errorf("no catalog entry for provider price %s", sub.Items.Data[0].Price.ID)
		}
		return err
	}

	periodStart := time.Unix(sub.CurrentPeriodStart, 0).UTC()
	periodEnd := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	if _, err := s.repo.CreateSubscription(ctx, models.Subscription{
		AccountUID:           account.UID,
		ServiceID:            service.ID,
		Status:               billing.MapProviderStatus(sub.Status, sub.CancelAtPeriodEnd),
		StripeSubscriptionID: sub.ID,
		CurrentPeriodStart:   &periodStart,
		CurrentPeriodEnd:     &periodEnd,
	}); err != nil {
		return err
	}

	return s.repo.UpdateAccountStatus(ctx, account.UID, models.AccountStatusActive)
}

func (s *Service) handleSubscriptionUpdated(ctx context.Context, log *slog.Logger, raw json.RawMessage) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return err
	}

	periodStart := time.Unix(sub.CurrentPeriodStart, 0).UTC()
	periodEnd := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	rows, err := s.repo.SyncSubscriptionByStripeID(ctx, sub.ID,
		billing.MapProviderStatus(sub.Status, sub.CancelAtPeriodEnd),
		&periodStart, &periodEnd, sub.CancelAtPeriodEnd)
	if err != nil {
		return err
	}
	if rows == 0 {
		log.Warn("no local subscription for provider id", slog.String("subscription_id", sub.ID))
		return fmt.Errorf("no local subscription for provider id %s", sub.ID)
	}
	return nil
}

func (s *Service) handleSubscriptionDeleted(ctx context.Context, log *slog.Logger, raw json.RawMessage) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return err
	}

	// Nil bounds leave the stored billing period untouched; the row keeps
	// its last known period after cancelation.
	rows, err := s.repo.SyncSubscriptionByStripeID(ctx, sub.ID,
		models.SubscriptionStatusCanceled, nil, nil, false)
	if err != nil {
		return err
	}
	if rows == 0 {
		log.Warn("no local subscription for provider id", slog.String("subscription_id", sub.ID))
		return fmt.Errorf("no local subscription for provider id %s", sub.ID)
	}
	return nil
}

func (s *Service) handleInvoiceCreated(ctx context.Context, log *slog.Logger, raw json.RawMessage) error {
	var inv stripe.Invoice
	if err := json.Unmarshal(raw, &inv); err != nil {
		return err
	}
	if inv.Customer == nil {
		log.Warn("invoice event missing customer")
		return nil
	}

	account, err := s.repo.GetAccountByStripeCustomerID(ctx, inv.Customer.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("no account for provider customer", slog.String("customer_id", inv.Customer.ID))
			return fmt.Errorf("no account for provider customer %s", inv.Customer.ID)
		}
		return err
	}

	// Draft invoices arrive before the provider assigns a number; the
	// column is unique so a placeholder keeps redeliveries collapsible.
	number := inv.Number
	if number == "" {
		number = "draft-" + uuid.NewString()
	}

	invoice := models.Invoice{
		AccountUID:      account.UID,
		InvoiceNumber:   number,
		AmountCents:     inv.AmountDue,
		Currency:        string(inv.Currency),
		Status:          models.InvoiceStatusOpen,
		StripeInvoiceID: inv.ID,
	}
	if inv.DueDate > 0 {
		dueDate := time.Unix(inv.DueDate, 0).UTC()
		invoice.DueDate = &dueDate
	}
	if inv.InvoicePDF != "" {
		invoice.PDFURL = &inv.InvoicePDF
	}
	return s.repo.UpsertInvoice(ctx, invoice)
}

func (s *Service) handleInvoicePaid(ctx context.Context, log *slog.Logger, raw json.RawMessage) error {
	var inv stripe.Invoice
	if err := json.Unmarshal(raw, &inv); err != nil {
		return err
	}

	rows, err := s.repo.MarkInvoicePaid(ctx, inv.ID, time.Now().UTC())
	if err != nil {
		return err
	}
	if rows == 0 {
		log.Warn("no local invoice for provider id", slog.String("invoice_id", inv.ID))
		return fmt.Errorf("no local invoice for provider id %s", inv.ID)
	}
	return nil
}
