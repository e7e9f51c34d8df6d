// Package billing holds the subscription and payment logic: catalog
// listings, opening subscriptions through the payment provider, scheduled
// cancelation and one-off payment intents.
package billing

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	stripe "github.com/stripe/stripe-go/v76"

	"github.com/synergyhq/billing-portal/internal/lib/apperr"
	"github.com/synergyhq/billing-portal/internal/lib/sl"
	"github.com/synergyhq/billing-portal/internal/models"
)

const (
	catalogCacheKey = "services:catalog"
	catalogCacheTTL = 5 * time.Minute
)

// Repository is the storage contract the billing service needs.
type Repository interface {
	GetAccount(ctx context.Context, accountUID string) (*models.Account, error)
	SetStripeCustomerID(ctx context.Context, accountUID, customerID string) error

	ListActiveServices(ctx context.Context) ([]*models.Service, error)
	GetService(ctx context.Context, id string) (*models.Service, error)

	CreateSubscription(ctx context.Context, sub models.Subscription) (string, error)
	GetSubscription(ctx context.Context, id string) (*models.Subscription, error)
	ListSubscriptionsByAccount(ctx context.Context, accountUID string) ([]*models.Subscription, error)
	ActiveSubscriptionExists(ctx context.Context, accountUID, serviceID string) (bool, error)
	CountActiveSubscriptionsByAccount(ctx context.Context, accountUID string) (int, error)
	MarkCancelScheduled(ctx context.Context, id string) (int, error)

	CreatePayment(ctx context.Context, payment models.Payment) (string, error)
	ListInvoicesByAccount(ctx context.Context, accountUID string, limit, offset int) ([]*models.Invoice, error)
	ListPaymentsByAccount(ctx context.Context, accountUID string, limit, offset int) ([]*models.Payment, error)
}

// Gateway is the payment provider contract.
type Gateway interface {
	CreateCustomer(ctx context.Context, email, name string) (string, error)
	CreateSubscription(ctx context.Context, customerID, priceID string) (*stripe.Subscription, error)
	CancelSubscriptionAtPeriodEnd(ctx context.Context, stripeSubscriptionID string) (*stripe.Subscription, error)
	CreatePaymentIntent(ctx context.Context, customerID string, amountCents int64, currency string) (*stripe.PaymentIntent, error)
}

// Cache stores read-mostly data such as the service catalog.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// PaymentIntent is what the client needs to confirm a charge.
type PaymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	AmountCents  int64  `json:"amount_cents"`
	Currency     string `json:"currency"`
}

// Service implements the billing operations.
type Service struct {
	repo    Repository
	gateway Gateway
	cache   Cache
	log     *slog.Logger
}

// New creates a billing Service.
func New(repo Repository, gateway Gateway, cache Cache, log *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		gateway: gateway,
		cache:   cache,
		log:     log,
	}
}

// ListServices returns the active catalog, cached for a few minutes.
func (s *Service) ListServices(ctx context.Context) ([]*models.Service, error) {
	var cached []*models.Service
	found, err := s.cache.Get(catalogCacheKey, &cached)
	if err != nil {
		s.log.Warn("catalog cache read failed", sl.Err(err))
	}
	if found {
		return cached, nil
	}

	services, err := s.repo.ListActiveServices(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(catalogCacheKey, services, catalogCacheTTL); err != nil {
		s.log.Warn("catalog cache write failed", sl.Err(err))
	}
	return services, nil
}

// Subscribe opens a provider subscription for the account and mirrors it
// locally. A live subscription to the same service is a conflict.
func (s *Service) Subscribe(ctx context.Context, accountUID, serviceID string) (*models.Subscription, error) {
	account, err := s.repo.GetAccount(ctx, accountUID)
	if err != nil {
		return nil, err
	}

	service, err := s.repo.GetService(ctx, serviceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("Service")
		}
		return nil, err
	}
	if service.Status != models.ServiceStatusActive {
		return nil, apperr.Validation("Service is not available for subscription", nil)
	}

	exists, err := s.repo.ActiveSubscriptionExists(ctx, accountUID, serviceID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.Conflict("You already have an active subscription to this service")
	}

	customerID, err := s.ensureCustomer(ctx, account)
	if err != nil {
		return nil, err
	}

	providerSub, err := s.gateway.CreateSubscription(ctx, customerID, service.StripePriceID)
	if err != nil {
		return nil, err
	}

	periodStart := time.Unix(providerSub.CurrentPeriodStart, 0).UTC()
	periodEnd := time.Unix(providerSub.CurrentPeriodEnd, 0).UTC()
	id, err := s.repo.CreateSubscription(ctx, models.Subscription{
		AccountUID:           accountUID,
		ServiceID:            serviceID,
		Status:               MapProviderStatus(providerSub.Status, providerSub.CancelAtPeriodEnd),
		StripeSubscriptionID: providerSub.ID,
		CurrentPeriodStart:   &periodStart,
		CurrentPeriodEnd:     &periodEnd,
	})
	if err != nil {
		return nil, err
	}
	if id == "" {
		// lost a race with a concurrent subscribe
		return nil, apperr.Conflict("You already have an active subscription to this service")
	}

	s.log.Info("subscription opened",
		slog.String("subscription_id", id),
		slog.String("account_uid", accountUID),
		slog.String("service_id", serviceID))

	return s.repo.GetSubscription(ctx, id)
}

// GetSubscription returns one subscription of the account. Another account's
// subscription reads as missing.
func (s *Service) GetSubscription(ctx context.Context, accountUID, subscriptionID string) (*models.Subscription, error) {
	sub, err := s.repo.GetSubscription(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("Subscription")
		}
		return nil, err
	}
	if sub.AccountUID != accountUID {
		return nil, apperr.NotFound("Subscription")
	}
	return sub, nil
}

// ListSubscriptions returns all subscriptions of the account.
func (s *Service) ListSubscriptions(ctx context.Context, accountUID string) ([]*models.Subscription, error) {
	return s.repo.ListSubscriptionsByAccount(ctx, accountUID)
}

// ActiveServiceCount returns how many services the account is currently
// subscribed to. Shown on the account profile.
func (s *Service) ActiveServiceCount(ctx context.Context, accountUID string) (int, error) {
	return s.repo.CountActiveSubscriptionsByAccount(ctx, accountUID)
}

// CancelAtPeriodEnd schedules a subscription for cancelation at the end of
// the current billing period. The final transition to canceled arrives later
// by webhook.
func (s *Service) CancelAtPeriodEnd(ctx context.Context, accountUID, subscriptionID string) (*models.Subscription, error) {
	sub, err := s.GetSubscription(ctx, accountUID, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.Status == models.SubscriptionStatusCanceled {
		return nil, apperr.Validation("Subscription is already canceled", nil)
	}
	if sub.Status == models.SubscriptionStatusCancelScheduled {
		return sub, nil
	}

	if _, err := s.gateway.CancelSubscriptionAtPeriodEnd(ctx, sub.StripeSubscriptionID); err != nil {
		return nil, err
	}
	if _, err := s.repo.MarkCancelScheduled(ctx, sub.ID); err != nil {
		return nil, err
	}

	s.log.Info("subscription cancel scheduled",
		slog.String("subscription_id", sub.ID),
		slog.String("account_uid", accountUID))

	return s.repo.GetSubscription(ctx, sub.ID)
}

// CreatePaymentIntent opens a one-off charge and records it as pending. The
// webhook settles it later.
func (s *Service) CreatePaymentIntent(ctx context.Context, accountUID string, amountCents int64, currency, subscriptionID string) (*PaymentIntent, error) {
	if amountCents <= 0 {
		return nil, apperr.Validation("Amount must be positive", nil)
	}
	if currency == "" {
		currency = "usd"
	}

	account, err := s.repo.GetAccount(ctx, accountUID)
	if err != nil {
		return nil, err
	}
	customerID, err := s.ensureCustomer(ctx, account)
	if err != nil {
		return nil, err
	}

	if subscriptionID != "" {
		if _, err := s.GetSubscription(ctx, accountUID, subscriptionID); err != nil {
			return nil, err
		}
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, customerID, amountCents, currency)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.CreatePayment(ctx, models.Payment{
		AccountUID:            accountUID,
		SubscriptionID:        subscriptionID,
		AmountCents:           amountCents,
		Currency:              currency,
		StripePaymentIntentID: intent.ID,
		Status:                models.PaymentStatusPending,
	}); err != nil {
		return nil, err
	}

	return &PaymentIntent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		AmountCents:  amountCents,
		Currency:     currency,
	}, nil
}

// ListInvoices returns a page of the account's billing history.
func (s *Service) ListInvoices(ctx context.Context, accountUID string, limit, offset int) ([]*models.Invoice, error) {
	limit, offset = clampPage(limit, offset)
	return s.repo.ListInvoicesByAccount(ctx, accountUID, limit, offset)
}

// ListPayments returns a page of the account's charge history.
func (s *Service) ListPayments(ctx context.Context, accountUID string, limit, offset int) ([]*models.Payment, error) {
	limit, offset = clampPage(limit, offset)
	return s.repo.ListPaymentsByAccount(ctx, accountUID, limit, offset)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ensureCustomer returns the provider customer id, creating the linkage if
// registration left the account unlinked.
func (s *Service) ensureCustomer(ctx context.Context, account *models.Account) (string, error) {
	if account.BillingLinked() {
		return *account.StripeCustomerID, nil
	}
	customerID, err := s.gateway.CreateCustomer(ctx, account.Email, account.Name)
	if err != nil {
		return "", err
	}
	if err := s.repo.SetStripeCustomerID(ctx, account.UID, customerID); err != nil {
		return "", err
	}
	return customerID, nil
}

// MapProviderStatus folds the provider's subscription status set onto the
// local one.
func MapProviderStatus(status stripe.SubscriptionStatus, cancelAtPeriodEnd bool) string {
	if cancelAtPeriodEnd && status != stripe.SubscriptionStatusCanceled {
		return models.SubscriptionStatusCancelScheduled
	}
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing, stripe.SubscriptionStatusIncomplete:
		return models.SubscriptionStatusActive
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return models.SubscriptionStatusCanceled
	default:
		// past_due, unpaid, paused
		return models.SubscriptionStatusPaused
	}
}
