package billing

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/synergyhq/billing-portal/internal/lib/apperr"
	"github.com/synergyhq/billing-portal/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) GetAccount(ctx context.Context, accountUID string) (*models.Account, error) {
	args := m.Called(ctx, accountUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *RepoMock) SetStripeCustomerID(ctx context.Context, accountUID, customerID string) error {
	return m.Called(ctx, accountUID, customerID).Error(0)
}

func (m *RepoMock) ListActiveServices(ctx context.Context) ([]*models.Service, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Service), args.Error(1)
}

func (m *RepoMock) GetService(ctx context.Context, id string) (*models.Service, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Service), args.Error(1)
}

func (m *RepoMock) CreateSubscription(ctx context.Context, sub models.Subscription) (string, error) {
	args := m.Called(ctx, sub)
	return args.String(0), args.Error(1)
}

func (m *RepoMock) GetSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *RepoMock) ListSubscriptionsByAccount(ctx context.Context, accountUID string) ([]*models.Subscription, error) {
	args := m.Called(ctx, accountUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Subscription), args.Error(1)
}

func (m *RepoMock) ActiveSubscriptionExists(ctx context.Context, accountUID, serviceID string) (bool, error) {
	args := m.Called(ctx, accountUID, serviceID)
	return args.Bool(0), args.Error(1)
}

func (m *RepoMock) CountActiveSubscriptionsByAccount(ctx context.Context, accountUID string) (int, error) {
	args := m.Called(ctx, accountUID)
	return args.Int(0), args.Error(1)
}

func (m *RepoMock) MarkCancelScheduled(ctx context.Context, id string) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}

func (m *RepoMock) CreatePayment(ctx context.Context, payment models.Payment) (string, error) {
	args := m.Called(ctx, payment)
	return args.String(0), args.Error(1)
}

func (m *RepoMock) ListInvoicesByAccount(ctx context.Context, accountUID string, limit, offset int) ([]*models.Invoice, error) {
	args := m.Called(ctx, accountUID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Invoice), args.Error(1)
}

func (m *RepoMock) ListPaymentsByAccount(ctx context.Context, accountUID string, limit, offset int) ([]*models.Payment, error) {
	args := m.Called(ctx, accountUID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Payment), args.Error(1)
}

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	args := m.Called(ctx, email, name)
	return args.String(0), args.Error(1)
}

func (m *GatewayMock) CreateSubscription(ctx context.Context, customerID, priceID string) (*stripe.Subscription, error) {
	args := m.Called(ctx, customerID, priceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.Subscription), args.Error(1)
}

func (m *GatewayMock) CancelSubscriptionAtPeriodEnd(ctx context.Context, stripeSubscriptionID string) (*stripe.Subscription, error) {
	args := m.Called(ctx, stripeSubscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.Subscription), args.Error(1)
}

func (m *GatewayMock) CreatePaymentIntent(ctx context.Context, customerID string, amountCents int64, currency string) (*stripe.PaymentIntent, error) {
	args := m.Called(ctx, customerID, amountCents, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.PaymentIntent), args.Error(1)
}

type CacheMock struct{ mock.Mock }

func (m *CacheMock) Get(key string, result any) (bool, error) {
	args := m.Called(key, result)
	return args.Bool(0), args.Error(1)
}

func (m *CacheMock) Set(key string, value any, expiration time.Duration) error {
	return m.Called(key, value, expiration).Error(0)
}

func (m *CacheMock) Invalidate(key string) error {
	return m.Called(key).Error(0)
}

func NewNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func passiveCache() *CacheMock {
	cache := new(CacheMock)
	cache.On("Get", mock.Anything, mock.Anything).Return(false, nil).Maybe()
	cache.On("Set", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	return cache
}

var (
	linkedCustomer = "cus_1"
	linkedAccount  = &models.Account{
		UID: "uid-1", Name: "User", Email: "user@example.com",
		StripeCustomerID: &linkedCustomer,
	}
	testService = &models.Service{
		ID: "svc-1", Name: "Growth", PriceCents: 7900,
		StripePriceID: "price_growth_monthly", Status: models.ServiceStatusActive,
	}
)

func TestListServices_CacheMiss(t *testing.T) {
	repo := new(RepoMock)
	cache := new(CacheMock)

	catalog := []*models.Service{testService}
	cache.On("Get", catalogCacheKey, mock.Anything).Return(false, nil)
	repo.On("ListActiveServices", mock.Anything).Return(catalog, nil)
	cache.On("Set", catalogCacheKey, catalog, catalogCacheTTL).Return(nil)

	got, err := New(repo, new(GatewayMock), cache, NewNoopLogger()).
		ListServices(context.Background())

	require.NoError(t, err)
	assert.Equal(t, catalog, got)
	cache.AssertExpectations(t)
}

func TestListServices_CacheHit(t *testing.T) {
	repo := new(RepoMock)
	cache := new(CacheMock)

	cache.On("Get", catalogCacheKey, mock.Anything).Return(true, nil)

	_, err := New(repo, new(GatewayMock), cache, NewNoopLogger()).
		ListServices(context.Background())

	require.NoError(t, err)
	repo.AssertNotCalled(t, "ListActiveServices", mock.Anything)
}

func TestSubscribe_Success(t *testing.T) {
	repo := new(RepoMock)
	gateway := new(GatewayMock)

	repo.On("GetAccount", mock.Anything, "uid-1").Return(linkedAccount, nil)
	repo.On("GetService", mock.Anything, "svc-1").Return(testService, nil)
	repo.On("ActiveSubscriptionExists", mock.Anything, "uid-1", "svc-1").Return(false, nil)
	gateway.On("CreateSubscription", mock.Anything, "cus_1", "price_growth_monthly").
		Return(&stripe.Subscription{
			ID:                 "sub_1",
			Status:             stripe.SubscriptionStatusActive,
			CurrentPeriodStart: time.Now().Unix(),
			CurrentPeriodEnd:   time.Now().Add(30 * 24 * time.Hour).Unix(),
		}, nil)
	repo.On("CreateSubscription", mock.Anything, mock.MatchedBy(func(sub models.Subscription) bool {
		return sub.AccountUID == "uid-1" &&
			sub.StripeSubscriptionID == "sub_1" &&
			sub.Status == models.SubscriptionStatusActive &&
			sub.CurrentPeriodEnd != nil
	})).Return("local-1", nil)
	repo.On("GetSubscription", mock.Anything, "local-1").
		Return(&models.Subscription{ID: "local-1", AccountUID: "uid-1"}, nil)

	sub, err := New(repo, gateway, passiveCache(), NewNoopLogger()).
		Subscribe(context.Background(), "uid-1", "svc-1")

	require.NoError(t, err)
	assert.Equal(t, "local-1", sub.ID)
	repo.AssertExpectations(t)
	gateway.AssertExpectations(t)
}

func TestSubscribe_DuplicateIsConflict(t *testing.T) {
	repo := new(RepoMock)
	gateway := new(GatewayMock)

	repo.On("GetAccount", mock.Anything, "uid-1").Return(linkedAccount, nil)
	repo.On("GetService", mock.Anything, "svc-1").Return(testService, nil)
	repo.On("ActiveSubscriptionExists", mock.Anything, "uid-1", "svc-1").Return(true, nil)

	_, err := New(repo, gateway, passiveCache(), NewNoopLogger()).
		Subscribe(context.Background(), "uid-1", "svc-1")

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.CodeConflict, appErr.Code)
	gateway.AssertNotCalled(t, "CreateSubscription", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubscribe_UnknownService(t *testing.T) {
	repo := new(RepoMock)
	repo.On("GetAccount", mock.Anything, "uid-1").Return(linkedAccount, nil)
	repo.On("GetService", mock.Anything, "nope").Return(nil, sql.ErrNoRows)

	_, err := New(repo, new(GatewayMock), passiveCache(), NewNoopLogger()).
		Subscribe(context.Background(), "uid-1", "nope")

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.CodeNotFound, appErr.Code)
}

func TestSubscribe_LinksUnlinkedAccount(t *testing.T) {
	repo := new(RepoMock)
	gateway := new(GatewayMock)

	unlinked := &models.Account{UID: "uid-1", Name: "User", Email: "user@example.com"}
	repo.On("GetAccount", mock.Anything, "uid-1").Return(unlinked, nil)
	repo.On("GetService", mock.Anything, "svc-1").Return(testService, nil)
	repo.On("ActiveSubscriptionExists", mock.Anything, "uid-1", "svc-1").Return(false, nil)
	gateway.On("CreateCustomer", mock.Anything, "user@example.com", "User").Return("cus_new", nil)
	repo.On("SetStripeCustomerID", mock.Anything, "uid-1", "cus_new").Return(nil)
	gateway.On("CreateSubscription", mock.Anything, "cus_new", "price_growth_monthly").
		Return(&stripe.Subscription{ID: "sub_1", Status: stripe.SubscriptionStatusActive}, nil)
	repo.On("CreateSubscription", mock.Anything, mock.Anything).Return("local-1", nil)
	repo.On("GetSubscription", mock.Anything, "local-1").
		Return(&models.Subscription{ID: "local-1"}, nil)

	_, err := New(repo, gateway, passiveCache(), NewNoopLogger()).
		Subscribe(context.Background(), "uid-1", "svc-1")

	require.NoError(t, err)
	gateway.AssertCalled(t, "CreateCustomer", mock.Anything, "user@example.com", "User")
}

func TestSubscribe_GatewayFailure(t *testing.T) {
	repo := new(RepoMock)
	gateway := new(GatewayMock)

	repo.On("GetAccount", mock.Anything, "uid-1").Return(linkedAccount, nil)
	repo.On("GetService", mock.Anything, "svc-1").Return(testService, nil)
	repo.On("ActiveSubscriptionExists", mock.Anything, "uid-1", "svc-1").Return(false, nil)
	gateway.On("CreateSubscription", mock.Anything, "cus_1", "price_growth_monthly").
		Return(nil, apperr.Gateway(errors.New("timeout")))

	_, err := New(repo, gateway, passiveCache(), NewNoopLogger()).
		Subscribe(context.Background(), "uid-1", "svc-1")

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.CodeGateway, appErr.Code)
	repo.AssertNotCalled(t, "CreateSubscription", mock.Anything, mock.Anything)
}

func TestCancelAtPeriodEnd(t *testing.T) {
	active := &models.Subscription{
		ID: "local-1", AccountUID: "uid-1",
		Status: models.SubscriptionStatusActive, StripeSubscriptionID: "sub_1",
	}
	scheduled := &models.Subscription{
		ID: "local-1", AccountUID: "uid-1",
		Status: models.SubscriptionStatusCancelScheduled, StripeSubscriptionID: "sub_1",
	}

	t.Run("success", func(t *testing.T) {
		repo := new(RepoMock)
		gateway := new(GatewayMock)

		repo.On("GetSubscription", mock.Anything, "local-1").Return(active, nil).Once()
		gateway.On("CancelSubscriptionAtPeriodEnd", mock.Anything, "sub_1").
			Return(&stripe.Subscription{ID: "sub_1", CancelAtPeriodEnd: true}, nil)
		repo.On("MarkCancelScheduled", mock.Anything, "local-1").Return(1, nil)
		repo.On("GetSubscription", mock.Anything, "local-1").Return(scheduled, nil).Once()

		sub, err := New(repo, gateway, passiveCache(), NewNoopLogger()).
			CancelAtPeriodEnd(context.Background(), "uid-1", "local-1")

		require.NoError(t, err)
		assert.Equal(t, models.SubscriptionStatusCancelScheduled, sub.Status)
	})

	t.Run("already scheduled is a no-op", func(t *testing.T) {
		repo := new(RepoMock)
		gateway := new(GatewayMock)
		repo.On("GetSubscription", mock.Anything, "local-1").Return(scheduled, nil)

		sub, err := New(repo, gateway, passiveCache(), NewNoopLogger()).
			CancelAtPeriodEnd(context.Background(), "uid-1", "local-1")

		require.NoError(t, err)
		assert.Equal(t, models.SubscriptionStatusCancelScheduled, sub.Status)
		gateway.AssertNotCalled(t, "CancelSubscriptionAtPeriodEnd", mock.Anything, mock.Anything)
	})

	t.Run("foreign subscription reads as missing", func(t *testing.T) {
		repo := new(RepoMock)
		foreign := &models.Subscription{ID: "local-1", AccountUID: "someone-else"}
		repo.On("GetSubscription", mock.Anything, "local-1").Return(foreign, nil)

		_, err := New(repo, new(GatewayMock), passiveCache(), NewNoopLogger()).
			CancelAtPeriodEnd(context.Background(), "uid-1", "local-1")

		var appErr *apperr.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperr.CodeNotFound, appErr.Code)
	})
}

func TestCreatePaymentIntent(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		repo := new(RepoMock)
		gateway := new(GatewayMock)

		repo.On("GetAccount", mock.Anything, "uid-1").Return(linkedAccount, nil)
		gateway.On("CreatePaymentIntent", mock.Anything, "cus_1", int64(2900), "usd").
			Return(&stripe.PaymentIntent{ID: "pi_1", ClientSecret: "pi_1_secret"}, nil)
		repo.On("CreatePayment", mock.Anything, mock.MatchedBy(func(p models.Payment) bool {
			return p.StripePaymentIntentID == "pi_1" && p.Status == models.PaymentStatusPending
		})).Return("pay-1", nil)

		intent, err := New(repo, gateway, passiveCache(), NewNoopLogger()).
			CreatePaymentIntent(context.Background(), "uid-1", 2900, "usd", "")

		require.NoError(t, err)
		assert.Equal(t, "pi_1_secret", intent.ClientSecret)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		_, err := New(new(RepoMock), new(GatewayMock), passiveCache(), NewNoopLogger()).
			CreatePaymentIntent(context.Background(), "uid-1", 0, "usd", "")

		var appErr *apperr.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperr.CodeValidation, appErr.Code)
	})
}

func TestMapProviderStatus(t *testing.T) {
	tests := []struct {
		status            stripe.SubscriptionStatus
		cancelAtPeriodEnd bool
		want              string
	}{
		{stripe.SubscriptionStatusActive, false, models.SubscriptionStatusActive},
		{stripe.SubscriptionStatusTrialing, false, models.SubscriptionStatusActive},
		{stripe.SubscriptionStatusActive, true, models.SubscriptionStatusCancelScheduled},
		{stripe.SubscriptionStatusCanceled, false, models.SubscriptionStatusCanceled},
		{stripe.SubscriptionStatusCanceled, true, models.SubscriptionStatusCanceled},
		{stripe.SubscriptionStatusPastDue, false, models.SubscriptionStatusPaused},
		{stripe.SubscriptionStatusUnpaid, false, models.SubscriptionStatusPaused},
	}

	for _, tt := range tests {
		got := MapProviderStatus(tt.status, tt.cancelAtPeriodEnd)
		assert.Equal(t, tt.want, got, "status %s cancel=%v", tt.status, tt.cancelAtPeriodEnd)
	}
}
