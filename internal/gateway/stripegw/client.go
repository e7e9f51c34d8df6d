// Package stripegw adapts the Stripe API to the billing portal. All provider
// failures surface as gateway errors so handlers never leak raw provider
// detail to clients.
package stripegw

import (
	"context"
	"errors"
	"fmt"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/subscription"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/synergyhq/billing-portal/internal/lib/apperr"
)

// Client wraps the Stripe SDK with portal-level semantics.
type Client struct {
	webhookSecret string
}

// NewClient configures the SDK key and returns a client.
func NewClient(secretKey, webhookSecret string) *Client {
	stripe.Key = secretKey
	return &Client{webhookSecret: webhookSecret}
}

// wrapErr folds any provider failure into a gateway error. Card declines
// carry the provider message through since the client must see them.
func wrapErr(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
		return apperr.Validation(stripeErr.Msg, map[string]string{"code": string(stripeErr.Code)})
	}
	return apperr.Gateway(fmt.Errorf("%s: %w", op, err))
}

// CreateCustomer registers an account with the payment provider and returns
// the provider customer id.
func (c *Client) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	const op = "stripegw.CreateCustomer"

	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	cust, err := customer.New(params)
	if err != nil {
		return "", wrapErr(op, err)
	}
	return cust.ID, nil
}

// CreateSubscription opens a recurring subscription on the provider.
func (c *Client) CreateSubscription(ctx context.Context, customerID, priceID string) (*stripe.Subscription, error) {
	const op = "stripegw.CreateSubscription"

	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceID)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
	}
	params.Context = ctx
	sub, err := subscription.New(params)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return sub, nil
}

// CancelSubscriptionAtPeriodEnd schedules a provider subscription for
// cancelation at the end of the current billing period.
func (c *Client) CancelSubscriptionAtPeriodEnd(ctx context.Context, stripeSubscriptionID string) (*stripe.Subscription, error) {
	const op = "stripegw.CancelSubscriptionAtPeriodEnd"

	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	params.Context = ctx
	sub, err := subscription.Update(stripeSubscriptionID, params)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return sub, nil
}

// CreatePaymentIntent opens a one-off charge on the provider.
func (c *Client) CreatePaymentIntent(ctx context.Context, customerID string, amountCents int64, currency string) (*stripe.PaymentIntent, error) {
	const op = "stripegw.CreatePaymentIntent"

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(currency),
		Customer: stripe.String(customerID),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	intent, err := paymentintent.New(params)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return intent, nil
}

// ConstructWebhookEvent verifies the signature header and parses the event.
func (c *Client) ConstructWebhookEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, c.webhookSecret)
}
