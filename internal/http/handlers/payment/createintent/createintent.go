// Package createintent implements the HTTP handler for starting a payment.
package createintent

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/synergyhq/billing-portal/internal/http/middlewarectx"
	"github.com/synergyhq/billing-portal/internal/http/response"
	"github.com/synergyhq/billing-portal/internal/lib/apperr"
	"github.com/synergyhq/billing-portal/internal/lib/sl"
	"github.com/synergyhq/billing-portal/internal/services/billing"
)

// Request carries the charge parameters. Currency defaults to usd and
// subscription_id optionally links the charge to a subscription.
type Request struct {
	AmountCents    int64  `json:"amount_cents" validate:"required"`
	Currency       string `json:"currency" validate:"omitempty,len=3"`
	SubscriptionID string `json:"subscription_id" validate:"omitempty,uuid"`
}

// BillingService defines the payment intent operation.
type BillingService interface {
	CreatePaymentIntent(ctx context.Context, accountUID string, amountCents int64,
		currency, subscriptionID string) (*billing.PaymentIntent, error)
}

type Handler struct {
	log            *slog.Logger
	billingService BillingService
	validate       *validator.Validate
}

func New(log *slog.Logger, billingService BillingService) *Handler {
	return &Handler{
		log:            log,
		billingService: billingService,
		validate:       validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Create a payment intent
// @Description Starts a provider payment and returns the client secret for confirmation
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body Request true "Charge parameters"
// @Success 201 {object} response.Response "Payment intent"
// @Failure 400 {object} response.ErrorResponse "Invalid request body"
// @Failure 401 {object} response.ErrorResponse "Not authenticated"
// @Failure 502 {object} response.ErrorResponse "Payment provider unavailable"
// @Router /payments/intent [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.createintent"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	account, ok := middlewarectx.Account(r.Context())
	if !ok {
		log.Error("account missing from context")
		response.RenderError(w, r, apperr.Authentication(""))
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.RenderError(w, r, apperr.Validation("Invalid request body", nil))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		response.RenderError(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	intent, err := h.billingService.CreatePaymentIntent(r.Context(), account.UID,
		req.AmountCents, req.Currency, req.SubscriptionID)
	if err != nil {
		log.Error("failed to create payment intent", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	log.Info("payment intent created", slog.String("account_uid", account.UID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OK("Payment intent created", map[string]any{
		"payment_intent": intent,
	}))
}
