// Package get implements the HTTP handler returning the current account.
package get

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/synergyhq/billing-portal/internal/http/middlewarectx"
	"github.com/synergyhq/billing-portal/internal/http/response"
	"github.com/synergyhq/billing-portal/internal/lib/apperr"
	"github.com/synergyhq/billing-portal/internal/lib/sl"
	"github.com/synergyhq/billing-portal/internal/models"
)

// BillingService provides the subscription figures shown on the profile.
type BillingService interface {
	ActiveServiceCount(ctx context.Context, accountUID string) (int, error)
}

// profile is the account payload. Registration links the billing customer
// best-effort, so billing_linked makes the pending-linkage state visible to
// the client instead of leaving it silent.
type profile struct {
	*models.Account
	BillingLinked  bool `json:"billing_linked"`
	ActiveServices int  `json:"active_services"`
}

type Handler struct {
	log            *slog.Logger
	billingService BillingService
}

func New(log *slog.Logger, billingService BillingService) *Handler {
	return &Handler{log: log, billingService: billingService}
}

// ServeHTTP godoc
// @Summary Get the current account
// @Tags Account
// @Produce json
// @Success 200 {object} response.Response "Account profile"
// @Failure 401 {object} response.ErrorResponse "Not authenticated"
// @Router /account [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.get"

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

	count, err := h.billingService.ActiveServiceCount(r.Context(), account.UID)
	if err != nil {
		log.Error("failed to count active services", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	render.JSON(w, r, response.OK("Account retrieved", map[string]any{
		"account": profile{
			Account:        account,
			BillingLinked:  account.BillingLinked(),
			ActiveServices: count,
		},
	}))
}
