// Package update implements the HTTP handler for editing the account profile.
package update

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
	"github.com/synergyhq/billing-portal/internal/models"
)

// Request carries the editable profile fields. Omitted optional fields are
// left unchanged.
type Request struct {
	Name           string  `json:"name" validate:"required,min=2,max=100"`
	BillingEmail   *string `json:"billing_email" validate:"omitempty,email"`
	BillingAddress *string `json:"billing_address" validate:"omitempty,max=500"`
}

// AuthService defines the profile update operation.
type AuthService interface {
	UpdateProfile(ctx context.Context, accountUID, name string,
		billingEmail, billingAddress *string) (*models.Account, error)
}

type Handler struct {
	log         *slog.Logger
	authService AuthService
	validate    *validator.Validate
}

func New(log *slog.Logger, authService AuthService) *Handler {
	return &Handler{
		log:         log,
		authService: authService,
		validate:    validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Update the current account profile
// @Tags Account
// @Accept json
// @Produce json
// @Param request body Request true "Profile fields"
// @Success 200 {object} response.Response "Updated profile"
// @Failure 400 {object} response.ErrorResponse "Invalid request body"
// @Failure 401 {object} response.ErrorResponse "Not authenticated"
// @Router /account [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.update"

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

	updated, err := h.authService.UpdateProfile(r.Context(), account.UID, req.Name,
		req.BillingEmail, req.BillingAddress)
	if err != nil {
		log.Error("failed to update profile", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	log.Info("profile updated", slog.String("account_uid", account.UID))
	render.JSON(w, r, response.OK("Profile updated successfully", map[string]any{
		"account": updated,
	}))
}
