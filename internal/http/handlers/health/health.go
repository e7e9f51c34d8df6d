// Package health implements the readiness probe.
package health

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/synergyhq/billing-portal/internal/http/response"
	"github.com/synergyhq/billing-portal/internal/lib/apperr"
	"github.com/synergyhq/billing-portal/internal/lib/sl"
	"github.com/synergyhq/billing-portal/internal/storage/repository"
)

type Handler struct {
	log     *slog.Logger
	storage *repository.Storage
}

func New(log *slog.Logger, storage *repository.Storage) *Handler {
	return &Handler{
		log:     log,
		storage: storage,
	}
}

// ServeHTTP godoc
// @Summary Readiness probe
// @Tags Health
// @Produce json
// @Success 200 {object} response.Response "Service is ready"
// @Failure 500 {object} response.ErrorResponse "Database unavailable"
// @Router /health [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"

	if err := repository.CheckDatabaseReady(h.storage); err != nil {
		h.log.Error("database not ready", slog.String("op", op), sl.Err(err))
		response.RenderError(w, r, apperr.Internal(err))
		return
	}

	render.JSON(w, r, response.OK("Service is healthy", map[string]any{
		"status": "ok",
	}))
}
