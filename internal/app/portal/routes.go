package portal

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	accountget "github.com/synergyhq/billing-portal/internal/http/handlers/account/get"
	accountupdate "github.com/synergyhq/billing-portal/internal/http/handlers/account/update"
	"github.com/synergyhq/billing-portal/internal/http/handlers/auth/forgotpassword"
	"github.com/synergyhq/billing-portal/internal/http/handlers/auth/login"
	"github.com/synergyhq/billing-portal/internal/http/handlers/auth/logout"
	"github.com/synergyhq/billing-portal/internal/http/handlers/auth/register"
	"github.com/synergyhq/billing-portal/internal/http/handlers/auth/resetpassword"
	"github.com/synergyhq/billing-portal/internal/http/handlers/health"
	invoicelist "github.com/synergyhq/billing-portal/internal/http/handlers/invoice/list"
	"github.com/synergyhq/billing-portal/internal/http/handlers/payment/createintent"
	paymentlist "github.com/synergyhq/billing-portal/internal/http/handlers/payment/list"
	servicelist "github.com/synergyhq/billing-portal/internal/http/handlers/service/list"
	subscriptioncancel "github.com/synergyhq/billing-portal/internal/http/handlers/subscription/cancel"
	subscriptioncreate "github.com/synergyhq/billing-portal/internal/http/handlers/subscription/create"
	subscriptionlist "github.com/synergyhq/billing-portal/internal/http/handlers/subscription/list"
	subscriptionread "github.com/synergyhq/billing-portal/internal/http/handlers/subscription/read"
	ticketcreate "github.com/synergyhq/billing-portal/internal/http/handlers/ticket/create"
	ticketlist "github.com/synergyhq/billing-portal/internal/http/handlers/ticket/list"
	"github.com/synergyhq/billing-portal/internal/http/handlers/webhook/stripewebhook"
	"github.com/synergyhq/billing-portal/internal/http/middlewarectx"
	authservice "github.com/synergyhq/billing-portal/internal/services/auth"
	billingservice "github.com/synergyhq/billing-portal/internal/services/billing"
	reconcilerservice "github.com/synergyhq/billing-portal/internal/services/reconciler"
	ticketservice "github.com/synergyhq/billing-portal/internal/services/ticket"
	"github.com/synergyhq/billing-portal/internal/storage/repository"
)

// RegisterRoutes mounts all portal endpoints on the router.
func RegisterRoutes(r chi.Router, logger *slog.Logger, storage *repository.Storage,
	authService *authservice.Service, billingService *billingservice.Service,
	ticketService *ticketservice.Service, verifier stripewebhook.Verifier,
	reconcilerService *reconcilerservice.Service) {
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	publicLimiter := middlewarectx.NewRateLimiter(5, 10)
	portalLimiter := middlewarectx.NewRateLimiter(20, 40)

	r.Route("/api/v1", func(r chi.Router) {
		// Open endpoints
		r.Group(func(r chi.Router) {
			r.Use(publicLimiter.Middleware(logger))
			r.Post("/auth/register", register.New(logger, authService).ServeHTTP)
			r.Post("/auth/login", login.New(logger, authService).ServeHTTP)
			r.Post("/auth/logout", logout.New(logger, authService).ServeHTTP)
			r.Post("/auth/forgot-password", forgotpassword.New(logger, authService).ServeHTTP)
			r.Post("/auth/reset-password", resetpassword.New(logger, authService).ServeHTTP)
			r.Get("/services", servicelist.New(logger, billingService).ServeHTTP)
		})

		// Session-guarded portal endpoints
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.SessionMiddleware(authService, logger))
			r.Use(portalLimiter.Middleware(logger))
			r.Get("/account", accountget.New(logger, billingService).ServeHTTP)
			r.Put("/account", accountupdate.New(logger, authService).ServeHTTP)
			r.Post("/subscriptions", subscriptioncreate.New(logger, billingService).ServeHTTP)
			r.Get("/subscriptions", subscriptionlist.New(logger, billingService).ServeHTTP)
			r.Get("/subscriptions/{id}", subscriptionread.New(logger, billingService).ServeHTTP)
			r.Post("/subscriptions/{id}/cancel", subscriptioncancel.New(logger, billingService).ServeHTTP)
			r.Post("/payments/intent", createintent.New(logger, billingService).ServeHTTP)
			r.Get("/payments", paymentlist.New(logger, billingService).ServeHTTP)
			r.Get("/invoices", invoicelist.New(logger, billingService).ServeHTTP)
			r.Post("/tickets", ticketcreate.New(logger, ticketService).ServeHTTP)
			r.Get("/tickets", ticketlist.New(logger, ticketService).ServeHTTP)
		})

		// Provider webhook, gated by signature instead of a session
		r.Post("/webhooks/stripe", stripewebhook.New(logger, verifier, reconcilerService).ServeHTTP)
	})

	r.Get("/health", health.New(logger, storage).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
