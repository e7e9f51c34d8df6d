// Package portal assembles and runs the customer portal HTTP server.
package portal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/synergyhq/billing-portal/internal/cache"
	"github.com/synergyhq/billing-portal/internal/config"
	"github.com/synergyhq/billing-portal/internal/gateway/stripegw"
	"github.com/synergyhq/billing-portal/internal/lib/rabbitmq"
	"github.com/synergyhq/billing-portal/internal/lib/token"
	"github.com/synergyhq/billing-portal/internal/migrations"
	authservice "github.com/synergyhq/billing-portal/internal/services/auth"
	billingservice "github.com/synergyhq/billing-portal/internal/services/billing"
	reconcilerservice "github.com/synergyhq/billing-portal/internal/services/reconciler"
	ticketservice "github.com/synergyhq/billing-portal/internal/services/ticket"
	"github.com/synergyhq/billing-portal/internal/storage/repository"
)

// App owns the server and the connections it was built on.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	rabbit *amqp.Connection
}

// queuePublisher adapts the broker channel to the services' Publisher
// contract.
type queuePublisher struct {
	ch *amqp.Channel
}

func (p *queuePublisher) Publish(routingKey string, message any) error {
	return rabbitmq.PublishMessage(p.ch, rabbitmq.Exchange, routingKey, message)
}

// New wires the storage, cache, broker and payment gateway into the HTTP
// server. Migrations run before the server is returned.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, "./migrations"); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	rabbitConn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}
	rabbitChannel, err := rabbitmq.SetupChannel(rabbitConn, rabbitmq.GetNotificationQueues())
	if err != nil {
		return nil, err
	}
	publisher := &queuePublisher{ch: rabbitChannel}

	gateway := stripegw.NewClient(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)
	tokenMaker := token.NewMaker(cfg.Session.SecretKey, cfg.Session.SessionTTL)

	authService := authservice.New(db, gateway, publisher, tokenMaker, logger,
		cfg.Session.SessionTTL, cfg.Session.ResetTokenTTL, cfg.BaseURL)
	billingService := billingservice.New(db, gateway, cacheRedis, logger)
	reconcilerService := reconcilerservice.New(db, publisher, logger)
	ticketService := ticketservice.New(db, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, db, authService, billingService,
		ticketService, gateway, reconcilerService)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		rabbit: rabbitConn,
	}, nil
}

// Run serves until the context is canceled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		_ = a.db.DB.Close()
		_ = a.rabbit.Close()
		return err
	}
}
