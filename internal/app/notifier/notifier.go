// Package notifier assembles and runs the email notification worker. It
// consumes queued notification messages and delivers them over SMTP.
package notifier

import (
	"context"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/synergyhq/billing-portal/internal/config"
	"github.com/synergyhq/billing-portal/internal/lib/rabbitmq"
	"github.com/synergyhq/billing-portal/internal/lib/smtp"
	senderservice "github.com/synergyhq/billing-portal/internal/services/sender"
)

type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.SenderService
	logger        *slog.Logger
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	transport := smtp.NewTransport(cfg, logger)
	senderService := senderservice.NewSenderService(logger, transport)

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderService,
		logger:        logger,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.ch, "notification.password-reset", a.senderService.SendPasswordReset)
	if err != nil {
		a.logger.Error("failed to start password-reset consumer", slog.Any("err", err))
		return err
	}

	err = rabbitmq.ConsumerMessage(ctx, a.ch, "notification.payment-failed", a.senderService.SendPaymentFailed)
	if err != nil {
		a.logger.Error("failed to start payment-failed consumer", slog.Any("err", err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("notifier shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}

	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}

	return nil
}
