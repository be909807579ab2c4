// Package sender собирает приложение почтовых уведомлений: подключение
// к брокеру и потребитель очереди биллинговых событий.
package sender

import (
	"context"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/identity-guard/internal/config"
	"github.com/magabrotheeeer/identity-guard/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/identity-guard/internal/lib/smtp"
	senderservice "github.com/magabrotheeeer/identity-guard/internal/services/sender"
)

// App хранит зависимости сервиса уведомлений.
type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.Service
	logger        *slog.Logger
}

// New подключается к брокеру, объявляет очереди и собирает сервис отправки.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetBillingQueues())
	if err != nil {
		conn.Close()
		return nil, err
	}

	transport := smtp.NewTransport(cfg, logger)
	senderService := senderservice.New(transport, logger)

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderService,
		logger:        logger,
	}, nil
}

// Run запускает потребителя очереди уведомлений и блокируется до отмены
// контекста.
func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumeQueue(ctx, a.ch, rabbitmq.BillingNoticesQueue, a.logger, a.senderService.SendBillingNotice)
	if err != nil {
		a.logger.Error("failed to start billing notices consumer", slog.Any("err", err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("sender service shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}

	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}

	return nil
}
