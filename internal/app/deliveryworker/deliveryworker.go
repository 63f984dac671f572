// Package deliveryworker предоставляет запуск воркера доставки сообщений.
package deliveryworker

import (
	"context"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/unsaidapp/unsaid-backend/internal/cache"
	"github.com/unsaidapp/unsaid-backend/internal/config"
	librabbitmq "github.com/unsaidapp/unsaid-backend/internal/lib/rabbitmq"
	"github.com/unsaidapp/unsaid-backend/internal/lib/smtp"
	"github.com/unsaidapp/unsaid-backend/internal/lib/whatsapp"
	"github.com/unsaidapp/unsaid-backend/internal/rabbitmq"
	deliveryservice "github.com/unsaidapp/unsaid-backend/internal/services/delivery"
	"github.com/unsaidapp/unsaid-backend/internal/storage/repository"
)

// App воркер доставки: читает задачи из очередей и отправляет сообщения.
type App struct {
	conn            *amqp.Connection
	ch              *amqp.Channel
	deliveryService *deliveryservice.Service
	logger          *slog.Logger
}

// New собирает воркер: хранилище, кеш, брокер и транспорты доставки.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.DeliveryQueues())
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	publisher := librabbitmq.NewPublisher(ch, rabbitmq.Exchange)

	transport := smtp.NewTransport(cfg.SMTP, logger)
	whatsappClient := whatsapp.NewClient(cfg.WhatsApp)

	deliveryService := deliveryservice.New(db, transport, whatsappClient,
		publisher, cacheRedis, cfg.Delivery, logger)

	return &App{
		conn:            conn,
		ch:              ch,
		deliveryService: deliveryService,
		logger:          logger,
	}, nil
}

// Run подписывается на очереди доставки и работает до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.QueueEmail, a.deliveryService.HandleDeliveryTask)
	if err != nil {
		a.logger.Error("failed to start email queue consumer", slog.Any("err", err))
		return err
	}

	err = rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.QueueWhatsapp, a.deliveryService.HandleDeliveryTask)
	if err != nil {
		a.logger.Error("failed to start whatsapp queue consumer", slog.Any("err", err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("delivery worker shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}

	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}

	return nil
}
