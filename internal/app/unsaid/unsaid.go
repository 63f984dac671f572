package unsaid

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/unsaidapp/unsaid-backend/internal/cache"
	"github.com/unsaidapp/unsaid-backend/internal/config"
	"github.com/unsaidapp/unsaid-backend/internal/lib/jwt"
	librabbitmq "github.com/unsaidapp/unsaid-backend/internal/lib/rabbitmq"
	"github.com/unsaidapp/unsaid-backend/internal/migrations"
	"github.com/unsaidapp/unsaid-backend/internal/paymentprovider"
	"github.com/unsaidapp/unsaid-backend/internal/rabbitmq"
	confessionservice "github.com/unsaidapp/unsaid-backend/internal/services/confession"
	entitlementservice "github.com/unsaidapp/unsaid-backend/internal/services/entitlement"
	identityservice "github.com/unsaidapp/unsaid-backend/internal/services/identity"
	paymentservice "github.com/unsaidapp/unsaid-backend/internal/services/payment"
	subscriptionservice "github.com/unsaidapp/unsaid-backend/internal/services/subscription"
	"github.com/unsaidapp/unsaid-backend/internal/storage/repository"
)

// App основное приложение: HTTP API приёма сообщений и платежей.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New собирает приложение: хранилище, кеш, брокер, сервисы и маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
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

	maker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	providerClient := paymentprovider.NewClient(cfg.Razorpay)

	ledger := subscriptionservice.New(db, logger)
	entitlement := entitlementservice.New(ledger)
	identity := identityservice.New(db, ledger, maker, logger)
	confession := confessionservice.New(db, entitlement, ledger, publisher,
		cacheRedis, cfg.DeveloperAllowlist, logger)
	payment := paymentservice.New(providerClient, ledger, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, maker, identity, confession, payment, cfg.WebhookSecret)

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
		conn:   conn,
		ch:     ch,
	}, nil
}

// Run запускает HTTP-сервер и завершает его по отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
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
		if closeErr := a.ch.Close(); closeErr != nil {
			a.logger.Error("failed to close channel", slog.Any("err", closeErr))
		}
		if closeErr := a.conn.Close(); closeErr != nil {
			a.logger.Error("failed to close connection", slog.Any("err", closeErr))
		}
		_ = a.db.DB.Close()
		return err
	}
}
