// Package identityguard собирает основное приложение: хранилище, кеш,
// брокер сообщений, сервисы и HTTP-сервер.
package identityguard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/identity-guard/internal/cache"
	"github.com/magabrotheeeer/identity-guard/internal/config"
	"github.com/magabrotheeeer/identity-guard/internal/lib/fieldcrypt"
	"github.com/magabrotheeeer/identity-guard/internal/lib/jwt"
	"github.com/magabrotheeeer/identity-guard/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/identity-guard/internal/metrics"
	"github.com/magabrotheeeer/identity-guard/internal/migrations"
	"github.com/magabrotheeeer/identity-guard/internal/services/contacts"
	"github.com/magabrotheeeer/identity-guard/internal/services/identity"
	"github.com/magabrotheeeer/identity-guard/internal/services/protect"
	"github.com/magabrotheeeer/identity-guard/internal/services/subscription"
	"github.com/magabrotheeeer/identity-guard/internal/storage/repository"
)

// App хранит зависимости приложения и управляет их жизненным циклом.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New собирает приложение из конфигурации: подключает базу, прогоняет
// миграции, поднимает кеш и брокер, связывает сервисы и маршруты.
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
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetBillingQueues())
	if err != nil {
		return nil, err
	}
	notifier := rabbitmq.NewNotifier(ch)

	codec, err := fieldcrypt.New(cfg.EncryptionKey, cfg.BlindIndexKey)
	if err != nil {
		return nil, err
	}
	m := metrics.New()
	vault := protect.NewVault(codec, logger, m, cfg.IntegrityAlarm)

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	subscriptionService := subscription.New(db, notifier, cacheRedis, logger, m, cfg.BillingPeriod)
	identityService := identity.New(db, vault, jwtMaker, subscriptionService, logger, cfg.TrialWindow)
	contactsService := contacts.New(db, vault, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, db, cacheRedis, jwtMaker,
		identityService, subscriptionService, contactsService)

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
		cache:  cacheRedis,
		conn:   conn,
		ch:     ch,
	}, nil
}

// Run запускает HTTP-сервер и блокируется до его остановки или отмены
// контекста. При отмене сервер завершается с таймаутом.
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
		if cerr := a.ch.Close(); cerr != nil {
			a.logger.Error("failed to close rabbitmq channel", slog.String("error", cerr.Error()))
		}
		if cerr := a.conn.Close(); cerr != nil {
			a.logger.Error("failed to close rabbitmq connection", slog.String("error", cerr.Error()))
		}
		if cerr := a.db.DB.Close(); cerr != nil {
			a.logger.Error("failed to close database", slog.String("error", cerr.Error()))
		}
		return err
	}
}
