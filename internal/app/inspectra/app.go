package inspectra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/inspectra/internal/cache"
	"github.com/magabrotheeeer/inspectra/internal/config"
	"github.com/magabrotheeeer/inspectra/internal/http/middlewarectx"
	"github.com/magabrotheeeer/inspectra/internal/lib/jwt"
	"github.com/magabrotheeeer/inspectra/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/inspectra/internal/lib/sl"
	"github.com/magabrotheeeer/inspectra/internal/migrations"
	"github.com/magabrotheeeer/inspectra/internal/paymentprovider"
	"github.com/magabrotheeeer/inspectra/internal/realtime"
	chatservice "github.com/magabrotheeeer/inspectra/internal/services/chat"
	entitlementservice "github.com/magabrotheeeer/inspectra/internal/services/entitlement"
	"github.com/magabrotheeeer/inspectra/internal/services/notifier"
	subservice "github.com/magabrotheeeer/inspectra/internal/services/subscription"
	"github.com/magabrotheeeer/inspectra/internal/storage/repository"
)

const shutdownTimeout = 15 * time.Second

// App представляет API-процесс.
type App struct {
	server *http.Server
	hub    *realtime.Hub
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
	ch     *amqp.Channel
}

func waitForDB(ctx context.Context, db *repository.Storage) error {
	var err error
	for range 10 {
		if err = repository.CheckDatabaseReady(ctx, db); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
	return fmt.Errorf("database not ready after retries: %w", err)
}

// New создает новый экземпляр API-процесса и связывает зависимости.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{logger: logger}

	db, err := repository.New(cfg.StorageConnectionString, cfg.DefaultPlan)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	a.db = db

	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		a.closeResources()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	if err = waitForDB(ctx, db); err != nil {
		a.closeResources()
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}
	a.cache = cacheRedis

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	a.conn = conn

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.NotificationQueues())
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}
	a.ch = ch

	tokens := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL, cfg.GuestTokenTTL)
	provider := paymentprovider.NewClient(cfg.PaymentBaseURL, cfg.PaymentSecretKey, cfg.PaymentTimeout)
	publisher := notifier.New(ch, logger)

	chatService := chatservice.NewService(db, publisher, tokens, cfg.ClientURL, logger)
	subscriptionService := subservice.NewService(db, provider, cacheRedis, subservice.Options{
		ClientURL:    cfg.ClientURL,
		Currency:     cfg.Currency,
		LogoURL:      cfg.LogoURL,
		WebhookHash:  cfg.WebhookHash,
		PlanCacheTTL: cfg.PlanCacheTTL,
	}, logger)
	entitlementService := entitlementservice.NewService(db, logger)

	a.hub = realtime.NewHub(chatService, cfg.Chat, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, Deps{
		Logger:       logger,
		Tokens:       tokens,
		Limiter:      middlewarectx.NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst),
		Chat:         chatService,
		Subscription: subscriptionService,
		Entitlement:  entitlementService,
		Hub:          a.hub,
	})

	a.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return a, nil
}

// Run запускает HTTP-сервер и останавливает его по отмене ctx.
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
		a.hub.Close()
		a.closeResources()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		// Hijacked websocket-соединения Shutdown не ждёт, их закрывает шлюз.
		a.hub.Close()
		err := a.server.Shutdown(timeoutCtx)
		a.closeResources()
		return err
	}
}

func (a *App) closeResources() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close cache", sl.Err(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close storage", sl.Err(err))
		}
	}
}
