// Package scheduler собирает процесс периодических задач: ежедневную
// сверку журнала подписок.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/inspectra/internal/config"
	"github.com/magabrotheeeer/inspectra/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/inspectra/internal/lib/sl"
	"github.com/magabrotheeeer/inspectra/internal/scheduler"
	"github.com/magabrotheeeer/inspectra/internal/services/notifier"
	"github.com/magabrotheeeer/inspectra/internal/services/sweeper"
	"github.com/magabrotheeeer/inspectra/internal/storage/repository"
)

// TaskSweep — имя задачи сверки подписок.
const TaskSweep = "subscription-sweep"

// App представляет приложение планировщика.
type App struct {
	scheduler  *scheduler.Scheduler
	runOnStart bool
	db         *repository.Storage
	conn       *amqp.Connection
	ch         *amqp.Channel
	logger     *slog.Logger
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

// New создает новый экземпляр приложения планировщика.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.NotificationQueues())
	if err != nil {
		closeResources(nil, conn, nil, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	db, err := repository.New(cfg.StorageConnectionString, cfg.DefaultPlan)
	if err != nil {
		closeResources(ch, conn, nil, logger)
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	if err := waitForDB(ctx, db); err != nil {
		closeResources(ch, conn, db, logger)
		return nil, err
	}

	sw := sweeper.New(db, notifier.New(ch, logger), logger)

	s := scheduler.New(logger)
	err = s.Add(TaskSweep, cfg.SweepSpec, cfg.SweepTimeout, func(ctx context.Context) error {
		res, err := sw.Sweep(ctx, time.Now())
		if err != nil {
			return err
		}
		logger.Info("sweep completed",
			slog.Int("expired", res.Expired),
			slog.Int("downgraded", res.Downgraded),
			slog.Int("drifted", res.Drifted),
		)
		return nil
	})
	if err != nil {
		closeResources(ch, conn, db, logger)
		return nil, err
	}

	return &App{
		scheduler:  s,
		runOnStart: cfg.RunOnStart,
		db:         db,
		conn:       conn,
		ch:         ch,
		logger:     logger,
	}, nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, db *repository.Storage, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if db != nil {
		if err := db.Close(); err != nil {
			logger.Error("failed to close storage", sl.Err(err))
		}
	}
}

// Run запускает планировщик и ждёт отмены ctx.
func (a *App) Run(ctx context.Context) error {
	if a.runOnStart {
		if err := a.scheduler.RunNow(TaskSweep); err != nil {
			a.logger.Error("failed to run sweep on start", sl.Err(err))
		}
	}

	a.scheduler.Start()
	if next, ok := a.scheduler.Next(TaskSweep); ok {
		a.logger.Info("scheduler started", slog.Time("next_sweep", next))
	}

	<-ctx.Done()

	a.logger.Info("shutting down scheduler service")
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.scheduler.Stop(stopCtx); err != nil {
		a.logger.Error("running tasks did not finish", sl.Err(err))
	}

	closeResources(a.ch, a.conn, a.db, a.logger)
	return nil
}
