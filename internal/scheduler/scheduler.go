// Package scheduler запускает периодические задачи по cron-расписанию.
// Сами задачи ничего не знают о расписании и тестируются отдельно.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/magabrotheeeer/inspectra/internal/lib/sl"
)

// Task — одна итерация периодической задачи.
type Task func(ctx context.Context) error

// Scheduler оборачивает cron.Cron: задачи не перекрываются,
// каждая получает собственный таймаут, паника задачи не роняет процесс.
type Scheduler struct {
	cron   *cron.Cron
	log    *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	tasks  map[string]cron.EntryID
}

// New создаёт планировщик. Расписания задаются в стандартном 5-польном формате.
func New(log *slog.Logger) *Scheduler {
	log = log.With(slog.String("component", "scheduler"))
	cl := cronLogger{log: log}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(map[string]cron.EntryID),
	}
}

// Add регистрирует задачу name по расписанию spec.
func (s *Scheduler) Add(name, spec string, timeout time.Duration, task Task) error {
	const op = "scheduler.Add"

	if _, ok := s.tasks[name]; ok {
		return fmt.Errorf("%s: task %q already registered", op, name)
	}
	id, err := s.cron.AddFunc(spec, s.job(name, timeout, task))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.tasks[name] = id
	s.log.Info("task registered", slog.String("task", name), slog.String("spec", spec))
	return nil
}

// RunNow синхронно выполняет зарегистрированную задачу вне расписания.
func (s *Scheduler) RunNow(name string) error {
	const op = "scheduler.RunNow"

	id, ok := s.tasks[name]
	if !ok {
		return fmt.Errorf("%s: unknown task %q", op, name)
	}
	s.cron.Entry(id).WrappedJob.Run()
	return nil
}

// Next возвращает время следующего запуска задачи.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	id, ok := s.tasks[name]
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

// Start запускает планировщик в фоне.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop останавливает расписание и ждёт завершения выполняющихся задач,
// но не дольше, чем живёт ctx. После этого контекст задач отменяется.
func (s *Scheduler) Stop(ctx context.Context) error {
	defer s.cancel()
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) job(name string, timeout time.Duration, task Task) func() {
	return func() {
		log := s.log.With(slog.String("task", name))
		ctx := s.ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		started := time.Now()
		log.Info("task started")
		if err := task(ctx); err != nil {
			log.Error("task failed", sl.Err(err), slog.Duration("elapsed", time.Since(started)))
			return
		}
		log.Info("task finished", slog.Duration("elapsed", time.Since(started)))
	}
}

// cronLogger направляет журнал cron в slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, sl.Err(err))...)
}
