// Package sweeper приводит журнал подписок в соответствие со временем:
// истекает просроченные подписки и откатывает снимки тарифов пользователей.
// Логика не зависит от планировщика и вызывается им по расписанию.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/magabrotheeeer/inspectra/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/inspectra/internal/lib/sl"
	"github.com/magabrotheeeer/inspectra/internal/models"
)

var (
	expiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "inspectra",
		Subsystem: "sweeper",
		Name:      "subscriptions_expired_total",
		Help:      "Users whose overdue subscriptions were expired.",
	})
	downgradedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "inspectra",
		Subsystem: "sweeper",
		Name:      "users_downgraded_total",
		Help:      "Users downgraded to the default plan, by pass.",
	}, []string{"pass"})
)

// Repository определяет методы хранилища, нужные сверке.
type Repository interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	ExpireOverdue(ctx context.Context, now time.Time) ([]string, error)
	SyncUserSnapshot(ctx context.Context, userUID string) (bool, error)
	DowngradeDriftedUsers(ctx context.Context, now time.Time) ([]string, error)
}

// Notifier отправляет письмо по ключу шаблона.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// Result — итог одного прохода сверки.
type Result struct {
	Expired    int
	Downgraded int
	Drifted    int
}

// Sweeper выполняет сверку подписок.
type Sweeper struct {
	repo     Repository
	notifier Notifier
	log      *slog.Logger
}

// New создает новый экземпляр Sweeper.
func New(repo Repository, notifier Notifier, log *slog.Logger) *Sweeper {
	return &Sweeper{repo: repo, notifier: notifier, log: log}
}

// Sweep выполняет оба прохода на момент now. Повторный вызов с тем же now
// ничего не меняет и писем не отправляет.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (Result, error) {
	const op = "sweeper.Sweep"
	log := s.log.With(slog.String("op", op))

	var res Result
	uids, err := s.repo.ExpireOverdue(ctx, now)
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}
	res.Expired = len(uids)
	expiredTotal.Add(float64(res.Expired))
	syncErr := s.downgradeExpired(ctx, uids, &res)

	drifted, err := s.repo.DowngradeDriftedUsers(ctx, now)
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, errors.Join(syncErr, err))
	}
	res.Drifted = len(drifted)
	downgradedTotal.WithLabelValues("drift").Add(float64(res.Drifted))

	log.Info("sweep finished",
		slog.Int("expired_users", res.Expired),
		slog.Int("downgraded", res.Downgraded),
		slog.Int("drift_fixed", res.Drifted),
	)
	if syncErr != nil {
		return res, fmt.Errorf("%s: %w", op, syncErr)
	}
	return res, nil
}

// downgradeExpired пересчитывает снимки пользователей, чьи подписки истекли,
// и уведомляет тех, кто остался без активной подписки. Ошибка по одному
// пользователю не прерывает проход.
func (s *Sweeper) downgradeExpired(ctx context.Context, uids []string, res *Result) error {
	var errs []error
	for _, uid := range uids {
		downgraded, err := s.repo.SyncUserSnapshot(ctx, uid)
		if err != nil {
			s.log.Error("failed to sync plan snapshot", slog.String("user_uid", uid), sl.Err(err))
			errs = append(errs, err)
			continue
		}
		if !downgraded {
			continue
		}
		res.Downgraded++
		downgradedTotal.WithLabelValues("expiry").Inc()
		s.notifyExpired(ctx, uid)
	}
	return errors.Join(errs...)
}

func (s *Sweeper) notifyExpired(ctx context.Context, uid string) {
	log := s.log.With(slog.String("user_uid", uid))
	user, err := s.repo.GetUser(ctx, uid)
	if err != nil {
		log.Warn("cannot notify downgraded user", sl.Err(err))
		return
	}
	err = s.notifier.Notify(ctx, models.Notification{
		Template: rabbitmq.TemplateSubExpired,
		To:       user.Email,
		Name:     user.Fullname,
		Data:     map[string]string{"plan": user.Plan},
	})
	if err != nil {
		log.Warn("failed to send expiry notification", sl.Err(err))
	}
}
