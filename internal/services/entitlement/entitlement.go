// Package entitlement решает, может ли пользователь создать объявление
// в рамках квот своего тарифа, и ведёт учёт израсходованных квот.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/inspectra/internal/models"
)

// Причины отказа, которые показываются пользователю.
const (
	ReasonNoSubscription = "No active subscription."
	ReasonListingLimit   = "Listing limit reached. Upgrade your plan."
	ReasonFeaturedLimit  = "Featured Listing limit reached. Upgrade your plan."
)

// Repository определяет методы хранилища, нужные движку прав.
type Repository interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	GetPlan(ctx context.Context, planID string) (*models.Plan, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*models.Subscription, error)
	FindActiveSubscription(ctx context.Context, userUID string, now time.Time) (*models.Subscription, error)
	FindLifetimeSubscription(ctx context.Context, userUID string) (*models.Subscription, error)
	IncrementUsage(ctx context.Context, subscriptionID string, action models.ActionType) (*models.Subscription, error)
	DecrementUsage(ctx context.Context, subscriptionID string, action models.ActionType) (*models.Subscription, error)
}

// Decision — результат проверки права.
// ChargeTo заполнен, если действие разрешено не администратору.
type Decision struct {
	Allowed  bool                 `json:"allowed"`
	ChargeTo *models.Subscription `json:"chargeTo,omitempty"`
	Reason   string               `json:"reason,omitempty"`
}

// Service реализует движок прав.
type Service struct {
	repo Repository
	log  *slog.Logger
	now  func() time.Time
}

// NewService создает новый экземпляр Service.
func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log, now: time.Now}
}

// CanPerform проверяет, может ли пользователь выполнить действие action.
// Функция только читает данные: квота списывается вызовом Charge после
// успешной записи объявления.
func (s *Service) CanPerform(ctx context.Context, userUID string, action models.ActionType) (*Decision, error) {
	const op = "entitlement.CanPerform"
	log := s.log.With(slog.String("op", op), slog.String("user_uid", userUID), slog.String("action", string(action)))

	if _, err := models.ParseAction(string(action)); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user.Role == models.RoleAdmin {
		return &Decision{Allowed: true}, nil
	}

	sub, err := s.currentSubscription(ctx, userUID)
	if errors.Is(err, models.ErrNotFound) {
		log.Debug("denied: no active subscription")
		return &Decision{Reason: ReasonNoSubscription}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if sub.HasLifeTimeAccess {
		return &Decision{Allowed: true, ChargeTo: sub}, nil
	}

	plan, err := s.repo.GetPlan(ctx, sub.PlanID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if reason := quotaExceeded(plan.Features, sub.Usage, action); reason != "" {
		log.Debug("denied by quota", slog.String("reason", reason))
		return &Decision{Reason: reason}, nil
	}
	return &Decision{Allowed: true, ChargeTo: sub}, nil
}

// Charge списывает квоту с подписки subscriptionID после успешной записи объявления.
func (s *Service) Charge(ctx context.Context, userUID, subscriptionID string, action models.ActionType) (*models.Subscription, error) {
	const op = "entitlement.Charge"
	if _, err := models.ParseAction(string(action)); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sub, err := s.repo.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if sub.UserUID != userUID {
		return nil, fmt.Errorf("%s: %w: subscription belongs to another user", op, models.ErrForbidden)
	}
	sub, err = s.repo.IncrementUsage(ctx, subscriptionID, action)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("usage charged",
		slog.String("op", op),
		slog.String("subscription_id", sub.ID),
		slog.Int("listings_used", sub.Usage.ListingsUsed),
		slog.Int("featured_listing_used", sub.Usage.FeaturedListingUsed),
	)
	return sub, nil
}

// Release возвращает квоту текущей подписки пользователя после удаления объявления.
func (s *Service) Release(ctx context.Context, userUID string, action models.ActionType) (*models.Subscription, error) {
	const op = "entitlement.Release"
	if _, err := models.ParseAction(string(action)); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sub, err := s.currentSubscription(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sub, err = s.repo.DecrementUsage(ctx, sub.ID, action)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// currentSubscription возвращает действующую подписку, а при её отсутствии
// оплаченную бессрочную. Бессрочный доступ не зависит от даты окончания,
// пока запись не замещена другой активацией.
func (s *Service) currentSubscription(ctx context.Context, userUID string) (*models.Subscription, error) {
	sub, err := s.repo.FindActiveSubscription(ctx, userUID, s.now())
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	return s.repo.FindLifetimeSubscription(ctx, userUID)
}

func quotaExceeded(f models.PlanFeatures, u models.Usage, action models.ActionType) string {
	if action == models.ActionFeatured && u.FeaturedListingUsed >= f.FeaturedListings {
		return ReasonFeaturedLimit
	}
	if u.ListingsUsed >= f.MaxListings {
		return ReasonListingLimit
	}
	return ""
}
