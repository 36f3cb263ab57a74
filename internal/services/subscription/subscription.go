// Package subscription содержит бизнес-логику журнала подписок:
// оплату и продление через платёжный шлюз, активацию, отмену,
// пробный период и каталог тарифов с кешированием.
package subscription

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/magabrotheeeer/inspectra/internal/lib/period"
	"github.com/magabrotheeeer/inspectra/internal/lib/sl"
	"github.com/magabrotheeeer/inspectra/internal/models"
	"github.com/magabrotheeeer/inspectra/internal/paymentprovider"
)

const (
	plansCacheKey       = "plans:all"
	maxActivateAttempts = 5
	paymentOptions      = "card,banktransfer,ussd,account"
	txRefSubscribe      = "INSPECTRA_SUBS_"
	txRefRenew          = "INSPECTRA_RENEW_"
	defaultPageLimit    = 10
	maxPageLimit        = 100
	maxTrialDays        = 90
)

// Исходы обработки вебхука.
const (
	WebhookIgnored  = "Ignored event"
	WebhookSkipped  = "User or Plan not found - webhook received"
	WebhookAccepted = "Subscription saved"
)

// Repository определяет методы хранилища, нужные журналу подписок.
type Repository interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetPlan(ctx context.Context, planID string) (*models.Plan, error)
	ListPlans(ctx context.Context) ([]models.Plan, error)
	CreatePlan(ctx context.Context, plan models.Plan) (*models.Plan, error)
	ActivateSubscription(ctx context.Context, a models.Activation) (*models.Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID, userUID string, now time.Time) (*models.Subscription, error)
	CountUserSubscriptions(ctx context.Context, userUID string) (int, error)
	ListUserSubscriptions(ctx context.Context, userUID string) ([]*models.Subscription, error)
	ListAllSubscriptions(ctx context.Context, limit, offset int) ([]*models.Subscription, error)
}

// PaymentProvider описывает платёжный шлюз.
type PaymentProvider interface {
	CreatePaymentLink(ctx context.Context, params paymentprovider.PaymentLinkRequest) (string, error)
	VerifyTransaction(ctx context.Context, transactionID int64) (*paymentprovider.Transaction, error)
	CreatePaymentPlan(ctx context.Context, name string, amount int64, interval string) (*paymentprovider.PaymentPlan, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(ctx context.Context, key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(ctx context.Context, key string) error
}

// Options — настройки платёжных сценариев.
type Options struct {
	ClientURL    string
	Currency     string
	LogoURL      string
	WebhookHash  string
	PlanCacheTTL time.Duration
}

// Service реализует бизнес-логику работы с подписками, включая кеширование каталога.
type Service struct {
	repo     Repository
	provider PaymentProvider
	cache    Cache
	opts     Options
	log      *slog.Logger
	now      func() time.Time
	backoff  time.Duration
}

// NewService создает новый экземпляр Service.
func NewService(repo Repository, provider PaymentProvider, cache Cache, opts Options, log *slog.Logger) *Service {
	opts.ClientURL = strings.TrimRight(opts.ClientURL, "/")
	return &Service{
		repo:     repo,
		provider: provider,
		cache:    cache,
		opts:     opts,
		log:      log,
		now:      time.Now,
		backoff:  50 * time.Millisecond,
	}
}

// Initiate создаёт ссылку оплаты подписки на тариф req.PlanID.
func (s *Service) Initiate(ctx context.Context, req models.DummyInitiate) (string, error) {
	const op = "subscription.Initiate"
	plan, err := s.repo.GetPlan(ctx, req.PlanID)
	if err != nil {
		return "", fmt.Errorf("%s: plan: %w", op, err)
	}

	link, err := s.provider.CreatePaymentLink(ctx, s.paymentLink(plan, txRefSubscribe,
		paymentprovider.Customer{Email: req.Email, Name: req.Fullname},
		fmt.Sprintf("Inspectra %s Plan Subscription", plan.Name),
		fmt.Sprintf("%s subscription to Inspectra", plan.Interval),
	))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("payment link created", slog.String("op", op), slog.String("plan", plan.Name))
	return link, nil
}

// Renew создаёт ссылку оплаты продления для пользователя userUID.
// Текущая подписка не трогается: её истечёт активация после оплаты.
func (s *Service) Renew(ctx context.Context, userUID, planID string) (string, error) {
	const op = "subscription.Renew"
	plan, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return "", fmt.Errorf("%s: plan: %w", op, err)
	}
	user, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		return "", fmt.Errorf("%s: user: %w", op, err)
	}

	link, err := s.provider.CreatePaymentLink(ctx, s.paymentLink(plan, txRefRenew,
		paymentprovider.Customer{Email: user.Email, Name: user.Fullname},
		fmt.Sprintf("Inspectra %s Plan Renewal", plan.Name),
		fmt.Sprintf("%s renewal for Inspectra", plan.Interval),
	))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("renewal link created", slog.String("op", op), slog.String("user_uid", userUID), slog.String("plan", plan.Name))
	return link, nil
}

func (s *Service) paymentLink(plan *models.Plan, prefix string, customer paymentprovider.Customer, title, description string) paymentprovider.PaymentLinkRequest {
	return paymentprovider.PaymentLinkRequest{
		TxRef:          prefix + strconv.FormatInt(s.now().UnixMilli(), 10),
		Amount:         plan.Amount,
		Currency:       s.opts.Currency,
		PaymentOptions: paymentOptions,
		RedirectURL:    s.opts.ClientURL + "/app/subscription-history",
		PaymentPlan:    plan.ProviderPlanID,
		Customer:       customer,
		Customizations: paymentprovider.Customizations{
			Title:       title,
			Description: description,
			Logo:        s.opts.LogoURL,
		},
		Meta: paymentprovider.Meta{
			Type:      paymentprovider.MetaTypeSubscription,
			PlanID:    plan.ID,
			UserEmail: customer.Email,
		},
	}
}

// Verify подтверждает оплату после возврата пользователя со страницы шлюза
// и активирует подписку.
func (s *Service) Verify(ctx context.Context, status, transactionID, txRef string) (*models.Subscription, error) {
	const op = "subscription.Verify"
	if status != paymentprovider.StatusSuccessful {
		return nil, fmt.Errorf("%s: %w", op, models.ErrPaymentNotSuccessful)
	}
	id, err := strconv.ParseInt(transactionID, 10, 64)
	if err != nil || txRef == "" {
		return nil, fmt.Errorf("%s: %w: transaction id and reference are required", op, models.ErrValidation)
	}

	tx, err := s.provider.VerifyTransaction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if tx.Status != paymentprovider.StatusSuccessful {
		return nil, fmt.Errorf("%s: %w: provider status %q", op, models.ErrPaymentNotSuccessful, tx.Status)
	}
	if tx.TxRef != txRef {
		return nil, fmt.Errorf("%s: %w: reference mismatch", op, models.ErrValidation)
	}

	var meta paymentprovider.Meta
	if tx.Meta != nil {
		meta = *tx.Meta
	}
	plan, err := s.repo.GetPlan(ctx, meta.PlanID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w: invalid plan in metadata", op, models.ErrValidation)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user, err := s.repo.GetUserByEmail(ctx, payerEmail(meta, tx))
	if err != nil {
		return nil, fmt.Errorf("%s: user: %w", op, err)
	}

	sub, err := s.activate(ctx, user, plan, tx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// VerifyWebhookSignature сравнивает заголовок verif-hash с настроенным
// секретом за время, не зависящее от совпавшего префикса.
func (s *Service) VerifyWebhookSignature(signature string) bool {
	if s.opts.WebhookHash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(signature), []byte(s.opts.WebhookHash)) == 1
}

// HandleWebhook обрабатывает событие шлюза. Неизвестные тариф или
// пользователь подтверждаются без изменений, чтобы шлюз не повторял доставку.
func (s *Service) HandleWebhook(ctx context.Context, event paymentprovider.WebhookEvent) (string, error) {
	const op = "subscription.HandleWebhook"
	log := s.log.With(slog.String("op", op), slog.String("tx_ref", event.Data.TxRef))

	meta := event.EffectiveMeta()
	if event.Event != paymentprovider.EventChargeCompleted ||
		event.Data.Status != paymentprovider.StatusSuccessful ||
		meta.Type != paymentprovider.MetaTypeSubscription {
		log.Debug("webhook ignored", slog.String("event", event.Event), slog.String("status", event.Data.Status))
		return WebhookIgnored, nil
	}

	plan, err := s.repo.GetPlan(ctx, meta.PlanID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	var user *models.User
	if plan != nil {
		user, err = s.repo.GetUserByEmail(ctx, payerEmail(meta, &event.Data))
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return "", fmt.Errorf("%s: %w", op, err)
		}
	}
	if plan == nil || user == nil {
		log.Warn("webhook for unknown plan or user", slog.String("plan_id", meta.PlanID))
		return WebhookSkipped, nil
	}

	if _, err := s.activate(ctx, user, plan, &event.Data); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return WebhookAccepted, nil
}

func payerEmail(meta paymentprovider.Meta, tx *paymentprovider.Transaction) string {
	if meta.UserEmail != "" {
		return meta.UserEmail
	}
	return tx.Customer.Email
}

func (s *Service) activate(ctx context.Context, user *models.User, plan *models.Plan, tx *paymentprovider.Transaction) (*models.Subscription, error) {
	start := s.now()
	end, err := period.End(start, plan.Interval)
	if err != nil {
		return nil, err
	}
	return s.Activate(ctx, models.Activation{
		UserUID:      user.UID,
		UserEmail:    user.Email,
		Plan:         plan,
		Amount:       int64(math.Round(tx.Amount)),
		PaymentType:  tx.PaymentType,
		TxRef:        tx.TxRef,
		ProviderTxID: tx.ID,
		StartDate:    start,
		EndDate:      end,
	})
}

// Activate активирует подписку, повторяя попытку при конфликте конкурентной записи.
func (s *Service) Activate(ctx context.Context, a models.Activation) (*models.Subscription, error) {
	const op = "subscription.Activate"
	log := s.log.With(slog.String("op", op), slog.String("user_uid", a.UserUID))

	var lastErr error
	for attempt := 1; attempt <= maxActivateAttempts; attempt++ {
		sub, err := s.repo.ActivateSubscription(ctx, a)
		if err == nil {
			log.Info("subscription activated",
				slog.String("subscription_id", sub.ID),
				slog.String("plan", sub.PlanName),
				slog.Time("end_date", sub.EndDate),
			)
			return sub, nil
		}
		if !errors.Is(err, models.ErrConflict) || errors.Is(err, models.ErrTrialUnavailable) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		lastErr = err
		log.Warn("activation conflict, retrying", slog.Int("attempt", attempt), sl.Err(err))

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(time.Duration(attempt) * s.backoff):
		}
	}
	return nil, fmt.Errorf("%s: gave up after %d attempts: %w", op, maxActivateAttempts, lastErr)
}

// StartTrial активирует бесплатный пробный период на days суток.
// Доступен только пользователю, у которого ещё не было подписок; окончательно
// это проверяется в транзакции активации.
func (s *Service) StartTrial(ctx context.Context, userUID, planID string, days int) (*models.Subscription, error) {
	const op = "subscription.StartTrial"
	if days <= 0 || days > maxTrialDays {
		return nil, fmt.Errorf("%s: %w: trial length must be between 1 and %d days", op, models.ErrValidation, maxTrialDays)
	}
	n, err := s.repo.CountUserSubscriptions(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if n > 0 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrTrialUnavailable)
	}
	user, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: user: %w", op, err)
	}
	plan, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("%s: plan: %w", op, err)
	}

	start := s.now()
	return s.Activate(ctx, models.Activation{
		UserUID:     user.UID,
		UserEmail:   user.Email,
		Plan:        plan,
		PaymentType: "trial",
		StartDate:   start,
		EndDate:     period.Days(start, days),
		TrialOnly:   true,
	})
}

// Cancel отменяет подписку владельца.
func (s *Service) Cancel(ctx context.Context, userUID, subscriptionID string) (*models.Subscription, error) {
	const op = "subscription.Cancel"
	sub, err := s.repo.CancelSubscription(ctx, subscriptionID, userUID, s.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("subscription cancelled", slog.String("op", op), slog.String("subscription_id", sub.ID))
	return sub, nil
}

// History возвращает историю подписок пользователя.
func (s *Service) History(ctx context.Context, userUID string) ([]*models.Subscription, error) {
	const op = "subscription.History"
	subs, err := s.repo.ListUserSubscriptions(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return subs, nil
}

// ListAll возвращает страницу всех подписок. limit ограничен сверху.
func (s *Service) ListAll(ctx context.Context, limit, offset int) ([]*models.Subscription, error) {
	const op = "subscription.ListAll"
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	subs, err := s.repo.ListAllSubscriptions(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return subs, nil
}

// ListPlans возвращает каталог тарифов, используя кеш или репозиторий.
func (s *Service) ListPlans(ctx context.Context) ([]models.Plan, error) {
	const op = "subscription.ListPlans"
	var plans []models.Plan
	found, err := s.cache.Get(ctx, plansCacheKey, &plans)
	if err != nil {
		s.log.Warn("failed to read plans from cache", slog.String("op", op), sl.Err(err))
	}
	if found {
		return plans, nil
	}

	plans, err = s.repo.ListPlans(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Set(ctx, plansCacheKey, plans, s.opts.PlanCacheTTL); err != nil {
		s.log.Warn("failed to cache plans", slog.String("op", op), sl.Err(err))
	}
	return plans, nil
}

// CreatePlan добавляет тариф в каталог. Платный тариф сначала
// регистрируется в шлюзе как платёжный план.
func (s *Service) CreatePlan(ctx context.Context, req models.DummyPlan) (*models.Plan, error) {
	const op = "subscription.CreatePlan"
	plan := models.Plan{
		Name:     req.Name,
		Interval: req.Interval,
		Amount:   req.Amount,
		Features: req.Features,
	}
	if req.Amount > 0 {
		pp, err := s.provider.CreatePaymentPlan(ctx, req.Name, req.Amount, string(req.Interval))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		plan.ProviderPlanID = pp.ID
		plan.ProviderPlanToken = pp.Token
	}

	created, err := s.repo.CreatePlan(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Invalidate(ctx, plansCacheKey); err != nil {
		s.log.Warn("failed to invalidate plans cache", slog.String("op", op), sl.Err(err))
	}
	s.log.Info("plan created", slog.String("op", op), slog.String("plan_id", created.ID), slog.String("name", created.Name))
	return created, nil
}
