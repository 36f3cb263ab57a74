package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/inspectra/internal/models"
)

const subscriptionColumns = `id, user_uid, user_email, plan_id, plan_name, interval, amount,
	listings_used, featured_listing_used, payment_status, subscription_status, payment_type,
	COALESCE(tx_ref, ''), provider_tx_id, has_lifetime_access, start_date, end_date, created_at`

func scanSubscription(row scanner) (*models.Subscription, error) {
	var s models.Subscription
	if err := row.Scan(&s.ID, &s.UserUID, &s.UserEmail, &s.PlanID, &s.PlanName, &s.Interval, &s.Amount,
		&s.Usage.ListingsUsed, &s.Usage.FeaturedListingUsed, &s.PaymentStatus, &s.SubscriptionStatus,
		&s.PaymentType, &s.TxRef, &s.ProviderTxID, &s.HasLifeTimeAccess, &s.StartDate, &s.EndDate,
		&s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func collectSubscriptions(rows *sql.Rows) ([]*models.Subscription, error) {
	defer func() { _ = rows.Close() }()
	result := make([]*models.Subscription, 0)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, sub)
	}
	return result, rows.Err()
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// ActivateSubscription в одной транзакции истекает все активные подписки
// пользователя, создаёт новую активную и обновляет снимок тарифа.
// Строка пользователя блокируется на время транзакции, поэтому активации
// одного пользователя выполняются по очереди. Повторная активация с уже
// известным tx_ref возвращает существующую запись без изменений.
// С TrialOnly проверка отсутствия прежних подписок выполняется под той же
// блокировкой, поэтому из конкурентных пробных активаций проходит одна.
func (s *Storage) ActivateSubscription(ctx context.Context, a models.Activation) (*models.Subscription, error) {
	const op = "storage.ActivateSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	if a.Plan == nil {
		return nil, fmt.Errorf("%s: %w: plan is required", op, models.ErrValidation)
	}

	var result *models.Subscription
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var email string
		if err := tx.QueryRowContext(ctx, `SELECT email FROM users WHERE uid = $1 FOR UPDATE`, a.UserUID).
			Scan(&email); err != nil {
			return err
		}
		if a.UserEmail == "" {
			a.UserEmail = email
		}

		if a.TxRef != "" {
			existing, err := scanSubscription(tx.QueryRowContext(ctx,
				`SELECT `+subscriptionColumns+` FROM subscriptions WHERE tx_ref = $1`, a.TxRef))
			switch {
			case err == nil:
				result = existing
				return nil
			case !errors.Is(err, sql.ErrNoRows):
				return err
			}
		}

		if a.TrialOnly {
			var n int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscriptions WHERE user_uid = $1`, a.UserUID).
				Scan(&n); err != nil {
				return err
			}
			if n > 0 {
				return models.ErrTrialUnavailable
			}
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE subscriptions SET subscription_status = 'expired'
			WHERE user_uid = $1 AND subscription_status = 'active'`, a.UserUID); err != nil {
			return err
		}

		query := `INSERT INTO subscriptions (user_uid, user_email, plan_id, plan_name, interval, amount,
				      payment_status, subscription_status, payment_type, tx_ref, provider_tx_id,
				      has_lifetime_access, start_date, end_date)
				  VALUES ($1, $2, $3, $4, $5, $6, 'successful', 'active', $7, $8, $9, $10, $11, $12)
				  RETURNING ` + subscriptionColumns
		sub, err := scanSubscription(tx.QueryRowContext(ctx, query,
			a.UserUID, a.UserEmail, a.Plan.ID, a.Plan.Name, a.Plan.Interval, a.Amount,
			a.PaymentType, nullIfEmpty(a.TxRef), a.ProviderTxID, a.Lifetime, a.StartDate, a.EndDate))
		if err != nil {
			return err
		}

		if _, err := s.syncSnapshotTx(ctx, tx, a.UserUID); err != nil {
			return err
		}
		result = sub
		return nil
	})
	if err != nil {
		return nil, wrap(op, err)
	}
	return result, nil
}

// CancelSubscription отменяет активную подписку владельца: статус cancelled,
// дата окончания now. Снимок тарифа пересчитывается в той же транзакции.
func (s *Storage) CancelSubscription(ctx context.Context, subscriptionID, userUID string, now time.Time) (*models.Subscription, error) {
	const op = "storage.CancelSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var result *models.Subscription
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		sub, err := scanSubscription(tx.QueryRowContext(ctx,
			`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1 FOR UPDATE`, subscriptionID))
		if err != nil {
			return err
		}
		if sub.UserUID != userUID {
			return models.ErrForbidden
		}
		if sub.SubscriptionStatus != models.SubscriptionActive {
			return fmt.Errorf("%w: subscription is %s", models.ErrValidation, sub.SubscriptionStatus)
		}

		sub, err = scanSubscription(tx.QueryRowContext(ctx, `
			UPDATE subscriptions SET subscription_status = 'cancelled', end_date = $2
			WHERE id = $1
			RETURNING `+subscriptionColumns, subscriptionID, now))
		if err != nil {
			return err
		}
		if _, err := s.syncSnapshotTx(ctx, tx, userUID); err != nil {
			return err
		}
		result = sub
		return nil
	})
	if err != nil {
		return nil, wrap(op, err)
	}
	return result, nil
}

// GetSubscription возвращает подписку по идентификатору.
func (s *Storage) GetSubscription(ctx context.Context, subscriptionID string) (*models.Subscription, error) {
	const op = "storage.GetSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	sub, err := scanSubscription(s.DB.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, subscriptionID))
	if err != nil {
		return nil, wrap(op, err)
	}
	return sub, nil
}

// FindActiveSubscription возвращает действующую подписку пользователя:
// active, оплаченную и не истёкшую к моменту now.
func (s *Storage) FindActiveSubscription(ctx context.Context, userUID string, now time.Time) (*models.Subscription, error) {
	const op = "storage.FindActiveSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, `SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE user_uid = $1
		  AND subscription_status = 'active'
		  AND payment_status = 'successful'
		  AND end_date >= $2
		ORDER BY created_at DESC
		LIMIT 1`, userUID, now))
	if err != nil {
		return nil, wrap(op, err)
	}
	return sub, nil
}

// FindLifetimeSubscription возвращает последнюю оплаченную бессрочную
// подписку пользователя, если она всё ещё активна. Бессрочная запись,
// замещённая более поздней активацией, доступа не даёт.
func (s *Storage) FindLifetimeSubscription(ctx context.Context, userUID string) (*models.Subscription, error) {
	const op = "storage.FindLifetimeSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, `SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE user_uid = $1
		  AND has_lifetime_access
		  AND payment_status = 'successful'
		  AND subscription_status = 'active'
		ORDER BY created_at DESC
		LIMIT 1`, userUID))
	if err != nil {
		return nil, wrap(op, err)
	}
	return sub, nil
}

// CountUserSubscriptions возвращает число подписок пользователя за всё время.
func (s *Storage) CountUserSubscriptions(ctx context.Context, userUID string) (int, error) {
	const op = "storage.CountUserSubscriptions"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	var n int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscriptions WHERE user_uid = $1`, userUID).
		Scan(&n); err != nil {
		return 0, wrap(op, err)
	}
	return n, nil
}

// ListUserSubscriptions возвращает историю подписок пользователя, новые первыми.
func (s *Storage) ListUserSubscriptions(ctx context.Context, userUID string) ([]*models.Subscription, error) {
	const op = "storage.ListUserSubscriptions"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT `+subscriptionColumns+`
		FROM subscriptions WHERE user_uid = $1 ORDER BY created_at DESC`, userUID)
	if err != nil {
		return nil, wrap(op, err)
	}
	result, err := collectSubscriptions(rows)
	if err != nil {
		return nil, wrap(op, err)
	}
	return result, nil
}

// ListAllSubscriptions возвращает страницу всех подписок для администратора.
func (s *Storage) ListAllSubscriptions(ctx context.Context, limit, offset int) ([]*models.Subscription, error) {
	const op = "storage.ListAllSubscriptions"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT `+subscriptionColumns+`
		FROM subscriptions ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, wrap(op, err)
	}
	result, err := collectSubscriptions(rows)
	if err != nil {
		return nil, wrap(op, err)
	}
	return result, nil
}

// IncrementUsage учитывает созданное объявление. Избранное объявление
// расходует обе квоты.
func (s *Storage) IncrementUsage(ctx context.Context, subscriptionID string, action models.ActionType) (*models.Subscription, error) {
	const op = "storage.IncrementUsage"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	featured := 0
	if action == models.ActionFeatured {
		featured = 1
	}
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, `
		UPDATE subscriptions
		SET listings_used = listings_used + 1,
		    featured_listing_used = featured_listing_used + $2
		WHERE id = $1
		RETURNING `+subscriptionColumns, subscriptionID, featured))
	if err != nil {
		return nil, wrap(op, err)
	}
	return sub, nil
}

// DecrementUsage возвращает квоту после удаления объявления, не опускаясь ниже нуля.
func (s *Storage) DecrementUsage(ctx context.Context, subscriptionID string, action models.ActionType) (*models.Subscription, error) {
	const op = "storage.DecrementUsage"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	featured := 0
	if action == models.ActionFeatured {
		featured = 1
	}
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, `
		UPDATE subscriptions
		SET listings_used = GREATEST(listings_used - 1, 0),
		    featured_listing_used = GREATEST(featured_listing_used - $2, 0)
		WHERE id = $1
		RETURNING `+subscriptionColumns, subscriptionID, featured))
	if err != nil {
		return nil, wrap(op, err)
	}
	return sub, nil
}

// ExpireOverdue переводит в expired активные подписки с датой окончания
// раньше now, кроме бессрочных. Возвращает UID затронутых пользователей без повторов.
func (s *Storage) ExpireOverdue(ctx context.Context, now time.Time) ([]string, error) {
	const op = "storage.ExpireOverdue"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `
		WITH expired AS (
			UPDATE subscriptions SET subscription_status = 'expired'
			WHERE subscription_status = 'active'
			  AND end_date < $1
			  AND NOT has_lifetime_access
			RETURNING user_uid
		)
		SELECT DISTINCT user_uid FROM expired`, now)
	if err != nil {
		return nil, wrap(op, err)
	}
	uids, err := collectStrings(rows)
	if err != nil {
		return nil, wrap(op, err)
	}
	return uids, nil
}
