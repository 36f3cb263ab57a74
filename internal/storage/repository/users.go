package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/magabrotheeeer/inspectra/internal/models"
)

const userColumns = `uid, email, fullname, role, plan, plan_paid_type, plan_activated_at, plan_expires_at`

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	var activated, expires sql.NullTime
	if err := row.Scan(&u.UID, &u.Email, &u.Fullname, &u.Role, &u.Plan, &u.PlanPaidType, &activated, &expires); err != nil {
		return nil, err
	}
	if activated.Valid {
		u.PlanActivatedAt = &activated.Time
	}
	if expires.Valid {
		u.PlanExpiresAt = &expires.Time
	}
	return &u, nil
}

// CreateUser сохраняет пользователя, пришедшего из Identity Provider.
func (s *Storage) CreateUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.CreateUser"
	if err := checkCtx(ctx, op); err != nil {
		return "", err
	}

	if user.Plan == "" {
		user.Plan = s.defaultPlan
	}
	if user.PlanPaidType == "" {
		user.PlanPaidType = models.IntervalMonthly
	}
	var uid string
	query := `INSERT INTO users (email, fullname, role, plan, plan_paid_type)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING uid`
	if err := s.DB.QueryRowContext(ctx, query,
		user.Email, user.Fullname, user.Role, user.Plan, user.PlanPaidType).Scan(&uid); err != nil {
		return "", wrap(op, err)
	}
	return uid, nil
}

// GetUser возвращает пользователя по UID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	u, err := scanUser(s.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE uid = $1`, userUID))
	if err != nil {
		return nil, wrap(op, err)
	}
	return u, nil
}

// GetUserByEmail возвращает пользователя по email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	u, err := scanUser(s.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if err != nil {
		return nil, wrap(op, err)
	}
	return u, nil
}

// SyncUserSnapshot пересчитывает снимок тарифа пользователя по активной подписке.
func (s *Storage) SyncUserSnapshot(ctx context.Context, userUID string) (downgraded bool, err error) {
	const op = "storage.SyncUserSnapshot"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		var txErr error
		downgraded, txErr = s.syncSnapshotTx(ctx, tx, userUID)
		return txErr
	})
	if err != nil {
		return false, wrap(op, err)
	}
	return downgraded, nil
}

// syncSnapshotTx выставляет снимок по активной подписке или откатывает его
// к тарифу по умолчанию. downgraded=true, если у пользователя не осталось
// активной подписки, а снимок ещё не был сброшен, в том числе когда истекла
// подписка на тариф по умолчанию.
func (s *Storage) syncSnapshotTx(ctx context.Context, tx *sql.Tx, userUID string) (bool, error) {
	var (
		current    string
		currentEnd sql.NullTime
	)
	if err := tx.QueryRowContext(ctx, `SELECT plan, plan_expires_at FROM users WHERE uid = $1 FOR UPDATE`, userUID).
		Scan(&current, &currentEnd); err != nil {
		return false, err
	}

	var (
		plan          string
		interval      models.Interval
		start, expire time.Time
	)
	err := tx.QueryRowContext(ctx, `
		SELECT plan_name, interval, start_date, end_date
		FROM subscriptions
		WHERE user_uid = $1 AND subscription_status = 'active'
		ORDER BY created_at DESC
		LIMIT 1`, userUID).Scan(&plan, &interval, &start, &expire)
	switch {
	case err == nil:
		_, err = tx.ExecContext(ctx, `
			UPDATE users
			SET plan = $2, plan_paid_type = $3, plan_activated_at = $4, plan_expires_at = $5
			WHERE uid = $1`, userUID, plan, interval, start, expire)
		return false, err
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, `
			UPDATE users
			SET plan = $2, plan_paid_type = 'monthly', plan_activated_at = NULL, plan_expires_at = NULL
			WHERE uid = $1`, userUID, s.defaultPlan)
		return err == nil && (current != s.defaultPlan || currentEnd.Valid), err
	default:
		return false, err
	}
}

// DowngradeDriftedUsers откатывает к тарифу по умолчанию пользователей, чей
// снимок указывает на платный тариф с истёкшим сроком, если у них нет
// действующей подписки. Возвращает UID затронутых пользователей.
func (s *Storage) DowngradeDriftedUsers(ctx context.Context, now time.Time) ([]string, error) {
	const op = "storage.DowngradeDriftedUsers"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `
		UPDATE users u
		SET plan = $1, plan_paid_type = 'monthly', plan_activated_at = NULL, plan_expires_at = NULL
		WHERE u.plan <> $1
		  AND u.plan_expires_at < $2
		  AND NOT EXISTS (
			SELECT 1 FROM subscriptions s
			WHERE s.user_uid = u.uid
			  AND s.subscription_status = 'active'
			  AND (s.end_date >= $2 OR s.has_lifetime_access)
		  )
		RETURNING u.uid`, s.defaultPlan, now)
	if err != nil {
		return nil, wrap(op, err)
	}
	uids, err := collectStrings(rows)
	if err != nil {
		return nil, wrap(op, err)
	}
	return uids, nil
}

func collectStrings(rows *sql.Rows) ([]string, error) {
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
