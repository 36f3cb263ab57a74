package repository

import (
	"context"
	"encoding/json"

	"github.com/magabrotheeeer/inspectra/internal/models"
)

const planColumns = `id, name, interval, amount, provider_plan_id, provider_plan_token, features, created_at`

func scanPlan(row scanner) (*models.Plan, error) {
	var p models.Plan
	var features []byte
	if err := row.Scan(&p.ID, &p.Name, &p.Interval, &p.Amount, &p.ProviderPlanID,
		&p.ProviderPlanToken, &features, &p.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(features, &p.Features); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPlans возвращает каталог тарифов.
func (s *Storage) ListPlans(ctx context.Context) ([]models.Plan, error) {
	const op = "storage.ListPlans"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT `+planColumns+` FROM plans ORDER BY amount, name, interval`)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer func() { _ = rows.Close() }()

	result := make([]models.Plan, 0)
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, wrap(op, err)
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return result, nil
}

// GetPlan возвращает тариф по идентификатору.
func (s *Storage) GetPlan(ctx context.Context, planID string) (*models.Plan, error) {
	const op = "storage.GetPlan"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	p, err := scanPlan(s.DB.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE id = $1`, planID))
	if err != nil {
		return nil, wrap(op, err)
	}
	return p, nil
}

// CreatePlan добавляет тариф. Пара (name, interval) уникальна.
func (s *Storage) CreatePlan(ctx context.Context, plan models.Plan) (*models.Plan, error) {
	const op = "storage.CreatePlan"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	features, err := json.Marshal(plan.Features)
	if err != nil {
		return nil, wrap(op, err)
	}
	query := `INSERT INTO plans (name, interval, amount, provider_plan_id, provider_plan_token, features)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING ` + planColumns
	p, err := scanPlan(s.DB.QueryRowContext(ctx, query, plan.Name, plan.Interval, plan.Amount,
		plan.ProviderPlanID, plan.ProviderPlanToken, features))
	if err != nil {
		return nil, wrap(op, err)
	}
	return p, nil
}
