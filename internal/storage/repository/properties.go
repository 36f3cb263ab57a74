package repository

import (
	"context"
	"database/sql"

	"github.com/magabrotheeeer/inspectra/internal/models"
)

// GetProperty возвращает объявление. Объявление без риелтора считается ненайденным.
func (s *Storage) GetProperty(ctx context.Context, propertyID string) (*models.Property, error) {
	const op = "storage.GetProperty"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var p models.Property
	var realtor sql.NullString
	err := s.DB.QueryRowContext(ctx, `SELECT id, title, realtor_uid FROM properties WHERE id = $1`, propertyID).
		Scan(&p.ID, &p.Title, &realtor)
	if err != nil {
		return nil, wrap(op, err)
	}
	if !realtor.Valid {
		return nil, wrap(op, sql.ErrNoRows)
	}
	p.RealtorID = realtor.String
	return &p, nil
}

// CreateProperty сохраняет минимальную карточку объявления.
func (s *Storage) CreateProperty(ctx context.Context, title, realtorUID string) (string, error) {
	const op = "storage.CreateProperty"
	if err := checkCtx(ctx, op); err != nil {
		return "", err
	}

	var id string
	if err := s.DB.QueryRowContext(ctx,
		`INSERT INTO properties (title, realtor_uid) VALUES ($1, $2) RETURNING id`,
		title, realtorUID).Scan(&id); err != nil {
		return "", wrap(op, err)
	}
	return id, nil
}
