package repository

import (
	"context"

	"github.com/magabrotheeeer/inspectra/internal/models"
)

const guestColumns = `id, name, email, chat_access_token, created_at`

func scanGuest(row scanner) (*models.GuestUser, error) {
	var g models.GuestUser
	if err := row.Scan(&g.ID, &g.Name, &g.Email, &g.ChatAccessToken, &g.CreatedAt); err != nil {
		return nil, err
	}
	return &g, nil
}

// UpsertGuest находит гостя по email или создаёт его с токеном token.
// Токен существующего гостя не меняется.
func (s *Storage) UpsertGuest(ctx context.Context, name, email, token string) (*models.GuestUser, error) {
	const op = "storage.UpsertGuest"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `INSERT INTO guest_users (name, email, chat_access_token)
			  VALUES ($1, lower($2), $3)
			  ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
			  RETURNING ` + guestColumns
	g, err := scanGuest(s.DB.QueryRowContext(ctx, query, name, email, token))
	if err != nil {
		return nil, wrap(op, err)
	}
	return g, nil
}

// GetGuest возвращает гостя по идентификатору.
func (s *Storage) GetGuest(ctx context.Context, id string) (*models.GuestUser, error) {
	const op = "storage.GetGuest"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	g, err := scanGuest(s.DB.QueryRowContext(ctx, `SELECT `+guestColumns+` FROM guest_users WHERE id = $1`, id))
	if err != nil {
		return nil, wrap(op, err)
	}
	return g, nil
}

// GetGuestByToken возвращает гостя по токену доступа к чату.
func (s *Storage) GetGuestByToken(ctx context.Context, token string) (*models.GuestUser, error) {
	const op = "storage.GetGuestByToken"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	g, err := scanGuest(s.DB.QueryRowContext(ctx,
		`SELECT `+guestColumns+` FROM guest_users WHERE chat_access_token = $1`, token))
	if err != nil {
		return nil, wrap(op, err)
	}
	return g, nil
}
