package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/inspectra/internal/models"
)

const roomColumns = `r.id, r.property_id, r.client_id, r.realtor_id, r.inquiry_id, r.last_message, r.last_message_at, r.created_at`

func scanRoom(row scanner, extra ...any) (*models.ChatRoom, error) {
	var r models.ChatRoom
	var inquiry sql.NullString
	dest := append([]any{&r.ID, &r.PropertyID, &r.ClientID, &r.RealtorID, &inquiry,
		&r.LastMessage, &r.LastMessageAt, &r.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if inquiry.Valid {
		r.InquiryID = &inquiry.String
	}
	return &r, nil
}

// GetOrCreateRoom возвращает комнату тройки (объект, клиент, риелтор),
// создавая её при первом обращении. Повторные вызовы возвращают ту же комнату.
func (s *Storage) GetOrCreateRoom(ctx context.Context, propertyID, clientID, realtorID string) (*models.ChatRoom, error) {
	const op = "storage.GetOrCreateRoom"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `INSERT INTO chat_rooms AS r (property_id, client_id, realtor_id)
			  VALUES ($1, $2, $3)
			  ON CONFLICT ON CONSTRAINT chat_rooms_triple_key
			  DO UPDATE SET property_id = EXCLUDED.property_id
			  RETURNING ` + roomColumns
	room, err := scanRoom(s.DB.QueryRowContext(ctx, query, propertyID, clientID, realtorID))
	if err != nil {
		return nil, wrap(op, err)
	}
	return room, nil
}

// GetRoom возвращает комнату по идентификатору.
func (s *Storage) GetRoom(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	const op = "storage.GetRoom"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	room, err := scanRoom(s.DB.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM chat_rooms r WHERE r.id = $1`, roomID))
	if err != nil {
		return nil, wrap(op, err)
	}
	return room, nil
}

// ListRoomsForUser возвращает комнаты, где userID выступает клиентом или
// риелтором, вместе с данными собеседника. Свежие переписки идут первыми.
func (s *Storage) ListRoomsForUser(ctx context.Context, userID string, role models.RoomRole) ([]*models.RoomView, error) {
	const op = "storage.ListRoomsForUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var query string
	switch role {
	case models.RoomRoleClient:
		query = `SELECT ` + roomColumns + `, p.title,
				     'User', COALESCE(u.fullname, ''), COALESCE(u.email, '')
				 FROM chat_rooms r
				 JOIN properties p ON p.id = r.property_id
				 LEFT JOIN users u ON u.uid = r.realtor_id
				 WHERE r.client_id = $1
				 ORDER BY r.last_message_at DESC`
	case models.RoomRoleRealtor:
		query = `SELECT ` + roomColumns + `, p.title,
				     CASE WHEN u.uid IS NOT NULL THEN 'User' ELSE 'GuestUser' END,
				     COALESCE(u.fullname, g.name, ''), COALESCE(u.email, g.email, '')
				 FROM chat_rooms r
				 JOIN properties p ON p.id = r.property_id
				 LEFT JOIN users u ON u.uid = r.client_id
				 LEFT JOIN guest_users g ON g.id = r.client_id
				 WHERE r.realtor_id = $1
				 ORDER BY r.last_message_at DESC`
	default:
		return nil, fmt.Errorf("%s: %w: unknown room role %q", op, models.ErrValidation, role)
	}

	rows, err := s.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer func() { _ = rows.Close() }()

	result := make([]*models.RoomView, 0)
	for rows.Next() {
		var v models.RoomView
		room, err := scanRoom(rows, &v.PropertyTitle, &v.Counterpart.Kind, &v.Counterpart.Name, &v.Counterpart.Email)
		if err != nil {
			return nil, wrap(op, err)
		}
		v.ChatRoom = *room
		if role == models.RoomRoleClient {
			v.Counterpart.ID = room.RealtorID
		} else {
			v.Counterpart.ID = room.ClientID
		}
		result = append(result, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return result, nil
}

// UpdateRoomSummary обновляет последнее сообщение комнаты. Более старое
// сообщение не перетирает более новое.
func (s *Storage) UpdateRoomSummary(ctx context.Context, roomID, text string, at time.Time) error {
	const op = "storage.UpdateRoomSummary"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx, `
		UPDATE chat_rooms SET last_message = $2, last_message_at = $3
		WHERE id = $1 AND last_message_at <= $3`, roomID, text, at)
	if err != nil {
		return wrap(op, err)
	}
	if _, err := res.RowsAffected(); err != nil {
		return wrap(op, err)
	}
	return nil
}
