package repository

import (
	"context"

	"github.com/magabrotheeeer/inspectra/internal/models"
)

const messageColumns = `id, seq, chatroom_id, sender_id, sender_kind, content, seen, created_at`

func scanMessage(row scanner) (*models.Message, error) {
	var m models.Message
	if err := row.Scan(&m.ID, &m.Seq, &m.ChatroomID, &m.SenderID, &m.SenderKind, &m.Content, &m.Seen, &m.CreatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateMessage добавляет сообщение в конец журнала комнаты.
func (s *Storage) CreateMessage(ctx context.Context, roomID string, sender models.Sender, content string) (*models.Message, error) {
	const op = "storage.CreateMessage"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `INSERT INTO messages (chatroom_id, sender_id, sender_kind, content)
			  VALUES ($1, $2, $3, $4)
			  RETURNING ` + messageColumns
	m, err := scanMessage(s.DB.QueryRowContext(ctx, query, roomID, sender.ID, sender.Kind, content))
	if err != nil {
		return nil, wrap(op, err)
	}
	return m, nil
}

// ListMessages возвращает все сообщения комнаты по возрастанию времени
// создания, при равенстве в порядке вставки.
func (s *Storage) ListMessages(ctx context.Context, roomID string) ([]*models.Message, error) {
	const op = "storage.ListMessages"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT `+messageColumns+`
		FROM messages WHERE chatroom_id = $1
		ORDER BY created_at, seq`, roomID)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer func() { _ = rows.Close() }()

	result := make([]*models.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, wrap(op, err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return result, nil
}

// MarkSeen отмечает прочитанными все непрочитанные сообщения комнаты,
// автор которых не readerID. Возвращает число изменённых сообщений.
func (s *Storage) MarkSeen(ctx context.Context, roomID, readerID string) (int64, error) {
	const op = "storage.MarkSeen"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	res, err := s.DB.ExecContext(ctx, `
		UPDATE messages SET seen = true
		WHERE chatroom_id = $1 AND sender_id <> $2 AND seen = false`, roomID, readerID)
	if err != nil {
		return 0, wrap(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrap(op, err)
	}
	return n, nil
}
