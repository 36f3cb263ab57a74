package realtime

import (
	"encoding/json"
	"errors"

	"github.com/magabrotheeeer/inspectra/internal/models"
)

// События протокола.
const (
	EventJoinRoom          = "join_room"
	EventNewMessage        = "new_message"
	EventReceiveMessage    = "receive_message"
	EventMarkAsSeen        = "mark_as_seen"
	EventMessagesSeen      = "messages_seen"
	EventTyping            = "typing"
	EventStopTyping        = "stop_typing"
	EventUserOnline        = "user_online"
	EventUpdateOnlineUsers = "update_online_users"
	EventAck               = "ack"
)

// Frame — входящий кадр. Ack задаётся клиентом, если он ждёт подтверждения.
type Frame struct {
	Event string          `json:"event"`
	Ack   *int64          `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outFrame struct {
	Event string `json:"event"`
	Ack   *int64 `json:"ack,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// RoomPayload — данные join_room и mark_as_seen.
type RoomPayload struct {
	ChatroomID string `json:"chatroomId"`
	UserID     string `json:"userId"`
}

// SeenPayload — данные messages_seen.
type SeenPayload struct {
	ChatroomID string `json:"chatroomId"`
	SeenBy     string `json:"seenBy"`
}

// TypingPayload — данные typing и stop_typing. User пересылается как есть.
type TypingPayload struct {
	ChatroomID string          `json:"chatroomId"`
	User       json.RawMessage `json:"user,omitempty"`
}

// AckError — тело подтверждения с ошибкой.
type AckError struct {
	Error string `json:"error"`
}

func encode(event string, ack *int64, data any) ([]byte, error) {
	return json.Marshal(outFrame{Event: event, Ack: ack, Data: data})
}

// publicError сводит внутреннюю ошибку к сообщению для клиента.
func publicError(err error) string {
	for _, sentinel := range []error{
		models.ErrNotFound,
		models.ErrValidation,
		models.ErrForbidden,
		models.ErrConflict,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal error"
}
