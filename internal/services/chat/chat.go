// Package chat содержит бизнес-логику комнат и сообщений: справочник
// комнат, журнал сообщений и гостевые учётные записи чата.
package chat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/inspectra/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/inspectra/internal/lib/sl"
	"github.com/magabrotheeeer/inspectra/internal/models"
)

// Repository определяет методы хранилища, нужные чату.
type Repository interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	GetProperty(ctx context.Context, propertyID string) (*models.Property, error)
	UpsertGuest(ctx context.Context, name, email, token string) (*models.GuestUser, error)
	GetGuest(ctx context.Context, id string) (*models.GuestUser, error)
	GetGuestByToken(ctx context.Context, token string) (*models.GuestUser, error)
	GetOrCreateRoom(ctx context.Context, propertyID, clientID, realtorID string) (*models.ChatRoom, error)
	GetRoom(ctx context.Context, roomID string) (*models.ChatRoom, error)
	ListRoomsForUser(ctx context.Context, userID string, role models.RoomRole) ([]*models.RoomView, error)
	UpdateRoomSummary(ctx context.Context, roomID, text string, at time.Time) error
	CreateMessage(ctx context.Context, roomID string, sender models.Sender, content string) (*models.Message, error)
	ListMessages(ctx context.Context, roomID string) ([]*models.Message, error)
	MarkSeen(ctx context.Context, roomID, readerID string) (int64, error)
}

// Notifier отправляет письмо по ключу шаблона.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// TokenIssuer выпускает токены гостей.
type TokenIssuer interface {
	GenerateGuestToken(guestID string) (string, error)
}

// GuestChat — результат создания гостевой комнаты.
type GuestChat struct {
	Room  *models.ChatRoom  `json:"chatroom"`
	Guest *models.GuestUser `json:"guest"`
}

// GuestSession — токен гостя и его данные.
type GuestSession struct {
	Token string            `json:"token"`
	Guest *models.GuestUser `json:"guest"`
}

type senderLookup func(ctx context.Context, id string) error

// Service реализует справочник комнат и журнал сообщений.
type Service struct {
	repo      Repository
	notifier  Notifier
	tokens    TokenIssuer
	clientURL string
	log       *slog.Logger
	senders   map[models.SenderKind]senderLookup
}

// NewService создает новый экземпляр Service.
func NewService(repo Repository, notifier Notifier, tokens TokenIssuer, clientURL string, log *slog.Logger) *Service {
	s := &Service{
		repo:      repo,
		notifier:  notifier,
		tokens:    tokens,
		clientURL: strings.TrimRight(clientURL, "/"),
		log:       log,
	}
	s.senders = map[models.SenderKind]senderLookup{
		models.SenderUser: func(ctx context.Context, id string) error {
			_, err := repo.GetUser(ctx, id)
			return err
		},
		models.SenderGuest: func(ctx context.Context, id string) error {
			_, err := repo.GetGuest(ctx, id)
			return err
		},
	}
	return s
}

// GetOrCreateRoom возвращает комнату тройки (объект, клиент, риелтор), создавая её при первом обращении.
func (s *Service) GetOrCreateRoom(ctx context.Context, propertyID, clientID, realtorID string) (*models.ChatRoom, error) {
	const op = "chat.GetOrCreateRoom"
	if propertyID == "" || clientID == "" || realtorID == "" {
		return nil, fmt.Errorf("%s: %w: property, client and realtor are required", op, models.ErrValidation)
	}
	room, err := s.repo.GetOrCreateRoom(ctx, propertyID, clientID, realtorID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return room, nil
}

// CreateGuestRoom заводит гостя по email, открывает комнату с риелтором объекта
// и отправляет гостю ссылку на чат. Ошибка отправки письма только логируется.
func (s *Service) CreateGuestRoom(ctx context.Context, req models.DummyRoom) (*GuestChat, error) {
	const op = "chat.CreateGuestRoom"
	log := s.log.With(slog.String("op", op), slog.String("property_id", req.PropertyID))

	property, err := s.repo.GetProperty(ctx, req.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	token, err := newAccessToken()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	guest, err := s.repo.UpsertGuest(ctx, req.ClientName, strings.ToLower(req.ClientEmail), token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	room, err := s.repo.GetOrCreateRoom(ctx, property.ID, guest.ID, property.RealtorID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	err = s.notifier.Notify(ctx, models.Notification{
		Template: rabbitmq.TemplateGuestChatLink,
		To:       guest.Email,
		Name:     guest.Name,
		Data: map[string]string{
			"chatLink":      s.GuestChatLink(guest.ChatAccessToken),
			"propertyTitle": property.Title,
		},
	})
	if err != nil {
		log.Warn("failed to send guest chat link", sl.Err(err))
	}

	log.Info("guest chat room ready", slog.String("room_id", room.ID), slog.String("guest_id", guest.ID))
	return &GuestChat{Room: room, Guest: guest}, nil
}

// GuestChatLink строит ссылку на гостевой чат.
func (s *Service) GuestChatLink(token string) string {
	return s.clientURL + "/guest-chat/" + token
}

// ListRoomsForUser возвращает комнаты пользователя с данными собеседника.
func (s *Service) ListRoomsForUser(ctx context.Context, userID string, role models.RoomRole) ([]*models.RoomView, error) {
	const op = "chat.ListRoomsForUser"
	if role != models.RoomRoleClient && role != models.RoomRoleRealtor {
		return nil, fmt.Errorf("%s: %w: unknown room role %q", op, models.ErrValidation, role)
	}
	rooms, err := s.repo.ListRoomsForUser(ctx, userID, role)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rooms, nil
}

// GetGuest возвращает гостя по идентификатору.
func (s *Service) GetGuest(ctx context.Context, id string) (*models.GuestUser, error) {
	const op = "chat.GetGuest"
	guest, err := s.repo.GetGuest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return guest, nil
}

// StartGuestSession обменивает токен доступа гостя на токен Identity Provider.
func (s *Service) StartGuestSession(ctx context.Context, accessToken string) (*GuestSession, error) {
	const op = "chat.StartGuestSession"
	if accessToken == "" {
		return nil, fmt.Errorf("%s: %w: access token is required", op, models.ErrValidation)
	}
	guest, err := s.repo.GetGuestByToken(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	token, err := s.tokens.GenerateGuestToken(guest.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &GuestSession{Token: token, Guest: guest}, nil
}

// Append сохраняет сообщение и обновляет сводку комнаты. Если сводку
// обновить не удалось, сообщение всё равно считается сохранённым.
func (s *Service) Append(ctx context.Context, roomID string, sender models.Sender, content string) (*models.Message, error) {
	const op = "chat.Append"
	log := s.log.With(slog.String("op", op), slog.String("room_id", roomID))

	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%s: %w: content is empty", op, models.ErrValidation)
	}
	lookup, ok := s.senders[sender.Kind]
	if !ok {
		return nil, fmt.Errorf("%s: %w: unknown sender kind %q", op, models.ErrValidation, sender.Kind)
	}
	if _, err := s.repo.GetRoom(ctx, roomID); err != nil {
		return nil, fmt.Errorf("%s: room: %w", op, err)
	}
	if err := lookup(ctx, sender.ID); err != nil {
		return nil, fmt.Errorf("%s: sender: %w", op, err)
	}

	msg, err := s.repo.CreateMessage(ctx, roomID, sender, content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.repo.UpdateRoomSummary(ctx, roomID, msg.Content, msg.CreatedAt); err != nil {
		log.Warn("room summary is stale", slog.String("message_id", msg.ID), sl.Err(err))
	}
	return msg, nil
}

// ListForRoom возвращает сообщения комнаты по возрастанию времени создания.
func (s *Service) ListForRoom(ctx context.Context, roomID string) ([]*models.Message, error) {
	const op = "chat.ListForRoom"
	if _, err := s.repo.GetRoom(ctx, roomID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	msgs, err := s.repo.ListMessages(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return msgs, nil
}

// MarkSeen отмечает прочитанными чужие сообщения комнаты.
func (s *Service) MarkSeen(ctx context.Context, roomID, readerID string) (int64, error) {
	const op = "chat.MarkSeen"
	if roomID == "" || readerID == "" {
		return 0, fmt.Errorf("%s: %w: room and reader are required", op, models.ErrValidation)
	}
	n, err := s.repo.MarkSeen(ctx, roomID, readerID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

func newAccessToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
