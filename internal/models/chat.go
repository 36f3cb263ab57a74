package models

import (
	"fmt"
	"time"
)

// SenderKind различает зарегистрированного пользователя и гостя.
type SenderKind string

const (
	SenderUser  SenderKind = "User"
	SenderGuest SenderKind = "GuestUser"
)

// Valid проверяет, что вид отправителя известен.
func (k SenderKind) Valid() bool {
	return k == SenderUser || k == SenderGuest
}

// Sender — отправитель сообщения: вид + идентификатор субъекта.
type Sender struct {
	Kind SenderKind `json:"kind"`
	ID   string     `json:"id"`
}

func (s Sender) String() string {
	return fmt.Sprintf("%s:%s", s.Kind, s.ID)
}

// RoomRole — в каком качестве пользователь запрашивает свои комнаты.
type RoomRole string

const (
	RoomRoleClient  RoomRole = "client"
	RoomRoleRealtor RoomRole = "realtor"
)

// ChatRoom — переписка по тройке (объект, клиент, риелтор).
type ChatRoom struct {
	ID            string    `json:"id"`
	PropertyID    string    `json:"property_id"`
	ClientID      string    `json:"client_id"`
	RealtorID     string    `json:"realtor_id"`
	InquiryID     *string   `json:"inquiry_id,omitempty"`
	LastMessage   string    `json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// Counterpart — отображаемые данные собеседника.
type Counterpart struct {
	ID    string     `json:"id"`
	Kind  SenderKind `json:"kind"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
}

// RoomView — комната, обогащённая данными собеседника и объекта.
type RoomView struct {
	ChatRoom
	PropertyTitle string      `json:"property_title"`
	Counterpart   Counterpart `json:"counterpart"`
}

// GuestUser — клиент без полноценной учётной записи.
type GuestUser struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	ChatAccessToken string    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
}

// Message — неизменяемое сообщение комнаты, кроме флага Seen.
type Message struct {
	ID         string     `json:"id"`
	ChatroomID string     `json:"chatroom"`
	SenderID   string     `json:"sender"`
	SenderKind SenderKind `json:"senderModel"`
	Content    string     `json:"content"`
	Seen       bool       `json:"seen"`
	CreatedAt  time.Time  `json:"createdAt"`
	// Seq разрешает равенство меток времени в порядке вставки.
	Seq int64 `json:"-"`
}

// Property — минимальные сведения об объявлении, нужные чату.
type Property struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	RealtorID string `json:"realtor_id"`
}

// DummyMessage используется для приёма сообщения из JSON-запроса или сокета.
type DummyMessage struct {
	Chatroom    string     `json:"chatroom" validate:"required"`
	Sender      string     `json:"sender" validate:"required"`
	SenderModel SenderKind `json:"senderModel" validate:"required,oneof=User GuestUser"`
	Content     string     `json:"content" validate:"required"`
}

// DummyRoom используется для создания гостевой комнаты из JSON-запроса.
type DummyRoom struct {
	PropertyID  string `json:"propertyId" validate:"required"`
	ClientName  string `json:"clientName" validate:"required"`
	ClientEmail string `json:"clientEmail" validate:"required,email"`
}

// DummySeen — запрос отметки сообщений прочитанными.
type DummySeen struct {
	ChatroomID string `json:"chatroomId" validate:"required"`
	UserID     string `json:"userId" validate:"required"`
}
