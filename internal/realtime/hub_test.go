package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/inspectra/internal/config"
	"github.com/magabrotheeeer/inspectra/internal/lib/sl"
	"github.com/magabrotheeeer/inspectra/internal/models"
)

type fakeChat struct {
	mu   sync.Mutex
	seq  int
	seen []string
}

func (f *fakeChat) Append(_ context.Context, roomID string, sender models.Sender, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content is empty", models.ErrValidation)
	}
	if roomID == "missing" {
		return nil, models.ErrNotFound
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return &models.Message{
		ID:         fmt.Sprintf("m%d", f.seq),
		ChatroomID: roomID,
		SenderID:   sender.ID,
		SenderKind: sender.Kind,
		Content:    content,
		CreatedAt:  time.Date(2026, 1, 1, 12, 0, f.seq, 0, time.UTC),
	}, nil
}

func (f *fakeChat) MarkSeen(_ context.Context, roomID, readerID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, roomID+"/"+readerID)
	return 1, nil
}

func newTestHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(&fakeChat{}, config.Chat{
		SendQueueSize:  32,
		MaxMessageSize: 1 << 16,
		WriteWait:      time.Second,
		PongWait:       time.Minute,
	}, sl.Discard())
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, event string, ack *int64, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(Frame{Event: event, Ack: ack, Data: raw}))
}

// readEvent читает кадры, пока не встретится событие event.
func readEvent(t *testing.T, ws *websocket.Conn, event string) Frame {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var f Frame
		require.NoError(t, ws.ReadJSON(&f))
		if f.Event == event {
			return f
		}
	}
}

// readRoster ждёт рассылку присутствия с ожидаемым составом.
func readRoster(t *testing.T, ws *websocket.Conn, want []string) {
	t.Helper()
	for {
		f := readEvent(t, ws, EventUpdateOnlineUsers)
		var got []string
		require.NoError(t, json.Unmarshal(f.Data, &got))
		if assert.ObjectsAreEqual(want, got) {
			return
		}
	}
}

func roomSize(h *Hub, roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func ackID(n int64) *int64 { return &n }

func TestHub_PresenceRosterOnDisconnect(t *testing.T) {
	hub, url := newTestHub(t)
	c1 := dial(t, url)
	c2 := dial(t, url)

	send(t, c1, EventUserOnline, nil, "u1")
	send(t, c2, EventUserOnline, nil, "u2")
	readRoster(t, c2, []string{"u1", "u2"})

	require.NoError(t, c1.Close())

	readRoster(t, c2, []string{"u2"})
	assert.Equal(t, []string{"u2"}, hub.Online())
}

func TestHub_NewMessageAckAndBroadcast(t *testing.T) {
	hub, url := newTestHub(t)
	c1 := dial(t, url)
	c2 := dial(t, url)

	send(t, c1, EventJoinRoom, nil, RoomPayload{ChatroomID: "r1", UserID: "u1"})
	send(t, c2, EventJoinRoom, nil, RoomPayload{ChatroomID: "r1", UserID: "u2"})
	require.Eventually(t, func() bool { return roomSize(hub, "r1") == 2 }, 3*time.Second, 10*time.Millisecond)

	send(t, c1, EventNewMessage, ackID(7), models.DummyMessage{
		Chatroom:    "r1",
		Sender:      "u1",
		SenderModel: models.SenderUser,
		Content:     "hello",
	})

	ack := readEvent(t, c1, EventAck)
	require.NotNil(t, ack.Ack)
	assert.Equal(t, int64(7), *ack.Ack)
	var acked models.Message
	require.NoError(t, json.Unmarshal(ack.Data, &acked))
	assert.Equal(t, "hello", acked.Content)
	assert.Equal(t, "r1", acked.ChatroomID)

	got := readEvent(t, c2, EventReceiveMessage)
	var delivered models.Message
	require.NoError(t, json.Unmarshal(got.Data, &delivered))
	assert.Equal(t, acked.ID, delivered.ID)

	// Отправитель не получает собственное сообщение через receive_message.
	_ = c1.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := c1.ReadMessage()
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestHub_ErrorAcks(t *testing.T) {
	_, url := newTestHub(t)
	c := dial(t, url)

	tests := []struct {
		name  string
		event string
		data  any
		want  string
	}{
		{
			name:  "пустое сообщение",
			event: EventNewMessage,
			data:  models.DummyMessage{Chatroom: "r1", Sender: "u1", SenderModel: models.SenderUser, Content: "  "},
			want:  models.ErrValidation.Error(),
		},
		{
			name:  "несуществующая комната",
			event: EventNewMessage,
			data:  models.DummyMessage{Chatroom: "missing", Sender: "u1", SenderModel: models.SenderUser, Content: "hi"},
			want:  models.ErrNotFound.Error(),
		},
		{
			name:  "неизвестный вид отправителя",
			event: EventNewMessage,
			data:  models.DummyMessage{Chatroom: "r1", Sender: "u1", SenderModel: "Robot", Content: "hi"},
			want:  models.ErrValidation.Error(),
		},
		{
			name:  "неизвестное событие",
			event: "dance",
			data:  map[string]string{},
			want:  models.ErrValidation.Error(),
		},
		{
			name:  "join без комнаты",
			event: EventJoinRoom,
			data:  RoomPayload{},
			want:  models.ErrValidation.Error(),
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := int64(i + 1)
			send(t, c, tt.event, &id, tt.data)
			f := readEvent(t, c, EventAck)
			require.NotNil(t, f.Ack)
			assert.Equal(t, id, *f.Ack)
			var body AckError
			require.NoError(t, json.Unmarshal(f.Data, &body))
			assert.Equal(t, tt.want, body.Error)
		})
	}
}

func TestHub_RESTPathBroadcastsToWholeRoom(t *testing.T) {
	hub, url := newTestHub(t)
	c1 := dial(t, url)
	c2 := dial(t, url)
	outsider := dial(t, url)

	send(t, c1, EventJoinRoom, nil, RoomPayload{ChatroomID: "r1"})
	send(t, c2, EventJoinRoom, nil, RoomPayload{ChatroomID: "r1"})
	send(t, outsider, EventJoinRoom, nil, RoomPayload{ChatroomID: "r2"})
	require.Eventually(t, func() bool {
		return roomSize(hub, "r1") == 2 && roomSize(hub, "r2") == 1
	}, 3*time.Second, 10*time.Millisecond)

	msg, err := hub.SendMessage(context.Background(), "r1", models.Sender{Kind: models.SenderGuest, ID: "g1"}, "from rest", "")
	require.NoError(t, err)

	for _, ws := range []*websocket.Conn{c1, c2} {
		f := readEvent(t, ws, EventReceiveMessage)
		var got models.Message
		require.NoError(t, json.Unmarshal(f.Data, &got))
		assert.Equal(t, msg.ID, got.ID)
	}

	require.NoError(t, hub.MarkSeen(context.Background(), "r1", "u2", ""))
	f := readEvent(t, c1, EventMessagesSeen)
	var seen SeenPayload
	require.NoError(t, json.Unmarshal(f.Data, &seen))
	assert.Equal(t, SeenPayload{ChatroomID: "r1", SeenBy: "u2"}, seen)

	_ = outsider.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err = outsider.ReadMessage()
	require.Error(t, err)
}

func TestHub_TypingRelayedToOthers(t *testing.T) {
	hub, url := newTestHub(t)
	c1 := dial(t, url)
	c2 := dial(t, url)

	send(t, c1, EventJoinRoom, nil, RoomPayload{ChatroomID: "r1"})
	send(t, c2, EventJoinRoom, nil, RoomPayload{ChatroomID: "r1"})
	require.Eventually(t, func() bool { return roomSize(hub, "r1") == 2 }, 3*time.Second, 10*time.Millisecond)

	send(t, c1, EventTyping, nil, map[string]any{"chatroomId": "r1", "user": map[string]string{"name": "Ada"}})

	f := readEvent(t, c2, EventTyping)
	var p TypingPayload
	require.NoError(t, json.Unmarshal(f.Data, &p))
	assert.Equal(t, "r1", p.ChatroomID)
	assert.JSONEq(t, `{"name":"Ada"}`, string(p.User))
}
