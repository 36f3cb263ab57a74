// Package realtime — двунаправленный шлюз чата поверх websocket:
// комнаты, доставка сообщений, отметки о прочтении, набор текста и
// список пользователей в сети. Состояние шлюза живёт только в памяти процесса.
package realtime

import (
	"context"
	"hash/fnv"
	"log/slog"
	"net/http"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/inspectra/internal/config"
	"github.com/magabrotheeeer/inspectra/internal/lib/sl"
	"github.com/magabrotheeeer/inspectra/internal/models"
)

const roomLockStripes = 64

// ChatService — журнал сообщений, через который проходят все записи.
type ChatService interface {
	Append(ctx context.Context, roomID string, sender models.Sender, content string) (*models.Message, error)
	MarkSeen(ctx context.Context, roomID, readerID string) (int64, error)
}

// Hub владеет соединениями, подписками на комнаты и присутствием.
// REST-обработчики рассылают события только через методы Hub.
type Hub struct {
	chat     ChatService
	cfg      config.Chat
	log      *slog.Logger
	upgrader websocket.Upgrader
	presence *Presence

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.RWMutex
	conns map[string]*conn
	rooms map[string]map[string]*conn

	// rosterMu упорядочивает рассылку списка присутствия.
	rosterMu sync.Mutex
	// roomLocks упорядочивают запись и рассылку сообщений одной комнаты.
	roomLocks [roomLockStripes]sync.Mutex
}

// NewHub создаёт шлюз.
func NewHub(chat ChatService, cfg config.Chat, log *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		chat:     chat,
		cfg:      cfg,
		log:      log.With(slog.String("component", "realtime")),
		presence: NewPresence(),
		ctx:      ctx,
		cancel:   cancel,
		conns:    make(map[string]*conn),
		rooms:    make(map[string]map[string]*conn),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(h.cfg.AllowedOrigins, origin)
}

// ServeHTTP переводит запрос в websocket и запускает обслуживание соединения.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", sl.Err(err))
		return
	}

	limit := rate.Limit(h.cfg.MessagesPerSecond)
	if h.cfg.MessagesPerSecond <= 0 {
		limit = rate.Inf
	}
	id := uuid.NewString()
	c := &conn{
		id:      id,
		hub:     h,
		ws:      ws,
		send:    make(chan []byte, h.cfg.SendQueueSize),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(limit, h.cfg.MessagesBurst),
		log:     h.log.With(slog.String("conn_id", id)),
		rooms:   make(map[string]struct{}),
	}

	h.mu.Lock()
	h.conns[id] = c
	n := len(h.conns)
	h.mu.Unlock()
	connectionsGauge.Inc()
	c.log.Debug("connection opened", slog.Int("connections", n), slog.String("remote", r.RemoteAddr))

	go c.writePump()
	go c.readPump()
}

// SendMessage сохраняет сообщение и рассылает его всем соединениям комнаты,
// кроме exclude. Рассылка идёт только после успешной записи и в порядке записи.
func (h *Hub) SendMessage(ctx context.Context, roomID string, sender models.Sender, content, exclude string) (*models.Message, error) {
	lock := h.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	msg, err := h.chat.Append(ctx, roomID, sender, content)
	if err != nil {
		return nil, err
	}
	messagesPersisted.Inc()
	h.broadcastRoom(roomID, EventReceiveMessage, msg, exclude)
	return msg, nil
}

// MarkSeen отмечает сообщения прочитанными и уведомляет комнату, кроме exclude.
func (h *Hub) MarkSeen(ctx context.Context, roomID, readerID, exclude string) error {
	lock := h.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := h.chat.MarkSeen(ctx, roomID, readerID); err != nil {
		return err
	}
	h.broadcastRoom(roomID, EventMessagesSeen, SeenPayload{ChatroomID: roomID, SeenBy: readerID}, exclude)
	return nil
}

// Online возвращает текущий список пользователей в сети.
func (h *Hub) Online() []string {
	return h.presence.Online()
}

// Close закрывает все соединения и очищает присутствие.
func (h *Hub) Close() {
	h.cancel()
	h.mu.Lock()
	conns := make([]*conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()
	for _, c := range conns {
		c.close()
	}
	h.presence.Reset()
	onlineUsersGauge.Set(0)
}

func (h *Hub) roomLock(roomID string) *sync.Mutex {
	f := fnv.New32a()
	_, _ = f.Write([]byte(roomID))
	return &h.roomLocks[f.Sum32()%roomLockStripes]
}

func (h *Hub) join(c *conn, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c.id]; !ok {
		return
	}
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]*conn)
		h.rooms[roomID] = members
	}
	members[c.id] = c
	c.rooms[roomID] = struct{}{}
}

func (h *Hub) markOnline(c *conn, userID string) {
	h.mu.Lock()
	c.userID = userID
	h.mu.Unlock()

	h.rosterMu.Lock()
	defer h.rosterMu.Unlock()
	h.presence.MarkOnline(userID, c.id)
	h.broadcastRosterLocked()
}

func (h *Hub) unregister(c *conn) {
	h.mu.Lock()
	if _, ok := h.conns[c.id]; !ok {
		h.mu.Unlock()
		c.close()
		return
	}
	delete(h.conns, c.id)
	for roomID := range c.rooms {
		if members, ok := h.rooms[roomID]; ok {
			delete(members, c.id)
			if len(members) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	userID := c.userID
	h.mu.Unlock()

	c.close()
	connectionsGauge.Dec()
	c.log.Debug("connection closed", slog.String("user_id", userID))

	h.rosterMu.Lock()
	defer h.rosterMu.Unlock()
	if h.presence.MarkOffline(c.id) {
		h.broadcastRosterLocked()
	}
}

// drop закрывает соединение, не успевающее читать. Снятие с учёта
// выполнит readPump, когда чтение из закрытого сокета завершится ошибкой.
func (h *Hub) drop(c *conn) {
	broadcastDrops.Inc()
	c.log.Warn("send queue full, dropping connection")
	c.close()
}

func (h *Hub) broadcastRosterLocked() {
	online := h.presence.Online()
	onlineUsersGauge.Set(float64(len(online)))
	b, err := encode(EventUpdateOnlineUsers, nil, online)
	if err != nil {
		h.log.Error("failed to encode roster", sl.Err(err))
		return
	}

	h.mu.RLock()
	targets := make([]*conn, 0, len(h.conns))
	for _, c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	h.deliver(targets, b)
}

func (h *Hub) broadcastRoom(roomID, event string, data any, exclude string) {
	b, err := encode(event, nil, data)
	if err != nil {
		h.log.Error("failed to encode event", slog.String("event", event), sl.Err(err))
		return
	}

	h.mu.RLock()
	members := h.rooms[roomID]
	targets := make([]*conn, 0, len(members))
	for id, c := range members {
		if id != exclude {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()
	h.deliver(targets, b)
}

func (h *Hub) deliver(targets []*conn, b []byte) {
	for _, c := range targets {
		if !c.enqueue(b) {
			h.drop(c)
		}
	}
}
