package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/inspectra/internal/lib/sl"
	"github.com/magabrotheeeer/inspectra/internal/models"
)

const handlerTimeout = 10 * time.Second

var errRateLimited = errors.New("rate limit exceeded")

// conn — одно websocket-соединение. Писать в сокет может только writePump.
type conn struct {
	id      string
	hub     *Hub
	ws      *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	limiter *rate.Limiter
	log     *slog.Logger

	// rooms и userID защищены hub.mu.
	rooms  map[string]struct{}
	userID string
}

// enqueue ставит кадр в очередь отправки. false, если очередь полна или соединение закрыто.
func (c *conn) enqueue(b []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

func (c *conn) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *conn) writePump() {
	cfg := c.hub.cfg
	ticker := time.NewTicker(cfg.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case b := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
				c.log.Debug("write failed", sl.Err(err))
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *conn) readPump() {
	cfg := c.hub.cfg
	defer c.hub.unregister(c)

	c.ws.SetReadLimit(cfg.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				c.log.Info("connection closed unexpectedly", sl.Err(err))
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.log.Warn("malformed frame", sl.Err(err))
			continue
		}
		c.dispatch(f)
	}
}

// dispatch обрабатывает кадр. Паника обработчика не роняет соединение.
func (c *conn) dispatch(f Frame) {
	log := c.log.With(slog.String("event", f.Event))
	defer func() {
		if r := recover(); r != nil {
			log.Error("event handler panicked", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			c.replyError(f.Ack, errors.New("internal error"))
		}
	}()

	eventsTotal.WithLabelValues(f.Event).Inc()
	if !c.limiter.Allow() {
		log.Warn("event rejected by rate limit")
		c.replyError(f.Ack, errRateLimited)
		return
	}

	ctx, cancel := context.WithTimeout(c.hub.ctx, handlerTimeout)
	defer cancel()

	var err error
	switch f.Event {
	case EventJoinRoom:
		err = c.onJoinRoom(f.Data)
	case EventNewMessage:
		err = c.onNewMessage(ctx, f)
	case EventMarkAsSeen:
		err = c.onMarkAsSeen(ctx, f.Data)
	case EventTyping, EventStopTyping:
		err = c.onTyping(f.Event, f.Data)
	case EventUserOnline:
		err = c.onUserOnline(f.Data)
	default:
		err = fmt.Errorf("%w: unknown event %q", models.ErrValidation, f.Event)
	}
	if err != nil {
		log.Warn("event failed", sl.Err(err))
		c.replyError(f.Ack, err)
	}
}

func (c *conn) reply(ack *int64, data any) {
	if ack == nil {
		return
	}
	b, err := encode(EventAck, ack, data)
	if err != nil {
		c.log.Error("failed to encode ack", sl.Err(err))
		return
	}
	if !c.enqueue(b) {
		c.hub.drop(c)
	}
}

func (c *conn) replyError(ack *int64, err error) {
	msg := publicError(err)
	if errors.Is(err, errRateLimited) {
		msg = errRateLimited.Error()
	}
	c.reply(ack, AckError{Error: msg})
}

func (c *conn) onJoinRoom(data json.RawMessage) error {
	var p RoomPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ChatroomID == "" {
		return fmt.Errorf("%w: chatroomId is required", models.ErrValidation)
	}
	c.hub.join(c, p.ChatroomID)
	c.log.Debug("joined room", slog.String("room_id", p.ChatroomID), slog.String("user_id", p.UserID))
	return nil
}

func (c *conn) onNewMessage(ctx context.Context, f Frame) error {
	var p models.DummyMessage
	if err := json.Unmarshal(f.Data, &p); err != nil {
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	if p.Chatroom == "" || p.Sender == "" || !p.SenderModel.Valid() {
		return fmt.Errorf("%w: chatroom, sender and senderModel are required", models.ErrValidation)
	}
	msg, err := c.hub.SendMessage(ctx, p.Chatroom, models.Sender{Kind: p.SenderModel, ID: p.Sender}, p.Content, c.id)
	if err != nil {
		return err
	}
	c.reply(f.Ack, msg)
	return nil
}

func (c *conn) onMarkAsSeen(ctx context.Context, data json.RawMessage) error {
	var p RoomPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ChatroomID == "" || p.UserID == "" {
		return fmt.Errorf("%w: chatroomId and userId are required", models.ErrValidation)
	}
	return c.hub.MarkSeen(ctx, p.ChatroomID, p.UserID, c.id)
}

func (c *conn) onTyping(event string, data json.RawMessage) error {
	var p TypingPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ChatroomID == "" {
		return fmt.Errorf("%w: chatroomId is required", models.ErrValidation)
	}
	c.hub.broadcastRoom(p.ChatroomID, event, p, c.id)
	return nil
}

func (c *conn) onUserOnline(data json.RawMessage) error {
	var userID string
	if err := json.Unmarshal(data, &userID); err != nil || userID == "" {
		return fmt.Errorf("%w: userId is required", models.ErrValidation)
	}
	c.hub.markOnline(c, userID)
	return nil
}
