package realtime

import (
	"sort"
	"sync"
)

// Presence отслеживает, какое соединение представляет пользователя.
// Новое соединение пользователя вытесняет прежнее из списка присутствия,
// но само прежнее соединение продолжает получать события комнат.
type Presence struct {
	mu     sync.Mutex
	byUser map[string]string
	byConn map[string]string
}

// NewPresence создаёт пустой трекер.
func NewPresence() *Presence {
	return &Presence{
		byUser: make(map[string]string),
		byConn: make(map[string]string),
	}
}

// MarkOnline связывает userID с connID.
func (p *Presence) MarkOnline(userID, connID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if prev, ok := p.byUser[userID]; ok && prev != connID {
		delete(p.byConn, prev)
	}
	if prevUser, ok := p.byConn[connID]; ok && prevUser != userID {
		delete(p.byUser, prevUser)
	}
	p.byUser[userID] = connID
	p.byConn[connID] = userID
}

// MarkOffline снимает присутствие, если connID всё ещё представляет
// пользователя. Возвращает true, если список присутствия изменился.
func (p *Presence) MarkOffline(connID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	userID, ok := p.byConn[connID]
	if !ok {
		return false
	}
	delete(p.byConn, connID)
	if p.byUser[userID] != connID {
		return false
	}
	delete(p.byUser, userID)
	return true
}

// Online возвращает отсортированный список пользователей в сети.
func (p *Presence) Online() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.byUser))
	for u := range p.byUser {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Reset очищает трекер.
func (p *Presence) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byUser = make(map[string]string)
	p.byConn = make(map[string]string)
}
