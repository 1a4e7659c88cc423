package ws

import (
	"sync"
)

type Conn interface {
	Send(msg Message) error
	Close() error
	RoomID() string
}

// Hub — реестр открытых соединений по комнатам. Данные по нему не ходят:
// у каждого соединения своя подписка на комнату. Hub нужен для счётчиков
// и чтобы закрыть всех при остановке сервера.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[Conn]struct{} // roomID -> set of connections
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[Conn]struct{})}
}

func (h *Hub) Add(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rs, ok := h.rooms[c.RoomID()]
	if !ok {
		rs = make(map[Conn]struct{})
		h.rooms[c.RoomID()] = rs
	}
	rs[c] = struct{}{}
}

func (h *Hub) Remove(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if rs, ok := h.rooms[c.RoomID()]; ok {
		delete(rs, c)
		if len(rs) == 0 {
			delete(h.rooms, c.RoomID())
		}
	}
}

// Count — число соединений в комнате.
func (h *Hub) Count(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// CloseAll шлёт msg всем (best-effort) и закрывает соединения.
func (h *Hub) CloseAll(msg Message) {
	h.mu.RLock()
	conns := make([]Conn, 0)
	for _, rs := range h.rooms {
		for c := range rs {
			conns = append(conns, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range conns {
		_ = c.Send(msg)
		_ = c.Close()
	}
}
