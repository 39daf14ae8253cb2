// Package hub is the realtime fan-out channel: a registry of connected
// websocket sessions that change notifications are broadcast to. It is
// a cache-invalidation signal, not a durable log; nothing is queued
// for disconnected clients.
package hub

import (
	"log"
	"sync"

	"zapflow/models"
)

// Event names pushed to clients. Clients send no commands back over
// this channel; all mutations go through the HTTP API.
const (
	EventBoardChanged   = "kanban:updated"
	EventMessageArrived = "message:new"
)

// sessionBuffer bounds the per-session outbox. A client that falls
// this far behind is dropped and refetches on reconnect.
const sessionBuffer = 16

type envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Conn is the subset of a websocket connection the hub writes to.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Session is one registered client connection. A single writer
// goroutine drains the outbox; websocket connections do not allow
// concurrent writers.
type Session struct {
	conn   Conn
	outbox chan envelope
	closed sync.Once
}

func (s *Session) teardown() {
	s.closed.Do(func() {
		close(s.outbox)
		_ = s.conn.Close()
	})
}

// Hub holds the active-connection registry. Created at process start,
// torn down at shutdown with all connections closed.
type Hub struct {
	mu       sync.RWMutex
	sessions map[*Session]struct{}
	logger   *log.Logger
}

func New(logger *log.Logger) *Hub {
	return &Hub{
		sessions: make(map[*Session]struct{}),
		logger:   logger,
	}
}

// Register adds a connection to the fan-out set and starts its writer.
func (h *Hub) Register(conn Conn) *Session {
	s := &Session{conn: conn, outbox: make(chan envelope, sessionBuffer)}
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	n := len(h.sessions)
	h.mu.Unlock()
	go h.writeLoop(s)
	h.logger.Printf("Client connected (%d active)", n)
	return s
}

// writeLoop serializes writes to one connection. A write error tears
// the session down; the client refetches on reconnect.
func (h *Hub) writeLoop(s *Session) {
	for env := range s.outbox {
		if err := s.conn.WriteJSON(env); err != nil {
			h.Unregister(s)
			return
		}
	}
}

// Unregister removes a session and closes its connection. Safe to call
// more than once.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	_, ok := h.sessions[s]
	delete(h.sessions, s)
	n := len(h.sessions)
	h.mu.Unlock()

	s.teardown()
	if ok {
		h.logger.Printf("Client disconnected (%d active)", n)
	}
}

// PublishBoard broadcasts the full board snapshot to every session.
func (h *Hub) PublishBoard(view models.BoardView) {
	h.broadcast(envelope{Event: EventBoardChanged, Data: view})
}

// PublishMessage broadcasts a newly arrived message. The payload
// carries the owning contact id on the message itself.
func (h *Hub) PublishMessage(msg models.Message) {
	h.broadcast(envelope{Event: EventMessageArrived, Data: msg})
}

// broadcast is best-effort, at-most-once per session, and never
// blocks the caller: a session whose outbox is full is dropped, the
// same as one whose write fails.
func (h *Hub) broadcast(env envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.sessions {
		select {
		case s.outbox <- env:
		default:
			// Unregister needs the write lock; hand off.
			go h.Unregister(s)
		}
	}
}

// Count returns the number of active sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Close disconnects every session. Used at shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	sessions := h.sessions
	h.sessions = make(map[*Session]struct{})
	h.mu.Unlock()

	for s := range sessions {
		s.teardown()
	}
}
