package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

var ErrNoSession = errors.New("no ws session")

// wsMessage is the frame pushed to a connected app session.
type wsMessage struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// WSSession wraps one connected user socket.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) send(m wsMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(m)
}

// WSRegistry holds live user sessions keyed by user ID. A session delivers
// notifications in-app while the user has the client open; users without a
// session fall back to FCM via PushSender.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
}

func NewWSRegistry() *WSRegistry { return &WSRegistry{sessions: make(map[string]*WSSession)} }

func (r *WSRegistry) Add(userID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[userID] = &WSSession{conn: conn}
}

func (r *WSRegistry) Remove(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
}

// Send delivers over the user's socket, if one is connected.
func (r *WSRegistry) Send(_ context.Context, dest Destination, title, body string, data map[string]string) error {
	r.mu.RLock()
	s, ok := r.sessions[dest.UserID]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	return s.send(wsMessage{Title: title, Body: body, Data: data})
}
