package session

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one connected client.
type Session struct {
	// ClientID is the server-assigned UUID; it doubles as the player id.
	ClientID string
	// Name is the display name; it defaults to Player_<first 8 of ClientID>.
	Name string
	// RemoteAddr is the peer address, for logging.
	RemoteAddr string
	// ConnectedAt is when the connection was accepted.
	ConnectedAt time.Time
	// RoomID is the room the client is in, or empty.
	RoomID string
	// Outbox queues frames for the client's writer goroutine.
	Outbox *Outbox

	// kick closes the client's transport; set by the transport that accepted it.
	kick func()
}

// Kick closes the client's transport, which ends its read loop and triggers cleanup.
func (s *Session) Kick() {
	if s.kick != nil {
		s.kick()
	}
}

// DefaultName returns the display name given to a client that has not chosen one.
func DefaultName(clientID string) string {
	if len(clientID) > 8 {
		clientID = clientID[:8]
	}
	return "Player_" + clientID
}

// Manager tracks all connected sessions. All methods are safe for concurrent use.
type Manager struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	outboxSize int
}

// NewManager creates an empty session Manager whose outboxes hold outboxSize frames.
func NewManager(outboxSize int) *Manager {
	return &Manager{
		sessions:   make(map[string]*Session),
		outboxSize: outboxSize,
	}
}

// Add registers a newly accepted connection under a fresh client id.
//
// Precondition: kick must be non-nil and safe to call more than once.
// Postcondition: Returns the registered Session with an open Outbox and no room.
func (m *Manager) Add(remote net.Addr, kick func()) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	for m.sessions[id] != nil {
		id = uuid.NewString()
	}
	sess := &Session{
		ClientID:    id,
		Name:        DefaultName(id),
		ConnectedAt: time.Now(),
		Outbox:      NewOutbox(id, m.outboxSize),
		kick:        kick,
	}
	if remote != nil {
		sess.RemoteAddr = remote.String()
	}
	m.sessions[id] = sess
	return sess
}

// Remove unregisters a session and closes its outbox.
//
// Postcondition: Returns the removed session, or an error if it was not registered.
func (m *Manager) Remove(clientID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[clientID]
	if !ok {
		return nil, fmt.Errorf("client %q not found", clientID)
	}
	sess.Outbox.Close()
	delete(m.sessions, clientID)
	return sess, nil
}

// Get returns the session for the given client id.
//
// Postcondition: Returns (session, true) if found, or (nil, false) otherwise.
func (m *Manager) Get(clientID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[clientID]
	return sess, ok
}

// SetName changes a session's display name. An empty name restores the default.
func (m *Manager) SetName(clientID, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[clientID]
	if !ok {
		return "", fmt.Errorf("client %q not found", clientID)
	}
	if name == "" {
		name = DefaultName(clientID)
	}
	sess.Name = name
	return name, nil
}

// SetRoom records the room a session is in. An empty roomID means no room.
func (m *Manager) SetRoom(clientID, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[clientID]
	if !ok {
		return fmt.Errorf("client %q not found", clientID)
	}
	sess.RoomID = roomID
	return nil
}

// Count returns the number of connected sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
