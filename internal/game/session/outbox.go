// Package session tracks connected clients and their outbound frame queues.
package session

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrOutboxClosed is returned by Push after Close.
	ErrOutboxClosed = errors.New("outbox closed")
	// ErrOutboxFull is returned by Push when the client is not draining its frames.
	ErrOutboxFull = errors.New("outbox full")
)

// Outbox is a bounded queue of encoded frames bound for one client. Pushes never
// block; the session's writer goroutine drains Frames onto the socket.
type Outbox struct {
	clientID string
	frames   chan []byte
	mu       sync.Mutex
	closed   bool
}

// NewOutbox creates an Outbox for the given client.
//
// Precondition: clientID must be non-empty.
// Postcondition: Returns an open Outbox holding up to size frames (64 if size <= 0).
func NewOutbox(clientID string, size int) *Outbox {
	if size <= 0 {
		size = 64
	}
	return &Outbox{
		clientID: clientID,
		frames:   make(chan []byte, size),
	}
}

// Push enqueues a frame without blocking.
//
// Precondition: frame must be a complete, newline-terminated frame.
// Postcondition: The frame is queued, or ErrOutboxClosed / ErrOutboxFull is returned.
func (o *Outbox) Push(frame []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("client %s: %w", o.clientID, ErrOutboxClosed)
	}
	select {
	case o.frames <- frame:
		return nil
	default:
		return fmt.Errorf("client %s: %w", o.clientID, ErrOutboxFull)
	}
}

// Frames returns the channel the writer goroutine drains. It is closed by Close
// after the frames already queued.
func (o *Outbox) Frames() <-chan []byte {
	return o.frames
}

// Close stops further pushes and closes the frames channel.
//
// Postcondition: Idempotent. Frames queued before Close are still delivered.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.frames)
	}
}
