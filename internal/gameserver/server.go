// Package gameserver implements the session server: it owns every connected
// session and every room, routes inbound messages to handlers and fans results
// out to room members.
package gameserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/breakshot/internal/config"
	"github.com/cory-johannsen/breakshot/internal/game/room"
	"github.com/cory-johannsen/breakshot/internal/game/session"
	"github.com/cory-johannsen/breakshot/internal/observability"
	"github.com/cory-johannsen/breakshot/internal/protocol"
)

// errQuit is returned by dispatch when the client asked to disconnect.
var errQuit = errors.New("quit")

// Stats is a point-in-time summary of server occupancy.
type Stats struct {
	Sessions int
	Rooms    int
}

// Server is the session server. Every handler runs under mu, so registry
// mutations and the frames they produce are ordered identically for all peers.
type Server struct {
	cfg      config.ServerConfig
	logger   *zap.Logger
	sessions *session.Manager
	rooms    *room.Registry
	routes   map[protocol.Type]handlerFunc

	// mu serialises all handlers. Lock order: mu, then the registries' own locks.
	mu sync.Mutex
}

// NewServer creates a session server with empty registries.
//
// Precondition: cfg must pass config validation; logger must be non-nil.
func NewServer(cfg config.ServerConfig, logger *zap.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		sessions: session.NewManager(cfg.OutboxSize),
		rooms:    room.NewRegistry(cfg.MaxRooms, cfg.MaxPlayers),
	}
	s.routes = s.handlers()
	return s
}

// HandleSession serves a TCP connection accepted by the transport layer.
func (s *Server) HandleSession(ctx context.Context, conn *protocol.Conn) error {
	return s.Serve(ctx, conn)
}

// Serve registers t as a new session and processes its messages until the
// client disconnects, the transport fails, or ctx is cancelled.
//
// Postcondition: The session is removed from its room and the registry, and t is closed.
func (s *Server) Serve(ctx context.Context, t protocol.Transport) error {
	start := time.Now()
	sess := s.sessions.Add(t.RemoteAddr(), func() { _ = t.Close() })
	logger := s.logger.With(observability.ConnFields(sess.ClientID, t.RemoteAddr())...)
	logger.Info("client connected")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(sess, t, logger)
	}()

	stop := context.AfterFunc(ctx, func() { _ = t.Close() })
	defer stop()

	err := s.readLoop(sess, t, logger)
	// cleanup closes the outbox, so the writer flushes what is queued and exits.
	s.cleanup(sess, logger)
	<-writerDone
	_ = t.Close()

	logger.Info("client disconnected",
		zap.Duration("duration", time.Since(start)),
		zap.NamedError("reason", err),
	)
	return err
}

func (s *Server) readLoop(sess *session.Session, t protocol.Transport, logger *zap.Logger) error {
	for {
		msg, err := t.ReadMessage()
		if err != nil {
			switch {
			case protocol.IsProtocolError(err):
				logger.Warn("dropping malformed frame", zap.Error(err))
				continue
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
				return nil
			case protocol.IsTimeout(err):
				return fmt.Errorf("client idle for %s: %w", s.cfg.ReadTimeout, err)
			default:
				return fmt.Errorf("reading from client: %w", err)
			}
		}

		if err := s.dispatch(sess, msg); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			return err
		}
	}
}

// writeLoop drains the session outbox onto the transport. A write failure
// closes the transport, which ends the read loop.
func (s *Server) writeLoop(sess *session.Session, t protocol.Transport, logger *zap.Logger) {
	for frame := range sess.Outbox.Frames() {
		if err := t.WriteFrame(frame); err != nil {
			logger.Debug("write failed", zap.Error(err))
			_ = t.Close()
			return
		}
	}
}

// cleanup removes the session from its room and from the registry.
func (s *Server) cleanup(sess *session.Session, logger *zap.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.RoomID != "" {
		s.leaveRoomLocked(sess)
	}
	if _, err := s.sessions.Remove(sess.ClientID); err != nil {
		logger.Warn("removing session on cleanup", zap.Error(err))
	}
}

// Stats reports the current number of sessions and rooms.
func (s *Server) Stats() Stats {
	return Stats{
		Sessions: s.sessions.Count(),
		Rooms:    s.rooms.Count(),
	}
}
