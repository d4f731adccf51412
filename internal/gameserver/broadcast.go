package gameserver

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/breakshot/internal/game/session"
	"github.com/cory-johannsen/breakshot/internal/protocol"
)

// sendLocked builds a server-originated message and queues it for one session.
//
// Precondition: s.mu must be held.
func (s *Server) sendLocked(sess *session.Session, typ protocol.Type, payload any) {
	msg, err := protocol.NewMessage(typ, protocol.SenderServer, payload)
	if err != nil {
		s.logger.Error("building message", zap.String("type", string(typ)), zap.Error(err))
		return
	}
	frame, err := protocol.Encode(msg)
	if err != nil {
		s.logger.Error("encoding message", zap.String("type", string(typ)), zap.Error(err))
		return
	}
	s.pushLocked(sess, frame)
}

// broadcastLocked queues msg for every member of roomID except excludeID.
// An empty excludeID reaches the whole room.
//
// Precondition: s.mu must be held.
func (s *Server) broadcastLocked(roomID, excludeID string, msg protocol.Message) {
	frame, err := protocol.Encode(msg)
	if err != nil {
		s.logger.Error("encoding broadcast", zap.String("type", string(msg.Type)), zap.Error(err))
		return
	}

	info, ok := s.rooms.Get(roomID)
	if !ok {
		return
	}
	for _, p := range info.Players {
		if p.PlayerID == excludeID {
			continue
		}
		sess, ok := s.sessions.Get(p.PlayerID)
		if !ok {
			continue
		}
		s.pushLocked(sess, frame)
	}
}

// broadcastFromServer builds a server-originated message and broadcasts it.
//
// Precondition: s.mu must be held.
func (s *Server) broadcastFromServer(roomID, excludeID string, typ protocol.Type, payload any) {
	msg, err := protocol.NewMessage(typ, protocol.SenderServer, payload)
	if err != nil {
		s.logger.Error("building broadcast", zap.String("type", string(typ)), zap.Error(err))
		return
	}
	s.broadcastLocked(roomID, excludeID, msg)
}

// relay re-broadcasts a client message with its data untouched, stamped with
// the sender's id and the current time.
func relay(sess *session.Session, msg protocol.Message) protocol.Message {
	return protocol.Message{
		Type:      msg.Type,
		SenderID:  sess.ClientID,
		Data:      msg.Data,
		Timestamp: protocol.Now(),
	}
}

// pushLocked queues a frame without blocking. A session that cannot take the
// frame is kicked; its own read loop then runs cleanup.
func (s *Server) pushLocked(sess *session.Session, frame []byte) {
	if err := sess.Outbox.Push(frame); err != nil {
		s.logger.Warn("dropping slow client",
			zap.String("client_id", sess.ClientID),
			zap.Error(err),
		)
		sess.Kick()
	}
}
