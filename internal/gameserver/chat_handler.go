package gameserver

import (
	"github.com/cory-johannsen/breakshot/internal/game/session"
	"github.com/cory-johannsen/breakshot/internal/protocol"
)

// handleChatMessage broadcasts the sender's line to their whole room, sender
// included. Chat ignores turn order.
func (s *Server) handleChatMessage(sess *session.Session, msg protocol.Message) error {
	if sess.RoomID == "" {
		return nil
	}
	var req protocol.ChatRequest
	if err := msg.Decode(&req); err != nil {
		return err
	}
	out, err := protocol.NewMessage(protocol.TypeChatMessage, sess.ClientID, protocol.ChatMessage{
		Name:    sess.Name,
		Message: req.Message,
	})
	if err != nil {
		return err
	}
	s.broadcastLocked(sess.RoomID, "", out)
	return nil
}
