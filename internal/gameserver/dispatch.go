package gameserver

import (
	"errors"

	"go.uber.org/zap"

	"github.com/cory-johannsen/breakshot/internal/game/room"
	"github.com/cory-johannsen/breakshot/internal/game/session"
	"github.com/cory-johannsen/breakshot/internal/protocol"
)

type handlerFunc func(sess *session.Session, msg protocol.Message) error

// handlers maps every client-originated message type to its handler.
func (s *Server) handlers() map[protocol.Type]handlerFunc {
	return map[protocol.Type]handlerFunc{
		protocol.TypeConnect:     s.handleConnect,
		protocol.TypePing:        s.handlePing,
		protocol.TypeCreateRoom:  s.handleCreateRoom,
		protocol.TypeJoinRoom:    s.handleJoinRoom,
		protocol.TypeLeaveRoom:   s.handleLeaveRoom,
		protocol.TypeRoomList:    s.handleRoomList,
		protocol.TypePlayerReady: s.handlePlayerReady,
		protocol.TypeGameStart:   s.handleGameStart,
		protocol.TypeShotAim:     s.handleShotAim,
		protocol.TypeShotExecute: s.handleShotExecute,
		protocol.TypeShotResult:  s.handleShotResult,
		protocol.TypeTurnChange:  s.handleTurnChange,
		protocol.TypeGameOver:    s.handleGameOver,
		protocol.TypeChatMessage: s.handleChatMessage,
	}
}

// dispatch routes msg to exactly one handler under the server lock. A
// *room.Rejection from a handler is answered with ERROR to the sender; any
// other handler error means the payload was unusable and is logged.
//
// Postcondition: Returns errQuit for DISCONNECT, nil otherwise.
func (s *Server) dispatch(sess *session.Session, msg protocol.Message) error {
	if msg.Type == protocol.TypeDisconnect {
		return errQuit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	handle, ok := s.routes[msg.Type]
	if !ok {
		s.logger.Warn("unhandled message type",
			zap.String("client_id", sess.ClientID),
			zap.String("type", string(msg.Type)),
		)
		return nil
	}

	err := handle(sess, msg)
	var rej *room.Rejection
	switch {
	case err == nil:
	case errors.As(err, &rej):
		s.logger.Debug("request rejected",
			zap.String("client_id", sess.ClientID),
			zap.String("type", string(msg.Type)),
			zap.String("reason", rej.Reason),
		)
		s.sendLocked(sess, protocol.TypeError, protocol.ErrorPayload{Error: rej.Reason})
	default:
		s.logger.Warn("dropping message",
			zap.String("client_id", sess.ClientID),
			zap.String("type", string(msg.Type)),
			zap.Error(err),
		)
	}
	return nil
}

func (s *Server) handleConnect(sess *session.Session, msg protocol.Message) error {
	var req protocol.ConnectRequest
	if err := msg.Decode(&req); err != nil {
		return err
	}
	name, err := s.sessions.SetName(sess.ClientID, req.Name)
	if err != nil {
		return err
	}
	s.logger.Info("client identified",
		zap.String("client_id", sess.ClientID),
		zap.String("name", name),
	)
	s.sendLocked(sess, protocol.TypeConnect, protocol.ConnectReply{
		Success:  true,
		PlayerID: sess.ClientID,
		Name:     name,
	})
	if sess.RoomID != "" {
		if info, ok := s.rooms.Rename(sess.RoomID, sess.ClientID, name); ok {
			s.broadcastFromServer(info.RoomID, "", protocol.TypeRoomUpdate, protocol.RoomUpdate{Room: info})
		}
	}
	return nil
}

func (s *Server) handlePing(sess *session.Session, msg protocol.Message) error {
	var ping protocol.Ping
	if err := msg.Decode(&ping); err != nil {
		return err
	}
	s.sendLocked(sess, protocol.TypePong, protocol.Pong{ClientTime: ping.Time})
	return nil
}
