package gameserver

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/breakshot/internal/game/session"
	"github.com/cory-johannsen/breakshot/internal/protocol"
)

// Shot traffic from anyone but the current player is dropped without a reply.

func (s *Server) ignoreOutOfTurn(sess *session.Session, msg protocol.Message) {
	s.logger.Debug("ignoring out-of-turn message",
		zap.String("client_id", sess.ClientID),
		zap.String("room_id", sess.RoomID),
		zap.String("type", string(msg.Type)),
	)
}

func (s *Server) handleShotAim(sess *session.Session, msg protocol.Message) error {
	if !s.rooms.CanShoot(sess.RoomID, sess.ClientID) {
		s.ignoreOutOfTurn(sess, msg)
		return nil
	}
	s.broadcastLocked(sess.RoomID, sess.ClientID, relay(sess, msg))
	return nil
}

func (s *Server) handleShotExecute(sess *session.Session, msg protocol.Message) error {
	var shot protocol.Shot
	if err := msg.Decode(&shot); err != nil {
		// The payload is relayed verbatim; only the recorded cue state is lost.
		shot.CueState = nil
	}
	if !s.rooms.RecordShotExecute(sess.RoomID, sess.ClientID, shot.CueState) {
		s.ignoreOutOfTurn(sess, msg)
		return nil
	}
	s.broadcastLocked(sess.RoomID, "", relay(sess, msg))
	return nil
}

func (s *Server) handleShotResult(sess *session.Session, msg protocol.Message) error {
	if !s.rooms.CanShoot(sess.RoomID, sess.ClientID) {
		s.ignoreOutOfTurn(sess, msg)
		return nil
	}
	var res protocol.ShotResult
	if err := msg.Decode(&res); err != nil {
		return err
	}
	out, ok := s.rooms.RecordShotResult(sess.RoomID, sess.ClientID, res)
	if !ok {
		s.ignoreOutOfTurn(sess, msg)
		return nil
	}

	s.broadcastLocked(sess.RoomID, sess.ClientID, relay(sess, msg))
	if out.TurnChanged {
		s.broadcastTurnChange(out.Game)
	}
	if out.GameOver {
		s.broadcastGameOver(out.Game)
	}
	return nil
}

func (s *Server) handleTurnChange(sess *session.Session, msg protocol.Message) error {
	if !s.rooms.CanShoot(sess.RoomID, sess.ClientID) {
		s.ignoreOutOfTurn(sess, msg)
		return nil
	}
	var req protocol.TurnChange
	if err := msg.Decode(&req); err != nil {
		return err
	}
	game, ok := s.rooms.ChangeTurn(sess.RoomID, sess.ClientID, req.NextPlayerID)
	if !ok {
		s.logger.Debug("ignoring turn change",
			zap.String("client_id", sess.ClientID),
			zap.String("next_player_id", req.NextPlayerID),
		)
		return nil
	}
	s.broadcastTurnChange(game)
	return nil
}

func (s *Server) handleGameOver(sess *session.Session, msg protocol.Message) error {
	if !s.rooms.CanShoot(sess.RoomID, sess.ClientID) {
		s.ignoreOutOfTurn(sess, msg)
		return nil
	}
	var req protocol.GameOver
	if err := msg.Decode(&req); err != nil {
		return err
	}
	game, ok := s.rooms.EndGame(sess.RoomID, sess.ClientID, req.WinnerID)
	if !ok {
		return nil
	}
	s.broadcastGameOver(game)
	return nil
}

func (s *Server) broadcastTurnChange(game protocol.GameState) {
	s.broadcastFromServer(game.RoomID, "", protocol.TypeTurnChange, protocol.TurnChange{
		NextPlayerID: game.CurrentPlayerID,
		TurnNumber:   game.TurnNumber,
		ShotNumber:   game.ShotNumber,
	})
}

func (s *Server) broadcastGameOver(game protocol.GameState) {
	winner := "none"
	if game.WinnerID != nil {
		winner = *game.WinnerID
	}
	s.logger.Info("game over", zap.String("room_id", game.RoomID), zap.String("winner_id", winner))
	s.broadcastFromServer(game.RoomID, "", protocol.TypeGameOver, protocol.GameOver{WinnerID: game.WinnerID})
}
