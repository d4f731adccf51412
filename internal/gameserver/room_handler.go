package gameserver

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/breakshot/internal/game/room"
	"github.com/cory-johannsen/breakshot/internal/game/session"
	"github.com/cory-johannsen/breakshot/internal/protocol"
)

func (s *Server) handleCreateRoom(sess *session.Session, msg protocol.Message) error {
	var req protocol.CreateRoomRequest
	if err := msg.Decode(&req); err != nil {
		return err
	}
	if s.rooms.Count() >= s.cfg.MaxRooms {
		return room.ErrServerFull
	}
	if sess.RoomID != "" {
		s.leaveRoomLocked(sess)
	}

	info, err := s.rooms.Create(sess.ClientID, sess.Name, req.RoomName, req.GameType)
	if err != nil {
		return err
	}
	if err := s.sessions.SetRoom(sess.ClientID, info.RoomID); err != nil {
		return err
	}

	s.logger.Info("room created",
		zap.String("room_id", info.RoomID),
		zap.String("room_name", info.RoomName),
		zap.String("client_id", sess.ClientID),
	)
	s.sendLocked(sess, protocol.TypeCreateRoom, protocol.RoomReply{Success: true, Room: info})
	return nil
}

// handleJoinRoom adds the sender to a room. The target room is validated
// before the sender leaves any previous room, so a rejected join keeps the
// sender where they were.
func (s *Server) handleJoinRoom(sess *session.Session, msg protocol.Message) error {
	var req protocol.JoinRoomRequest
	if err := msg.Decode(&req); err != nil {
		return err
	}
	if req.RoomID != "" && req.RoomID == sess.RoomID {
		return room.ErrAlreadyInRoom
	}

	info, err := s.rooms.Join(req.RoomID, sess.ClientID, sess.Name)
	if err != nil {
		return err
	}
	if sess.RoomID != "" {
		s.leaveRoomLocked(sess)
	}
	if err := s.sessions.SetRoom(sess.ClientID, info.RoomID); err != nil {
		return err
	}

	s.logger.Info("player joined room",
		zap.String("room_id", info.RoomID),
		zap.String("client_id", sess.ClientID),
	)
	s.sendLocked(sess, protocol.TypeJoinRoom, protocol.RoomReply{Success: true, Room: info})
	s.broadcastFromServer(info.RoomID, sess.ClientID, protocol.TypeRoomUpdate, protocol.RoomUpdate{Room: info})
	return nil
}

func (s *Server) handleLeaveRoom(sess *session.Session, _ protocol.Message) error {
	if sess.RoomID != "" {
		s.leaveRoomLocked(sess)
	}
	s.sendLocked(sess, protocol.TypeLeaveRoom, protocol.LeaveRoomReply{Success: true})
	return nil
}

// leaveRoomLocked removes sess from its room and tells the remaining members.
//
// Precondition: s.mu must be held; sess.RoomID must be non-empty.
// Postcondition: sess.RoomID is empty. An emptied room no longer exists.
func (s *Server) leaveRoomLocked(sess *session.Session) {
	roomID := sess.RoomID
	res, ok := s.rooms.Leave(roomID, sess.ClientID)
	if err := s.sessions.SetRoom(sess.ClientID, ""); err != nil {
		s.logger.Warn("clearing room", zap.String("client_id", sess.ClientID), zap.Error(err))
	}
	if !ok {
		return
	}

	fields := []zap.Field{
		zap.String("room_id", roomID),
		zap.String("client_id", sess.ClientID),
	}
	if res.Deleted {
		s.logger.Info("room closed", fields...)
		return
	}
	if res.HostChanged {
		fields = append(fields, zap.String("new_host_id", res.Room.HostID))
	}
	s.logger.Info("player left room", fields...)
	s.broadcastFromServer(roomID, "", protocol.TypeRoomUpdate, protocol.RoomUpdate{Room: res.Room})
}

func (s *Server) handleRoomList(sess *session.Session, _ protocol.Message) error {
	s.sendLocked(sess, protocol.TypeRoomList, protocol.RoomList{Rooms: s.rooms.Open()})
	return nil
}

func (s *Server) handlePlayerReady(sess *session.Session, msg protocol.Message) error {
	if sess.RoomID == "" {
		return nil
	}
	var req protocol.PlayerReady
	if err := msg.Decode(&req); err != nil {
		return err
	}
	ready := true
	if req.IsReady != nil {
		ready = *req.IsReady
	}

	info, ok := s.rooms.SetReady(sess.RoomID, sess.ClientID, ready)
	if !ok {
		return nil
	}
	s.broadcastFromServer(info.RoomID, "", protocol.TypeRoomUpdate, protocol.RoomUpdate{Room: info})
	return nil
}

func (s *Server) handleGameStart(sess *session.Session, _ protocol.Message) error {
	if sess.RoomID == "" {
		return nil
	}
	info, game, err := s.rooms.Start(sess.RoomID, sess.ClientID)
	if err != nil {
		return err
	}

	s.logger.Info("game started",
		zap.String("room_id", info.RoomID),
		zap.String("first_player_id", game.CurrentPlayerID),
	)
	s.broadcastFromServer(info.RoomID, "", protocol.TypeGameStart, protocol.GameStart{
		Room:          info,
		GameState:     game,
		FirstPlayerID: game.CurrentPlayerID,
	})
	return nil
}
