// Package client implements the host-side network bridge to a breakshot
// session server. Network I/O runs on a background worker; inbound messages are
// queued and dispatched to an EventHandler only from Bridge.Update.
package client

import (
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/breakshot/internal/config"
	"github.com/cory-johannsen/breakshot/internal/protocol"
)

var (
	// ErrNotConnected is returned by send operations when no session is active.
	ErrNotConnected = errors.New("not connected")
	// ErrSendQueueFull is returned when the outbound buffer cannot take another frame.
	ErrSendQueueFull = errors.New("send queue full")
)

// Bridge connects a single host (a game UI or console) to the session server.
// All methods must be called from the same host goroutine.
type Bridge struct {
	cfg     config.ClientConfig
	handler EventHandler
	logger  *zap.Logger

	worker *worker

	playerID   string
	playerName string
	connected  bool
	room       *protocol.RoomInfo
	game       *protocol.GameState
}

// NewBridge creates a disconnected bridge.
//
// Precondition: cfg must be valid; handler and logger must be non-nil.
func NewBridge(cfg config.ClientConfig, handler EventHandler, logger *zap.Logger) *Bridge {
	return &Bridge{cfg: cfg, handler: handler, logger: logger}
}

// Connect starts a new session, tearing down any existing one first. The
// outcome is reported asynchronously through Update: OnConnected on success,
// OnError when the server cannot be reached.
//
// Postcondition: Returns an error only for an unusable address.
func (b *Bridge) Connect(host string, port int, name string) error {
	if host == "" {
		return fmt.Errorf("connect: empty host")
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("connect: port %d out of range", port)
	}
	b.Disconnect()

	b.playerName = name
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	b.worker = startWorker(b.cfg, addr, name, b.logger)
	b.logger.Info("connecting", zap.String("server_addr", addr), zap.String("name", name))
	return nil
}

// Disconnect ends the current session: it sends a best-effort DISCONNECT,
// stops the worker, waits up to the configured join timeout and clears all
// session state. OnDisconnected fires if the session had been established.
func (b *Bridge) Disconnect() {
	if b.worker == nil {
		return
	}
	wasConnected := b.connected
	w := b.worker

	if wasConnected {
		if err := b.send(protocol.TypeDisconnect, nil); err != nil {
			b.logger.Debug("disconnect notice not sent", zap.Error(err))
		}
	}
	w.stop()
	select {
	case <-w.done:
	case <-time.After(b.cfg.JoinTimeout):
		b.logger.Warn("network worker did not exit in time", zap.Duration("join_timeout", b.cfg.JoinTimeout))
	}

	b.reset()
	if wasConnected {
		b.handler.OnDisconnected()
	}
}

func (b *Bridge) reset() {
	b.worker = nil
	b.connected = false
	b.playerID = ""
	b.room = nil
	b.game = nil
}

// Update drains the inbound queue, applying each message to the bridge state
// and invoking the matching callback, in arrival order.
//
// Postcondition: Returns the number of messages processed.
func (b *Bridge) Update() int {
	n := 0
	for b.worker != nil {
		msg, ok := b.worker.queue.pop()
		if !ok {
			break
		}
		b.handle(msg)
		n++
	}
	return n
}

func (b *Bridge) handle(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeConnect:
		var reply protocol.ConnectReply
		if !b.decode(msg, &reply) || !reply.Success {
			return
		}
		b.playerID = reply.PlayerID
		b.playerName = reply.Name
		b.connected = true
		b.handler.OnConnected(reply.PlayerID)

	case protocol.TypeDisconnect:
		b.reset()
		b.handler.OnDisconnected()

	case protocol.TypeRoomUpdate:
		var update protocol.RoomUpdate
		if b.decode(msg, &update) {
			b.setRoom(update.Room)
		}

	case protocol.TypeCreateRoom, protocol.TypeJoinRoom:
		var reply protocol.RoomReply
		if b.decode(msg, &reply) && reply.Success {
			b.setRoom(reply.Room)
		}

	case protocol.TypeRoomList:
		var list protocol.RoomList
		if b.decode(msg, &list) {
			b.handler.OnRoomList(list.Rooms)
		}

	case protocol.TypeLeaveRoom:
		b.room = nil
		b.game = nil
		b.handler.OnRoomLeft()

	case protocol.TypeGameStart:
		var start protocol.GameStart
		if !b.decode(msg, &start) {
			return
		}
		room := start.Room.Clone()
		game := start.GameState.Clone()
		b.room = &room
		b.game = &game
		b.handler.OnGameStart(game.Clone())

	case protocol.TypeShotAim:
		b.handler.OnShotAim(msg.Data)

	case protocol.TypeShotExecute:
		var shot protocol.Shot
		if b.game != nil && b.decode(msg, &shot) && shot.CueState != nil {
			cue := *shot.CueState
			b.game.CueState = &cue
		}
		b.handler.OnShotExecute(msg.Data)

	case protocol.TypeShotResult:
		var res protocol.ShotResult
		if !b.decode(msg, &res) {
			return
		}
		b.applyShotResult(res)
		b.handler.OnShotResult(res)

	case protocol.TypeTurnChange:
		var tc protocol.TurnChange
		if !b.decode(msg, &tc) {
			return
		}
		if b.game != nil {
			b.game.CurrentPlayerID = tc.NextPlayerID
			b.game.TurnNumber = tc.TurnNumber
			b.game.ShotNumber = tc.ShotNumber
		}
		b.handler.OnTurnChange(tc.NextPlayerID)

	case protocol.TypeGameOver:
		var over protocol.GameOver
		if !b.decode(msg, &over) {
			return
		}
		if b.game != nil {
			b.game.IsGameOver = true
			b.game.WinnerID = over.WinnerID
		}
		if over.WinnerID != nil {
			b.handler.OnGameOver(*over.WinnerID, true)
		} else {
			b.handler.OnGameOver("", false)
		}

	case protocol.TypeChatMessage:
		var chat protocol.ChatMessage
		if !b.decode(msg, &chat) {
			return
		}
		if chat.Name == "" {
			chat.Name = "Unknown"
		}
		b.handler.OnChatMessage(chat.Name, chat.Message)

	case protocol.TypePong:
		var pong protocol.Pong
		if !b.decode(msg, &pong) {
			return
		}
		rtt := time.Duration(math.Max(0, protocol.Now()-pong.ClientTime) * float64(time.Second))
		b.handler.OnPong(rtt)

	case protocol.TypeError:
		var e protocol.ErrorPayload
		_ = b.decode(msg, &e)
		if e.Error == "" {
			e.Error = "Unknown error"
		}
		b.handler.OnError(e.Error)

	default:
		b.logger.Debug("ignoring message", zap.String("type", string(msg.Type)))
	}
}

func (b *Bridge) setRoom(info protocol.RoomInfo) {
	room := info.Clone()
	b.room = &room
	b.handler.OnRoomUpdate(info)
}

func (b *Bridge) applyShotResult(res protocol.ShotResult) {
	if b.game == nil {
		return
	}
	if res.BallPositions != nil {
		b.game.BallPositions = res.BallPositions
	}
	if res.BallStates != nil {
		b.game.BallStates = res.BallStates
	}
	if len(res.Score) > 0 && b.game.Score == nil {
		b.game.Score = make(map[string]int, len(res.Score))
	}
	for k, v := range res.Score {
		b.game.Score[k] = v
	}
}

func (b *Bridge) decode(msg protocol.Message, v any) bool {
	if err := msg.Decode(v); err != nil {
		b.logger.Warn("dropping undecodable payload", zap.String("type", string(msg.Type)), zap.Error(err))
		return false
	}
	return true
}

// send builds a message from this player and hands it to the worker.
func (b *Bridge) send(t protocol.Type, payload any) error {
	if b.worker == nil {
		return ErrNotConnected
	}
	msg, err := protocol.NewMessage(t, b.playerID, payload)
	if err != nil {
		return err
	}
	frame, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	return b.worker.send(frame)
}

// CreateRoom asks the server for a new room. Empty values take server defaults.
func (b *Bridge) CreateRoom(roomName, gameType string) error {
	return b.send(protocol.TypeCreateRoom, protocol.CreateRoomRequest{RoomName: roomName, GameType: gameType})
}

// JoinRoom asks to join the room with the given id.
func (b *Bridge) JoinRoom(roomID string) error {
	return b.send(protocol.TypeJoinRoom, protocol.JoinRoomRequest{RoomID: roomID})
}

// LeaveRoom leaves the current room. The local room and game are cleared immediately.
func (b *Bridge) LeaveRoom() error {
	if err := b.send(protocol.TypeLeaveRoom, nil); err != nil {
		return err
	}
	b.room = nil
	b.game = nil
	return nil
}

// RequestRoomList asks for the joinable rooms; the answer arrives through OnRoomList.
func (b *Bridge) RequestRoomList() error {
	return b.send(protocol.TypeRoomList, nil)
}

// SetReady marks this player ready or not ready.
func (b *Bridge) SetReady(ready bool) error {
	return b.send(protocol.TypePlayerReady, protocol.PlayerReady{IsReady: &ready})
}

// StartGame asks the server to start the current room. Only the host may do this.
func (b *Bridge) StartGame() error {
	return b.send(protocol.TypeGameStart, nil)
}

// SendShotAim shares an aim preview with the other players.
func (b *Bridge) SendShotAim(cue protocol.CueState) error {
	return b.send(protocol.TypeShotAim, protocol.Shot{CueState: &cue})
}

// SendShotExecute announces an executed shot.
func (b *Bridge) SendShotExecute(cue protocol.CueState) error {
	return b.send(protocol.TypeShotExecute, protocol.Shot{CueState: &cue})
}

// SendShotResult reports the simulated outcome of this player's shot.
func (b *Bridge) SendShotResult(res protocol.ShotResult) error {
	return b.send(protocol.TypeShotResult, res)
}

// SendChat sends a chat line to the current room.
func (b *Bridge) SendChat(text string) error {
	return b.send(protocol.TypeChatMessage, protocol.ChatRequest{Message: text})
}

// Ping measures the round trip to the server; the result arrives through OnPong.
func (b *Bridge) Ping() error {
	return b.send(protocol.TypePing, protocol.Ping{Time: protocol.Now()})
}

// PlayerID returns the server-assigned id, or "" before the handshake completes.
func (b *Bridge) PlayerID() string { return b.playerID }

// PlayerName returns the confirmed display name, or the requested one before the handshake.
func (b *Bridge) PlayerName() string { return b.playerName }

// IsConnected reports whether the server has accepted the handshake.
func (b *Bridge) IsConnected() bool { return b.connected }

// CurrentRoom returns a copy of the room this player is in.
func (b *Bridge) CurrentRoom() (protocol.RoomInfo, bool) {
	if b.room == nil {
		return protocol.RoomInfo{}, false
	}
	return b.room.Clone(), true
}

// GameState returns a copy of the current game.
func (b *Bridge) GameState() (protocol.GameState, bool) {
	if b.game == nil {
		return protocol.GameState{}, false
	}
	return b.game.Clone(), true
}

// IsMyTurn reports whether a running game is waiting on this player.
func (b *Bridge) IsMyTurn() bool {
	return b.game != nil && !b.game.IsGameOver && b.playerID != "" && b.game.CurrentPlayerID == b.playerID
}

// Pending returns the number of queued messages awaiting Update.
func (b *Bridge) Pending() int {
	if b.worker == nil {
		return 0
	}
	return b.worker.queue.len()
}
