package client

import (
	"time"

	"github.com/cory-johannsen/breakshot/internal/protocol"
)

// EventHandler receives the bridge's events. Every method is called only from
// Bridge.Update, on the goroutine that calls it, at most once per inbound message.
type EventHandler interface {
	// OnConnected fires when the server accepts the CONNECT handshake.
	OnConnected(playerID string)
	// OnDisconnected fires after Disconnect or when the connection is lost.
	OnDisconnected()
	// OnRoomUpdate fires when the current room is created, joined or changed.
	OnRoomUpdate(room protocol.RoomInfo)
	OnRoomList(rooms []protocol.RoomInfo)
	// OnRoomLeft fires when the server confirms LEAVE_ROOM.
	OnRoomLeft()
	OnGameStart(game protocol.GameState)
	// OnShotAim receives an opponent's aim preview exactly as they sent it.
	OnShotAim(data map[string]any)
	// OnShotExecute receives the data of an executed shot exactly as it was sent.
	OnShotExecute(data map[string]any)
	OnShotResult(result protocol.ShotResult)
	OnTurnChange(nextPlayerID string)
	// OnGameOver reports the winner; ok is false when the game ended without one.
	OnGameOver(winnerID string, ok bool)
	OnChatMessage(name, text string)
	// OnPong reports the round trip of a Ping.
	OnPong(rtt time.Duration)
	// OnError receives server rejections and connection failures.
	OnError(message string)
}

// NopHandler implements EventHandler with no-ops. Embed it to handle a subset of events.
type NopHandler struct{}

func (NopHandler) OnConnected(string)               {}
func (NopHandler) OnDisconnected()                  {}
func (NopHandler) OnRoomUpdate(protocol.RoomInfo)   {}
func (NopHandler) OnRoomList([]protocol.RoomInfo)   {}
func (NopHandler) OnRoomLeft()                      {}
func (NopHandler) OnGameStart(protocol.GameState)   {}
func (NopHandler) OnShotAim(map[string]any)         {}
func (NopHandler) OnShotExecute(map[string]any)     {}
func (NopHandler) OnShotResult(protocol.ShotResult) {}
func (NopHandler) OnTurnChange(string)              {}
func (NopHandler) OnGameOver(string, bool)          {}
func (NopHandler) OnChatMessage(string, string)     {}
func (NopHandler) OnPong(time.Duration)             {}
func (NopHandler) OnError(string)                   {}

var _ EventHandler = NopHandler{}
