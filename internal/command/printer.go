package command

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cory-johannsen/breakshot/internal/client"
	"github.com/cory-johannsen/breakshot/internal/protocol"
)

// Printer renders bridge events as console text.
type Printer struct {
	out      io.Writer
	playerID string
	names    map[string]string
}

var _ client.EventHandler = (*Printer)(nil)

// NewPrinter creates a Printer writing to out.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out, names: make(map[string]string)}
}

func (p *Printer) printf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

// name returns the display name last seen for a player id.
func (p *Printer) name(id string) string {
	if id == p.playerID && id != "" {
		return "you"
	}
	if n, ok := p.names[id]; ok {
		return n
	}
	return id
}

func (p *Printer) remember(room protocol.RoomInfo) {
	for _, pl := range room.Players {
		p.names[pl.PlayerID] = pl.Name
	}
}

func (p *Printer) OnConnected(playerID string) {
	p.playerID = playerID
	p.printf("Connected as %s.\n", playerID)
}

func (p *Printer) OnDisconnected() {
	p.playerID = ""
	p.printf("Disconnected.\n")
}

func (p *Printer) OnRoomUpdate(room protocol.RoomInfo) {
	p.remember(room)
	players := make([]string, 0, len(room.Players))
	for _, pl := range room.Players {
		tag := pl.Name
		if pl.IsHost {
			tag += "*"
		}
		if pl.IsReady {
			tag += " (ready)"
		}
		players = append(players, tag)
	}
	p.printf("Room %q [%s] %d/%d: %s\n", room.RoomName, room.RoomID, len(room.Players), room.MaxPlayers, strings.Join(players, ", "))
}

func (p *Printer) OnRoomList(rooms []protocol.RoomInfo) {
	if len(rooms) == 0 {
		p.printf("No open rooms.\n")
		return
	}
	p.printf("Open rooms:\n")
	for _, r := range rooms {
		p.printf("  %s  %-20s %s  %d/%d\n", r.RoomID, r.RoomName, r.GameType, len(r.Players), r.MaxPlayers)
	}
}

func (p *Printer) OnRoomLeft() {
	p.printf("You left the room.\n")
}

func (p *Printer) OnGameStart(game protocol.GameState) {
	p.printf("Game started. %s break%s.\n", p.name(game.CurrentPlayerID), verbSuffix(game.CurrentPlayerID == p.playerID))
}

func (p *Printer) OnShotAim(data map[string]any) {
	p.printf("Opponent is aiming: %v\n", data["cue_state"])
}

func (p *Printer) OnShotExecute(data map[string]any) {
	p.printf("Shot executed: %v\n", data["cue_state"])
}

func (p *Printer) OnShotResult(res protocol.ShotResult) {
	p.printf("Shot result: score %v\n", res.Score)
}

func (p *Printer) OnTurnChange(nextPlayerID string) {
	if nextPlayerID == p.playerID {
		p.printf("Your turn.\n")
		return
	}
	p.printf("Turn: %s.\n", p.name(nextPlayerID))
}

func (p *Printer) OnGameOver(winnerID string, ok bool) {
	switch {
	case !ok:
		p.printf("Game over. No winner.\n")
	case winnerID == p.playerID:
		p.printf("Game over. You win!\n")
	default:
		p.printf("Game over. %s wins.\n", p.name(winnerID))
	}
}

func (p *Printer) OnChatMessage(name, text string) {
	p.printf("[%s] %s\n", name, text)
}

func (p *Printer) OnPong(rtt time.Duration) {
	p.printf("Pong: %s\n", rtt.Round(time.Millisecond))
}

func (p *Printer) OnError(message string) {
	p.printf("Error: %s\n", message)
}

func verbSuffix(self bool) string {
	if self {
		return ""
	}
	return "s"
}
