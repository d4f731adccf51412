package command

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/breakshot/internal/client"
	"github.com/cory-johannsen/breakshot/internal/protocol"
)

// ErrQuit is returned by Execute when the player asks to exit.
var ErrQuit = errors.New("quit")

// Bridge is the subset of the client bridge the console drives.
type Bridge interface {
	Connect(host string, port int, name string) error
	Disconnect()
	CreateRoom(roomName, gameType string) error
	JoinRoom(roomID string) error
	LeaveRoom() error
	RequestRoomList() error
	SetReady(ready bool) error
	StartGame() error
	SendShotAim(cue protocol.CueState) error
	SendShotExecute(cue protocol.CueState) error
	SendShotResult(res protocol.ShotResult) error
	SendChat(text string) error
	Ping() error
	PlayerID() string
	PlayerName() string
	CurrentRoom() (protocol.RoomInfo, bool)
	GameState() (protocol.GameState, bool)
	IsMyTurn() bool
}

var _ Bridge = (*client.Bridge)(nil)

// Console executes parsed command lines against a Bridge and writes feedback to out.
// It must be used from the goroutine that calls Bridge.Update.
type Console struct {
	bridge   Bridge
	registry *Registry
	out      io.Writer
	name     string
}

// NewConsole creates a console. name is the display name used by connect when none is given.
//
// Precondition: bridge, registry and out must be non-nil.
func NewConsole(bridge Bridge, registry *Registry, out io.Writer, name string) *Console {
	return &Console{bridge: bridge, registry: registry, out: out, name: name}
}

// Execute runs one console line. Usage mistakes and send failures are written
// to the console output.
//
// Postcondition: Returns ErrQuit after the quit command; nil otherwise.
func (c *Console) Execute(line string) error {
	parsed := Parse(line)
	if parsed.Command == "" {
		return nil
	}
	cmd, ok := c.registry.Resolve(parsed.Command)
	if !ok {
		c.printf("Unknown command %q. Type 'help' for a list.\n", parsed.Command)
		return nil
	}

	if err := cmd.Run(c, cmd, parsed); err != nil {
		if errors.Is(err, ErrQuit) {
			return err
		}
		c.printf("%s: %v\n", cmd.Name, err)
	}
	return nil
}

func (c *Console) connect(cmd *Command, p ParseResult) error {
	if len(p.Args) == 0 {
		return usageError(cmd)
	}
	host, port := client.ParseAddress(p.Args[0])
	name := c.name
	if len(p.Args) > 1 {
		name = strings.Join(p.Args[1:], " ")
	}
	c.printf("Connecting to %s:%d...\n", host, port)
	return c.bridge.Connect(host, port, name)
}

func (c *Console) disconnect(*Command, ParseResult) error {
	c.bridge.Disconnect()
	return nil
}

func (c *Console) create(_ *Command, p ParseResult) error {
	return c.bridge.CreateRoom(p.RawArgs, "")
}

func (c *Console) join(cmd *Command, p ParseResult) error {
	if len(p.Args) != 1 {
		return usageError(cmd)
	}
	return c.bridge.JoinRoom(p.Args[0])
}

func (c *Console) leave(*Command, ParseResult) error   { return c.bridge.LeaveRoom() }
func (c *Console) rooms(*Command, ParseResult) error   { return c.bridge.RequestRoomList() }
func (c *Console) ready(*Command, ParseResult) error   { return c.bridge.SetReady(true) }
func (c *Console) unready(*Command, ParseResult) error { return c.bridge.SetReady(false) }
func (c *Console) start(*Command, ParseResult) error   { return c.bridge.StartGame() }
func (c *Console) ping(*Command, ParseResult) error    { return c.bridge.Ping() }

func (c *Console) aim(cmd *Command, p ParseResult) error {
	cue, err := c.turnCue(cmd, p.Args)
	if err != nil {
		return err
	}
	return c.bridge.SendShotAim(cue)
}

func (c *Console) shoot(cmd *Command, p ParseResult) error {
	cue, err := c.turnCue(cmd, p.Args)
	if err != nil {
		return err
	}
	return c.bridge.SendShotExecute(cue)
}

// turnCue parses a cue and checks that this player may act on it.
func (c *Console) turnCue(cmd *Command, args []string) (protocol.CueState, error) {
	cue, err := parseCue(args)
	if err != nil {
		return cue, fmt.Errorf("%w (usage: %s)", err, cmd.Usage)
	}
	if !c.bridge.IsMyTurn() {
		return cue, errors.New("it is not your turn")
	}
	return cue, nil
}

func (c *Console) chat(cmd *Command, p ParseResult) error {
	if p.RawArgs == "" {
		return usageError(cmd)
	}
	return c.bridge.SendChat(p.RawArgs)
}

func (c *Console) quit(*Command, ParseResult) error {
	c.bridge.Disconnect()
	return ErrQuit
}

// result reports a shot outcome. "pass" hands the turn to the next player in
// room order, "keep" retains it, and "win" or "lose" ends the game.
func (c *Console) result(cmd *Command, p ParseResult) error {
	mode := "pass"
	if len(p.Args) > 0 {
		mode = strings.ToLower(p.Args[0])
	}
	room, ok := c.bridge.CurrentRoom()
	if !ok {
		return errors.New("not in a room")
	}
	if !c.bridge.IsMyTurn() {
		return errors.New("it is not your turn")
	}
	self := c.bridge.PlayerID()

	res := protocol.ShotResult{}
	if game, ok := c.bridge.GameState(); ok {
		res.BallPositions = game.BallPositions
		res.BallStates = game.BallStates
	}
	switch mode {
	case "pass":
		res.NextPlayerID = nextPlayer(room, self)
	case "keep":
		res.NextPlayerID = self
	case "win":
		res.IsGameOver = true
		res.WinnerID = &self
	case "lose":
		res.IsGameOver = true
		if other := nextPlayer(room, self); other != self {
			res.WinnerID = &other
		}
	default:
		return usageError(cmd)
	}
	return c.bridge.SendShotResult(res)
}

// nextPlayer returns the member after self in room order, wrapping around.
func nextPlayer(room protocol.RoomInfo, self string) string {
	for i, p := range room.Players {
		if p.PlayerID == self {
			return room.Players[(i+1)%len(room.Players)].PlayerID
		}
	}
	return self
}

// parseCue reads "<phi> [V0] [theta] [a] [b]".
func parseCue(args []string) (protocol.CueState, error) {
	cue := protocol.CueState{V0: 2.0, CueBallID: "cue"}
	if len(args) == 0 || len(args) > 5 {
		return cue, errors.New("expected 1 to 5 numbers")
	}
	fields := []*float64{&cue.Phi, &cue.V0, &cue.Theta, &cue.A, &cue.B}
	for i, arg := range args {
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return cue, fmt.Errorf("invalid number %q", arg)
		}
		*fields[i] = v
	}
	return cue, nil
}

type playerView struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Ready bool   `yaml:"ready"`
	Host  bool   `yaml:"host,omitempty"`
}

type gameView struct {
	CurrentPlayer string         `yaml:"current_player"`
	Turn          int            `yaml:"turn"`
	Shot          int            `yaml:"shot"`
	Score         map[string]int `yaml:"score,omitempty"`
	Over          bool           `yaml:"over"`
	Winner        string         `yaml:"winner,omitempty"`
}

type roomView struct {
	ID       string       `yaml:"id"`
	Name     string       `yaml:"name"`
	GameType string       `yaml:"game_type"`
	Started  bool         `yaml:"started"`
	Capacity int          `yaml:"capacity"`
	Players  []playerView `yaml:"players"`
	Game     *gameView    `yaml:"game,omitempty"`
}

func (c *Console) showRoom(*Command, ParseResult) error {
	room, ok := c.bridge.CurrentRoom()
	if !ok {
		c.printf("You are not in a room.\n")
		return nil
	}
	view := roomView{
		ID:       room.RoomID,
		Name:     room.RoomName,
		GameType: room.GameType,
		Started:  room.IsStarted,
		Capacity: room.MaxPlayers,
	}
	for _, p := range room.Players {
		view.Players = append(view.Players, playerView{ID: p.PlayerID, Name: p.Name, Ready: p.IsReady, Host: p.IsHost})
	}
	if game, ok := c.bridge.GameState(); ok {
		gv := &gameView{
			CurrentPlayer: game.CurrentPlayerID,
			Turn:          game.TurnNumber,
			Shot:          game.ShotNumber,
			Score:         game.Score,
			Over:          game.IsGameOver,
		}
		if game.WinnerID != nil {
			gv.Winner = *game.WinnerID
		}
		view.Game = gv
	}

	out, err := yaml.Marshal(view)
	if err != nil {
		return fmt.Errorf("rendering room: %w", err)
	}
	_, err = c.out.Write(out)
	return err
}

func (c *Console) help(*Command, ParseResult) error {
	for _, sec := range c.registry.Sections() {
		c.printf("%s:\n", strings.ToUpper(sec.Category[:1])+sec.Category[1:])
		for _, cmd := range sec.Commands {
			line := fmt.Sprintf("  %-34s %s", cmd.Usage, cmd.Help)
			if len(cmd.Aliases) > 0 {
				line += fmt.Sprintf(" (aliases: %s)", strings.Join(cmd.Aliases, ", "))
			}
			c.printf("%s\n", line)
		}
	}
	return nil
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func usageError(cmd *Command) error {
	return fmt.Errorf("usage: %s", cmd.Usage)
}
