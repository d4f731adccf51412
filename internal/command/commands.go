// Package command provides the table client's console: command definitions,
// a registry with aliases, a line parser, and the console that executes
// commands against the network bridge.
package command

// Categories for organizing commands in help output.
const (
	CategoryLobby         = "lobby"
	CategoryGame          = "game"
	CategoryCommunication = "communication"
	CategorySystem        = "system"
)

// Action carries out a command on the console. cmd is the resolved command,
// so an action can report its own usage.
type Action func(c *Console, cmd *Command, p ParseResult) error

// Command defines a console command.
type Command struct {
	// Name is the canonical command name.
	Name string
	// Aliases are alternate names for this command.
	Aliases []string
	// Usage shows the arguments, e.g. "join <room_id>".
	Usage string
	// Help is the short help text.
	Help string
	// Category groups the command in help output.
	Category string
	// Run performs the command.
	Run Action
}

// BuiltinCommands returns all console commands.
func BuiltinCommands() []Command {
	return []Command{
		// Lobby
		{Name: "connect", Aliases: []string{"open"}, Usage: "connect <host[:port]> [name]", Help: "Connect to a session server", Category: CategoryLobby, Run: (*Console).connect},
		{Name: "disconnect", Aliases: []string{"close"}, Usage: "disconnect", Help: "Disconnect from the server", Category: CategoryLobby, Run: (*Console).disconnect},
		{Name: "create", Aliases: []string{"new"}, Usage: "create [room name]", Help: "Create a room and join it as host", Category: CategoryLobby, Run: (*Console).create},
		{Name: "join", Aliases: []string{"j"}, Usage: "join <room_id>", Help: "Join a room", Category: CategoryLobby, Run: (*Console).join},
		{Name: "leave", Aliases: []string{"part"}, Usage: "leave", Help: "Leave the current room", Category: CategoryLobby, Run: (*Console).leave},
		{Name: "rooms", Aliases: []string{"ls", "list"}, Usage: "rooms", Help: "List rooms that can be joined", Category: CategoryLobby, Run: (*Console).rooms},
		{Name: "ready", Aliases: []string{"r"}, Usage: "ready", Help: "Mark yourself ready", Category: CategoryLobby, Run: (*Console).ready},
		{Name: "unready", Aliases: []string{"ur"}, Usage: "unready", Help: "Mark yourself not ready", Category: CategoryLobby, Run: (*Console).unready},
		{Name: "start", Aliases: nil, Usage: "start", Help: "Start the game (host only)", Category: CategoryLobby, Run: (*Console).start},
		{Name: "room", Aliases: []string{"info"}, Usage: "room", Help: "Show the current room and game", Category: CategoryLobby, Run: (*Console).showRoom},

		// Game
		{Name: "aim", Aliases: []string{"a"}, Usage: "aim <phi> [V0] [theta] [a] [b]", Help: "Share an aim preview", Category: CategoryGame, Run: (*Console).aim},
		{Name: "shoot", Aliases: []string{"shot", "s"}, Usage: "shoot <phi> [V0] [theta] [a] [b]", Help: "Execute a shot", Category: CategoryGame, Run: (*Console).shoot},
		{Name: "result", Aliases: []string{"res"}, Usage: "result [pass|keep|win|lose]", Help: "Report your shot's outcome", Category: CategoryGame, Run: (*Console).result},

		// Communication
		{Name: "chat", Aliases: []string{"say", "c"}, Usage: "chat <message>", Help: "Send a chat message to the room", Category: CategoryCommunication, Run: (*Console).chat},

		// System
		{Name: "ping", Aliases: nil, Usage: "ping", Help: "Measure round-trip time to the server", Category: CategorySystem, Run: (*Console).ping},
		{Name: "help", Aliases: []string{"?", "h"}, Usage: "help", Help: "Show available commands", Category: CategorySystem, Run: (*Console).help},
		{Name: "quit", Aliases: []string{"exit", "q"}, Usage: "quit", Help: "Disconnect and exit", Category: CategorySystem, Run: (*Console).quit},
	}
}
