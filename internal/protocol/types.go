package protocol

// DefaultMaxPlayers is the room capacity used when none is configured.
const DefaultMaxPlayers = 2

// DefaultGameType is the game type used when a create request names none.
const DefaultGameType = "8ball"

// PlayerInfo describes one player inside a room.
type PlayerInfo struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	IsReady  bool   `json:"is_ready"`
	IsHost   bool   `json:"is_host"`
}

// RoomInfo is a snapshot of a room.
type RoomInfo struct {
	RoomID     string       `json:"room_id"`
	RoomName   string       `json:"room_name"`
	HostID     string       `json:"host_id"`
	Players    []PlayerInfo `json:"players"`
	MaxPlayers int          `json:"max_players"`
	GameType   string       `json:"game_type"`
	IsStarted  bool         `json:"is_started"`
}

// IsFull reports whether the room has reached its capacity.
func (r RoomInfo) IsFull() bool {
	return len(r.Players) >= r.MaxPlayers
}

// Player returns the member with the given id.
func (r RoomInfo) Player(playerID string) (PlayerInfo, bool) {
	for _, p := range r.Players {
		if p.PlayerID == playerID {
			return p, true
		}
	}
	return PlayerInfo{}, false
}

// AllReady reports whether every member has marked themselves ready.
func (r RoomInfo) AllReady() bool {
	for _, p := range r.Players {
		if !p.IsReady {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of r.
func (r RoomInfo) Clone() RoomInfo {
	out := r
	out.Players = append([]PlayerInfo(nil), r.Players...)
	return out
}

// Vec3 is a ball position in table coordinates.
type Vec3 [3]float64

// CueState is the cue stick configuration for an aimed or executed shot.
type CueState struct {
	Phi       float64 `json:"phi"`
	Theta     float64 `json:"theta"`
	V0        float64 `json:"V0"`
	A         float64 `json:"a"`
	B         float64 `json:"b"`
	CueBallID string  `json:"cue_ball_id"`
}

// GameState is the authoritative turn state of a started room.
type GameState struct {
	RoomID          string            `json:"room_id"`
	CurrentPlayerID string            `json:"current_player_id"`
	TurnNumber      int               `json:"turn_number"`
	ShotNumber      int               `json:"shot_number"`
	BallPositions   map[string]Vec3   `json:"ball_positions"`
	BallStates      map[string]string `json:"ball_states"`
	CueState        *CueState         `json:"cue_state"`
	Score           map[string]int    `json:"score"`
	IsGameOver      bool              `json:"is_game_over"`
	WinnerID        *string           `json:"winner_id"`
}

// Clone returns a deep copy of g.
func (g GameState) Clone() GameState {
	out := g
	out.BallPositions = make(map[string]Vec3, len(g.BallPositions))
	for k, v := range g.BallPositions {
		out.BallPositions[k] = v
	}
	out.BallStates = make(map[string]string, len(g.BallStates))
	for k, v := range g.BallStates {
		out.BallStates[k] = v
	}
	out.Score = make(map[string]int, len(g.Score))
	for k, v := range g.Score {
		out.Score[k] = v
	}
	if g.CueState != nil {
		cs := *g.CueState
		out.CueState = &cs
	}
	if g.WinnerID != nil {
		w := *g.WinnerID
		out.WinnerID = &w
	}
	return out
}
