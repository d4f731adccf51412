package protocol

// ConnectRequest is sent by a client right after the TCP connection opens.
type ConnectRequest struct {
	Name string `json:"name"`
}

// ConnectReply confirms a connection and carries the server-assigned player id.
type ConnectReply struct {
	Success  bool   `json:"success"`
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
}

// Ping carries the client's send time for round-trip measurement.
type Ping struct {
	Time float64 `json:"time"`
}

// Pong echoes the client time from the matching Ping.
type Pong struct {
	ClientTime float64 `json:"client_time"`
}

// CreateRoomRequest asks the server for a new room.
type CreateRoomRequest struct {
	RoomName string `json:"room_name"`
	GameType string `json:"game_type"`
}

// JoinRoomRequest asks to join an existing room.
type JoinRoomRequest struct {
	RoomID string `json:"room_id"`
}

// RoomReply answers CREATE_ROOM and JOIN_ROOM requests.
type RoomReply struct {
	Success bool     `json:"success"`
	Room    RoomInfo `json:"room"`
}

// LeaveRoomReply answers a LEAVE_ROOM request.
type LeaveRoomReply struct {
	Success bool `json:"success"`
}

// RoomList lists the rooms that can currently be joined.
type RoomList struct {
	Rooms []RoomInfo `json:"rooms"`
}

// RoomUpdate carries a fresh room snapshot.
type RoomUpdate struct {
	Room RoomInfo `json:"room"`
}

// PlayerReady toggles readiness. A nil IsReady means ready.
type PlayerReady struct {
	IsReady *bool `json:"is_ready,omitempty"`
}

// GameStart announces a started game to every room member.
type GameStart struct {
	Room          RoomInfo  `json:"room"`
	GameState     GameState `json:"game_state"`
	FirstPlayerID string    `json:"first_player_id"`
}

// Shot is the SHOT_AIM and SHOT_EXECUTE payload.
type Shot struct {
	CueState *CueState `json:"cue_state"`
}

// ShotResult reports the outcome of a simulated shot.
type ShotResult struct {
	BallPositions map[string]Vec3   `json:"ball_positions"`
	BallStates    map[string]string `json:"ball_states"`
	Score         map[string]int    `json:"score"`
	NextPlayerID  string            `json:"next_player_id"`
	IsGameOver    bool              `json:"is_game_over"`
	WinnerID      *string           `json:"winner_id"`
}

// TurnChange hands the turn to the next player.
type TurnChange struct {
	NextPlayerID string `json:"next_player_id"`
	TurnNumber   int    `json:"turn_number"`
	ShotNumber   int    `json:"shot_number"`
}

// GameOver ends a game. A nil WinnerID means no winner.
type GameOver struct {
	WinnerID *string `json:"winner_id"`
}

// ChatRequest is a chat line sent by a client.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatMessage is a chat line as broadcast by the server.
type ChatMessage struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// ErrorPayload carries a human-readable failure description.
type ErrorPayload struct {
	Error string `json:"error"`
}
