package room

// Rejection is an application-level refusal. Its Reason is sent verbatim to the
// requesting client in an ERROR message; the connection stays open.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string { return r.Reason }

var (
	ErrServerFull       = &Rejection{Reason: "Server is full. Cannot create more rooms."}
	ErrRoomNotFound     = &Rejection{Reason: "Room not found."}
	ErrRoomFull         = &Rejection{Reason: "Room is full."}
	ErrGameInProgress   = &Rejection{Reason: "Game already in progress."}
	ErrAlreadyInRoom    = &Rejection{Reason: "Already in this room."}
	ErrNotHost          = &Rejection{Reason: "Only the host can start the game"}
	ErrNotAllReady      = &Rejection{Reason: "All players must be ready"}
	ErrNotEnoughPlayers = &Rejection{Reason: "Need at least 2 players"}
)
