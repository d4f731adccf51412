// Package room holds the authoritative room and game state for the session server.
package room

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/cory-johannsen/breakshot/internal/protocol"
)

// MinPlayers is the fewest players a game can start with.
const MinPlayers = 2

// Registry tracks open rooms and the game state of started rooms.
// All methods are safe for concurrent use and return copies.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*protocol.RoomInfo
	games map[string]*protocol.GameState
	// order lists room ids in creation order.
	order []string

	maxRooms   int
	maxPlayers int
	newID      func() string
}

// NewRegistry creates an empty Registry.
//
// Precondition: maxRooms >= 1; maxPlayers >= MinPlayers.
func NewRegistry(maxRooms, maxPlayers int) *Registry {
	return &Registry{
		rooms:      make(map[string]*protocol.RoomInfo),
		games:      make(map[string]*protocol.GameState),
		maxRooms:   maxRooms,
		maxPlayers: maxPlayers,
		newID:      func() string { return uuid.NewString()[:8] },
	}
}

// Create opens a new room with the given player as host.
//
// Precondition: hostID and hostName must be non-empty.
// Postcondition: Returns the new room, or ErrServerFull when maxRooms rooms exist.
func (r *Registry) Create(hostID, hostName, roomName, gameType string) (protocol.RoomInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.rooms) >= r.maxRooms {
		return protocol.RoomInfo{}, ErrServerFull
	}

	id := r.newID()
	for r.rooms[id] != nil {
		id = r.newID()
	}
	if roomName == "" {
		roomName = fmt.Sprintf("Room %s", id)
	}
	if gameType == "" {
		gameType = protocol.DefaultGameType
	}

	info := &protocol.RoomInfo{
		RoomID:     id,
		RoomName:   roomName,
		HostID:     hostID,
		Players:    []protocol.PlayerInfo{{PlayerID: hostID, Name: hostName, IsHost: true}},
		MaxPlayers: r.maxPlayers,
		GameType:   gameType,
	}
	r.rooms[id] = info
	r.order = append(r.order, id)
	return info.Clone(), nil
}

// Join adds a player to an open room as a non-host, not-ready member.
//
// Postcondition: Returns the updated room or a *Rejection.
func (r *Registry) Join(roomID, playerID, name string) (protocol.RoomInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.rooms[roomID]
	switch {
	case !ok:
		return protocol.RoomInfo{}, ErrRoomNotFound
	case isMember(info, playerID):
		return protocol.RoomInfo{}, ErrAlreadyInRoom
	case info.IsFull():
		return protocol.RoomInfo{}, ErrRoomFull
	case info.IsStarted:
		return protocol.RoomInfo{}, ErrGameInProgress
	}

	info.Players = append(info.Players, protocol.PlayerInfo{PlayerID: playerID, Name: name})
	return info.Clone(), nil
}

// LeaveResult describes the room after a player left it.
type LeaveResult struct {
	// Room is the room as it stands after the departure. Zero when Deleted.
	Room protocol.RoomInfo
	// Deleted is true when the departing player was the last member.
	Deleted bool
	// HostChanged is true when host duties moved to another player.
	HostChanged bool
}

// Leave removes a player from a room. An emptied room is deleted together with
// its game state. A departing host hands over to the first remaining player, and
// a departing current player hands the turn to the first remaining player.
//
// Postcondition: Returns false if the room does not exist or the player is not a member.
func (r *Registry) Leave(roomID, playerID string) (LeaveResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.rooms[roomID]
	if !ok {
		return LeaveResult{}, false
	}
	idx := memberIndex(info, playerID)
	if idx < 0 {
		return LeaveResult{}, false
	}
	info.Players = append(info.Players[:idx], info.Players[idx+1:]...)

	if len(info.Players) == 0 {
		r.deleteLocked(roomID)
		return LeaveResult{Deleted: true}, true
	}

	var res LeaveResult
	if info.HostID == playerID {
		info.HostID = info.Players[0].PlayerID
		info.Players[0].IsHost = true
		res.HostChanged = true
	}
	if game, ok := r.games[roomID]; ok && game.CurrentPlayerID == playerID {
		game.CurrentPlayerID = info.Players[0].PlayerID
	}
	res.Room = info.Clone()
	return res, true
}

func memberIndex(info *protocol.RoomInfo, playerID string) int {
	for i, p := range info.Players {
		if p.PlayerID == playerID {
			return i
		}
	}
	return -1
}

func isMember(info *protocol.RoomInfo, playerID string) bool {
	return info != nil && memberIndex(info, playerID) >= 0
}

func (r *Registry) deleteLocked(roomID string) {
	delete(r.rooms, roomID)
	delete(r.games, roomID)
	for i, id := range r.order {
		if id == roomID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// SetReady sets a member's ready flag.
//
// Postcondition: Returns the updated room, or false if the player is not a member.
func (r *Registry) SetReady(roomID, playerID string, ready bool) (protocol.RoomInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.rooms[roomID]
	if !ok {
		return protocol.RoomInfo{}, false
	}
	idx := memberIndex(info, playerID)
	if idx < 0 {
		return protocol.RoomInfo{}, false
	}
	info.Players[idx].IsReady = ready
	return info.Clone(), true
}

// Rename changes a member's display name in the room snapshot.
//
// Postcondition: Returns the updated room, or false if the player is not a member.
func (r *Registry) Rename(roomID, playerID, name string) (protocol.RoomInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.rooms[roomID]
	if !ok {
		return protocol.RoomInfo{}, false
	}
	idx := memberIndex(info, playerID)
	if idx < 0 {
		return protocol.RoomInfo{}, false
	}
	info.Players[idx].Name = name
	return info.Clone(), true
}

// Start begins the game in a room on behalf of its host. The first player in
// join order moves first.
//
// Postcondition: On success the room is started and has a fresh GameState;
// otherwise a *Rejection is returned and no GameState exists.
func (r *Registry) Start(roomID, playerID string) (protocol.RoomInfo, protocol.GameState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.rooms[roomID]
	if !ok {
		return protocol.RoomInfo{}, protocol.GameState{}, ErrRoomNotFound
	}
	if p, ok := info.Player(playerID); !ok || !p.IsHost {
		return protocol.RoomInfo{}, protocol.GameState{}, ErrNotHost
	}
	if !info.AllReady() {
		return protocol.RoomInfo{}, protocol.GameState{}, ErrNotAllReady
	}
	if len(info.Players) < MinPlayers {
		return protocol.RoomInfo{}, protocol.GameState{}, ErrNotEnoughPlayers
	}
	if info.IsStarted {
		return protocol.RoomInfo{}, protocol.GameState{}, ErrGameInProgress
	}

	info.IsStarted = true
	game := &protocol.GameState{
		RoomID:          roomID,
		CurrentPlayerID: info.Players[0].PlayerID,
		BallPositions:   map[string]protocol.Vec3{},
		BallStates:      map[string]string{},
		Score:           make(map[string]int, len(info.Players)),
	}
	for _, p := range info.Players {
		game.Score[p.PlayerID] = 0
	}
	r.games[roomID] = game
	return info.Clone(), game.Clone(), nil
}

// CanShoot reports whether playerID holds the turn in a running game.
func (r *Registry) CanShoot(roomID, playerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.activeGameLocked(roomID, playerID)
	return ok
}

func (r *Registry) activeGameLocked(roomID, playerID string) (*protocol.GameState, bool) {
	game, ok := r.games[roomID]
	if !ok || game.IsGameOver || game.CurrentPlayerID != playerID {
		return nil, false
	}
	return game, true
}

// RecordShotExecute stores the cue state of a shot taken by the current player.
// A nil cue leaves the stored cue state unchanged.
//
// Postcondition: Returns false, changing nothing, if playerID does not hold the turn.
func (r *Registry) RecordShotExecute(roomID, playerID string, cue *protocol.CueState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	game, ok := r.activeGameLocked(roomID, playerID)
	if !ok {
		return false
	}
	if cue != nil {
		c := *cue
		game.CueState = &c
	}
	return true
}

// ShotOutcome reports what a recorded shot result changed.
type ShotOutcome struct {
	Game protocol.GameState
	// TurnChanged is true when the turn moved to another player.
	TurnChanged bool
	// GameOver is true when the result ended the game.
	GameOver bool
}

// RecordShotResult applies the outcome of the current player's shot. A result
// that ends the game does not also advance the turn.
//
// Postcondition: Returns false, changing nothing, if playerID does not hold the turn.
func (r *Registry) RecordShotResult(roomID, playerID string, res protocol.ShotResult) (ShotOutcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	game, ok := r.activeGameLocked(roomID, playerID)
	if !ok {
		return ShotOutcome{}, false
	}

	if res.BallPositions != nil {
		game.BallPositions = make(map[string]protocol.Vec3, len(res.BallPositions))
		for k, v := range res.BallPositions {
			game.BallPositions[k] = v
		}
	}
	if res.BallStates != nil {
		game.BallStates = make(map[string]string, len(res.BallStates))
		for k, v := range res.BallStates {
			game.BallStates[k] = v
		}
	}
	for k, v := range res.Score {
		game.Score[k] = v
	}
	game.ShotNumber++

	var out ShotOutcome
	if res.IsGameOver {
		r.endLocked(game, res.WinnerID)
		out.GameOver = true
	} else if r.advanceLocked(roomID, game, res.NextPlayerID) {
		out.TurnChanged = true
	}
	out.Game = game.Clone()
	return out, true
}

// ChangeTurn hands the turn from the current player to another member.
//
// Postcondition: Returns false, changing nothing, if playerID does not hold the
// turn or nextPlayerID is not another member of the room.
func (r *Registry) ChangeTurn(roomID, playerID, nextPlayerID string) (protocol.GameState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	game, ok := r.activeGameLocked(roomID, playerID)
	if !ok || !r.advanceLocked(roomID, game, nextPlayerID) {
		return protocol.GameState{}, false
	}
	return game.Clone(), true
}

func (r *Registry) advanceLocked(roomID string, game *protocol.GameState, next string) bool {
	info := r.rooms[roomID]
	if next == "" || next == game.CurrentPlayerID || !isMember(info, next) {
		return false
	}
	game.CurrentPlayerID = next
	game.TurnNumber++
	return true
}

// EndGame marks the game over on behalf of the current player. A winner that is
// not a member of the room is recorded as no winner.
//
// Postcondition: Returns false, changing nothing, if playerID does not hold the turn.
func (r *Registry) EndGame(roomID, playerID string, winnerID *string) (protocol.GameState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	game, ok := r.activeGameLocked(roomID, playerID)
	if !ok {
		return protocol.GameState{}, false
	}
	r.endLocked(game, winnerID)
	return game.Clone(), true
}

func (r *Registry) endLocked(game *protocol.GameState, winnerID *string) {
	game.IsGameOver = true
	game.WinnerID = nil
	if winnerID != nil {
		if isMember(r.rooms[game.RoomID], *winnerID) {
			w := *winnerID
			game.WinnerID = &w
		}
	}
}

// Get returns a copy of the room.
func (r *Registry) Get(roomID string) (protocol.RoomInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.rooms[roomID]
	if !ok {
		return protocol.RoomInfo{}, false
	}
	return info.Clone(), true
}

// Game returns a copy of the room's game state. It exists only once the room has started.
func (r *Registry) Game(roomID string) (protocol.GameState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	game, ok := r.games[roomID]
	if !ok {
		return protocol.GameState{}, false
	}
	return game.Clone(), true
}

// Open returns the rooms that can still be joined, in creation order.
//
// Postcondition: Every returned room is neither started nor full.
func (r *Registry) Open() []protocol.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]protocol.RoomInfo, 0, len(r.order))
	for _, id := range r.order {
		info := r.rooms[id]
		if info.IsStarted || info.IsFull() {
			continue
		}
		out = append(out, info.Clone())
	}
	return out
}

// Count returns the number of rooms.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
