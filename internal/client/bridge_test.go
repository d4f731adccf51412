package client

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/breakshot/internal/config"
	"github.com/cory-johannsen/breakshot/internal/gameserver"
	"github.com/cory-johannsen/breakshot/internal/protocol"
	"github.com/cory-johannsen/breakshot/internal/transport/tcp"
)

const wait = 3 * time.Second

type event struct {
	kind string
	arg  any
}

// recorder captures every callback in order.
type recorder struct {
	events []event
}

func (r *recorder) add(kind string, arg any) { r.events = append(r.events, event{kind, arg}) }

func (r *recorder) OnConnected(id string)                { r.add("connected", id) }
func (r *recorder) OnDisconnected()                      { r.add("disconnected", nil) }
func (r *recorder) OnRoomUpdate(room protocol.RoomInfo)  { r.add("room", room) }
func (r *recorder) OnRoomList(rooms []protocol.RoomInfo) { r.add("room_list", rooms) }
func (r *recorder) OnRoomLeft()                          { r.add("room_left", nil) }
func (r *recorder) OnGameStart(game protocol.GameState)  { r.add("game_start", game) }
func (r *recorder) OnShotAim(data map[string]any)        { r.add("shot_aim", data) }
func (r *recorder) OnShotExecute(data map[string]any)    { r.add("shot_execute", data) }
func (r *recorder) OnShotResult(res protocol.ShotResult) { r.add("shot_result", res) }
func (r *recorder) OnTurnChange(next string)             { r.add("turn_change", next) }
func (r *recorder) OnChatMessage(name, text string)      { r.add("chat", [2]string{name, text}) }
func (r *recorder) OnPong(rtt time.Duration)             { r.add("pong", rtt) }
func (r *recorder) OnError(msg string)                   { r.add("error", msg) }
func (r *recorder) OnGameOver(winner string, ok bool) {
	if ok {
		r.add("game_over", winner)
		return
	}
	r.add("game_over", nil)
}

func (r *recorder) find(kind string) (event, bool) {
	for _, e := range r.events {
		if e.kind == kind {
			return e, true
		}
	}
	return event{}, false
}

func (r *recorder) count(kind string) int {
	n := 0
	for _, e := range r.events {
		if e.kind == kind {
			n++
		}
	}
	return n
}

func testClientConfig() config.ClientConfig {
	return config.ClientConfig{
		DialTimeout:  2 * time.Second,
		ReadInterval: 50 * time.Millisecond,
		WriteTimeout: 2 * time.Second,
		JoinTimeout:  2 * time.Second,
		OutboundSize: 64,
	}
}

func startServer(t *testing.T) (*gameserver.Server, string, int) {
	t.Helper()
	cfg := config.ServerConfig{
		Host:          "127.0.0.1",
		MaxRooms:      10,
		MaxPlayers:    2,
		WriteTimeout:  2 * time.Second,
		OutboxSize:    64,
		MaxFrameBytes: 1 << 16,
	}
	logger := zaptest.NewLogger(t)
	srv := gameserver.NewServer(cfg, logger)
	acc := tcp.NewAcceptor(cfg, srv, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- acc.ListenAndServe() }()
	select {
	case <-acc.Listening():
	case err := <-errCh:
		t.Fatalf("acceptor failed: %v", err)
	case <-time.After(wait):
		t.Fatal("acceptor did not start in time")
	}
	t.Cleanup(acc.Stop)
	host, port := ParseAddress(acc.Addr())
	return srv, host, port
}

type player struct {
	bridge *Bridge
	rec    *recorder
}

func newPlayer(t *testing.T) player {
	t.Helper()
	rec := &recorder{}
	b := NewBridge(testClientConfig(), rec, zaptest.NewLogger(t))
	t.Cleanup(b.Disconnect)
	return player{bridge: b, rec: rec}
}

// pumpUntil calls Update on every player until cond holds.
func pumpUntil(t *testing.T, cond func() bool, players ...player) {
	t.Helper()
	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		for _, p := range players {
			p.bridge.Update()
		}
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func connectPlayer(t *testing.T, host string, port int, name string) player {
	t.Helper()
	p := newPlayer(t)
	require.NoError(t, p.bridge.Connect(host, port, name))
	pumpUntil(t, p.bridge.IsConnected, p)
	return p
}

func TestConnectHandshake(t *testing.T) {
	srv, host, port := startServer(t)
	p := connectPlayer(t, host, port, "Ann")

	e, ok := p.rec.find("connected")
	require.True(t, ok)
	assert.Equal(t, p.bridge.PlayerID(), e.arg)
	assert.NotEmpty(t, p.bridge.PlayerID())
	assert.Equal(t, "Ann", p.bridge.PlayerName())
	assert.Equal(t, 1, srv.Stats().Sessions)
}

func TestCallbacksOnlyFireInsideUpdate(t *testing.T) {
	_, host, port := startServer(t)
	p := newPlayer(t)
	require.NoError(t, p.bridge.Connect(host, port, "Ann"))

	require.Eventually(t, func() bool { return p.bridge.Pending() > 0 }, wait, 10*time.Millisecond)
	assert.Empty(t, p.rec.events)
	assert.False(t, p.bridge.IsConnected())

	assert.Equal(t, 1, p.bridge.Update())
	assert.Equal(t, 1, p.rec.count("connected"))
	assert.True(t, p.bridge.IsConnected())
}

func TestSendWithoutConnect(t *testing.T) {
	p := newPlayer(t)
	assert.ErrorIs(t, p.bridge.CreateRoom("x", ""), ErrNotConnected)
	assert.ErrorIs(t, p.bridge.SendChat("hi"), ErrNotConnected)
	assert.Zero(t, p.bridge.Update())
	assert.False(t, p.bridge.IsMyTurn())
}

func TestConnectRejectsBadAddress(t *testing.T) {
	p := newPlayer(t)
	assert.Error(t, p.bridge.Connect("", 7777, "Ann"))
	assert.Error(t, p.bridge.Connect("localhost", 0, "Ann"))
	assert.Error(t, p.bridge.Connect("localhost", 70000, "Ann"))
}

func TestConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, port := ParseAddress(ln.Addr().String())
	require.NoError(t, ln.Close())

	p := newPlayer(t)
	require.NoError(t, p.bridge.Connect(host, port, "Ann"))
	pumpUntil(t, func() bool { _, ok := p.rec.find("error"); return ok }, p)

	e, _ := p.rec.find("error")
	assert.Equal(t, "Connection refused", e.arg)
	assert.False(t, p.bridge.IsConnected())
	assert.Zero(t, p.rec.count("disconnected"))
	assert.ErrorIs(t, p.bridge.Ping(), ErrNotConnected)
}

func TestLostConnectionSynthesizesDisconnect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		c := protocol.NewConn(conn, time.Second, time.Second)
		if _, err := c.ReadMessage(); err != nil {
			conn.Close()
			return
		}
		_ = c.WriteFrame([]byte("garbage that is not json\n"))
		_ = c.WriteMessage(protocol.MustMessage(protocol.TypeConnect, protocol.SenderServer,
			protocol.ConnectReply{Success: true, PlayerID: "p-1", Name: "Ann"}))
		time.Sleep(100 * time.Millisecond)
		conn.Close()
	}()

	host, port := ParseAddress(ln.Addr().String())
	p := newPlayer(t)
	require.NoError(t, p.bridge.Connect(host, port, "Ann"))
	pumpUntil(t, func() bool { return p.rec.count("disconnected") == 1 }, p)

	assert.Equal(t, "connected", p.rec.events[0].kind, "malformed frame is dropped, not surfaced")
	assert.False(t, p.bridge.IsConnected())
	assert.Empty(t, p.bridge.PlayerID())
	assert.ErrorIs(t, p.bridge.Ping(), ErrNotConnected)
}

func TestMalformedErrorPayloadIsLoggedAndReported(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		c := protocol.NewConn(conn, time.Second, time.Second)
		if _, err := c.ReadMessage(); err != nil {
			return
		}
		_ = c.WriteMessage(protocol.MustMessage(protocol.TypeConnect, protocol.SenderServer,
			protocol.ConnectReply{Success: true, PlayerID: "p-1", Name: "Ann"}))
		_ = c.WriteFrame([]byte(`{"type":"error","sender_id":"server","data":{"error":5}}` + "\n"))
		time.Sleep(time.Second)
	}()

	core, logs := observer.New(zap.WarnLevel)
	rec := &recorder{}
	b := NewBridge(testClientConfig(), rec, zap.New(core))
	t.Cleanup(b.Disconnect)
	p := player{bridge: b, rec: rec}

	host, port := ParseAddress(ln.Addr().String())
	require.NoError(t, b.Connect(host, port, "Ann"))
	pumpUntil(t, func() bool { _, ok := rec.find("error"); return ok }, p)

	e, _ := rec.find("error")
	assert.Equal(t, "Unknown error", e.arg)
	warned := logs.FilterMessage("dropping undecodable payload").FilterField(zap.String("type", "error"))
	assert.Equal(t, 1, warned.Len())
}

func TestDisconnectCleansUpServerSide(t *testing.T) {
	srv, host, port := startServer(t)
	a := connectPlayer(t, host, port, "Ann")
	require.NoError(t, a.bridge.CreateRoom("Table", ""))
	pumpUntil(t, func() bool { _, ok := a.bridge.CurrentRoom(); return ok }, a)

	a.bridge.Disconnect()
	assert.Equal(t, 1, a.rec.count("disconnected"))
	assert.False(t, a.bridge.IsConnected())
	_, ok := a.bridge.CurrentRoom()
	assert.False(t, ok)

	require.Eventually(t, func() bool { return srv.Stats() == gameserver.Stats{} }, wait, 10*time.Millisecond)

	a.bridge.Disconnect()
	assert.Equal(t, 1, a.rec.count("disconnected"), "second disconnect is a no-op")
}

func TestReconnectReplacesSession(t *testing.T) {
	srv, host, port := startServer(t)
	p := connectPlayer(t, host, port, "Ann")
	first := p.bridge.PlayerID()

	require.NoError(t, p.bridge.Connect(host, port, "Ann"))
	assert.Equal(t, 1, p.rec.count("disconnected"))
	pumpUntil(t, p.bridge.IsConnected, p)

	assert.NotEqual(t, first, p.bridge.PlayerID())
	require.Eventually(t, func() bool { return srv.Stats().Sessions == 1 }, wait, 10*time.Millisecond)
}

func TestPing(t *testing.T) {
	_, host, port := startServer(t)
	p := connectPlayer(t, host, port, "Ann")
	require.NoError(t, p.bridge.Ping())
	pumpUntil(t, func() bool { return p.rec.count("pong") == 1 }, p)

	e, _ := p.rec.find("pong")
	assert.GreaterOrEqual(t, e.arg.(time.Duration), time.Duration(0))
}

func TestRoomListAndErrors(t *testing.T) {
	_, host, port := startServer(t)
	a := connectPlayer(t, host, port, "Ann")
	b := connectPlayer(t, host, port, "Bob")

	require.NoError(t, a.bridge.CreateRoom("Table", ""))
	pumpUntil(t, func() bool { _, ok := a.bridge.CurrentRoom(); return ok }, a)

	require.NoError(t, b.bridge.RequestRoomList())
	pumpUntil(t, func() bool { return b.rec.count("room_list") == 1 }, b)
	e, _ := b.rec.find("room_list")
	rooms := e.arg.([]protocol.RoomInfo)
	require.Len(t, rooms, 1)
	assert.Equal(t, "Table", rooms[0].RoomName)

	require.NoError(t, b.bridge.JoinRoom("missing"))
	pumpUntil(t, func() bool { return b.rec.count("error") == 1 }, b)
	e, _ = b.rec.find("error")
	assert.Equal(t, "Room not found.", e.arg)
}

func TestFullGameBetweenTwoBridges(t *testing.T) {
	_, host, port := startServer(t)
	a := connectPlayer(t, host, port, "Ann")
	b := connectPlayer(t, host, port, "Bob")
	both := []player{a, b}

	require.NoError(t, a.bridge.CreateRoom("Table", ""))
	pumpUntil(t, func() bool { _, ok := a.bridge.CurrentRoom(); return ok }, both...)
	room, _ := a.bridge.CurrentRoom()
	assert.Equal(t, protocol.DefaultGameType, room.GameType)

	require.NoError(t, b.bridge.JoinRoom(room.RoomID))
	pumpUntil(t, func() bool {
		ra, _ := a.bridge.CurrentRoom()
		_, ok := b.bridge.CurrentRoom()
		return ok && len(ra.Players) == 2
	}, both...)

	require.NoError(t, a.bridge.SetReady(true))
	require.NoError(t, b.bridge.SetReady(true))
	pumpUntil(t, func() bool {
		ra, _ := a.bridge.CurrentRoom()
		return len(ra.Players) == 2 && ra.AllReady()
	}, both...)

	require.NoError(t, a.bridge.StartGame())
	pumpUntil(t, func() bool {
		_, okA := a.bridge.GameState()
		_, okB := b.bridge.GameState()
		return okA && okB
	}, both...)
	assert.True(t, a.bridge.IsMyTurn())
	assert.False(t, b.bridge.IsMyTurn())

	cue := protocol.CueState{Phi: 90, V0: 2, CueBallID: "cue"}
	require.NoError(t, a.bridge.SendShotAim(cue))
	pumpUntil(t, func() bool { return b.rec.count("shot_aim") == 1 }, both...)
	e, _ := b.rec.find("shot_aim")
	aim := e.arg.(map[string]any)
	assert.Equal(t, 90.0, aim["cue_state"].(map[string]any)["phi"])
	assert.Zero(t, a.rec.count("shot_aim"))

	// Out-of-turn traffic is dropped by the server.
	require.NoError(t, b.bridge.SendShotAim(cue))

	require.NoError(t, a.bridge.SendShotExecute(cue))
	pumpUntil(t, func() bool { return a.rec.count("shot_execute") == 1 && b.rec.count("shot_execute") == 1 }, both...)
	gb, _ := b.bridge.GameState()
	require.NotNil(t, gb.CueState)
	assert.Equal(t, 2.0, gb.CueState.V0)
	assert.Zero(t, a.rec.count("shot_aim"))

	require.NoError(t, a.bridge.SendShotResult(protocol.ShotResult{
		BallStates:   map[string]string{"cue": "stationary"},
		Score:        map[string]int{a.bridge.PlayerID(): 1},
		NextPlayerID: b.bridge.PlayerID(),
	}))
	pumpUntil(t, func() bool { return b.bridge.IsMyTurn() && !a.bridge.IsMyTurn() }, both...)
	assert.Equal(t, 1, b.rec.count("shot_result"))
	gb, _ = b.bridge.GameState()
	assert.Equal(t, 1, gb.Score[a.bridge.PlayerID()])

	winner := b.bridge.PlayerID()
	require.NoError(t, b.bridge.SendShotResult(protocol.ShotResult{IsGameOver: true, WinnerID: &winner}))
	pumpUntil(t, func() bool { return a.rec.count("game_over") == 1 && b.rec.count("game_over") == 1 }, both...)

	e, _ = a.rec.find("game_over")
	assert.Equal(t, winner, e.arg)
	assert.False(t, a.bridge.IsMyTurn())
	assert.False(t, b.bridge.IsMyTurn())
	ga, _ := a.bridge.GameState()
	assert.True(t, ga.IsGameOver)
}

func TestChatAndLeave(t *testing.T) {
	_, host, port := startServer(t)
	a := connectPlayer(t, host, port, "Ann")
	b := connectPlayer(t, host, port, "Bob")
	both := []player{a, b}

	require.NoError(t, a.bridge.CreateRoom("Table", ""))
	pumpUntil(t, func() bool { _, ok := a.bridge.CurrentRoom(); return ok }, both...)
	room, _ := a.bridge.CurrentRoom()
	require.NoError(t, b.bridge.JoinRoom(room.RoomID))
	pumpUntil(t, func() bool { _, ok := b.bridge.CurrentRoom(); return ok }, both...)

	require.NoError(t, b.bridge.SendChat("gg"))
	pumpUntil(t, func() bool { return a.rec.count("chat") == 1 && b.rec.count("chat") == 1 }, both...)
	e, _ := a.rec.find("chat")
	assert.Equal(t, [2]string{"Bob", "gg"}, e.arg)

	require.NoError(t, b.bridge.LeaveRoom())
	_, ok := b.bridge.CurrentRoom()
	assert.False(t, ok, "room is cleared locally before the reply")
	pumpUntil(t, func() bool {
		ra, _ := a.bridge.CurrentRoom()
		return b.rec.count("room_left") == 1 && len(ra.Players) == 1
	}, both...)
}
