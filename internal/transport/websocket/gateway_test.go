package websocket_test

import (
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/breakshot/internal/config"
	"github.com/cory-johannsen/breakshot/internal/gameserver"
	"github.com/cory-johannsen/breakshot/internal/protocol"
	"github.com/cory-johannsen/breakshot/internal/testutil"
	"github.com/cory-johannsen/breakshot/internal/transport/tcp"
	"github.com/cory-johannsen/breakshot/internal/transport/websocket"
)

const wait = 2 * time.Second

func serverConfig() config.ServerConfig {
	return config.ServerConfig{
		Host:         "127.0.0.1",
		MaxRooms:     10,
		MaxPlayers:   2,
		WriteTimeout: 5 * time.Second,
		OutboxSize:   64,
	}
}

// startBoth runs one session server behind both a TCP acceptor and a WebSocket gateway.
func startBoth(t *testing.T) (tcpAddr, wsURL string) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	cfg := serverConfig()
	srv := gameserver.NewServer(cfg, logger)

	acc := tcp.NewAcceptor(cfg, srv, logger)
	go func() { _ = acc.ListenAndServe() }()
	t.Cleanup(acc.Stop)

	gw := websocket.NewGateway(config.WebSocketConfig{Enabled: true, Host: "127.0.0.1", Port: 0, Path: "/ws"}, cfg, srv, logger)
	go func() { _ = gw.ListenAndServe() }()
	t.Cleanup(gw.Stop)

	for _, ch := range []<-chan struct{}{acc.Listening(), gw.Listening()} {
		select {
		case <-ch:
		case <-time.After(wait):
			t.Fatal("listeners did not start in time")
		}
	}
	return acc.Addr(), "ws://" + gw.Addr() + "/ws"
}

func dial(t *testing.T, url string) *gws.Conn {
	t.Helper()
	ws, _, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func send(t *testing.T, ws *gws.Conn, typ protocol.Type, payload any) {
	t.Helper()
	frame, err := protocol.Encode(protocol.MustMessage(typ, protocol.SenderClient, payload))
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(gws.TextMessage, frame))
}

func expect(t *testing.T, ws *gws.Conn, typ protocol.Type) protocol.Message {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(wait))
	kind, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, gws.TextMessage, kind)
	assert.NotContains(t, string(data), "\n")
	msg, err := protocol.Decode(data)
	require.NoError(t, err)
	require.Equal(t, typ, msg.Type, "got %s", msg)
	return msg
}

func TestGatewayConnectAndPing(t *testing.T) {
	_, url := startBoth(t)
	ws := dial(t, url)

	send(t, ws, protocol.TypeConnect, protocol.ConnectRequest{Name: "Web"})
	var reply protocol.ConnectReply
	require.NoError(t, expect(t, ws, protocol.TypeConnect).Decode(&reply))
	assert.Equal(t, "Web", reply.Name)

	require.NoError(t, ws.WriteMessage(gws.TextMessage, []byte("garbage")))
	require.NoError(t, ws.WriteMessage(gws.TextMessage, []byte(`{"type":"ping","data":{"time":7}}`)))
	var pong protocol.Pong
	require.NoError(t, expect(t, ws, protocol.TypePong).Decode(&pong))
	assert.Equal(t, 7.0, pong.ClientTime)
}

func TestGatewayPlayersShareRoomsWithTCP(t *testing.T) {
	tcpAddr, url := startBoth(t)

	host := testutil.NewLineClient(t, tcpAddr)
	host.Connect("Tcp")
	host.Send(protocol.TypeCreateRoom, protocol.CreateRoomRequest{RoomName: "mixed"})
	var created protocol.RoomReply
	require.NoError(t, host.Expect(protocol.TypeCreateRoom, wait).Decode(&created))

	ws := dial(t, url)
	send(t, ws, protocol.TypeJoinRoom, protocol.JoinRoomRequest{RoomID: created.Room.RoomID})
	var joined protocol.RoomReply
	require.NoError(t, expect(t, ws, protocol.TypeJoinRoom).Decode(&joined))
	assert.Len(t, joined.Room.Players, 2)

	var update protocol.RoomUpdate
	require.NoError(t, host.Expect(protocol.TypeRoomUpdate, wait).Decode(&update))
	assert.Len(t, update.Room.Players, 2)

	send(t, ws, protocol.TypeChatMessage, protocol.ChatRequest{Message: "hi from the browser"})
	expect(t, ws, protocol.TypeChatMessage)
	var chat protocol.ChatMessage
	require.NoError(t, host.Expect(protocol.TypeChatMessage, wait).Decode(&chat))
	assert.Equal(t, "hi from the browser", chat.Message)
}

func TestGatewayCloseRunsCleanup(t *testing.T) {
	tcpAddr, url := startBoth(t)

	ws := dial(t, url)
	send(t, ws, protocol.TypeCreateRoom, protocol.CreateRoomRequest{})
	var created protocol.RoomReply
	require.NoError(t, expect(t, ws, protocol.TypeCreateRoom).Decode(&created))

	guest := testutil.NewLineClient(t, tcpAddr)
	guest.Send(protocol.TypeJoinRoom, protocol.JoinRoomRequest{RoomID: created.Room.RoomID})
	guest.Expect(protocol.TypeJoinRoom, wait)
	expect(t, ws, protocol.TypeRoomUpdate)

	require.NoError(t, ws.WriteMessage(gws.CloseMessage, gws.FormatCloseMessage(gws.CloseNormalClosure, "")))
	var update protocol.RoomUpdate
	require.NoError(t, guest.Expect(protocol.TypeRoomUpdate, wait).Decode(&update))
	assert.Len(t, update.Room.Players, 1)
}
