package protocol

import (
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipe(t *testing.T) (*Conn, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	return NewConn(server, 0, time.Second), client
}

func writeAsync(w net.Conn, data string) {
	go func() {
		_, _ = w.Write([]byte(data))
	}()
}

func TestConnReadMessage(t *testing.T) {
	conn, peer := pipe(t)
	writeAsync(peer, `{"type":"ping","sender_id":"p1","data":{"time":3},"timestamp":1}`+"\n")

	msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, TypePing, msg.Type)
	assert.Equal(t, 3.0, msg.Data["time"])
}

func TestConnSkipsBlankLinesAndStripsCR(t *testing.T) {
	conn, peer := pipe(t)
	writeAsync(peer, "\n\r\n"+`{"type":"room_list","data":{}}`+"\r\n")

	msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, TypeRoomList, msg.Type)
}

func TestConnMalformedFrameKeepsConnectionUsable(t *testing.T) {
	conn, peer := pipe(t)
	writeAsync(peer, "this is not json\n"+`{"type":"pong","data":{}}`+"\n")

	_, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, IsProtocolError(err))

	msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, TypePong, msg.Type)
}

func TestConnPartialLineSurvivesTimeout(t *testing.T) {
	server, peer := net.Pipe()
	t.Cleanup(func() {
		_ = server.Close()
		_ = peer.Close()
	})
	conn := NewConn(server, 50*time.Millisecond, time.Second)

	writeAsync(peer, `{"type":"chat_message",`)
	_, err := conn.ReadLine()
	require.Error(t, err)
	assert.True(t, IsTimeout(err))

	writeAsync(peer, `"data":{"message":"hi"}}`+"\n")
	msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, TypeChatMessage, msg.Type)
	assert.Equal(t, "hi", msg.Data["message"])
}

func TestConnOversizedFrameIsDiscarded(t *testing.T) {
	conn, peer := pipe(t)
	conn.SetMaxFrameBytes(64)

	writeAsync(peer, strings.Repeat("x", 5000)+"\n"+`{"type":"ping","data":{}}`+"\n")

	_, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, IsProtocolError(err))
	assert.Contains(t, err.Error(), "exceeds 64 bytes")

	msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, TypePing, msg.Type)
}

func TestConnEOF(t *testing.T) {
	conn, peer := pipe(t)
	peer.Close()
	_, err := conn.ReadMessage()
	assert.ErrorIs(t, err, io.EOF)
}

func TestConnWriteMessage(t *testing.T) {
	conn, peer := pipe(t)
	reader := NewConn(peer, time.Second, 0)

	go func() {
		_ = conn.WriteMessage(MustMessage(TypeChatMessage, SenderServer, ChatMessage{Name: "Ann", Message: "gg"}))
	}()

	msg, err := reader.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, SenderServer, msg.SenderID)

	var chat ChatMessage
	require.NoError(t, msg.Decode(&chat))
	assert.Equal(t, ChatMessage{Name: "Ann", Message: "gg"}, chat)
}
