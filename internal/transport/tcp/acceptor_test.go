package tcp

import (
	"bufio"
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/breakshot/internal/config"
	"github.com/cory-johannsen/breakshot/internal/protocol"
)

// echoHandler answers every PING with a PONG and returns on DISCONNECT.
type echoHandler struct {
	sessions atomic.Int32
	canceled atomic.Int32
}

func (h *echoHandler) HandleSession(ctx context.Context, conn *protocol.Conn) error {
	h.sessions.Add(1)
	go func() {
		<-ctx.Done()
		h.canceled.Add(1)
		conn.Close()
	}()
	for {
		msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		switch msg.Type {
		case protocol.TypeDisconnect:
			return nil
		case protocol.TypePing:
			_ = conn.WriteMessage(protocol.MustMessage(protocol.TypePong, protocol.SenderServer, protocol.Pong{ClientTime: 1}))
		}
	}
}

func startAcceptor(t *testing.T, h SessionHandler) (*Acceptor, <-chan error) {
	t.Helper()
	cfg := config.ServerConfig{Host: "127.0.0.1", Port: 0, WriteTimeout: 5 * time.Second}
	acc := NewAcceptor(cfg, h, zaptest.NewLogger(t))

	errCh := make(chan error, 1)
	go func() { errCh <- acc.ListenAndServe() }()

	select {
	case <-acc.Listening():
	case <-time.After(2 * time.Second):
		t.Fatal("acceptor did not start in time")
	}
	require.True(t, acc.IsRunning())
	return acc, errCh
}

func TestAcceptorServesFrames(t *testing.T) {
	h := &echoHandler{}
	acc, errCh := startAcceptor(t, h)

	conn, err := net.DialTimeout("tcp", acc.Addr(), 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(`{"type":"ping","data":{"time":1}}` + "\n"))
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, `"type":"pong"`)

	_, _ = conn.Write([]byte(`{"type":"disconnect","data":{}}` + "\n"))

	acc.Stop()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("acceptor did not stop in time")
	}
	assert.Equal(t, int32(1), h.sessions.Load())
	assert.False(t, acc.IsRunning())
}

func TestAcceptorStopCancelsOpenSessions(t *testing.T) {
	h := &echoHandler{}
	acc, errCh := startAcceptor(t, h)

	const n = 3
	for i := 0; i < n; i++ {
		conn, err := net.DialTimeout("tcp", acc.Addr(), 2*time.Second)
		require.NoError(t, err)
		defer conn.Close()
	}
	require.Eventually(t, func() bool { return h.sessions.Load() == n }, 2*time.Second, 10*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		acc.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return while sessions were open")
	}
	assert.NoError(t, <-errCh)
	assert.Equal(t, int32(n), h.canceled.Load())
}

func TestAcceptorListenError(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	port := busy.Addr().(*net.TCPAddr).Port
	acc := NewAcceptor(config.ServerConfig{Host: "127.0.0.1", Port: port}, &echoHandler{}, zaptest.NewLogger(t))
	assert.Error(t, acc.ListenAndServe())
}

func TestAcceptorStopIsIdempotent(t *testing.T) {
	acc, errCh := startAcceptor(t, &echoHandler{})
	acc.Stop()
	acc.Stop()
	assert.NoError(t, <-errCh)
}
