package websocket

import (
	"bytes"
	"io"
	"net"
	"sync"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/cory-johannsen/breakshot/internal/protocol"
)

// Conn carries protocol frames over a WebSocket, one frame per message.
type Conn struct {
	ws           *gws.Conn
	mu           sync.Mutex
	readTimeout  time.Duration
	writeTimeout time.Duration
}

var _ protocol.Transport = (*Conn)(nil)

// NewConn wraps an upgraded WebSocket. Zero timeouts disable the corresponding
// deadline; maxFrame <= 0 uses protocol.DefaultMaxFrameBytes. A message larger
// than maxFrame ends the connection.
func NewConn(ws *gws.Conn, readTimeout, writeTimeout time.Duration, maxFrame int) *Conn {
	if maxFrame <= 0 {
		maxFrame = protocol.DefaultMaxFrameBytes
	}
	ws.SetReadLimit(int64(maxFrame))
	return &Conn{ws: ws, readTimeout: readTimeout, writeTimeout: writeTimeout}
}

// ReadMessage reads and decodes the next non-blank text or binary message.
// A trailing newline is optional. A normal close from the peer reads as io.EOF.
func (c *Conn) ReadMessage() (protocol.Message, error) {
	for {
		if c.readTimeout > 0 {
			_ = c.ws.SetReadDeadline(time.Now().Add(c.readTimeout))
		}
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if gws.IsCloseError(err, gws.CloseNormalClosure, gws.CloseGoingAway, gws.CloseNoStatusReceived) {
				return protocol.Message{}, io.EOF
			}
			return protocol.Message{}, err
		}
		if len(bytes.TrimSpace(data)) == 0 {
			continue
		}
		return protocol.Decode(data)
	}
}

// WriteFrame sends one frame as a text message, without its newline terminator.
func (c *Conn) WriteFrame(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.ws.WriteMessage(gws.TextMessage, bytes.TrimRight(frame, "\n"))
}

// Close closes the underlying network connection without a close handshake.
func (c *Conn) Close() error {
	return c.ws.Close()
}

// RemoteAddr returns the remote network address of the peer.
func (c *Conn) RemoteAddr() net.Addr {
	return c.ws.RemoteAddr()
}
