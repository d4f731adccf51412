// Package testutil provides helpers for integration tests against a running session server.
package testutil

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/cory-johannsen/breakshot/internal/protocol"
)

// LineClient is a raw newline-JSON client for integration testing.
type LineClient struct {
	conn   net.Conn
	reader *bufio.Reader
	t      *testing.T
}

// NewLineClient dials the given address and returns a test client.
//
// Precondition: addr must be a valid "host:port" string with a listening server.
// Postcondition: Returns a connected LineClient or fails the test.
func NewLineClient(t *testing.T, addr string) *LineClient {
	t.Helper()
	start := time.Now()

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting to %s: %v [%s]", addr, err, time.Since(start))
	}
	t.Cleanup(func() {
		conn.Close()
	})

	return &LineClient{
		conn:   conn,
		reader: bufio.NewReader(conn),
		t:      t,
	}
}

// Send encodes and writes one message built from payload.
func (c *LineClient) Send(typ protocol.Type, payload any) {
	c.t.Helper()
	msg, err := protocol.NewMessage(typ, protocol.SenderClient, payload)
	if err != nil {
		c.t.Fatalf("building %s: %v", typ, err)
	}
	frame, err := protocol.Encode(msg)
	if err != nil {
		c.t.Fatalf("encoding %s: %v", typ, err)
	}
	c.write(frame)
}

// SendRaw writes text followed by a newline, without validation.
func (c *LineClient) SendRaw(text string) {
	c.t.Helper()
	c.write([]byte(text + "\n"))
}

func (c *LineClient) write(frame []byte) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := c.conn.Write(frame); err != nil {
		c.t.Fatalf("writing frame: %v", err)
	}
}

// Read returns the next message, failing the test on timeout.
func (c *LineClient) Read(timeout time.Duration) protocol.Message {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		c.t.Fatalf("reading frame: got %q, error: %v", line, err)
	}
	msg, err := protocol.Decode(line)
	if err != nil {
		c.t.Fatalf("decoding %q: %v", line, err)
	}
	return msg
}

// Expect reads the next message and fails the test unless it has the given type.
func (c *LineClient) Expect(typ protocol.Type, timeout time.Duration) protocol.Message {
	c.t.Helper()
	msg := c.Read(timeout)
	if msg.Type != typ {
		c.t.Fatalf("expected %s, got %s", typ, msg)
	}
	return msg
}

// ExpectNone fails the test if any frame arrives within d.
func (c *LineClient) ExpectNone(d time.Duration) {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(d))
	line, err := c.reader.ReadBytes('\n')
	if err == nil {
		c.t.Fatalf("expected silence, got %q", line)
	}
	if ne, ok := err.(net.Error); !ok || !ne.Timeout() {
		c.t.Fatalf("expected silence, got error %v", err)
	}
}

// Connect performs the CONNECT handshake and returns the assigned player id.
func (c *LineClient) Connect(name string) string {
	c.t.Helper()
	c.Send(protocol.TypeConnect, protocol.ConnectRequest{Name: name})
	var reply protocol.ConnectReply
	if err := c.Expect(protocol.TypeConnect, 5*time.Second).Decode(&reply); err != nil {
		c.t.Fatalf("decoding connect reply: %v", err)
	}
	if !reply.Success || reply.PlayerID == "" {
		c.t.Fatalf("connect failed: %+v", reply)
	}
	return reply.PlayerID
}

// Close closes the underlying connection.
func (c *LineClient) Close() {
	c.conn.Close()
}
