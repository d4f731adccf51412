package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// Transport is one framed connection as seen by the session server. ReadMessage
// is called from a single goroutine; WriteFrame is safe for concurrent use.
type Transport interface {
	ReadMessage() (Message, error)
	WriteFrame(frame []byte) error
	Close() error
	RemoteAddr() net.Addr
}

var _ Transport = (*Conn)(nil)

// DefaultMaxFrameBytes bounds a single frame when no limit is configured.
const DefaultMaxFrameBytes = 1 << 20

// Conn wraps a TCP connection with newline-delimited Message framing.
// Reads must come from a single goroutine; writes are safe for concurrent use.
type Conn struct {
	raw    net.Conn
	reader *bufio.Reader
	mu     sync.Mutex

	// partial holds the bytes of a line whose read was interrupted by a deadline.
	partial    []byte
	discarding bool

	readTimeout  time.Duration
	writeTimeout time.Duration
	maxFrame     int
}

// NewConn wraps a raw connection. Zero timeouts disable the corresponding deadline.
//
// Precondition: raw must be a valid, open network connection.
// Postcondition: Returns a Conn ready for reading and writing.
func NewConn(raw net.Conn, readTimeout, writeTimeout time.Duration) *Conn {
	return &Conn{
		raw:          raw,
		reader:       bufio.NewReaderSize(raw, 4096),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
		maxFrame:     DefaultMaxFrameBytes,
	}
}

// SetMaxFrameBytes changes the frame size limit. Values <= 0 restore the default.
func (c *Conn) SetMaxFrameBytes(n int) {
	if n <= 0 {
		n = DefaultMaxFrameBytes
	}
	c.maxFrame = n
}

// ReadLine reads the next newline-terminated line without its line terminator.
// If the read deadline expires mid-line, the bytes read so far are kept and the
// next call resumes the same line. An oversized line is discarded through its
// newline and reported as a *ProtocolError.
//
// Postcondition: Returns a complete line, or an error (including io.EOF and net timeouts).
func (c *Conn) ReadLine() ([]byte, error) {
	if c.readTimeout > 0 {
		_ = c.raw.SetReadDeadline(time.Now().Add(c.readTimeout))
	}

	for {
		chunk, err := c.reader.ReadSlice('\n')
		if !c.discarding {
			if len(c.partial)+len(chunk) > c.maxFrame {
				c.partial = c.partial[:0]
				c.discarding = true
			} else {
				c.partial = append(c.partial, chunk...)
			}
		}

		switch {
		case err == nil:
			if c.discarding {
				c.discarding = false
				return nil, &ProtocolError{Reason: fmt.Sprintf("frame exceeds %d bytes", c.maxFrame)}
			}
			line := bytes.TrimRight(c.partial, "\r\n")
			out := make([]byte, len(line))
			copy(out, line)
			c.partial = c.partial[:0]
			return out, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		default:
			return nil, err
		}
	}
}

// ReadMessage reads and decodes the next non-blank frame.
//
// Postcondition: Returns a Message, a *ProtocolError for a malformed frame (the
// connection remains usable), or a transport error.
func (c *Conn) ReadMessage() (Message, error) {
	for {
		line, err := c.ReadLine()
		if err != nil {
			return Message{}, err
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		return Decode(line)
	}
}

// WriteMessage encodes m and writes it as one frame.
//
// Postcondition: The frame is written to the connection, or an error is returned.
func (c *Conn) WriteMessage(m Message) error {
	frame, err := Encode(m)
	if err != nil {
		return err
	}
	return c.WriteFrame(frame)
}

// WriteFrame writes a pre-encoded frame. frame must already end with a newline.
func (c *Conn) WriteFrame(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.raw.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	_, err := c.raw.Write(frame)
	return err
}

// Close closes the underlying TCP connection.
//
// Postcondition: The connection is closed and blocked reads return an error.
func (c *Conn) Close() error {
	return c.raw.Close()
}

// RemoteAddr returns the remote network address of the peer.
func (c *Conn) RemoteAddr() net.Addr {
	return c.raw.RemoteAddr()
}

// IsTimeout reports whether err is a network deadline expiry.
func IsTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
