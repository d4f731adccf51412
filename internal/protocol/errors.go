package protocol

import (
	"errors"
	"fmt"
)

// maxErrorFrame bounds how much of an offending frame is kept for logging.
const maxErrorFrame = 256

// ProtocolError reports a frame that could not be parsed as a Message.
// It never implies that the underlying connection is unusable.
type ProtocolError struct {
	// Frame is the offending frame, truncated for logging.
	Frame []byte
	// Reason is a short description of the failure.
	Reason string
	// Err is the underlying decoding error, if any.
	Err error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Reason, e.Err)
	}
	return "protocol error: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// IsProtocolError reports whether err is, or wraps, a *ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

func clip(frame []byte) []byte {
	if len(frame) > maxErrorFrame {
		frame = frame[:maxErrorFrame]
	}
	out := make([]byte, len(frame))
	copy(out, frame)
	return out
}
