// Package protocol defines the breakshot wire format: one JSON-encoded Message
// per line over a TCP byte stream.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Type identifies the kind of a Message.
type Type string

// The closed set of message types.
const (
	TypeConnect     Type = "connect"
	TypeDisconnect  Type = "disconnect"
	TypePing        Type = "ping"
	TypePong        Type = "pong"
	TypeCreateRoom  Type = "create_room"
	TypeJoinRoom    Type = "join_room"
	TypeLeaveRoom   Type = "leave_room"
	TypeRoomList    Type = "room_list"
	TypeRoomUpdate  Type = "room_update"
	TypePlayerReady Type = "player_ready"
	TypeGameStart   Type = "game_start"
	TypeShotAim     Type = "shot_aim"
	TypeShotExecute Type = "shot_execute"
	TypeShotResult  Type = "shot_result"
	TypeTurnChange  Type = "turn_change"
	TypeGameOver    Type = "game_over"
	TypeChatMessage Type = "chat_message"
	TypeError       Type = "error"
)

// SenderServer is the sender_id stamped on messages produced by the session server.
const SenderServer = "server"

// SenderClient is the sender_id stamped on messages synthesized locally by a client.
const SenderClient = "client"

var knownTypes = map[Type]bool{
	TypeConnect: true, TypeDisconnect: true, TypePing: true, TypePong: true,
	TypeCreateRoom: true, TypeJoinRoom: true, TypeLeaveRoom: true, TypeRoomList: true,
	TypeRoomUpdate: true, TypePlayerReady: true, TypeGameStart: true, TypeShotAim: true,
	TypeShotExecute: true, TypeShotResult: true, TypeTurnChange: true, TypeGameOver: true,
	TypeChatMessage: true, TypeError: true,
}

// Valid reports whether t is one of the defined message types.
func (t Type) Valid() bool {
	return knownTypes[t]
}

// Message is the unit of wire transfer.
type Message struct {
	Type      Type           `json:"type"`
	SenderID  string         `json:"sender_id"`
	Data      map[string]any `json:"data"`
	Timestamp float64        `json:"timestamp"`
}

// Now returns the current wall-clock time as fractional Unix seconds.
func Now() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

// NewMessage builds a Message stamped with the current time.
// payload may be nil, a map[string]any, or any value that encodes to a JSON object.
//
// Postcondition: Returns a Message whose Data is never nil, or an error if payload
// does not encode to a JSON object.
func NewMessage(t Type, senderID string, payload any) (Message, error) {
	data, err := toData(payload)
	if err != nil {
		return Message{}, fmt.Errorf("building %s payload: %w", t, err)
	}
	return Message{
		Type:      t,
		SenderID:  senderID,
		Data:      data,
		Timestamp: Now(),
	}, nil
}

// MustMessage is NewMessage for payloads known to be encodable; it panics otherwise.
func MustMessage(t Type, senderID string, payload any) Message {
	msg, err := NewMessage(t, senderID, payload)
	if err != nil {
		panic(err)
	}
	return msg
}

// Decode maps the message data onto v, which must be a pointer to a payload struct.
// Fields absent from the data keep their zero values; unknown keys are ignored.
func (m Message) Decode(v any) error {
	raw, err := json.Marshal(m.Data)
	if err != nil {
		return fmt.Errorf("re-encoding %s data: %w", m.Type, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding %s data: %w", m.Type, err)
	}
	return nil
}

// String returns the message type and sender for log output.
func (m Message) String() string {
	return fmt.Sprintf("%s from %q", m.Type, m.SenderID)
}

// Encode serialises m as a single newline-terminated frame.
func Encode(m Message) ([]byte, error) {
	if m.Data == nil {
		m.Data = map[string]any{}
	}
	buf, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding %s message: %w", m.Type, err)
	}
	return append(buf, '\n'), nil
}

// Decode parses one frame. Trailing whitespace (including the newline) is ignored.
//
// Postcondition: Returns a Message with non-nil Data, or a *ProtocolError.
func Decode(frame []byte) (Message, error) {
	frame = bytes.TrimSpace(frame)
	if len(frame) == 0 || frame[0] != '{' {
		return Message{}, &ProtocolError{Frame: clip(frame), Reason: "frame is not a JSON object"}
	}

	var m Message
	if err := json.Unmarshal(frame, &m); err != nil {
		return Message{}, &ProtocolError{Frame: clip(frame), Reason: "invalid JSON", Err: err}
	}
	if m.Type == "" {
		return Message{}, &ProtocolError{Frame: clip(frame), Reason: "missing message type"}
	}
	if m.Data == nil {
		m.Data = map[string]any{}
	}
	return m, nil
}

func toData(payload any) (map[string]any, error) {
	switch p := payload.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		if p == nil {
			return map[string]any{}, nil
		}
		return p, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("payload is not a JSON object: %w", err)
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}
