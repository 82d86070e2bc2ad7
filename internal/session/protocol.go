package session

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"online-breakout/internal/game"
)

// MessageKind identifies a session datagram.
type MessageKind uint8

const (
	MsgSyncRequest MessageKind = iota + 1
	MsgSyncReply
	MsgInput
	MsgChecksum
	MsgKeepAlive
)

func (k MessageKind) String() string {
	switch k {
	case MsgSyncRequest:
		return "sync_request"
	case MsgSyncReply:
		return "sync_reply"
	case MsgInput:
		return "input"
	case MsgChecksum:
		return "checksum"
	case MsgKeepAlive:
		return "keep_alive"
	default:
		return "unknown"
	}
}

// maxInputsPerMessage bounds the resend window carried by one datagram.
const maxInputsPerMessage = 128

// Message is the only thing peers send each other.
//
// Input messages carry a contiguous run of the sender's inputs starting at
// Start, plus Ack: the newest frame of the recipient's inputs the sender has
// received without gaps (-1 for none). The sender keeps resending everything
// after the recipient's last Ack, so one delivered datagram is enough to
// catch up after any amount of loss.
type Message struct {
	Kind     MessageKind `msgpack:"k"`
	Nonce    uint32      `msgpack:"n,omitempty"`
	Start    int32       `msgpack:"s,omitempty"`
	Inputs   []byte      `msgpack:"i,omitempty"`
	Ack      int32       `msgpack:"a"`
	Frame    int32       `msgpack:"f,omitempty"`
	Checksum uint64      `msgpack:"c,omitempty"`
}

// EncodeMessage serializes m for the wire.
func EncodeMessage(m *Message) ([]byte, error) {
	data, err := msgpack.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Kind, err)
	}
	return data, nil
}

// DecodeMessage parses a datagram and sanitizes the inputs it carries.
func DecodeMessage(data []byte, m *Message) error {
	*m = Message{}
	if err := msgpack.Unmarshal(data, m); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if m.Kind < MsgSyncRequest || m.Kind > MsgKeepAlive {
		return fmt.Errorf("decode message: unknown kind %d", m.Kind)
	}
	if m.Start < 0 || len(m.Inputs) > maxInputsPerMessage {
		return fmt.Errorf("decode message: bad input run start=%d len=%d", m.Start, len(m.Inputs))
	}
	for i, b := range m.Inputs {
		m.Inputs[i] = byte(game.Input(b).Sanitize())
	}
	return nil
}
