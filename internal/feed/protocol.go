// Package feed ships published frames to presentation processes over a
// local socket, so a renderer can run outside the simulation process.
package feed

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"online-breakout/internal/game"
	"online-breakout/internal/session"
)

const (
	DefaultSocketPath = "/tmp/online-breakout.sock"

	// Message types
	MsgTypeFrame  byte = 0x01
	MsgTypePing   byte = 0x02
	MsgTypePong   byte = 0x03
	MsgTypeConfig byte = 0x04

	ProtocolVersion uint16 = 1

	MaxMessageSize = 1024 * 1024 // 1MB max message
	WriteTimeout   = 50 * time.Millisecond
	ReconnectDelay = 500 * time.Millisecond
	PingInterval   = time.Second
)

var (
	ErrVersionMismatch = errors.New("feed protocol version mismatch")
	ErrMessageTooLarge = errors.New("feed message too large")
)

// FrameMessage is the wire form of match.Frame.
type FrameMessage struct {
	Sequence  uint64
	Timestamp int64 // Unix nano
	Tick      int

	Entities    []EntityData
	TimerTicks  int
	SecondsLeft int
	Over        bool
	Result      game.GameResult
	Events      []game.Event

	SessionState   session.State
	AwaitingPeer   bool
	ConfirmedFrame int
	Rollbacks      int
}

// EntityData is the wire form of match.EntityView.
type EntityData struct {
	ID     uint32
	Kind   game.Kind
	Team   game.Team
	Item   game.ItemKind
	X, Y   float64
	HX, HY float64
	Radius float64
}

// ConfigMessage tells a new subscriber how to draw the field.
type ConfigMessage struct {
	TickRate    int
	FieldWidth  float64
	FieldHeight float64
	Role        string
	// Mirrored subscribers rotate the board half a turn.
	Mirrored bool
}

// Header frames every message.
type Header struct {
	Version  uint16
	Type     byte
	Reserved byte
	Length   uint32
}

const HeaderSize = 8 // 2 + 1 + 1 + 4

var bufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// WriteMessage gob-encodes data and writes it with a header.
func WriteMessage(w io.Writer, msgType byte, data interface{}) error {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	// Header placeholder, patched once the body length is known.
	buf.Write(make([]byte, HeaderSize))
	if data != nil {
		if err := gob.NewEncoder(buf).Encode(data); err != nil {
			return fmt.Errorf("gob encode: %w", err)
		}
	}

	bodyLen := buf.Len() - HeaderSize
	if bodyLen > MaxMessageSize {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, bodyLen, MaxMessageSize)
	}

	b := buf.Bytes()
	binary.LittleEndian.PutUint16(b[0:2], ProtocolVersion)
	b[2] = msgType
	b[3] = 0
	binary.LittleEndian.PutUint32(b[4:8], uint32(bodyLen))

	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// ReadMessage reads one framed message.
func ReadMessage(r io.Reader) (byte, []byte, error) {
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return 0, nil, fmt.Errorf("read header: %w", err)
	}

	header := Header{
		Version: binary.LittleEndian.Uint16(headerBuf[0:2]),
		Type:    headerBuf[2],
		Length:  binary.LittleEndian.Uint32(headerBuf[4:8]),
	}
	if header.Version != ProtocolVersion {
		return 0, nil, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, header.Version, ProtocolVersion)
	}
	if header.Length > MaxMessageSize {
		return 0, nil, fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, header.Length, MaxMessageSize)
	}

	var body []byte
	if header.Length > 0 {
		body = make([]byte, header.Length)
		if _, err := io.ReadFull(r, body); err != nil {
			return 0, nil, fmt.Errorf("read body: %w", err)
		}
	}
	return header.Type, body, nil
}

func DecodeFrame(data []byte) (*FrameMessage, error) {
	var msg FrameMessage
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&msg); err != nil {
		return nil, fmt.Errorf("gob decode frame: %w", err)
	}
	return &msg, nil
}

func DecodeConfig(data []byte) (*ConfigMessage, error) {
	var msg ConfigMessage
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&msg); err != nil {
		return nil, fmt.Errorf("gob decode config: %w", err)
	}
	return &msg, nil
}

// CleanupSocket removes the socket file if it exists.
func CleanupSocket(path string) error {
	if _, err := os.Stat(path); err == nil {
		return os.Remove(path)
	}
	return nil
}
