// Package protocol encodes and decodes the game server wire messages and
// drives the authentication handshake.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/HEKPYTO/ChessClouds-sub000/pkg/chessdto"
)

// ErrOutboundKind is returned when encoding a message the client may not send.
var ErrOutboundKind = errors.New("outbound message kind not allowed")

var ErrEmptyMove = errors.New("empty move notation")

// DecodeError reports an inbound frame that could not be parsed.
type DecodeError struct {
	Raw []byte
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode server message: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Kind is always Deserialization.
func (e *DecodeError) Kind() chessdto.ProtocolError { return chessdto.ErrDeserialization }

// Encode serialises an outbound message. Only Auth and Move may be sent.
func Encode(m chessdto.ClientMessage) ([]byte, error) {
	switch m.Kind {
	case chessdto.KindAuth:
		if m.Auth == nil || strings.TrimSpace(m.Auth.GameID) == "" || strings.TrimSpace(m.Auth.UserID) == "" {
			return nil, fmt.Errorf("encode auth: game_id and user_id are required")
		}
	case chessdto.KindMove:
		if strings.TrimSpace(m.Move) == "" {
			return nil, ErrEmptyMove
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrOutboundKind, m.Kind)
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Kind, err)
	}
	return b, nil
}

// Decode parses an inbound frame. Malformed input yields a *DecodeError.
func Decode(b []byte) (chessdto.ServerMessage, error) {
	var m chessdto.ServerMessage
	if len(b) == 0 {
		return m, &DecodeError{Raw: b, Err: errors.New("empty frame")}
	}
	if err := json.Unmarshal(b, &m); err != nil {
		raw := make([]byte, len(b))
		copy(raw, b)
		return chessdto.ServerMessage{}, &DecodeError{Raw: raw, Err: err}
	}
	return m, nil
}

// IsDecodeError reports whether err is (or wraps) a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
