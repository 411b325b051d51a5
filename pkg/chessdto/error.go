package chessdto

import (
	"encoding/json"
	"fmt"
)

// ProtocolError is the value of a server Error message.
type ProtocolError string

const (
	ErrDeserialization ProtocolError = "Deserialization"
	ErrUnauthorized    ProtocolError = "Unauthorized"
	ErrInvalidTurn     ProtocolError = "InvalidTurn"
	ErrInvalidMove     ProtocolError = "InvalidMove"
)

func (e ProtocolError) Error() string {
	if e == "" {
		return "protocol error"
	}
	return "protocol error: " + string(e)
}

func (e ProtocolError) Valid() bool {
	switch e {
	case ErrDeserialization, ErrUnauthorized, ErrInvalidTurn, ErrInvalidMove:
		return true
	default:
		return false
	}
}

func (e *ProtocolError) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	pe := ProtocolError(s)
	if !pe.Valid() {
		return fmt.Errorf("unknown protocol error %q", s)
	}
	*e = pe
	return nil
}
