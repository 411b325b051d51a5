package chessdto

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ClientKind names the outbound message variants. Only Auth and Move exist.
type ClientKind string

const (
	KindAuth ClientKind = "Auth"
	KindMove ClientKind = "Move"
)

// ServerKind names the inbound message variants.
type ServerKind string

const (
	KindAuthSuccess ServerKind = "AuthSuccess"
	KindMoveHistory ServerKind = "MoveHistory"
	KindServerMove  ServerKind = "Move"
	KindGameEnd     ServerKind = "GameEnd"
	KindError       ServerKind = "Error"
)

// Side is the colour carried on the wire ("White" | "Black").
type Side string

const (
	SideWhite Side = "White"
	SideBlack Side = "Black"
)

// Auth identifies the player to the game server.
type Auth struct {
	GameID string `json:"game_id"`
	UserID string `json:"user_id"`
}

// ClientMessage is the outbound union. Exactly one payload is set according to Kind.
type ClientMessage struct {
	Kind ClientKind
	Auth *Auth
	Move string
}

func NewAuth(gameID, userID string) ClientMessage {
	return ClientMessage{Kind: KindAuth, Auth: &Auth{GameID: gameID, UserID: userID}}
}

func NewMove(notation string) ClientMessage {
	return ClientMessage{Kind: KindMove, Move: notation}
}

// GameEnd is the server-declared result. Draw is exclusive with Winner.
type GameEnd struct {
	Draw   bool
	Winner Side
}

// ServerMessage is the inbound union.
type ServerMessage struct {
	Kind    ServerKind
	History []string
	Move    string
	End     *GameEnd
	Error   ProtocolError
}

// envelope is the adjacently tagged JSON shape {"type": ..., "value": ...}.
type envelope struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

var errMissingValue = errors.New("missing value")

func (m ClientMessage) MarshalJSON() ([]byte, error) {
	switch m.Kind {
	case KindAuth:
		if m.Auth == nil {
			return nil, fmt.Errorf("auth: %w", errMissingValue)
		}
		raw, err := json.Marshal(m.Auth)
		if err != nil {
			return nil, err
		}
		return json.Marshal(envelope{Type: string(KindAuth), Value: raw})
	case KindMove:
		raw, err := json.Marshal(m.Move)
		if err != nil {
			return nil, err
		}
		return json.Marshal(envelope{Type: string(KindMove), Value: raw})
	default:
		return nil, fmt.Errorf("unknown client message kind %q", m.Kind)
	}
}

func (m *ClientMessage) UnmarshalJSON(b []byte) error {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	switch ClientKind(env.Type) {
	case KindAuth:
		var a Auth
		if err := unmarshalValue(env.Value, &a); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
		*m = ClientMessage{Kind: KindAuth, Auth: &a}
	case KindMove:
		var mv string
		if err := unmarshalValue(env.Value, &mv); err != nil {
			return fmt.Errorf("move: %w", err)
		}
		*m = ClientMessage{Kind: KindMove, Move: mv}
	default:
		return fmt.Errorf("unknown client message type %q", env.Type)
	}
	return nil
}

func (m ServerMessage) MarshalJSON() ([]byte, error) {
	var value any
	switch m.Kind {
	case KindAuthSuccess:
		return json.Marshal(envelope{Type: string(KindAuthSuccess)})
	case KindMoveHistory:
		history := m.History
		if history == nil {
			history = []string{}
		}
		value = history
	case KindServerMove:
		value = m.Move
	case KindGameEnd:
		if m.End == nil {
			return nil, fmt.Errorf("game end: %w", errMissingValue)
		}
		value = m.End
	case KindError:
		value = m.Error
	default:
		return nil, fmt.Errorf("unknown server message kind %q", m.Kind)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: string(m.Kind), Value: raw})
}

func (m *ServerMessage) UnmarshalJSON(b []byte) error {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	switch ServerKind(env.Type) {
	case KindAuthSuccess:
		*m = ServerMessage{Kind: KindAuthSuccess}
	case KindMoveHistory:
		var history []string
		if err := unmarshalValue(env.Value, &history); err != nil {
			return fmt.Errorf("move history: %w", err)
		}
		*m = ServerMessage{Kind: KindMoveHistory, History: history}
	case KindServerMove:
		var mv string
		if err := unmarshalValue(env.Value, &mv); err != nil {
			return fmt.Errorf("move: %w", err)
		}
		if mv == "" {
			return fmt.Errorf("move: %w", errMissingValue)
		}
		*m = ServerMessage{Kind: KindServerMove, Move: mv}
	case KindGameEnd:
		var end GameEnd
		if err := unmarshalValue(env.Value, &end); err != nil {
			return fmt.Errorf("game end: %w", err)
		}
		*m = ServerMessage{Kind: KindGameEnd, End: &end}
	case KindError:
		var pe ProtocolError
		if err := unmarshalValue(env.Value, &pe); err != nil {
			return fmt.Errorf("error: %w", err)
		}
		*m = ServerMessage{Kind: KindError, Error: pe}
	default:
		return fmt.Errorf("unknown server message type %q", env.Type)
	}
	return nil
}

func unmarshalValue(raw json.RawMessage, out any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return errMissingValue
	}
	return json.Unmarshal(raw, out)
}

// GameEnd encodes as "Draw" or {"Decisive":{"winner":"White"}}.
func (g GameEnd) MarshalJSON() ([]byte, error) {
	if g.Draw {
		return json.Marshal("Draw")
	}
	if g.Winner != SideWhite && g.Winner != SideBlack {
		return nil, fmt.Errorf("decisive game end without winner")
	}
	type decisive struct {
		Winner Side `json:"winner"`
	}
	return json.Marshal(map[string]decisive{"Decisive": {Winner: g.Winner}})
}

func (g *GameEnd) UnmarshalJSON(b []byte) error {
	var tag string
	if err := json.Unmarshal(b, &tag); err == nil {
		if tag != "Draw" {
			return fmt.Errorf("unknown game end %q", tag)
		}
		*g = GameEnd{Draw: true}
		return nil
	}
	var wrapped struct {
		Decisive *struct {
			Winner Side `json:"winner"`
		} `json:"Decisive"`
	}
	if err := json.Unmarshal(b, &wrapped); err != nil {
		return err
	}
	if wrapped.Decisive == nil {
		return fmt.Errorf("game end: %w", errMissingValue)
	}
	switch wrapped.Decisive.Winner {
	case SideWhite, SideBlack:
	default:
		return fmt.Errorf("unknown winner %q", wrapped.Decisive.Winner)
	}
	*g = GameEnd{Winner: wrapped.Decisive.Winner}
	return nil
}
