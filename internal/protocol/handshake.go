package protocol

import (
	"errors"

	"github.com/HEKPYTO/ChessClouds-sub000/pkg/chessdto"
)

// Phase is the authentication progress of an open transport.
type Phase int

const (
	PhaseOpen Phase = iota
	PhaseAuthenticating
	PhaseAuthenticated
	PhaseDegraded
)

func (p Phase) String() string {
	switch p {
	case PhaseOpen:
		return "open"
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

var ErrHandshakeStarted = errors.New("handshake already started")

// Handshake tracks Open -> Authenticating -> Authenticated | Degraded.
// It holds no transport; callers send what Start returns.
type Handshake struct {
	gameID string
	userID string
	phase  Phase
}

func NewHandshake(gameID, userID string) *Handshake {
	return &Handshake{gameID: gameID, userID: userID, phase: PhaseOpen}
}

func (h *Handshake) Phase() Phase { return h.phase }

// Start returns the Auth message and moves to Authenticating.
func (h *Handshake) Start() (chessdto.ClientMessage, error) {
	if h.phase != PhaseOpen {
		return chessdto.ClientMessage{}, ErrHandshakeStarted
	}
	h.phase = PhaseAuthenticating
	return chessdto.NewAuth(h.gameID, h.userID), nil
}

// Observe feeds an inbound message and returns the resulting phase and
// whether it changed.
func (h *Handshake) Observe(m chessdto.ServerMessage) (Phase, bool) {
	prev := h.phase
	switch m.Kind {
	case chessdto.KindAuthSuccess:
		if h.phase == PhaseAuthenticating || h.phase == PhaseDegraded {
			h.phase = PhaseAuthenticated
		}
	case chessdto.KindError:
		if m.Error == chessdto.ErrUnauthorized && h.phase != PhaseOpen {
			h.phase = PhaseDegraded
		}
	}
	return h.phase, h.phase != prev
}
