package presenter

import (
	"strings"

	"go.uber.org/zap"

	"github.com/HEKPYTO/ChessClouds-sub000/internal/session"
	"github.com/HEKPYTO/ChessClouds-sub000/pkg/chessdto"
)

// Presenter delivers formatted text without coupling to the command layer.
type Presenter struct {
	send   func(message string) error
	f      *Formatter
	logger *zap.Logger
}

func NewPresenter(send func(message string) error, f *Formatter, logger *zap.Logger) *Presenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Presenter{send: send, f: f, logger: logger}
}

func (p *Presenter) deliver(text string) error {
	if p == nil || p.send == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	return p.send(text)
}

// Board prints the displayed board, the move list and the status block.
func (p *Presenter) Board(state *chessdto.SessionState) error {
	if p == nil || state == nil {
		return nil
	}
	var sb strings.Builder
	if b := strings.TrimRight(state.Board, "\n"); b != "" {
		sb.WriteString(b)
		sb.WriteString("\n\n")
	}
	sb.WriteString(p.f.MoveList(state))
	sb.WriteString("\n\n")
	sb.WriteString(p.f.Status(state))
	return p.deliver(sb.String())
}

func (p *Presenter) Moves(state *chessdto.SessionState) error {
	if p == nil || state == nil {
		return nil
	}
	return p.deliver(p.f.MoveList(state))
}

func (p *Presenter) Notify(ev session.Event) error {
	if p == nil {
		return nil
	}
	return p.deliver(p.f.Event(ev))
}

func (p *Presenter) Reject(err error, move string) error {
	if p == nil {
		return nil
	}
	return p.deliver(p.f.Error(err, move))
}

// Listener adapts Notify for Session.OnEvent. Delivery errors are logged.
func (p *Presenter) Listener() session.Listener {
	return func(ev session.Event) {
		if err := p.Notify(ev); err != nil {
			p.logger.Warn("present_event_failed", zap.String("kind", ev.Kind.String()), zap.Error(err))
		}
	}
}
