package session

import (
	"go.uber.org/zap"

	"github.com/HEKPYTO/ChessClouds-sub000/internal/rules"
	"github.com/HEKPYTO/ChessClouds-sub000/pkg/chessdto"
)

type OutcomeKind int

const (
	Ongoing OutcomeKind = iota
	Draw
	Decisive
	Aborted
)

func (k OutcomeKind) String() string {
	switch k {
	case Draw:
		return "draw"
	case Decisive:
		return "decisive"
	case Aborted:
		return "aborted"
	default:
		return "ongoing"
	}
}

// OutcomeSource orders producers: a server GameEnd beats local detection.
type OutcomeSource int

const (
	SourceNone OutcomeSource = iota
	SourceLocal
	SourceResign
	SourceAbort
	SourceServer
)

func (s OutcomeSource) String() string {
	switch s {
	case SourceLocal:
		return "local"
	case SourceResign:
		return "resign"
	case SourceAbort:
		return "abort"
	case SourceServer:
		return "server"
	default:
		return "none"
	}
}

type Outcome struct {
	Kind   OutcomeKind
	Winner rules.Color
	Method string
	Source OutcomeSource
	// Final is false while a locally detected result waits for the server.
	Final bool
}

// Status maps the outcome to the persisted game status.
func (o Outcome) Status() chessdto.GameStatus {
	switch o.Kind {
	case Draw:
		return chessdto.StatusDraw
	case Decisive:
		if o.Winner == rules.White {
			return chessdto.StatusWhiteWins
		}
		return chessdto.StatusBlackWins
	case Aborted:
		return chessdto.StatusAborted
	default:
		return chessdto.StatusOngoing
	}
}

func (o Outcome) verdict() rules.Verdict {
	switch o.Kind {
	case Draw:
		return rules.Verdict{Result: rules.Draw, Method: o.Method}
	case Decisive:
		return rules.Verdict{Result: rules.Decisive, Winner: o.Winner, Method: o.Method}
	default:
		return rules.Verdict{Result: rules.Ongoing, Method: o.Method}
	}
}

// Outcome returns the current outcome, provisional or final.
func (s *Session) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// detectOutcomeLocked checks the live position. Offline results commit at
// once; online results stay provisional for OutcomeGrace so a GameEnd can
// still replace them.
func (s *Session) detectOutcomeLocked() {
	if s.outcome.Kind != Ongoing {
		return
	}
	v := s.live.Verdict()
	if !v.Terminal() {
		return
	}
	o := Outcome{Method: v.Method, Source: SourceLocal}
	if v.Result == rules.Draw {
		o.Kind = Draw
	} else {
		o.Kind = Decisive
		o.Winner = v.Winner
	}
	if !s.cfg.Online {
		s.commitLocked(o)
		return
	}
	s.outcome = o
	s.pending = nil
	s.logger.Info("outcome_provisional", zap.String("kind", o.Kind.String()), zap.String("winner", string(o.Winner)), zap.String("method", o.Method))
	s.emit(Event{Kind: EventOutcome, Outcome: o})
	s.graceTask = s.cfg.Scheduler.After(s.cfg.OutcomeGrace, s.commitProvisional)
}

func (s *Session) commitProvisional() {
	_ = s.do(func() error {
		s.graceTask = nil
		if s.closed || s.final || s.outcome.Kind == Ongoing {
			return nil
		}
		s.commitLocked(s.outcome)
		return nil
	})
}

func serverOutcome(end chessdto.GameEnd) Outcome {
	o := Outcome{Source: SourceServer}
	if end.Draw {
		o.Kind = Draw
		return o
	}
	o.Kind = Decisive
	o.Winner = rules.White
	if end.Winner == chessdto.SideBlack {
		o.Winner = rules.Black
	}
	return o
}

// handleGameEndLocked commits the server result. A GameEnd that arrives after
// a result was committed is not applied; a disagreeing one is logged.
func (s *Session) handleGameEndLocked(end chessdto.GameEnd) {
	o := serverOutcome(end)
	if s.final {
		if s.outcome.Kind == o.Kind && s.outcome.Winner == o.Winner {
			s.logger.Debug("game_end_ignored_already_final")
			return
		}
		s.logger.Warn("game_end_disagrees_with_committed_outcome",
			zap.String("committed", s.outcome.Kind.String()),
			zap.String("committed_winner", string(s.outcome.Winner)),
			zap.String("committed_source", s.outcome.Source.String()),
			zap.String("server", o.Kind.String()),
			zap.String("server_winner", string(o.Winner)))
		return
	}
	if s.outcome.Kind == o.Kind && s.outcome.Winner == o.Winner {
		o.Method = s.outcome.Method
	} else if s.outcome.Kind != Ongoing {
		s.logger.Warn("outcome_overridden_by_server",
			zap.String("local", s.outcome.Kind.String()),
			zap.String("server", o.Kind.String()))
	}
	s.commitLocked(o)
}

// Resign ends the game as a loss for the local player.
func (s *Session) Resign() error {
	return s.do(func() error {
		if s.closed {
			return ErrClosed
		}
		if s.outcome.Kind != Ongoing {
			return ErrGameOver
		}
		s.commitLocked(Outcome{
			Kind:   Decisive,
			Winner: s.cfg.LocalColor.Opponent(),
			Method: "Resignation",
			Source: SourceResign,
		})
		return nil
	})
}

// Abort cancels the game before the local player has moved.
func (s *Session) Abort() error {
	return s.do(func() error {
		if s.closed {
			return ErrClosed
		}
		if s.outcome.Kind != Ongoing {
			return ErrGameOver
		}
		for _, m := range s.log {
			if m.Origin == Local {
				return ErrAbortTooLate
			}
		}
		s.commitLocked(Outcome{Kind: Aborted, Method: "Abort", Source: SourceAbort})
		return nil
	})
}

// commitLocked makes o final and persists it. Later calls are no-ops.
func (s *Session) commitLocked(o Outcome) {
	if s.final {
		return
	}
	o.Final = true
	s.outcome = o
	s.final = true
	s.pending = nil
	s.clearAwaitingLocked("game over")
	s.cancelTasksLocked()

	s.logger.Info("outcome_committed",
		zap.String("kind", o.Kind.String()),
		zap.String("winner", string(o.Winner)),
		zap.String("method", o.Method),
		zap.String("source", o.Source.String()),
		zap.Int("plies", len(s.log)))
	if r := s.cfg.Recorder; r != nil {
		r.RecordStatus(s.cfg.GameID, o.Status())
		r.RecordPGN(s.cfg.GameID, s.pgnLocked(rules.ResultToken(o.verdict()), o.Method))
	}
	s.emit(Event{Kind: EventOutcome, Outcome: o})
}

// recordProgressLocked stores the move text of an unfinished game.
func (s *Session) recordProgressLocked() {
	if s.final || s.cfg.Recorder == nil {
		return
	}
	s.cfg.Recorder.RecordPGN(s.cfg.GameID, s.pgnLocked("*", ""))
}

// PGN returns the game record in PGN.
func (s *Session) PGN() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := "*"
	if s.final {
		token = rules.ResultToken(s.outcome.verdict())
	}
	return s.pgnLocked(token, s.outcome.Method)
}

func (s *Session) pgnLocked(result, termination string) string {
	return rules.FormatPGN(rules.PGNHeader{
		Event:       s.cfg.Event,
		Site:        s.cfg.GameID,
		Date:        s.cfg.Now(),
		White:       s.cfg.Players.White,
		Black:       s.cfg.Players.Black,
		Termination: termination,
	}, s.notationsLocked(), result)
}
