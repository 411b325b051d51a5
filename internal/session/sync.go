package session

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/HEKPYTO/ChessClouds-sub000/internal/connection"
	"github.com/HEKPYTO/ChessClouds-sub000/internal/rules"
)

// SyncPhase is the progress of the latest local move.
type SyncPhase int

const (
	Idle SyncPhase = iota
	Validating
	OptimisticallyApplied
	AwaitingEcho
	Confirmed
)

func (p SyncPhase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Validating:
		return "validating"
	case OptimisticallyApplied:
		return "optimistically_applied"
	case AwaitingEcho:
		return "awaiting_echo"
	case Confirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// Move plays a square-to-square intent for the local player. A pawn reaching
// the last rank without a piece is held until Promote or CancelPromotion.
// Rejected attempts return a sentinel error and touch neither log nor network.
func (s *Session) Move(ctx context.Context, in rules.Intent) error {
	var send string
	err := s.do(func() error {
		var err error
		send, err = s.moveLocked(in)
		return err
	})
	if err != nil || send == "" {
		return err
	}
	return s.send(ctx, send)
}

// Play resolves a SAN or UCI notation against the live position and plays it.
func (s *Session) Play(ctx context.Context, notation string) error {
	var send string
	err := s.do(func() error {
		if err := s.guardLocked(); err != nil {
			return err
		}
		in, err := rules.ParseIntent(notation)
		if err != nil {
			_, played, aerr := s.live.Apply(notation)
			if aerr != nil {
				s.logger.Debug("local_move_rejected", zap.String("notation", notation), zap.Error(aerr))
				return fmt.Errorf("%w: %s", ErrIllegalMove, notation)
			}
			in = rules.Intent{From: played.From, To: played.To, Promotion: played.Promotion}
		}
		send, err = s.moveLocked(in)
		return err
	})
	if err != nil || send == "" {
		return err
	}
	return s.send(ctx, send)
}

// Promote completes a pending promotion with piece q, r, b or n.
func (s *Session) Promote(ctx context.Context, piece string) error {
	var send string
	err := s.do(func() error {
		if s.pending == nil {
			return ErrNoPromotion
		}
		in := *s.pending
		in.Promotion = piece
		if err := in.Validate(); err != nil || piece == "" {
			return fmt.Errorf("%w: promotion piece %q", ErrIllegalMove, piece)
		}
		s.pending = nil
		var err error
		send, err = s.moveLocked(in)
		if err != nil && (errors.Is(err, ErrNotConnected) || errors.Is(err, ErrPreviewActive)) {
			s.pending = &in
			s.pending.Promotion = ""
		}
		return err
	})
	if err != nil || send == "" {
		return err
	}
	return s.send(ctx, send)
}

// CancelPromotion drops a pending promotion intent.
func (s *Session) CancelPromotion() {
	_ = s.do(func() error {
		s.pending = nil
		return nil
	})
}

// PendingPromotion returns the intent awaiting a piece choice, if any.
func (s *Session) PendingPromotion() (rules.Intent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return rules.Intent{}, false
	}
	return *s.pending, true
}

func (s *Session) guardLocked() error {
	if s.closed {
		return ErrClosed
	}
	if s.cursor != Live {
		s.setCursorLocked(Live)
		return ErrPreviewActive
	}
	if s.outcome.Kind != Ongoing {
		return ErrGameOver
	}
	if s.pending != nil {
		return ErrPromotionPending
	}
	if s.live.Turn() != s.cfg.LocalColor {
		return ErrNotYourTurn
	}
	if s.cfg.Online && s.conn != connection.Authenticated {
		return fmt.Errorf("%w: %s", ErrNotConnected, s.conn)
	}
	return nil
}

// moveLocked validates and optimistically applies in. It returns the
// notation to send, empty when nothing goes on the wire.
func (s *Session) moveLocked(in rules.Intent) (string, error) {
	if err := s.guardLocked(); err != nil {
		s.logger.Debug("local_move_rejected", zap.String("intent", in.UCI()), zap.Error(err))
		return "", err
	}
	if err := in.Validate(); err != nil {
		s.logger.Debug("local_move_rejected", zap.String("intent", in.UCI()), zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	if in.Promotion == "" && s.live.NeedsPromotion(in.From, in.To) {
		pending := in
		s.pending = &pending
		s.emit(Event{Kind: EventPromotionPending, Move: MoveRecord{From: in.From, To: in.To}})
		return "", nil
	}

	s.phase = Validating
	next, played, err := s.live.ApplyIntent(in)
	if err != nil {
		s.phase = Idle
		s.logger.Debug("local_move_rejected", zap.String("intent", in.UCI()), zap.Error(err))
		return "", fmt.Errorf("%w: %s", ErrIllegalMove, in.UCI())
	}
	rec := s.appendLocked(next, played, Local)
	s.phase = OptimisticallyApplied
	s.emit(Event{Kind: EventMoveApplied, Move: rec})

	send := ""
	if s.cfg.Online {
		s.awaiting = rec.Notation
		s.phase = AwaitingEcho
		send = rec.Notation
	} else {
		s.phase = Confirmed
	}
	s.detectOutcomeLocked()
	s.maybeScheduleReplyLocked()
	return send, nil
}

func (s *Session) send(ctx context.Context, notation string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	sctx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()
	err := s.cfg.Link.SendMove(sctx, notation)
	if err == nil {
		s.logger.Debug("move_sent", zap.String("notation", notation))
		return nil
	}
	s.logger.Warn("move_send_failed", zap.String("notation", notation), zap.Error(err))
	_ = s.do(func() error {
		if s.awaiting == notation {
			s.clearAwaitingLocked("send failed")
		}
		return nil
	})
	return fmt.Errorf("send move %s: %w", notation, err)
}

func (s *Session) appendLocked(next rules.Position, played rules.Played, origin Origin) MoveRecord {
	rec := MoveRecord{
		From:      played.From,
		To:        played.To,
		Promotion: played.Promotion,
		Notation:  played.SAN,
		Origin:    origin,
	}
	s.live = next
	s.log = append(s.log, rec)
	s.generation++
	s.recordProgressLocked()
	return rec
}

func (s *Session) clearAwaitingLocked(reason string) {
	if s.awaiting == "" {
		return
	}
	s.logger.Info("awaiting_echo_cleared", zap.String("notation", s.awaiting), zap.String("reason", reason))
	s.awaiting = ""
	s.phase = Idle
}

// applyRemoteLocked handles a Move from the server or the computer opponent.
func (s *Session) applyRemoteLocked(notation string) {
	if s.awaiting != "" {
		if notation == s.awaiting {
			s.awaiting = ""
			s.phase = Confirmed
			s.logger.Debug("echo_suppressed", zap.String("notation", notation))
			s.emit(Event{Kind: EventEchoConfirmed, Notation: notation})
			return
		}
		s.clearAwaitingLocked("superseded by remote move")
	}
	if s.outcome.Kind != Ongoing {
		s.logger.Info("remote_move_after_outcome_dropped", zap.String("notation", notation))
		return
	}
	next, played, err := s.live.Apply(notation)
	if err != nil {
		s.logger.Warn("remote_move_rejected", zap.String("notation", notation), zap.Error(err))
		s.emit(Event{Kind: EventRemoteRejected, Notation: notation, Err: err})
		return
	}
	rec := s.appendLocked(next, played, Remote)
	s.emit(Event{Kind: EventMoveApplied, Move: rec})
	s.detectOutcomeLocked()
}

// replayHistoryLocked reconciles the log with the server's full history.
// A log that is a prefix of history only receives the tail; anything else is
// rebuilt from history. An illegal entry leaves the session unchanged.
func (s *Session) replayHistoryLocked(history []string) {
	if s.final {
		s.logger.Info("history_after_outcome_ignored", zap.Int("plies", len(history)))
		return
	}
	s.clearAwaitingLocked("history replay")

	current := s.notationsLocked()
	var (
		pos   rules.Position
		start int
		err   error
	)
	if isPrefix(current, history) {
		if len(current) == len(history) {
			s.emit(Event{Kind: EventHistoryReplayed})
			return
		}
		pos, start = s.live, len(current)
	} else {
		pos, start = s.cfg.Engine.Start(), 0
		s.logger.Info("history_diverged_rebuilding", zap.Int("local_plies", len(current)), zap.Int("server_plies", len(history)))
	}

	records := make([]MoveRecord, 0, len(history)-start)
	for i := start; i < len(history); i++ {
		var played rules.Played
		pos, played, err = pos.Apply(history[i])
		if err != nil {
			s.logger.Warn("history_replay_rejected", zap.Int("ply", i+1), zap.String("notation", history[i]), zap.Error(err))
			s.emit(Event{Kind: EventRemoteRejected, Notation: history[i], Err: err})
			return
		}
		records = append(records, MoveRecord{
			From:      played.From,
			To:        played.To,
			Promotion: played.Promotion,
			Notation:  played.SAN,
			Origin:    s.originOf(played.Color),
		})
	}

	if start == 0 {
		s.log = records
	} else {
		s.log = append(s.log, records...)
	}
	s.live = pos
	s.generation++
	s.recordProgressLocked()
	s.logger.Info("history_replayed", zap.Int("plies", len(s.log)), zap.Int("applied", len(records)))
	s.emit(Event{Kind: EventHistoryReplayed})
	if s.outcome.Kind == Ongoing {
		s.detectOutcomeLocked()
	}
}

func (s *Session) originOf(c rules.Color) Origin {
	if c == s.cfg.LocalColor {
		return Local
	}
	return Remote
}

func isPrefix(prefix, full []string) bool {
	if len(prefix) > len(full) {
		return false
	}
	for i := range prefix {
		if prefix[i] != full[i] {
			return false
		}
	}
	return true
}

// TakeBack removes the last n moves. Offline only.
func (s *Session) TakeBack(n int) error {
	return s.do(func() error {
		if s.closed {
			return ErrClosed
		}
		if s.cfg.Online {
			return ErrOnlineTakeBack
		}
		if s.outcome.Kind != Ongoing {
			return ErrGameOver
		}
		if n < 1 || n > len(s.log) {
			return fmt.Errorf("%w: %d of %d", ErrTakeBackRange, n, len(s.log))
		}
		kept := s.log[:len(s.log)-n]
		notations := make([]string, len(kept))
		for i, m := range kept {
			notations[i] = m.Notation
		}
		pos, _, err := rules.Replay(s.cfg.Engine, notations)
		if err != nil {
			return fmt.Errorf("take back: %w", err)
		}
		if s.replyTask != nil {
			s.replyTask.Cancel()
			s.replyTask = nil
		}
		s.replyGen++
		s.pending = nil
		s.log = append([]MoveRecord(nil), kept...)
		s.live = pos
		s.generation++
		s.phase = Idle
		if s.cursor != Live && s.cursor >= len(s.log) {
			s.cursor = Live
		}
		s.recordProgressLocked()
		s.logger.Info("take_back", zap.Int("count", n), zap.Int("plies", len(s.log)))
		s.emit(Event{Kind: EventTakeBack, Count: n})
		s.maybeScheduleReplyLocked()
		return nil
	})
}

// maybeScheduleReplyLocked asks the Replier for a computer move when it is
// the computer's turn in an offline game.
func (s *Session) maybeScheduleReplyLocked() {
	if s.cfg.Online || s.cfg.Replier == nil || s.closed {
		return
	}
	if s.outcome.Kind != Ongoing || s.live.Turn() == s.cfg.LocalColor || s.replyTask != nil {
		return
	}
	s.replyGen++
	gen := s.replyGen
	s.replyTask = s.cfg.Replier.Schedule(s.live.FEN(), s.notationsLocked(), func(notation string) {
		s.deliverReply(gen, notation)
	})
}

func (s *Session) deliverReply(gen uint64, notation string) {
	_ = s.do(func() error {
		if s.closed || gen != s.replyGen {
			s.logger.Debug("stale_reply_dropped", zap.String("notation", notation))
			return nil
		}
		s.replyTask = nil
		if notation == "" {
			s.logger.Warn("computer_reply_empty")
			return nil
		}
		s.applyRemoteLocked(notation)
		return nil
	})
}
