// Package session holds the client-side state of one chess game: the move
// log shared with the server, echo suppression for locally sent moves, the
// history preview and the single persisted outcome.
//
// Every exported method takes the session lock, so transport callbacks,
// timers and UI calls are applied one at a time. Listeners are invoked
// after the lock is released.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HEKPYTO/ChessClouds-sub000/internal/connection"
	"github.com/HEKPYTO/ChessClouds-sub000/internal/rules"
	"github.com/HEKPYTO/ChessClouds-sub000/internal/schedule"
	"github.com/HEKPYTO/ChessClouds-sub000/pkg/chessdto"
)

var (
	ErrIllegalMove      = errors.New("illegal move")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrGameOver         = errors.New("game is over")
	ErrPromotionPending = errors.New("promotion choice pending")
	ErrNoPromotion      = errors.New("no promotion pending")
	ErrNotConnected     = errors.New("not connected")
	ErrPreviewActive    = errors.New("preview was active; returned to live position")
	ErrOnlineTakeBack   = errors.New("take back is only available offline")
	ErrTakeBackRange    = errors.New("take back count out of range")
	ErrAbortTooLate     = errors.New("abort is only possible before your first move")
	ErrClosed           = errors.New("session closed")
)

// Origin tells who produced a move.
type Origin int

const (
	Local Origin = iota
	Remote
)

func (o Origin) String() string {
	if o == Local {
		return "local"
	}
	return "remote"
}

// MoveRecord is one entry of the move log. Entries are never edited.
type MoveRecord struct {
	From      string
	To        string
	Promotion string
	Notation  string
	Origin    Origin
}

// Link sends moves to the game server. *connection.Manager implements it.
type Link interface {
	SendMove(ctx context.Context, notation string) error
}

// Recorder persists game progress without blocking. *store.Async implements it.
type Recorder interface {
	RecordPGN(gameID, pgn string)
	RecordStatus(gameID string, status chessdto.GameStatus)
}

// Replier produces computer replies in offline games.
type Replier interface {
	Schedule(fen string, moves []string, deliver func(notation string)) schedule.Task
}

// Players names the sides in recorded games.
type Players struct {
	White string
	Black string
}

type Config struct {
	GameID     string
	LocalColor rules.Color
	// Online sessions talk to a server through Link; offline sessions play Replier.
	Online       bool
	Engine       rules.Engine
	Link         Link
	Recorder     Recorder
	Replier      Replier
	Scheduler    schedule.Scheduler
	OutcomeGrace time.Duration
	SendTimeout  time.Duration
	Players      Players
	Event        string
	Logger       *zap.Logger
	Now          func() time.Time
}

type listenerEntry struct {
	id       int
	listener Listener
}

// Session is one game as seen by the local player.
type Session struct {
	mu     sync.Mutex
	cfg    Config
	logger *zap.Logger

	conn     connection.State
	log      []MoveRecord
	live     rules.Position
	pending  *rules.Intent
	awaiting string
	phase    SyncPhase

	cursor     int
	generation uint64
	memo       previewMemo

	outcome   Outcome
	final     bool
	graceTask schedule.Task
	replyTask schedule.Task
	replyGen  uint64

	lastError chessdto.ProtocolError
	closed    bool

	events    []Event
	lm        sync.RWMutex
	nextID    int
	listeners []listenerEntry
}

// New creates a session at the starting position. An offline session whose
// local player is Black schedules the first computer move immediately.
func New(cfg Config) (*Session, error) {
	if strings.TrimSpace(cfg.GameID) == "" {
		return nil, fmt.Errorf("session: game id is required")
	}
	if cfg.LocalColor != rules.White && cfg.LocalColor != rules.Black {
		return nil, fmt.Errorf("session: %w", rules.ErrInvalidColor)
	}
	if cfg.Online && cfg.Link == nil {
		return nil, fmt.Errorf("session: online mode requires a link")
	}
	if cfg.Engine == nil {
		cfg.Engine = rules.NewChess()
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = schedule.Real{}
	}
	if cfg.OutcomeGrace <= 0 {
		cfg.OutcomeGrace = 2 * time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 5 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		cfg:    cfg,
		logger: logger.With(zap.String("game_id", cfg.GameID), zap.String("local_color", string(cfg.LocalColor))),
		conn:   connection.Disconnected,
		live:   cfg.Engine.Start(),
		cursor: Live,
	}
	s.memo.cursor = Live
	if !cfg.Online {
		s.conn = connection.Authenticated
		s.do(func() error {
			s.maybeScheduleReplyLocked()
			return nil
		})
	}
	return s, nil
}

func (s *Session) GameID() string { return s.cfg.GameID }

func (s *Session) LocalColor() rules.Color { return s.cfg.LocalColor }

func (s *Session) Online() bool { return s.cfg.Online }

// do runs fn under the session lock and dispatches the events it queued.
func (s *Session) do(fn func() error) error {
	s.mu.Lock()
	err := fn()
	events := s.events
	s.events = nil
	s.mu.Unlock()
	s.dispatch(events)
	return err
}

// Moves returns a copy of the move log.
func (s *Session) Moves() []MoveRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]MoveRecord, len(s.log))
	copy(out, s.log)
	return out
}

func (s *Session) notationsLocked() []string {
	out := make([]string, len(s.log))
	for i, m := range s.log {
		out[i] = m.Notation
	}
	return out
}

// AwaitingEcho returns the notation of the sent move not yet echoed.
func (s *Session) AwaitingEcho() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.awaiting
}

func (s *Session) Phase() SyncPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) ConnectionState() connection.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// LivePosition returns the current game position.
func (s *Session) LivePosition() rules.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// HandleConnectionState records a transport state change. Disconnected
// and Connecting drop the awaiting echo; the move is never resent. A new
// Connect replaces the old handle without reporting its teardown, so
// Connecting is the only signal of that reconnect.
func (s *Session) HandleConnectionState(state connection.State) {
	_ = s.do(func() error {
		if s.closed || !s.cfg.Online {
			return nil
		}
		s.conn = state
		switch state {
		case connection.Disconnected:
			s.clearAwaitingLocked("disconnected")
		case connection.Connecting:
			s.clearAwaitingLocked("reconnecting")
		}
		s.emit(Event{Kind: EventConnection, Connection: state})
		return nil
	})
}

// HandleServerMessage applies one decoded server message.
func (s *Session) HandleServerMessage(msg chessdto.ServerMessage) {
	_ = s.do(func() error {
		if s.closed {
			return nil
		}
		switch msg.Kind {
		case chessdto.KindAuthSuccess:
			s.logger.Info("session_authenticated")
		case chessdto.KindMoveHistory:
			s.replayHistoryLocked(msg.History)
		case chessdto.KindServerMove:
			s.applyRemoteLocked(msg.Move)
		case chessdto.KindGameEnd:
			if msg.End != nil {
				s.handleGameEndLocked(*msg.End)
			}
		case chessdto.KindError:
			s.handleProtocolErrorLocked(msg.Error)
		default:
			s.logger.Warn("server_message_unknown_kind", zap.String("kind", string(msg.Kind)))
		}
		return nil
	})
}

// HandleDecodeError records a frame that arrived but could not be parsed.
func (s *Session) HandleDecodeError(err error) {
	_ = s.do(func() error {
		if s.closed {
			return nil
		}
		s.logger.Warn("server_message_unparseable", zap.Error(err))
		s.lastError = chessdto.ErrDeserialization
		s.emit(Event{Kind: EventUnparseable, Err: err, ProtocolError: chessdto.ErrDeserialization})
		return nil
	})
}

func (s *Session) handleProtocolErrorLocked(pe chessdto.ProtocolError) {
	s.lastError = pe
	s.logger.Warn("server_protocol_error", zap.String("error", string(pe)))
	switch pe {
	case chessdto.ErrInvalidMove, chessdto.ErrInvalidTurn:
		s.clearAwaitingLocked("rejected by server")
	}
	s.emit(Event{Kind: EventProtocolError, ProtocolError: pe})
}

// LinkSource is the callback surface of a connection manager.
type LinkSource interface {
	OnMessage(cb connection.MessageCallback) int
	RemoveMessageCallback(id int)
	OnStateChange(cb connection.StateCallback) int
	RemoveStateCallback(id int)
	OnDecodeError(cb connection.DecodeErrorCallback) int
	RemoveDecodeErrorCallback(id int)
}

// Attach subscribes the session to src and returns a function that detaches it.
func (s *Session) Attach(src LinkSource) func() {
	stateID := src.OnStateChange(s.HandleConnectionState)
	msgID := src.OnMessage(s.HandleServerMessage)
	decodeID := src.OnDecodeError(s.HandleDecodeError)
	return func() {
		src.RemoveStateCallback(stateID)
		src.RemoveMessageCallback(msgID)
		src.RemoveDecodeErrorCallback(decodeID)
	}
}

// Close cancels scheduled work and clears the echo slot. It is idempotent.
func (s *Session) Close() {
	_ = s.do(func() error {
		if s.closed {
			return nil
		}
		s.clearAwaitingLocked("closed")
		s.cancelTasksLocked()
		s.pending = nil
		s.closed = true
		s.logger.Debug("session_closed", zap.Int("plies", len(s.log)))
		return nil
	})
}

func (s *Session) cancelTasksLocked() {
	if s.graceTask != nil {
		s.graceTask.Cancel()
		s.graceTask = nil
	}
	if s.replyTask != nil {
		s.replyTask.Cancel()
		s.replyTask = nil
	}
	s.replyGen++
}

// Snapshot returns the state shown by presenters.
func (s *Session) Snapshot() chessdto.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	display := s.displayLocked()
	st := chessdto.SessionState{
		GameID:        s.cfg.GameID,
		LocalColor:    string(s.cfg.LocalColor),
		Online:        s.cfg.Online,
		Connection:    "offline",
		Moves:         make([]chessdto.MoveEntry, len(s.log)),
		FEN:           s.live.FEN(),
		DisplayFEN:    display.FEN(),
		Board:         display.Board(),
		Turn:          string(s.live.Turn()),
		Cursor:        s.cursor,
		Previewing:    s.cursor != Live,
		AwaitingEcho:  s.awaiting,
		Outcome:       s.outcome.Kind.String(),
		OutcomeWinner: string(s.outcome.Winner),
		OutcomeMethod: s.outcome.Method,
		OutcomeFinal:  s.final,
	}
	if s.cfg.Online {
		st.Connection = s.conn.String()
	}
	for i, m := range s.log {
		st.Moves[i] = chessdto.MoveEntry{
			Ply:       i + 1,
			From:      m.From,
			To:        m.To,
			SAN:       m.Notation,
			Origin:    m.Origin.String(),
			Promotion: m.Promotion,
		}
	}
	if s.pending != nil {
		st.PromotionFrom = s.pending.From
		st.PromotionTo = s.pending.To
	}
	st.OpeningCode, st.OpeningTitle = s.live.Opening()
	return st
}

// LastProtocolError returns the most recent server error, if any.
func (s *Session) LastProtocolError() chessdto.ProtocolError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}
