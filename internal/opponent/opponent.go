// Package opponent produces computer replies for offline games.
package opponent

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HEKPYTO/ChessClouds-sub000/internal/schedule"
)

var ErrNoEngine = errors.New("no engine configured")

// Engine picks a move for the side to move in fen. The move is returned in UCI notation.
type Engine interface {
	BestMove(ctx context.Context, fen string) (string, error)
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, fen string) (string, error)

func (f EngineFunc) BestMove(ctx context.Context, fen string) (string, error) { return f(ctx, fen) }

type ReplierOptions struct {
	Delay   time.Duration
	Timeout time.Duration
	Logger  *zap.Logger
}

// Replier waits Delay, asks the engine for a move and hands it to the session.
type Replier struct {
	engine  Engine
	sched   schedule.Scheduler
	delay   time.Duration
	timeout time.Duration
	logger  *zap.Logger
}

func NewReplier(engine Engine, sched schedule.Scheduler, opts ReplierOptions) *Replier {
	if sched == nil {
		sched = schedule.Real{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Replier{engine: engine, sched: sched, delay: opts.Delay, timeout: opts.Timeout, logger: opts.Logger}
}

// Schedule starts a reply for the position. moves is the game so far and is only logged.
// Cancelling the task stops the timer or abandons an in-flight engine query.
func (r *Replier) Schedule(fen string, moves []string, deliver func(notation string)) schedule.Task {
	ctx, cancel := context.WithCancel(context.Background())
	t := &replyTask{cancel: cancel}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timer = r.sched.After(r.delay, func() {
		if !t.start() {
			return
		}
		defer cancel()
		mv, err := r.bestMove(ctx, fen)
		if err != nil {
			if ctx.Err() == nil {
				r.logger.Warn("computer_reply_failed", zap.Int("ply", len(moves)), zap.String("fen", fen), zap.Error(err))
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		r.logger.Debug("computer_reply", zap.Int("ply", len(moves)), zap.String("move", mv))
		deliver(mv)
	})
	return t
}

func (r *Replier) bestMove(ctx context.Context, fen string) (string, error) {
	if r.engine == nil {
		return "", ErrNoEngine
	}
	qctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.engine.BestMove(qctx, fen)
}

type replyTask struct {
	mu        sync.Mutex
	timer     schedule.Task
	cancel    context.CancelFunc
	started   bool
	cancelled bool
}

func (t *replyTask) start() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return false
	}
	t.started = true
	return true
}

func (t *replyTask) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return false
	}
	t.cancelled = true
	t.cancel()
	if t.timer != nil {
		t.timer.Cancel()
	}
	return true
}
