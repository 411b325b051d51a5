package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HEKPYTO/ChessClouds-sub000/pkg/chessdto"
)

const defaultPersistTimeout = 5 * time.Second

type jobKind int

const (
	jobPGN jobKind = iota
	jobStatus
)

type job struct {
	kind jobKind
	run  func(context.Context)
}

// gameQueue holds the pending writes of one game. Only the drain goroutine pops.
type gameQueue struct {
	jobs []job
}

// Async issues store writes in the background. Failures are logged and never reach the caller.
// Writes for one game are applied in the order they were recorded. A pending PGN is
// replaced by a newer one; status writes are never merged or dropped.
type Async struct {
	store   Store
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.Mutex
	queues map[string]*gameQueue
	closed bool
	wg     sync.WaitGroup
}

func NewAsync(s Store, timeout time.Duration, logger *zap.Logger) *Async {
	if timeout <= 0 {
		timeout = defaultPersistTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Async{store: s, timeout: timeout, logger: logger, queues: make(map[string]*gameQueue)}
}

func (a *Async) RecordPGN(gameID, pgn string) {
	a.enqueue(gameID, job{kind: jobPGN, run: func(ctx context.Context) {
		if err := a.store.UpdatePGN(ctx, gameID, pgn); err != nil {
			a.logger.Warn("persist_pgn_failed", zap.String("game_id", gameID), zap.Error(err))
		}
	}})
}

func (a *Async) RecordStatus(gameID string, status chessdto.GameStatus) {
	a.enqueue(gameID, job{kind: jobStatus, run: func(ctx context.Context) {
		if err := a.store.UpdateStatus(ctx, gameID, status); err != nil {
			a.logger.Warn("persist_status_failed", zap.String("game_id", gameID), zap.String("status", string(status)), zap.Error(err))
		}
	}})
}

func (a *Async) enqueue(gameID string, j job) {
	if a == nil || a.store == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		a.logger.Debug("persist_dropped_after_close", zap.String("game_id", gameID))
		return
	}
	q, ok := a.queues[gameID]
	if !ok {
		q = &gameQueue{}
		a.queues[gameID] = q
		a.wg.Add(1)
		go a.drain(gameID, q)
	}
	if n := len(q.jobs); j.kind == jobPGN && n > 0 && q.jobs[n-1].kind == jobPGN {
		q.jobs[n-1] = j
		a.logger.Debug("persist_pgn_superseded", zap.String("game_id", gameID))
		return
	}
	q.jobs = append(q.jobs, j)
}

func (a *Async) drain(gameID string, q *gameQueue) {
	defer a.wg.Done()
	for {
		a.mu.Lock()
		if len(q.jobs) == 0 {
			delete(a.queues, gameID)
			a.mu.Unlock()
			return
		}
		j := q.jobs[0]
		q.jobs[0] = job{}
		q.jobs = q.jobs[1:]
		a.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		j.run(ctx)
		cancel()
	}
}

// Close stops accepting writes and waits for queued ones to finish or ctx to expire.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
