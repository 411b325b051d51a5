package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/HEKPYTO/ChessClouds-sub000/internal/connection"
	"github.com/HEKPYTO/ChessClouds-sub000/internal/rules"
	"github.com/HEKPYTO/ChessClouds-sub000/internal/schedule"
	"github.com/HEKPYTO/ChessClouds-sub000/pkg/chessdto"
)

const testGrace = time.Second

type fakeLink struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (l *fakeLink) SendMove(_ context.Context, notation string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.sent = append(l.sent, notation)
	return nil
}

func (l *fakeLink) Sent() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.sent...)
}

type fakeRecorder struct {
	mu       sync.Mutex
	statuses []chessdto.GameStatus
	pgns     []string
}

func (r *fakeRecorder) RecordPGN(_ string, pgn string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pgns = append(r.pgns, pgn)
}

func (r *fakeRecorder) RecordStatus(_ string, status chessdto.GameStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func (r *fakeRecorder) Statuses() []chessdto.GameStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]chessdto.GameStatus(nil), r.statuses...)
}

func (r *fakeRecorder) LastPGN() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pgns) == 0 {
		return ""
	}
	return r.pgns[len(r.pgns)-1]
}

// scriptedReplier answers with the next scripted move after delay.
type scriptedReplier struct {
	sched *schedule.Manual
	delay time.Duration
	mu    sync.Mutex
	moves []string
	asked int
}

func (r *scriptedReplier) Schedule(_ string, _ []string, deliver func(string)) schedule.Task {
	return r.sched.After(r.delay, func() {
		r.mu.Lock()
		r.asked++
		if len(r.moves) == 0 {
			r.mu.Unlock()
			return
		}
		mv := r.moves[0]
		r.moves = r.moves[1:]
		r.mu.Unlock()
		deliver(mv)
	})
}

// countingEngine counts rules applications on the positions it produces.
type countingEngine struct {
	inner   rules.Engine
	applies *atomic.Int64
}

func (e countingEngine) Start() rules.Position {
	return countingPosition{Position: e.inner.Start(), applies: e.applies}
}

type countingPosition struct {
	rules.Position
	applies *atomic.Int64
}

func (p countingPosition) Apply(n string) (rules.Position, rules.Played, error) {
	p.applies.Add(1)
	next, played, err := p.Position.Apply(n)
	if err != nil {
		return nil, played, err
	}
	return countingPosition{Position: next, applies: p.applies}, played, nil
}

func (p countingPosition) ApplyIntent(in rules.Intent) (rules.Position, rules.Played, error) {
	p.applies.Add(1)
	next, played, err := p.Position.ApplyIntent(in)
	if err != nil {
		return nil, played, err
	}
	return countingPosition{Position: next, applies: p.applies}, played, nil
}

type harness struct {
	s     *Session
	link  *fakeLink
	rec   *fakeRecorder
	sched *schedule.Manual
}

func newOnline(t *testing.T, color rules.Color, mutate ...func(*Config)) *harness {
	t.Helper()
	h := &harness{link: &fakeLink{}, rec: &fakeRecorder{}, sched: schedule.NewManual()}
	cfg := Config{
		GameID:       "game-1",
		LocalColor:   color,
		Online:       true,
		Link:         h.link,
		Recorder:     h.rec,
		Scheduler:    h.sched,
		OutcomeGrace: testGrace,
		Logger:       zaptest.NewLogger(t),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	s.HandleConnectionState(connection.Authenticated)
	h.s = s
	return h
}

func newOffline(t *testing.T, color rules.Color, replies ...string) (*harness, *scriptedReplier) {
	t.Helper()
	h := &harness{rec: &fakeRecorder{}, sched: schedule.NewManual()}
	rp := &scriptedReplier{sched: h.sched, delay: 500 * time.Millisecond, moves: replies}
	s, err := New(Config{
		GameID:     "offline-1",
		LocalColor: color,
		Recorder:   h.rec,
		Replier:    rp,
		Scheduler:  h.sched,
		Logger:     zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	h.s = s
	return h, rp
}

func (h *harness) server(msg chessdto.ServerMessage) { h.s.HandleServerMessage(msg) }

func (h *harness) remote(n string) {
	h.server(chessdto.ServerMessage{Kind: chessdto.KindServerMove, Move: n})
}

func (h *harness) history(ns ...string) {
	h.server(chessdto.ServerMessage{Kind: chessdto.KindMoveHistory, History: ns})
}

func (h *harness) notations() []string {
	moves := h.s.Moves()
	out := make([]string, len(moves))
	for i, m := range moves {
		out[i] = m.Notation
	}
	return out
}

func intent(t *testing.T, uci string) rules.Intent {
	t.Helper()
	in, err := rules.ParseIntent(uci)
	require.NoError(t, err)
	return in
}

var errBoom = errors.New("boom")
