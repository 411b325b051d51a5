package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"

	"github.com/HEKPYTO/ChessClouds-sub000/pkg/chessdto"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.GetGame(ctx, "g1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.UpdatePGN(ctx, "g1", "1. e4 *"); err != nil {
		t.Fatalf("UpdatePGN: %v", err)
	}
	g, err := s.GetGame(ctx, "g1")
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	if g.PGN != "1. e4 *" || g.Status != chessdto.StatusOngoing {
		t.Fatalf("unexpected record after pgn: %+v", g)
	}
	if err := s.UpdateStatus(ctx, "g1", chessdto.StatusWhiteWins); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := s.UpdatePGN(ctx, "g1", "1. e4 e5 1-0"); err != nil {
		t.Fatalf("UpdatePGN: %v", err)
	}
	g, err = s.GetGame(ctx, "g1")
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	if g.PGN != "1. e4 e5 1-0" || g.Status != chessdto.StatusWhiteWins {
		t.Fatalf("unexpected record: %+v", g)
	}
	if g.UpdatedAt.IsZero() {
		t.Fatalf("updated_at not set")
	}

	if err := s.UpdateStatus(ctx, "g2", chessdto.StatusDraw); err != nil {
		t.Fatalf("UpdateStatus new game: %v", err)
	}
	g, err = s.GetGame(ctx, "g2")
	if err != nil || g.Status != chessdto.StatusDraw || g.PGN != "" {
		t.Fatalf("status-only record: %+v err=%v", g, err)
	}

	if err := s.UpdatePGN(ctx, "  ", "x"); !errors.Is(err, ErrGameIDRequired) {
		t.Fatalf("expected ErrGameIDRequired, got %v", err)
	}
	if err := s.UpdateStatus(ctx, "g1", "LOST"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemoryReturnsCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if err := m.UpdatePGN(ctx, "g", "a"); err != nil {
		t.Fatalf("UpdatePGN: %v", err)
	}
	g, _ := m.GetGame(ctx, "g")
	g.PGN = "mutated"
	again, _ := m.GetGame(ctx, "g")
	if again.PGN != "a" {
		t.Fatalf("store leaked internal record")
	}
}

func TestSQLite(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "games.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteRequiresPath(t *testing.T) {
	if _, err := OpenSQLite(" "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestPostgresRequiresURL(t *testing.T) {
	if _, err := NewPostgres(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty DATABASE_URL")
	}
	var p *Postgres
	if err := p.UpdatePGN(context.Background(), "g", "x"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedis(rdb, time.Hour), mr
}

func TestRedis(t *testing.T) {
	r, _ := newTestRedis(t)
	defer r.Close()
	exerciseStore(t, r)
}

func TestRedisTTL(t *testing.T) {
	r, mr := newTestRedis(t)
	defer r.Close()
	if err := r.UpdatePGN(context.Background(), "g", "*"); err != nil {
		t.Fatalf("UpdatePGN: %v", err)
	}
	if ttl := mr.TTL("chessclouds:game:g"); ttl != time.Hour {
		t.Fatalf("ttl=%v", ttl)
	}
	mr.FastForward(2 * time.Hour)
	if _, err := r.GetGame(context.Background(), "g"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestRedisFromURL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	r, err := NewRedisFromURL(context.Background(), "redis://"+mr.Addr()+"/0", 0)
	if err != nil {
		t.Fatalf("NewRedisFromURL: %v", err)
	}
	defer r.Close()
	if r.ttl != defaultGameTTL {
		t.Fatalf("ttl=%v", r.ttl)
	}
}

func TestTee(t *testing.T) {
	a, b := NewMemory(), NewMemory()
	tee := NewTee(a, nil, b)
	exerciseStore(t, tee)
	got, err := b.GetGame(context.Background(), "g1")
	if err != nil || got.Status != chessdto.StatusWhiteWins {
		t.Fatalf("secondary not written: %+v err=%v", got, err)
	}
}

type failingStore struct{ *Memory }

var errDown = errors.New("down")

func (failingStore) UpdatePGN(context.Context, string, string) error { return errDown }

func TestTeeReportsFailure(t *testing.T) {
	ok := NewMemory()
	tee := NewTee(ok, failingStore{NewMemory()})
	if err := tee.UpdatePGN(context.Background(), "g", "x"); !errors.Is(err, errDown) {
		t.Fatalf("expected errDown, got %v", err)
	}
	if err := NewTee().UpdatePGN(context.Background(), "g", "x"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

type orderedStore struct {
	mu   sync.Mutex
	pgns []string
	*Memory
}

func (o *orderedStore) UpdatePGN(ctx context.Context, id, pgn string) error {
	o.mu.Lock()
	o.pgns = append(o.pgns, pgn)
	o.mu.Unlock()
	return o.Memory.UpdatePGN(ctx, id, pgn)
}

func TestAsyncPreservesOrderPerGame(t *testing.T) {
	o := &orderedStore{Memory: NewMemory()}
	a := NewAsync(o, time.Second, zaptest.NewLogger(t))
	want := []string{"1. e4 *", "1. e4 e5 *", "1. e4 e5 2. Nf3 *"}
	for _, p := range want {
		a.RecordPGN("g", p)
	}
	a.RecordStatus("g", chessdto.StatusDraw)
	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(o.pgns) == 0 || o.pgns[len(o.pgns)-1] != want[len(want)-1] {
		t.Fatalf("latest pgn not written last: %v", o.pgns)
	}
	next := 0
	for _, p := range o.pgns {
		for next < len(want) && want[next] != p {
			next++
		}
		if next == len(want) {
			t.Fatalf("order: got %v", o.pgns)
		}
		next++
	}
	g, err := o.GetGame(context.Background(), "g")
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	if g.Status != chessdto.StatusDraw || g.PGN != want[2] {
		t.Fatalf("final record %+v", g)
	}
}

// gatedStore blocks its first PGN write until release is closed.
type gatedStore struct {
	*Memory
	started chan struct{}
	release chan struct{}
	once    sync.Once

	mu       sync.Mutex
	pgns     []string
	statuses []chessdto.GameStatus
}

func (g *gatedStore) UpdatePGN(ctx context.Context, id, pgn string) error {
	g.once.Do(func() {
		close(g.started)
		<-g.release
	})
	g.mu.Lock()
	g.pgns = append(g.pgns, pgn)
	g.mu.Unlock()
	return g.Memory.UpdatePGN(ctx, id, pgn)
}

func (g *gatedStore) UpdateStatus(ctx context.Context, id string, status chessdto.GameStatus) error {
	g.mu.Lock()
	g.statuses = append(g.statuses, status)
	g.mu.Unlock()
	return g.Memory.UpdateStatus(ctx, id, status)
}

func TestAsyncBacklogKeepsStatusAndLatestPGN(t *testing.T) {
	g := &gatedStore{Memory: NewMemory(), started: make(chan struct{}), release: make(chan struct{})}
	a := NewAsync(g, time.Second, zaptest.NewLogger(t))

	a.RecordPGN("g", "pgn-0")
	<-g.started
	for i := 1; i <= 200; i++ {
		a.RecordPGN("g", fmt.Sprintf("pgn-%d", i))
	}
	a.RecordStatus("g", chessdto.StatusWhiteWins)
	a.RecordPGN("g", "final")
	close(g.release)

	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	wantPGNs := []string{"pgn-0", "pgn-200", "final"}
	if len(g.pgns) != len(wantPGNs) {
		t.Fatalf("pgn writes: %v", g.pgns)
	}
	for i := range wantPGNs {
		if g.pgns[i] != wantPGNs[i] {
			t.Fatalf("pgn writes: %v", g.pgns)
		}
	}
	if len(g.statuses) != 1 || g.statuses[0] != chessdto.StatusWhiteWins {
		t.Fatalf("status writes: %v", g.statuses)
	}
	rec, err := g.GetGame(context.Background(), "g")
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	if rec.Status != chessdto.StatusWhiteWins || rec.PGN != "final" {
		t.Fatalf("final record %+v", rec)
	}
}

func TestAsyncSwallowsErrors(t *testing.T) {
	a := NewAsync(failingStore{NewMemory()}, time.Second, zaptest.NewLogger(t))
	a.RecordPGN("g", "x")
	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	a.RecordPGN("g", "after close")
}

func TestAsyncNilStore(t *testing.T) {
	var a *Async
	a.RecordPGN("g", "x")
	NewAsync(nil, 0, nil).RecordStatus("g", chessdto.StatusAborted)
}
