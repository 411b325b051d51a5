package matchmaking

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"

	"github.com/HEKPYTO/ChessClouds-sub000/internal/rules"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	q := NewQueue(rdb, Options{Logger: zaptest.NewLogger(t)})
	q.whiteFor = func() bool { return true }
	return q
}

func waitForTickets(t *testing.T, q *Queue, n int64) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		got, err := q.Waiting(context.Background())
		if err != nil {
			t.Fatalf("Waiting: %v", err)
		}
		if got == n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("queue never reached %d tickets", n)
}

type searchResult struct {
	m   *Match
	err error
}

func TestSearchPairsTwoUsers(t *testing.T) {
	q := newTestQueue(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first := make(chan searchResult, 1)
	go func() {
		m, err := q.Search(ctx, "alice")
		first <- searchResult{m, err}
	}()
	waitForTickets(t, q, 1)

	bob, err := q.Search(ctx, "bob")
	if err != nil {
		t.Fatalf("bob Search: %v", err)
	}
	res := <-first
	if res.err != nil {
		t.Fatalf("alice Search: %v", res.err)
	}
	alice := res.m

	if alice.GameID == "" || alice.GameID != bob.GameID {
		t.Fatalf("game ids differ: %q vs %q", alice.GameID, bob.GameID)
	}
	if alice.Color != rules.White || bob.Color != rules.Black {
		t.Fatalf("colors alice=%s bob=%s", alice.Color, bob.Color)
	}
	if alice.OpponentID != "bob" || bob.OpponentID != "alice" {
		t.Fatalf("opponents alice=%q bob=%q", alice.OpponentID, bob.OpponentID)
	}
	waitForTickets(t, q, 0)
}

func TestSearchRandomColourCanFlip(t *testing.T) {
	q := newTestQueue(t)
	q.whiteFor = func() bool { return false }
	m := q.pair("alice", "bob")
	if m.WhiteID != "bob" || m.BlackID != "alice" {
		t.Fatalf("unexpected pairing %+v", m)
	}
	if got := m.forUser("alice"); got.Color != rules.Black || got.OpponentID != "bob" {
		t.Fatalf("forUser: %+v", got)
	}
}

func TestSearchCancelWithdrawsTicket(t *testing.T) {
	q := newTestQueue(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan searchResult, 1)
	go func() {
		m, err := q.Search(ctx, "alice")
		done <- searchResult{m, err}
	}()
	waitForTickets(t, q, 1)
	cancel()

	select {
	case res := <-done:
		if !errors.Is(res.err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", res.err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("search did not stop after cancel")
	}
	waitForTickets(t, q, 0)

	// searching again is allowed once the previous search ended
	ctx2, cancel2 := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel2()
	if _, err := q.Search(ctx2, "alice"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
}

func TestSearchRejectsDuplicateAndEmpty(t *testing.T) {
	q := newTestQueue(t)
	if _, err := q.Search(context.Background(), " "); !errors.Is(err, ErrInvalidUser) {
		t.Fatalf("expected ErrInvalidUser, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _, _ = q.Search(ctx, "alice") }()
	waitForTickets(t, q, 1)
	if _, err := q.Search(context.Background(), "alice"); !errors.Is(err, ErrSearchActive) {
		t.Fatalf("expected ErrSearchActive, got %v", err)
	}
}
