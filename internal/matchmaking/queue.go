// Package matchmaking pairs two searching users into a new game through a Redis queue.
package matchmaking

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	ticketTTL   = 10 * time.Minute
	matchTTL    = 5 * time.Minute
	pollTimeout = time.Second
)

type Options struct {
	Logger *zap.Logger
	// Prefix namespaces keys. Defaults to "chessclouds:mm".
	Prefix string
}

type Queue struct {
	rdb    *redis.Client
	logger *zap.Logger
	prefix string

	now      func() time.Time
	whiteFor func() bool
	newID    func() string
}

func NewQueue(rdb *redis.Client, opts Options) *Queue {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if strings.TrimSpace(opts.Prefix) == "" {
		opts.Prefix = "chessclouds:mm"
	}
	return &Queue{
		rdb:      rdb,
		logger:   opts.Logger,
		prefix:   opts.Prefix,
		now:      time.Now,
		whiteFor: coinFlip,
		newID:    func() string { return uuid.NewString() },
	}
}

func (q *Queue) keyQueue() string                { return q.prefix + ":queue" }
func (q *Queue) keySearching(user string) string { return q.prefix + ":searching:" + user }
func (q *Queue) keyInbox(ticket string) string   { return q.prefix + ":inbox:" + ticket }

// Search waits until another user is found. Cancelling ctx withdraws the ticket.
func (q *Queue) Search(ctx context.Context, userID string) (*Match, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidUser
	}
	ticket := Ticket{ID: q.newID(), UserID: userID, CreatedAt: q.now().UTC()}

	ok, err := q.rdb.SetNX(ctx, q.keySearching(userID), ticket.ID, ticketTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("mark searching: %w", err)
	}
	if !ok {
		return nil, ErrSearchActive
	}
	defer q.rdb.Del(context.Background(), q.keySearching(userID))

	if m, err := q.claimWaiting(ctx, userID); err != nil || m != nil {
		return m, err
	}

	raw, err := json.Marshal(ticket)
	if err != nil {
		return nil, err
	}
	if err := q.rdb.RPush(ctx, q.keyQueue(), raw).Err(); err != nil {
		return nil, fmt.Errorf("enqueue ticket: %w", err)
	}
	q.logger.Debug("matchmaking_enqueued", zap.String("user_id", userID), zap.String("ticket", ticket.ID))
	return q.await(ctx, ticket, raw)
}

// claimWaiting pops tickets until one from another user is found and pairs with it.
func (q *Queue) claimWaiting(ctx context.Context, userID string) (*Match, error) {
	var own [][]byte
	defer func() {
		for _, raw := range own {
			_ = q.rdb.LPush(context.Background(), q.keyQueue(), raw).Err()
		}
	}()
	for {
		raw, err := q.rdb.LPop(ctx, q.keyQueue()).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("pop ticket: %w", err)
		}
		var t Ticket
		if err := json.Unmarshal(raw, &t); err != nil {
			q.logger.Warn("matchmaking_bad_ticket", zap.ByteString("raw", raw), zap.Error(err))
			continue
		}
		if t.UserID == userID {
			own = append(own, raw)
			continue
		}
		if q.now().Sub(t.CreatedAt) > ticketTTL {
			continue
		}
		m := q.pair(t.UserID, userID)
		payload, err := json.Marshal(m)
		if err != nil {
			return nil, err
		}
		pipe := q.rdb.TxPipeline()
		pipe.RPush(ctx, q.keyInbox(t.ID), payload)
		pipe.Expire(ctx, q.keyInbox(t.ID), matchTTL)
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("deliver match: %w", err)
		}
		q.logger.Info("matchmaking_paired", zap.String("game_id", m.GameID), zap.String("white", m.WhiteID), zap.String("black", m.BlackID))
		out := m.forUser(userID)
		return &out, nil
	}
}

func (q *Queue) pair(waiting, arriving string) Match {
	m := Match{GameID: q.newID(), WhiteID: waiting, BlackID: arriving}
	if !q.whiteFor() {
		m.WhiteID, m.BlackID = arriving, waiting
	}
	return m
}

func (q *Queue) await(ctx context.Context, t Ticket, raw []byte) (*Match, error) {
	inbox := q.keyInbox(t.ID)
	for {
		res, err := q.rdb.BLPop(ctx, pollTimeout, inbox).Result()
		switch {
		case err == nil && len(res) == 2:
			var m Match
			if err := json.Unmarshal([]byte(res[1]), &m); err != nil {
				return nil, fmt.Errorf("decode match: %w", err)
			}
			out := m.forUser(t.UserID)
			return &out, nil
		case errors.Is(err, redis.Nil):
			if ctx.Err() != nil {
				return nil, q.withdraw(t, raw, ctx.Err())
			}
			m, err := q.retryClaim(ctx, t, raw)
			if err != nil {
				if ctx.Err() != nil {
					return nil, q.withdraw(t, raw, ctx.Err())
				}
				return nil, err
			}
			if m != nil {
				return m, nil
			}
		case ctx.Err() != nil:
			return nil, q.withdraw(t, raw, ctx.Err())
		case err != nil:
			_ = q.withdraw(t, raw, err)
			return nil, fmt.Errorf("await match: %w", err)
		}
	}
}

// retryClaim resolves two users that enqueued at the same time: it takes its own
// ticket back, tries to pair, and re-queues when nobody else is waiting.
func (q *Queue) retryClaim(ctx context.Context, t Ticket, raw []byte) (*Match, error) {
	n, err := q.rdb.LRem(ctx, q.keyQueue(), 1, raw).Result()
	if err != nil {
		return nil, fmt.Errorf("requeue ticket: %w", err)
	}
	if n == 0 {
		// already claimed; the match is on its way to the inbox
		return nil, nil
	}
	m, err := q.claimWaiting(ctx, t.UserID)
	if err != nil || m != nil {
		return m, err
	}
	if err := q.rdb.RPush(ctx, q.keyQueue(), raw).Err(); err != nil {
		return nil, fmt.Errorf("requeue ticket: %w", err)
	}
	return nil, nil
}

// withdraw removes the ticket from the queue. If someone already claimed it the
// match is discarded and the other side will time out waiting on the game.
func (q *Queue) withdraw(t Ticket, raw []byte, cause error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	n, err := q.rdb.LRem(ctx, q.keyQueue(), 1, raw).Result()
	if err != nil {
		q.logger.Warn("matchmaking_withdraw_failed", zap.String("ticket", t.ID), zap.Error(err))
	} else if n == 0 {
		q.logger.Warn("matchmaking_claimed_after_cancel", zap.String("ticket", t.ID), zap.String("user_id", t.UserID))
	}
	_ = q.rdb.Del(ctx, q.keyInbox(t.ID)).Err()
	return cause
}

// Waiting reports the number of tickets in the queue.
func (q *Queue) Waiting(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.keyQueue()).Result()
}

func coinFlip() bool {
	n, err := rand.Int(rand.Reader, big.NewInt(2))
	return err != nil || n.Int64() == 0
}
