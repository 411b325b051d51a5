package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HEKPYTO/ChessClouds-sub000/internal/domain"
	"github.com/HEKPYTO/ChessClouds-sub000/pkg/chessdto"
)

const defaultGameTTL = 24 * time.Hour

// Redis caches live game records in a hash per game, refreshed on every write.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = defaultGameTTL
	}
	return &Redis{rdb: rdb, ttl: ttl, now: time.Now}
}

// NewRedisFromURL parses a redis:// URL and pings the server.
func NewRedisFromURL(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedis(rdb, ttl), nil
}

func (r *Redis) key(id string) string { return "chessclouds:game:" + id }

func (r *Redis) write(ctx context.Context, id string, fields map[string]any) error {
	if r == nil || r.rdb == nil {
		return ErrNotConfigured
	}
	fields["updated_at"] = r.now().UTC().UnixMilli()
	k := r.key(id)
	pipe := r.rdb.TxPipeline()
	pipe.HSetNX(ctx, k, "status", string(chessdto.StatusOngoing))
	pipe.HSet(ctx, k, fields)
	pipe.Expire(ctx, k, r.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *Redis) UpdatePGN(ctx context.Context, gameID, pgn string) error {
	id, err := normalizeID(gameID)
	if err != nil {
		return err
	}
	if err := r.write(ctx, id, map[string]any{"pgn": pgn}); err != nil {
		return fmt.Errorf("update pgn: %w", err)
	}
	return nil
}

func (r *Redis) UpdateStatus(ctx context.Context, gameID string, status chessdto.GameStatus) error {
	id, err := normalizeID(gameID)
	if err != nil {
		return err
	}
	if err := validStatus(status); err != nil {
		return err
	}
	if err := r.write(ctx, id, map[string]any{"status": string(status)}); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

func (r *Redis) GetGame(ctx context.Context, gameID string) (*domain.GameRecord, error) {
	if r == nil || r.rdb == nil {
		return nil, ErrNotConfigured
	}
	id, err := normalizeID(gameID)
	if err != nil {
		return nil, err
	}
	vals, err := r.rdb.HGetAll(ctx, r.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get game: %w", err)
	}
	if len(vals) == 0 {
		return nil, ErrNotFound
	}
	g := &domain.GameRecord{ID: id, PGN: vals["pgn"], Status: chessdto.GameStatus(vals["status"])}
	if ms, err := strconv.ParseInt(vals["updated_at"], 10, 64); err == nil {
		g.UpdatedAt = time.UnixMilli(ms).UTC()
	}
	return g, nil
}

func (r *Redis) Close() error {
	if r == nil || r.rdb == nil {
		return nil
	}
	return r.rdb.Close()
}
