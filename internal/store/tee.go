package store

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/HEKPYTO/ChessClouds-sub000/internal/domain"
	"github.com/HEKPYTO/ChessClouds-sub000/pkg/chessdto"
)

// Tee writes to every backend concurrently and reads from the first one that has the game.
type Tee struct {
	stores []Store
}

// NewTee drops nil entries. Read order follows argument order.
func NewTee(stores ...Store) *Tee {
	t := &Tee{}
	for _, s := range stores {
		if s != nil {
			t.stores = append(t.stores, s)
		}
	}
	return t
}

func (t *Tee) each(ctx context.Context, fn func(ctx context.Context, s Store) error) error {
	if len(t.stores) == 0 {
		return ErrNotConfigured
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range t.stores {
		g.Go(func() error { return fn(gctx, s) })
	}
	return g.Wait()
}

func (t *Tee) UpdatePGN(ctx context.Context, gameID, pgn string) error {
	return t.each(ctx, func(ctx context.Context, s Store) error { return s.UpdatePGN(ctx, gameID, pgn) })
}

func (t *Tee) UpdateStatus(ctx context.Context, gameID string, status chessdto.GameStatus) error {
	return t.each(ctx, func(ctx context.Context, s Store) error { return s.UpdateStatus(ctx, gameID, status) })
}

func (t *Tee) GetGame(ctx context.Context, gameID string) (*domain.GameRecord, error) {
	if len(t.stores) == 0 {
		return nil, ErrNotConfigured
	}
	var lastErr error
	for _, s := range t.stores {
		g, err := s.GetGame(ctx, gameID)
		if err == nil {
			return g, nil
		}
		lastErr = err
		if !errors.Is(err, ErrNotFound) && ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (t *Tee) Close() error {
	var errs []error
	for _, s := range t.stores {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
