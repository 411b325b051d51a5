package opponent

import (
	"context"

	"github.com/HEKPYTO/ChessClouds-sub000/internal/gameapi"
)

// Remote asks the game server's best-move endpoint.
type Remote struct {
	client *gameapi.Client
	depth  int
}

func NewRemote(client *gameapi.Client, depth int) *Remote {
	return &Remote{client: client, depth: depth}
}

func (r *Remote) BestMove(ctx context.Context, fen string) (string, error) {
	if r == nil || r.client == nil {
		return "", ErrNoEngine
	}
	return r.client.BestMove(ctx, fen, r.depth)
}
