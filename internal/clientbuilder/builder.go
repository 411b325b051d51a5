// Package clientbuilder wires the client's dependencies from configuration.
package clientbuilder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/HEKPYTO/ChessClouds-sub000/internal/config"
	"github.com/HEKPYTO/ChessClouds-sub000/internal/connection"
	"github.com/HEKPYTO/ChessClouds-sub000/internal/gameapi"
	"github.com/HEKPYTO/ChessClouds-sub000/internal/matchmaking"
	"github.com/HEKPYTO/ChessClouds-sub000/internal/msgcat"
	"github.com/HEKPYTO/ChessClouds-sub000/internal/opponent"
	"github.com/HEKPYTO/ChessClouds-sub000/internal/presenter"
	"github.com/HEKPYTO/ChessClouds-sub000/internal/rules"
	"github.com/HEKPYTO/ChessClouds-sub000/internal/schedule"
	"github.com/HEKPYTO/ChessClouds-sub000/internal/session"
	"github.com/HEKPYTO/ChessClouds-sub000/internal/store"
)

var ErrMatchmakingDisabled = errors.New("matchmaking requires REDIS_URL")

type Deps struct {
	Config    *config.AppConfig
	Logger    *zap.Logger
	Catalog   *msgcat.Catalog
	Formatter *presenter.Formatter
	Store     store.Store
	Recorder  *store.Async
	API       *gameapi.Client
	Conn      *connection.Manager
	Queue     *matchmaking.Queue
	Engine    rules.Engine
	Scheduler schedule.Scheduler

	engineMu sync.Mutex
	uci      *opponent.UCI
}

// New builds every dependency the configuration enables. Backends that are not
// configured are skipped; the memory store is used when no database is set.
func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Deps{Config: cfg, Logger: logger, Engine: rules.NewChess(), Scheduler: schedule.Real{}}

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	d.Catalog = cat
	d.Formatter = presenter.NewFormatter(cat)

	var backends []store.Store
	fail := func(err error) (*Deps, error) {
		for _, b := range backends {
			_ = b.Close()
		}
		return nil, err
	}

	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return fail(fmt.Errorf("init postgres: %w", err))
		}
		backends = append(backends, pg)
	}
	if cfg.SQLitePath != "" {
		lite, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return fail(fmt.Errorf("init sqlite: %w", err))
		}
		backends = append(backends, lite)
	}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fail(fmt.Errorf("parse redis url: %w", err))
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return fail(fmt.Errorf("ping redis: %w", err))
		}
		backends = append(backends, store.NewRedis(rdb, cfg.GameTTL()))
		d.Queue = matchmaking.NewQueue(rdb, matchmaking.Options{Logger: logger.Named("matchmaking")})
	}
	if len(backends) == 0 {
		logger.Info("store_memory_fallback")
		backends = append(backends, store.NewMemory())
	}
	d.Store = store.NewTee(backends...)
	d.Recorder = store.NewAsync(d.Store, cfg.PersistTimeout(), logger.Named("store"))

	if cfg.APIURL != "" {
		d.API = gameapi.NewClient(cfg.APIURL, gameapi.WithLogger(logger.Named("gameapi")))
	}
	d.Conn = connection.NewManager(connection.Options{Logger: logger.Named("connection")})
	return d, nil
}

// Opponent returns the engine for offline games: a local UCI process when
// STOCKFISH_PATH is set, otherwise the game API's best-move endpoint.
func (d *Deps) Opponent(ctx context.Context) (opponent.Engine, error) {
	d.engineMu.Lock()
	defer d.engineMu.Unlock()
	if d.uci != nil {
		return d.uci, nil
	}
	if path := strings.TrimSpace(d.Config.StockfishPath); path != "" {
		u, err := opponent.StartUCI(ctx, path, opponent.UCIOptions{
			Depth:  d.Config.StockfishDepth,
			Logger: d.Logger.Named("uci"),
		})
		if err != nil {
			return nil, fmt.Errorf("start stockfish: %w", err)
		}
		d.uci = u
		return u, nil
	}
	if d.API != nil {
		return opponent.NewRemote(d.API, d.Config.StockfishDepth), nil
	}
	return nil, opponent.ErrNoEngine
}

type SessionOptions struct {
	GameID     string
	LocalColor rules.Color
	Online     bool
	Players    session.Players
}

// NewSession builds a session wired to the shared recorder and, depending on
// Online, to the connection manager or to a computer opponent.
func (d *Deps) NewSession(ctx context.Context, opts SessionOptions) (*session.Session, error) {
	cfg := session.Config{
		GameID:       opts.GameID,
		LocalColor:   opts.LocalColor,
		Online:       opts.Online,
		Engine:       d.Engine,
		Recorder:     d.Recorder,
		Scheduler:    d.Scheduler,
		OutcomeGrace: d.Config.OutcomeGrace(),
		Players:      opts.Players,
		Logger:       d.Logger.Named("session"),
	}
	if opts.Online {
		cfg.Link = d.Conn
	} else {
		eng, err := d.Opponent(ctx)
		if err != nil {
			return nil, err
		}
		cfg.Replier = opponent.NewReplier(eng, d.Scheduler, opponent.ReplierOptions{
			Delay:  d.Config.BotDelay(),
			Logger: d.Logger.Named("opponent"),
		})
	}
	return session.New(cfg)
}

// EnsureGame registers the game with the server when an API is configured.
func (d *Deps) EnsureGame(ctx context.Context, gameID, whiteID, blackID string) error {
	if d.API == nil {
		d.Logger.Debug("game_api_not_configured", zap.String("game_id", gameID))
		return nil
	}
	return d.API.EnsureGame(ctx, gameapi.InitRequest{GameID: gameID, WhiteUserID: whiteID, BlackUserID: blackID})
}

// Close flushes pending writes and releases every backend.
func (d *Deps) Close(ctx context.Context) error {
	var errs []error
	if d.Conn != nil {
		if err := d.Conn.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if d.Recorder != nil {
		if err := d.Recorder.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	d.engineMu.Lock()
	if d.uci != nil {
		if err := d.uci.Close(); err != nil {
			errs = append(errs, err)
		}
		d.uci = nil
	}
	d.engineMu.Unlock()
	return errors.Join(errs...)
}
