package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// AppConfig is the client configuration read from the environment.
type AppConfig struct {
	ServerWSURL string `env:"CHESS_SERVER_WS_URL"`
	APIURL      string `env:"CHESS_API_URL"`
	UserID      string `env:"CHESS_USER_ID"`

	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	SQLitePath  string `env:"CHESS_SQLITE_PATH"`

	StockfishPath  string `env:"STOCKFISH_PATH"`
	StockfishDepth int    `env:"STOCKFISH_DEPTH" envDefault:"8"`

	OutcomeGraceMS   int `env:"OUTCOME_GRACE_MS" envDefault:"2000"`
	BotDelayMS       int `env:"BOT_DELAY_MS" envDefault:"600"`
	PersistTimeoutMS int `env:"PERSIST_TIMEOUT_MS" envDefault:"5000"`
	GameTTLSec       int `env:"CHESS_GAME_TTL_SEC" envDefault:"86400"`
	MatchTimeoutSec  int `env:"MATCH_TIMEOUT_SEC" envDefault:"120"`

	MessagesDir string `env:"MESSAGES_DIR"`
}

// Load reads the process environment.
func Load() (*AppConfig, error) {
	return load(env.Options{})
}

// LoadFrom reads the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (*AppConfig, error) {
	return load(env.Options{Environment: vars})
}

func load(opts env.Options) (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *AppConfig) normalize() {
	c.ServerWSURL = strings.TrimSpace(c.ServerWSURL)
	c.APIURL = strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	c.UserID = strings.TrimSpace(c.UserID)
	c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)
	c.RedisURL = strings.TrimSpace(c.RedisURL)
	c.SQLitePath = strings.TrimSpace(c.SQLitePath)
	c.StockfishPath = strings.TrimSpace(c.StockfishPath)
	c.MessagesDir = strings.TrimSpace(c.MessagesDir)
	if c.StockfishDepth <= 0 {
		c.StockfishDepth = 8
	}
	if c.OutcomeGraceMS < 0 {
		c.OutcomeGraceMS = 0
	}
	if c.BotDelayMS < 0 {
		c.BotDelayMS = 0
	}
	if c.PersistTimeoutMS <= 0 {
		c.PersistTimeoutMS = 5000
	}
	if c.GameTTLSec <= 0 {
		c.GameTTLSec = 86400
	}
	if c.MatchTimeoutSec <= 0 {
		c.MatchTimeoutSec = 120
	}
}

// RequireOnline checks the settings an online game cannot start without.
func (c *AppConfig) RequireOnline() error {
	if c.ServerWSURL == "" {
		return errors.New("CHESS_SERVER_WS_URL is required")
	}
	if c.UserID == "" {
		return errors.New("CHESS_USER_ID is required")
	}
	return nil
}

// RequireAPI checks the game API base URL.
func (c *AppConfig) RequireAPI() error {
	if c.APIURL == "" {
		return errors.New("CHESS_API_URL is required")
	}
	return nil
}

func (c *AppConfig) OutcomeGrace() time.Duration {
	return time.Duration(c.OutcomeGraceMS) * time.Millisecond
}

func (c *AppConfig) BotDelay() time.Duration {
	return time.Duration(c.BotDelayMS) * time.Millisecond
}

func (c *AppConfig) PersistTimeout() time.Duration {
	return time.Duration(c.PersistTimeoutMS) * time.Millisecond
}

func (c *AppConfig) GameTTL() time.Duration {
	return time.Duration(c.GameTTLSec) * time.Second
}

func (c *AppConfig) MatchTimeout() time.Duration {
	return time.Duration(c.MatchTimeoutSec) * time.Second
}

// LoadDotEnv loads variables from files that exist. Variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", p, err)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load dotenv: %w", err)
	}
	return nil
}
