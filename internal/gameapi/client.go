// Package gameapi talks to the game server's HTTP endpoints: game creation and best-move queries.
package gameapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

var (
	ErrAlreadyExists = errors.New("game already exists")
	ErrNoMove        = errors.New("best-move service returned no move")
	ErrInvalidInit   = errors.New("game id and both player ids are required")
)

// StatusError is a non-2xx answer from the server.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("game api error: status=%d body=%s", e.Status, e.Body)
}

type Client struct {
	baseURL string
	http    *fasthttp.Client
	logger  *zap.Logger

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		logger:         zap.NewNop(),
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Init creates the game on the server. A game that already exists yields ErrAlreadyExists.
func (c *Client) Init(ctx context.Context, req InitRequest) error {
	req.GameID = strings.TrimSpace(req.GameID)
	if req.GameID == "" || strings.TrimSpace(req.WhiteUserID) == "" || strings.TrimSpace(req.BlackUserID) == "" {
		return ErrInvalidInit
	}
	var resp InitResponse
	err := c.doJSON(ctx, fasthttp.MethodPost, "/init", req, &resp, true)
	var se *StatusError
	if errors.As(err, &se) && isAlreadyExists(se.Status, se.Body) {
		return ErrAlreadyExists
	}
	if err != nil {
		return err
	}
	if !resp.Success && resp.Error != "" {
		if isAlreadyExists(http.StatusConflict, resp.Error) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("init game: %s", resp.Error)
	}
	return nil
}

// EnsureGame is Init with "already exists" treated as success.
func (c *Client) EnsureGame(ctx context.Context, req InitRequest) error {
	err := c.Init(ctx, req)
	if errors.Is(err, ErrAlreadyExists) {
		c.logger.Debug("game_already_exists", zap.String("game_id", req.GameID))
		return nil
	}
	return err
}

// BestMove returns the service's move for fen in UCI notation.
func (c *Client) BestMove(ctx context.Context, fen string, depth int) (string, error) {
	var resp BestMoveResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/bestmove", BestMoveRequest{FEN: fen, Depth: depth}, &resp, true); err != nil {
		return "", err
	}
	mv := strings.TrimSpace(resp.Move)
	if mv == "" || mv == "(none)" {
		return "", ErrNoMove
	}
	return mv, nil
}

func isAlreadyExists(status int, body string) bool {
	if status == http.StatusConflict {
		return true
	}
	return strings.Contains(strings.ToLower(body), "already exists")
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry && c.retryMax > 1 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
		} else if status := resp.StatusCode(); status < 200 || status >= 300 {
			lastErr = &StatusError{Status: status, Body: truncate(string(resp.Body()), 512)}
			if !shouldRetryStatus(status) {
				return lastErr
			}
		} else {
			if out != nil {
				if err := json.Unmarshal(resp.Body(), out); err != nil {
					return fmt.Errorf("decode response: %w", err)
				}
			}
			return nil
		}
		if attempt == attempts {
			break
		}
		c.logger.Debug("game_api_retry", zap.String("path", path), zap.Int("attempt", attempt), zap.Error(lastErr))
		if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// 100ms, 200ms, ... capped at 3.2s.
func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
