package connection

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/HEKPYTO/ChessClouds-sub000/pkg/chessdto"
)

var (
	ErrNotAuthenticated = errors.New("connection not authenticated")
	ErrNoConnection     = errors.New("no connection")
	ErrClosed           = errors.New("connection closed")
)

type MessageCallback func(msg chessdto.ServerMessage)

type StateCallback func(state State)

// DecodeErrorCallback receives frames that arrived but could not be parsed.
type DecodeErrorCallback func(err error)

type Options struct {
	PingInterval time.Duration
	PingTimeout  time.Duration
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	// DialAttempts bounds retries of the initial dial. It is not reconnection.
	DialAttempts uint
	Header       http.Header
	Logger       *zap.Logger
}

func (o *Options) withDefaults() {
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.PingTimeout <= 0 {
		o.PingTimeout = 3 * time.Second
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.DialAttempts == 0 {
		o.DialAttempts = 3
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

type callbackEntry struct {
	id       int
	callback MessageCallback
}

type stateCallbackEntry struct {
	id       int
	callback StateCallback
}

type decodeCallbackEntry struct {
	id       int
	callback DecodeErrorCallback
}

// Manager owns at most one live Handle. Callbacks registered on the
// Manager receive events of the current handle only.
type Manager struct {
	opts   Options
	logger *zap.Logger

	mu      sync.Mutex
	current *Handle

	cbM       sync.RWMutex
	nextID    int
	msgCbs    []callbackEntry
	stateCbs  []stateCallbackEntry
	decodeCbs []decodeCallbackEntry
}

func NewManager(opts Options) *Manager {
	opts.withDefaults()
	return &Manager{opts: opts, logger: opts.Logger}
}

// Connect dials endpoint and sends Auth. It returns once Auth is written;
// AuthSuccess arrives later as a state change to Authenticated.
// A previous handle is closed and replaced.
func (m *Manager) Connect(ctx context.Context, endpoint, gameID, userID string) (*Handle, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("connect: endpoint is required")
	}

	m.mu.Lock()
	prev := m.current
	h := newHandle(m, gameID, userID)
	m.current = h
	m.mu.Unlock()

	if prev != nil {
		closeCtx, cancel := context.WithTimeout(ctx, m.opts.DialTimeout)
		_ = prev.Close(closeCtx)
		cancel()
	}

	h.setState(Connecting)
	conn, err := m.dial(ctx, endpoint)
	if err != nil {
		m.logger.Warn("ws_dial_failed", zap.String("endpoint", endpoint), zap.String("game_id", gameID), zap.Error(err))
		h.setState(Disconnected)
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	h.attach(conn)
	h.setState(Open)
	h.start()

	if err := h.authenticate(ctx); err != nil {
		h.fail("auth send failure")
		return nil, err
	}
	m.logger.Info("ws_connected", zap.String("endpoint", endpoint), zap.String("game_id", gameID))
	return h, nil
}

func (m *Manager) dial(ctx context.Context, endpoint string) (*websocket.Conn, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second

	op := func() (*websocket.Conn, error) {
		dialCtx, cancel := context.WithTimeout(ctx, m.opts.DialTimeout)
		defer cancel()
		conn, resp, err := websocket.Dial(dialCtx, endpoint, &websocket.DialOptions{
			CompressionMode: websocket.CompressionNoContextTakeover,
			HTTPHeader:      m.headers(),
		})
		if err != nil {
			if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return nil, backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return conn, nil
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(m.opts.DialAttempts),
	)
}

func (m *Manager) headers() http.Header {
	hdr := http.Header{}
	for k, vs := range m.opts.Header {
		if strings.TrimSpace(k) == "" {
			continue
		}
		for _, v := range vs {
			if strings.TrimSpace(v) != "" {
				hdr.Add(k, v)
			}
		}
	}
	return hdr
}

// Current returns the live handle, if any.
func (m *Manager) Current() *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// State of the current handle; Disconnected when there is none.
func (m *Manager) State() State {
	if h := m.Current(); h != nil {
		return h.State()
	}
	return Disconnected
}

// SendMove sends a move on the current handle.
func (m *Manager) SendMove(ctx context.Context, notation string) error {
	h := m.Current()
	if h == nil {
		return ErrNoConnection
	}
	return h.SendMove(ctx, notation)
}

// Close closes the current handle.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	h := m.current
	m.mu.Unlock()
	if h == nil {
		return nil
	}
	return h.Close(ctx)
}

func (m *Manager) OnMessage(cb MessageCallback) int {
	m.cbM.Lock()
	defer m.cbM.Unlock()
	m.nextID++
	m.msgCbs = append(m.msgCbs, callbackEntry{id: m.nextID, callback: cb})
	return m.nextID
}

func (m *Manager) RemoveMessageCallback(id int) {
	m.cbM.Lock()
	defer m.cbM.Unlock()
	for i, cb := range m.msgCbs {
		if cb.id == id {
			m.msgCbs = append(m.msgCbs[:i], m.msgCbs[i+1:]...)
			break
		}
	}
}

func (m *Manager) OnStateChange(cb StateCallback) int {
	m.cbM.Lock()
	defer m.cbM.Unlock()
	m.nextID++
	m.stateCbs = append(m.stateCbs, stateCallbackEntry{id: m.nextID, callback: cb})
	return m.nextID
}

func (m *Manager) RemoveStateCallback(id int) {
	m.cbM.Lock()
	defer m.cbM.Unlock()
	for i, cb := range m.stateCbs {
		if cb.id == id {
			m.stateCbs = append(m.stateCbs[:i], m.stateCbs[i+1:]...)
			break
		}
	}
}

func (m *Manager) OnDecodeError(cb DecodeErrorCallback) int {
	m.cbM.Lock()
	defer m.cbM.Unlock()
	m.nextID++
	m.decodeCbs = append(m.decodeCbs, decodeCallbackEntry{id: m.nextID, callback: cb})
	return m.nextID
}

func (m *Manager) RemoveDecodeErrorCallback(id int) {
	m.cbM.Lock()
	defer m.cbM.Unlock()
	for i, cb := range m.decodeCbs {
		if cb.id == id {
			m.decodeCbs = append(m.decodeCbs[:i], m.decodeCbs[i+1:]...)
			break
		}
	}
}

func (m *Manager) isCurrent(h *Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current == h
}

func (m *Manager) emitState(h *Handle, state State) {
	if !m.isCurrent(h) {
		return
	}
	m.cbM.RLock()
	callbacks := make([]stateCallbackEntry, len(m.stateCbs))
	copy(callbacks, m.stateCbs)
	m.cbM.RUnlock()
	for _, entry := range callbacks {
		if entry.callback != nil {
			entry.callback(state)
		}
	}
}

func (m *Manager) emitMessage(h *Handle, msg chessdto.ServerMessage) {
	if !m.isCurrent(h) {
		return
	}
	m.cbM.RLock()
	callbacks := make([]callbackEntry, len(m.msgCbs))
	copy(callbacks, m.msgCbs)
	m.cbM.RUnlock()
	for _, entry := range callbacks {
		if entry.callback != nil {
			entry.callback(msg)
		}
	}
}

func (m *Manager) emitDecodeError(h *Handle, err error) {
	if !m.isCurrent(h) {
		return
	}
	m.cbM.RLock()
	callbacks := make([]decodeCallbackEntry, len(m.decodeCbs))
	copy(callbacks, m.decodeCbs)
	m.cbM.RUnlock()
	for _, entry := range callbacks {
		if entry.callback != nil {
			entry.callback(err)
		}
	}
}
