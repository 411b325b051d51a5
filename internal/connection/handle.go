package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/HEKPYTO/ChessClouds-sub000/internal/protocol"
	"github.com/HEKPYTO/ChessClouds-sub000/pkg/chessdto"
)

// Handle is one dialled connection for one game.
type Handle struct {
	m      *Manager
	logger *zap.Logger
	gameID string

	stateM    sync.RWMutex
	state     State
	closed    bool
	handshake *protocol.Handshake

	writeM sync.Mutex
	conn   *websocket.Conn

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

func newHandle(m *Manager, gameID, userID string) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handle{
		m:          m,
		logger:     m.logger.With(zap.String("game_id", gameID)),
		gameID:     gameID,
		state:      Disconnected,
		handshake:  protocol.NewHandshake(gameID, userID),
		stopCh:     make(chan struct{}),
		rootCtx:    ctx,
		rootCancel: cancel,
	}
}

func (h *Handle) GameID() string { return h.gameID }

func (h *Handle) State() State {
	h.stateM.RLock()
	defer h.stateM.RUnlock()
	return h.state
}

func (h *Handle) attach(conn *websocket.Conn) {
	h.writeM.Lock()
	h.conn = conn
	h.writeM.Unlock()
}

func (h *Handle) start() {
	h.wg.Add(2)
	go h.listen()
	go h.pingLoop()
}

// setState records state and notifies. Disconnected is terminal.
func (h *Handle) setState(state State) {
	h.stateM.Lock()
	if h.closed || h.state == state {
		h.stateM.Unlock()
		return
	}
	h.state = state
	if state == Disconnected {
		h.closed = true
	}
	h.stateM.Unlock()
	h.logger.Debug("ws_state", zap.String("state", state.String()))
	h.m.emitState(h, state)
}

func (h *Handle) authenticate(ctx context.Context) error {
	h.stateM.Lock()
	msg, err := h.handshake.Start()
	h.stateM.Unlock()
	if err != nil {
		return err
	}
	h.setState(Authenticating)
	if err := h.write(ctx, msg); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}
	return nil
}

// SendMove writes a Move frame. It refuses unless the handle is Authenticated.
func (h *Handle) SendMove(ctx context.Context, notation string) error {
	if st := h.State(); st != Authenticated {
		return fmt.Errorf("%w: state %s", ErrNotAuthenticated, st)
	}
	if err := h.write(ctx, chessdto.NewMove(notation)); err != nil {
		h.fail("move send failure")
		return fmt.Errorf("send move: %w", err)
	}
	return nil
}

func (h *Handle) write(ctx context.Context, msg chessdto.ClientMessage) error {
	b, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	h.writeM.Lock()
	defer h.writeM.Unlock()
	if h.conn == nil {
		return ErrClosed
	}
	wctx, cancel := context.WithTimeout(ctx, h.m.opts.WriteTimeout)
	defer cancel()
	return h.conn.Write(wctx, websocket.MessageText, b)
}

func (h *Handle) listen() {
	defer h.wg.Done()
	for {
		select {
		case <-h.stopCh:
			return
		default:
		}

		h.writeM.Lock()
		conn := h.conn
		h.writeM.Unlock()
		if conn == nil {
			return
		}
		typ, data, err := conn.Read(h.rootCtx)
		if err != nil {
			if h.isStopping() {
				return
			}
			h.logger.Info("ws_read_closed", zap.Error(err), zap.Int("close_status", int(websocket.CloseStatus(err))))
			h.fail("read failure")
			return
		}
		if typ != websocket.MessageText {
			h.logger.Debug("ws_binary_frame_ignored", zap.Int("bytes", len(data)))
			continue
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			h.logger.Warn("ws_frame_unparseable", zap.Error(err), zap.Int("bytes", len(data)))
			h.m.emitDecodeError(h, err)
			continue
		}
		h.observe(msg)
		h.m.emitMessage(h, msg)
	}
}

func (h *Handle) observe(msg chessdto.ServerMessage) {
	h.stateM.Lock()
	phase, changed := h.handshake.Observe(msg)
	h.stateM.Unlock()
	if !changed {
		return
	}
	switch phase {
	case protocol.PhaseAuthenticated:
		h.setState(Authenticated)
	case protocol.PhaseDegraded:
		h.logger.Warn("ws_unauthorized")
		h.setState(Degraded)
	}
}

func (h *Handle) pingLoop() {
	defer h.wg.Done()
	t := time.NewTicker(h.m.opts.PingInterval)
	defer t.Stop()
	consecutivePingFailures := 0
	for {
		select {
		case <-h.stopCh:
			return
		case <-t.C:
			h.writeM.Lock()
			conn := h.conn
			h.writeM.Unlock()
			if conn == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(h.rootCtx, h.m.opts.PingTimeout)
			err := conn.Ping(ctx)
			cancel()
			if err != nil {
				consecutivePingFailures++
				h.logger.Debug("ws_ping_failed", zap.Int("consecutive", consecutivePingFailures), zap.Error(err))
				if consecutivePingFailures >= 2 {
					if h.isStopping() {
						return
					}
					h.fail("ping failure")
					return
				}
				continue
			}
			consecutivePingFailures = 0
		}
	}
}

// fail tears the transport down and moves to Disconnected. There is no reconnect.
func (h *Handle) fail(reason string) {
	h.stopOnce.Do(func() { close(h.stopCh) })
	_ = h.closeConn(websocket.StatusGoingAway, reason)
	h.rootCancel()
	h.setState(Disconnected)
}

// Close shuts the connection down and waits for its goroutines.
func (h *Handle) Close(ctx context.Context) error {
	h.stopOnce.Do(func() { close(h.stopCh) })
	_ = h.closeConn(websocket.StatusNormalClosure, "close")
	h.rootCancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case <-done:
	}
	h.setState(Disconnected)
	return err
}

func (h *Handle) closeConn(code websocket.StatusCode, reason string) error {
	h.writeM.Lock()
	conn := h.conn
	h.conn = nil
	h.writeM.Unlock()
	if conn == nil {
		return nil
	}
	err := conn.Close(code, reason)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (h *Handle) isStopping() bool {
	select {
	case <-h.stopCh:
		return true
	default:
		return false
	}
}
