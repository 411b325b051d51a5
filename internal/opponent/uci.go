package opponent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultReadyTimeout = 4 * time.Second

var ErrEngineClosed = errors.New("uci engine closed")

type UCIOptions struct {
	Depth      int
	MoveTime   time.Duration
	SkillLevel int
	HashMB     int
	Threads    int
	Logger     *zap.Logger
}

func (o UCIOptions) validate() error {
	if o.SkillLevel < 0 || o.SkillLevel > 20 {
		return fmt.Errorf("skill level %d out of range 0-20", o.SkillLevel)
	}
	if o.HashMB < 0 {
		return fmt.Errorf("hash size must be >= 0: %d", o.HashMB)
	}
	if o.Depth <= 0 && o.MoveTime <= 0 {
		return fmt.Errorf("no search limits specified")
	}
	return nil
}

// UCI drives a UCI engine process such as Stockfish. Searches are serialised.
type UCI struct {
	opts   UCIOptions
	logger *zap.Logger

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan string
	readEr chan error

	writeM  sync.Mutex
	search  sync.Mutex
	closeM  sync.Mutex
	closed  bool
	stopped chan struct{}
}

// StartUCI launches binaryPath and performs the uci/isready handshake.
func StartUCI(ctx context.Context, binaryPath string, opts UCIOptions) (*UCI, error) {
	if strings.TrimSpace(binaryPath) == "" {
		return nil, fmt.Errorf("STOCKFISH_PATH is required")
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	cmd := exec.Command(binaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}
	u := newUCI(stdin, stdout, opts)
	u.cmd = cmd
	if err := u.initialize(ctx); err != nil {
		_ = u.Close()
		return nil, err
	}
	return u, nil
}

func newUCI(stdin io.WriteCloser, stdout io.Reader, opts UCIOptions) *UCI {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	u := &UCI{
		opts:    opts,
		logger:  opts.Logger,
		stdin:   stdin,
		lines:   make(chan string, 64),
		readEr:  make(chan error, 1),
		stopped: make(chan struct{}),
	}
	go u.readLoop(stdout)
	return u
}

func (u *UCI) readLoop(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		select {
		case u.lines <- strings.TrimSpace(sc.Text()):
		case <-u.stopped:
			return
		}
	}
	err := sc.Err()
	if err == nil {
		err = io.EOF
	}
	u.readEr <- err
}

func (u *UCI) initialize(ctx context.Context) error {
	initCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := u.send("uci"); err != nil {
		return fmt.Errorf("send uci: %w", err)
	}
	if err := u.awaitToken(initCtx, "uciok"); err != nil {
		return fmt.Errorf("wait uciok: %w", err)
	}
	threads := u.opts.Threads
	if threads <= 0 {
		threads = 1
	}
	cmds := []string{
		fmt.Sprintf("setoption name Threads value %d", threads),
		fmt.Sprintf("setoption name Skill Level value %d", u.opts.SkillLevel),
	}
	if u.opts.HashMB > 0 {
		cmds = append(cmds, fmt.Sprintf("setoption name Hash value %d", u.opts.HashMB))
	}
	for _, c := range cmds {
		if err := u.send(c); err != nil {
			return fmt.Errorf("apply options: %w", err)
		}
	}
	return u.ready(initCtx)
}

func (u *UCI) ready(ctx context.Context) error {
	if err := u.send("isready"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := u.awaitToken(ctx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

// BestMove searches fen with the configured limits.
func (u *UCI) BestMove(ctx context.Context, fen string) (string, error) {
	u.search.Lock()
	defer u.search.Unlock()

	if err := u.send(positionCommand(fen)); err != nil {
		return "", fmt.Errorf("send position: %w", err)
	}
	goCmd := goCommand(u.opts)
	if err := u.send(goCmd); err != nil {
		return "", fmt.Errorf("send go: %w", err)
	}

	searchCtx, cancel := context.WithTimeout(ctx, searchTimeout(u.opts))
	defer cancel()
	for {
		line, err := u.readLine(searchCtx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				// the engine keeps searching; stop it so the next search starts clean
				_ = u.send("stop")
				u.drainBestMove()
			}
			u.logger.Warn("uci_read_failed", zap.String("fen", fen), zap.String("go", goCmd), zap.Error(err))
			return "", fmt.Errorf("read line: %w", err)
		}
		if !strings.HasPrefix(line, "bestmove") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 || parts[1] == "(none)" {
			return "", fmt.Errorf("engine returned no move for %s", fen)
		}
		return parts[1], nil
	}
}

func (u *UCI) drainBestMove() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = u.awaitToken(ctx, "bestmove")
}

func positionCommand(fen string) string {
	if strings.TrimSpace(fen) == "" || fen == "startpos" {
		return "position startpos"
	}
	return "position fen " + fen
}

func goCommand(o UCIOptions) string {
	args := []string{"go"}
	if o.Depth > 0 {
		args = append(args, "depth", strconv.Itoa(o.Depth))
	}
	if o.MoveTime > 0 {
		args = append(args, "movetime", strconv.FormatInt(o.MoveTime.Milliseconds(), 10))
	}
	return strings.Join(args, " ")
}

func searchTimeout(o UCIOptions) time.Duration {
	if o.MoveTime > 0 {
		return 3 * (o.MoveTime + 2*time.Second)
	}
	base := time.Duration(o.Depth) * 300 * time.Millisecond
	if base < 6*time.Second {
		base = 6 * time.Second
	}
	if base > 20*time.Second {
		base = 20 * time.Second
	}
	return base
}

func (u *UCI) send(msg string) error {
	u.writeM.Lock()
	defer u.writeM.Unlock()
	if u.isClosed() {
		return ErrEngineClosed
	}
	_, err := io.WriteString(u.stdin, msg+"\n")
	return err
}

func (u *UCI) awaitToken(ctx context.Context, token string) error {
	for {
		line, err := u.readLine(ctx)
		if err != nil {
			return err
		}
		if strings.HasPrefix(line, token) {
			return nil
		}
	}
}

func (u *UCI) readLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line := <-u.lines:
		return line, nil
	case err := <-u.readEr:
		u.readEr <- err
		return "", err
	}
}

func (u *UCI) isClosed() bool {
	u.closeM.Lock()
	defer u.closeM.Unlock()
	return u.closed
}

// Close sends quit and stops the process.
func (u *UCI) Close() error {
	u.closeM.Lock()
	if u.closed {
		u.closeM.Unlock()
		return nil
	}
	u.closed = true
	close(u.stopped)
	u.closeM.Unlock()

	u.writeM.Lock()
	_, _ = io.WriteString(u.stdin, "quit\n")
	_ = u.stdin.Close()
	u.writeM.Unlock()

	if u.cmd == nil || u.cmd.Process == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- u.cmd.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		_ = u.cmd.Process.Kill()
		return <-done
	}
}
