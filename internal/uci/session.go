package uci

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultStartTimeout bounds the spawn-plus-handshake phase.
const DefaultStartTimeout = 10 * time.Second

// stopGrace bounds how long a stopped search may take to produce its
// terminal bestmove acknowledgment.
const stopGrace = 500 * time.Millisecond

// readyTimeout bounds isready/readyok round trips after startup.
const readyTimeout = 5 * time.Second

// Session owns one engine subprocess and its stdio streams. Reading engine
// output is single-threaded: only the bridge worker calls SetPosition,
// Search, and NewGame. Writes are mutex-guarded so that a stop command can
// be injected while a search read is in progress.
type Session struct {
	path         string
	logger       *zap.Logger
	startTimeout time.Duration
	options      map[string]string

	cmd   *exec.Cmd
	stdin io.WriteCloser

	writeMu sync.Mutex

	lines    chan string
	procDone chan struct{}
	procErr  error // set before procDone is closed

	// dead is closed when no one will read engine output again; readLoop
	// then discards lines instead of blocking on a full buffer.
	dead     chan struct{}
	deadOnce sync.Once

	alive        atomic.Bool
	shutdownOnce sync.Once
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithStartTimeout bounds the handshake at startup.
func WithStartTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.startTimeout = d
	}
}

// WithEngineOption sets a UCI option (e.g. "Threads", "Hash") sent during
// the handshake.
func WithEngineOption(name, value string) Option {
	return func(s *Session) {
		s.options[name] = value
	}
}

// NewSession spawns the engine at path and performs the UCI handshake:
// announce the protocol, wait for uciok, apply options, synchronize with
// isready/readyok, and reset the game state. The returned session is ready
// to search.
func NewSession(path string, opts ...Option) (*Session, error) {
	s := &Session{
		path:         path,
		logger:       zap.NewNop(),
		startTimeout: DefaultStartTimeout,
		options:      make(map[string]string),
		lines:        make(chan string, 256),
		procDone:     make(chan struct{}),
		dead:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	cmd := exec.Command(path)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", ErrSpawn)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", ErrSpawn)
	}
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %v: %w", path, err, ErrSpawn)
	}

	s.cmd = cmd
	s.stdin = stdin
	s.alive.Store(true)

	go s.readLoop(stdout)
	go func() {
		err := cmd.Wait()
		s.procErr = err
		s.markDead()
		close(s.procDone)
	}()

	if err := s.handshake(); err != nil {
		s.terminate()
		return nil, err
	}

	s.logger.Info("engine session started", zap.String("path", path))
	return s, nil
}

// Connect builds a session over caller-supplied streams instead of spawning
// a process, performing the same handshake as NewSession. Useful for driving
// the full stack against an in-process engine.
func Connect(stdin io.WriteCloser, stdout io.Reader, opts ...Option) (*Session, error) {
	s := &Session{
		path:         "pipe",
		logger:       zap.NewNop(),
		startTimeout: DefaultStartTimeout,
		options:      make(map[string]string),
		lines:        make(chan string, 256),
		dead:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.stdin = stdin
	s.alive.Store(true)
	go s.readLoop(stdout)

	if err := s.handshake(); err != nil {
		s.markDead()
		_ = stdin.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) handshake() error {
	deadline := time.Now().Add(s.startTimeout)

	if err := s.send("uci"); err != nil {
		return err
	}
	if err := s.waitFor(deadline, "uciok"); err != nil {
		return fmt.Errorf("waiting for uciok: %v: %w", err, ErrSpawn)
	}

	// Options in deterministic order so handshakes are reproducible.
	names := make([]string, 0, len(s.options))
	for name := range s.options {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.send("setoption name " + name + " value " + s.options[name]); err != nil {
			return err
		}
	}

	if err := s.send("isready"); err != nil {
		return err
	}
	if err := s.waitFor(deadline, "readyok"); err != nil {
		return fmt.Errorf("waiting for readyok: %v: %w", err, ErrSpawn)
	}

	return s.send("ucinewgame")
}

// NewGame resets the engine's internal game state and waits for the engine
// to acknowledge readiness.
func (s *Session) NewGame() error {
	if err := s.send("ucinewgame"); err != nil {
		return err
	}
	if err := s.send("isready"); err != nil {
		return err
	}
	if err := s.waitFor(time.Now().Add(readyTimeout), "readyok"); err != nil {
		return fmt.Errorf("waiting for readyok: %v: %w", err, ErrProtocol)
	}
	return nil
}

// SetPosition describes the position as the full move list from the game's
// starting position. UCI has no random-access position set; the engine
// replays the whole game every time.
func (s *Session) SetPosition(startFEN string, moves []string) error {
	var b strings.Builder
	if startFEN == "" {
		b.WriteString("position startpos")
	} else {
		b.WriteString("position fen ")
		b.WriteString(startFEN)
	}
	if len(moves) > 0 {
		b.WriteString(" moves ")
		b.WriteString(strings.Join(moves, " "))
	}
	return s.send(b.String())
}

// Search starts a search bounded by movetime and/or depth and reads engine
// output until the terminal bestmove line. Intermediate info lines are
// folded into the result as telemetry. Cancelling ctx sends stop and drains
// the bestmove the engine produces in response, treating it as an
// acknowledgment rather than a usable result.
func (s *Session) Search(ctx context.Context, movetime time.Duration, depth int) (*SearchResult, error) {
	parts := []string{"go"}
	if movetime > 0 {
		parts = append(parts, "movetime", strconv.FormatInt(movetime.Milliseconds(), 10))
	}
	if depth > 0 {
		parts = append(parts, "depth", strconv.Itoa(depth))
	}
	if len(parts) == 1 {
		parts = append(parts, "depth", "1")
	}
	if err := s.send(strings.Join(parts, " ")); err != nil {
		return nil, err
	}

	var last info
	for {
		select {
		case <-ctx.Done():
			if err := s.send("stop"); err != nil {
				return nil, err
			}
			if err := s.drainBestMove(); err != nil {
				return nil, err
			}
			return nil, ctx.Err()

		case <-s.procDone:
			if res, ok := s.pendingBestMove(&last); ok {
				return res, nil
			}
			return nil, fmt.Errorf("engine exited during search: %w", ErrCrashed)

		case line, ok := <-s.lines:
			if !ok {
				return nil, fmt.Errorf("engine stream closed before bestmove: %w", ErrCrashed)
			}
			res, done, err := s.consumeSearchLine(line, &last)
			if err != nil {
				return nil, err
			}
			if done {
				return res, nil
			}
		}
	}
}

// consumeSearchLine folds one output line into the running search state.
// done is true when the line was the terminal bestmove.
func (s *Session) consumeSearchLine(line string, last *info) (res *SearchResult, done bool, err error) {
	if upd, ok := parseInfo(line); ok {
		if upd.Depth != nil {
			last.Depth = upd.Depth
		}
		if upd.Centipawns != nil {
			last.Centipawns = upd.Centipawns
			last.Mate = nil
		}
		if upd.Mate != nil {
			last.Mate = upd.Mate
			last.Centipawns = nil
		}
		if len(upd.PV) > 0 {
			last.PV = upd.PV
		}
		return nil, false, nil
	}

	if strings.HasPrefix(line, "bestmove") {
		best, ponder, ok := parseBestMove(line)
		if !ok {
			return nil, false, fmt.Errorf("malformed bestmove line %q: %w", line, ErrProtocol)
		}
		res := &SearchResult{
			BestMove:   best,
			Ponder:     ponder,
			PV:         last.PV,
			Centipawns: last.Centipawns,
			Mate:       last.Mate,
		}
		if last.Depth != nil {
			res.Depth = *last.Depth
		}
		return res, true, nil
	}

	s.logger.Debug("ignoring engine line", zap.String("line", line))
	return nil, false, nil
}

// pendingBestMove drains already-buffered lines after process exit; some
// engines manage to flush the terminal line right before dying.
func (s *Session) pendingBestMove(last *info) (*SearchResult, bool) {
	for {
		select {
		case line, ok := <-s.lines:
			if !ok {
				return nil, false
			}
			res, done, err := s.consumeSearchLine(line, last)
			if err != nil {
				return nil, false
			}
			if done {
				return res, true
			}
		default:
			return nil, false
		}
	}
}

// drainBestMove consumes output until the bestmove produced by a stop
// command arrives. Its move is discarded.
func (s *Session) drainBestMove() error {
	timer := time.NewTimer(stopGrace)
	defer timer.Stop()

	for {
		select {
		case line, ok := <-s.lines:
			if !ok {
				return fmt.Errorf("engine stream closed after stop: %w", ErrCrashed)
			}
			if strings.HasPrefix(line, "bestmove") {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("no bestmove after stop: %w", ErrProtocol)
		}
	}
}

// Shutdown sends quit and waits up to grace for the process to exit before
// force-terminating it. Safe to call more than once.
func (s *Session) Shutdown(grace time.Duration) error {
	var err error
	s.shutdownOnce.Do(func() {
		_ = s.send("quit")
		_ = s.stdin.Close()

		// Sessions built over in-memory pipes have no process to reap.
		if s.cmd == nil {
			s.markDead()
			return
		}
		select {
		case <-s.procDone:
		case <-time.After(grace):
			s.logger.Warn("engine did not quit in time, killing", zap.String("path", s.path))
			if s.cmd != nil && s.cmd.Process != nil {
				err = s.cmd.Process.Kill()
			}
			<-s.procDone
		}
		s.logger.Info("engine session closed", zap.String("path", s.path))
	})
	return err
}

// Alive reports whether the engine process is still running.
func (s *Session) Alive() bool {
	return s.alive.Load()
}

// terminate force-kills the process after a failed handshake.
func (s *Session) terminate() {
	_ = s.stdin.Close()
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	if s.procDone != nil {
		<-s.procDone
	}
}

func (s *Session) readLoop(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		s.logger.Debug("recv", zap.String("line", line))
		select {
		case s.lines <- line:
		default:
			// Buffer full. Block only while someone may still read; once
			// the session is dead, discard so this goroutine can exit.
			select {
			case s.lines <- line:
			case <-s.dead:
			}
		}
	}
	close(s.lines)
}

// markDead flags the session as unusable and unblocks readLoop.
func (s *Session) markDead() {
	s.alive.Store(false)
	s.deadOnce.Do(func() { close(s.dead) })
}

func (s *Session) send(cmd string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if !s.alive.Load() {
		return fmt.Errorf("sending %q: %w", cmd, ErrCrashed)
	}
	s.logger.Debug("send", zap.String("line", cmd))
	if _, err := io.WriteString(s.stdin, cmd+"\n"); err != nil {
		s.alive.Store(false)
		return fmt.Errorf("sending %q: %v: %w", cmd, err, ErrCrashed)
	}
	return nil
}

// waitFor discards lines until an exact match arrives or the deadline
// passes. Used only during handshakes and ready synchronization.
func (s *Session) waitFor(deadline time.Time, want string) error {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	for {
		select {
		case line, ok := <-s.lines:
			if !ok {
				return ErrCrashed
			}
			if line == want {
				return nil
			}
		case <-s.procDone:
			return ErrCrashed
		case <-timer.C:
			return fmt.Errorf("timed out waiting for %q", want)
		}
	}
}
