// Package enginebridge manages a long-lived UCI chess-engine subprocess
// (e.g. Stockfish) and exposes blocking and callback-based best-move calls
// to arbitrary goroutines without ever stalling the caller.
//
// Example usage:
//
//	adapter, err := enginebridge.NewWithAutoDetection()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer adapter.Shutdown()
//
//	game := chess.NewGame()
//	res, err := adapter.GetBestMove(ctx, game, enginebridge.Intermediate)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Best move: %s (%s)\n", res.BestMove, res.Score())
//
// All protocol I/O happens on a single background worker; requests are
// served strictly one at a time in FIFO order.
package enginebridge

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/notnil/chess"
	"go.uber.org/zap"

	"github.com/openboard/enginebridge/internal/bridge"
	"github.com/openboard/enginebridge/internal/detect"
	"github.com/openboard/enginebridge/internal/movecache"
	"github.com/openboard/enginebridge/internal/stats"
	"github.com/openboard/enginebridge/internal/uci"
)

// startPositionFEN is the standard initial chess position.
const startPositionFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// State is the adapter's lifecycle state.
type State int32

// Lifecycle states. The adapter moves Uninitialized → Starting → Ready,
// alternates Ready ⇄ Busy while serving requests, and ends ShuttingDown →
// Stopped. A crash moves it to Stopped from any state.
const (
	StateUninitialized State = iota
	StateStarting
	StateReady
	StateBusy
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateBusy:
		return "busy"
	case StateShuttingDown:
		return "shutting down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Adapter is the public facade over one engine subprocess. An Adapter is
// safe for concurrent use by multiple goroutines.
type Adapter struct {
	path   string
	logger *zap.Logger
	stats  stats.Collector
	cache  *movecache.Cache
	br     *bridge.Bridge

	state     atomic.Int32
	closeOnce sync.Once
	closeErr  error
}

// New spawns the engine at enginePath, performs the protocol handshake,
// and starts the background worker. The returned adapter is Ready.
func New(enginePath string, opts ...Option) (*Adapter, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	a := &Adapter{
		path:   enginePath,
		logger: cfg.logger,
		stats:  cfg.stats,
	}
	a.state.Store(int32(StateStarting))

	sessOpts := []uci.Option{
		uci.WithLogger(cfg.logger.Named("uci")),
		uci.WithStartTimeout(cfg.startTimeout),
	}
	for name, value := range cfg.engineOptions {
		sessOpts = append(sessOpts, uci.WithEngineOption(name, value))
	}

	sess, err := uci.NewSession(enginePath, sessOpts...)
	if err != nil {
		a.state.Store(int32(StateStopped))
		return nil, fmt.Errorf("starting engine at %s: %v: %w", enginePath, err, mapErr(err))
	}

	a.attach(sess, cfg)
	a.state.Store(int32(StateReady))
	a.logger.Info("engine adapter ready", zap.String("path", enginePath))
	return a, nil
}

// NewWithAutoDetection locates an engine executable on this system and
// constructs an adapter around it. Returns ErrEngineNotFound when no
// engine is installed; callers typically fall back to engine-free mode.
func NewWithAutoDetection(opts ...Option) (*Adapter, error) {
	detector := detect.New()
	path, err := detector.Find("stockfish")
	if err != nil {
		return nil, fmt.Errorf("%w\n\n%s", ErrEngineNotFound, detector.InstallInstructions("stockfish"))
	}
	return New(path, opts...)
}

// attach wires the bridge around an already-started session. Split out so
// tests can substitute a fake session.
func (a *Adapter) attach(sess bridge.Session, cfg options) {
	brOpts := []bridge.Option{
		bridge.WithLogger(cfg.logger.Named("bridge")),
		bridge.WithStats(cfg.stats),
		bridge.WithQueueCapacity(cfg.queueCapacity),
		bridge.WithDeadlineSlack(cfg.deadlineSlack),
		bridge.WithQuitGrace(cfg.quitGrace),
		bridge.WithOnFatal(func(err error) {
			a.state.Store(int32(StateStopped))
			a.logger.Error("engine failed, adapter stopped", zap.Error(err))
		}),
	}
	if cfg.dispatcher != nil {
		brOpts = append(brOpts, bridge.WithDispatcher(cfg.dispatcher))
	}
	a.br = bridge.New(sess, brOpts...)

	if cfg.hintCacheSize > 0 {
		cache, err := movecache.New(cfg.hintCacheSize)
		if err == nil {
			a.cache = cache
		}
	}
}

// GetBestMove blocks until the engine picks a move for the game's current
// position at the given difficulty. It surfaces ErrTimeout, ErrCancelled,
// or ErrCrashed; cancelling ctx cancels this request only.
func (a *Adapter) GetBestMove(ctx context.Context, game *chess.Game, difficulty Difficulty) (*Result, error) {
	return a.search(ctx, game, difficulty, bridge.KindBestMove)
}

// GetBestMoveAsync submits a best-move request and returns immediately.
// onComplete is invoked later, through the dispatcher, with either a
// result or an error. The returned handle can cancel the request.
func (a *Adapter) GetBestMoveAsync(game *chess.Game, difficulty Difficulty, onComplete func(*Result, error)) (*Handle, error) {
	return a.submitAsync(game, difficulty, bridge.KindBestMove, onComplete)
}

// GetHint blocks until the engine suggests a move for the user. Hint
// results are served from the hint cache when enabled, since players
// commonly ask for the same hint repeatedly.
func (a *Adapter) GetHint(ctx context.Context, game *chess.Game, difficulty Difficulty) (*Result, error) {
	return a.search(ctx, game, difficulty, bridge.KindHint)
}

// GetHintAsync is the non-blocking variant of GetHint. The hint cache is
// not consulted; the request always reaches the engine.
func (a *Adapter) GetHintAsync(game *chess.Game, difficulty Difficulty, onComplete func(*Result, error)) (*Handle, error) {
	return a.submitAsync(game, difficulty, bridge.KindHint, onComplete)
}

func (a *Adapter) search(ctx context.Context, game *chess.Game, difficulty Difficulty, kind bridge.Kind) (*Result, error) {
	req, err := a.buildRequest(game, difficulty, kind)
	if err != nil {
		return nil, err
	}

	var key string
	if kind == bridge.KindHint && a.cache != nil {
		key = movecache.Key(game.Position().String(), req.MoveTime, req.Depth)
		if sr, ok := a.cache.Get(key); ok {
			a.stats.IncCounter(stats.MetricCacheHits, 1)
			return newResult(sr), nil
		}
		a.stats.IncCounter(stats.MetricCacheMisses, 1)
	}

	h, err := a.br.Submit(req, nil)
	if err != nil {
		return nil, mapErr(err)
	}

	sr, err := h.Wait(ctx)
	if err != nil {
		return nil, mapErr(err)
	}

	if key != "" {
		a.cache.Add(key, sr)
	}
	return newResult(sr), nil
}

func (a *Adapter) submitAsync(game *chess.Game, difficulty Difficulty, kind bridge.Kind, onComplete func(*Result, error)) (*Handle, error) {
	req, err := a.buildRequest(game, difficulty, kind)
	if err != nil {
		return nil, err
	}

	var cb bridge.Callback
	if onComplete != nil {
		cb = func(sr *uci.SearchResult, err error) {
			if err != nil {
				onComplete(nil, mapErr(err))
				return
			}
			onComplete(newResult(sr), nil)
		}
	}

	h, err := a.br.Submit(req, cb)
	if err != nil {
		return nil, mapErr(err)
	}
	return &Handle{h: h}, nil
}

// buildRequest turns the game into a protocol request: the starting FEN
// (empty for the standard start position) plus the full move history in
// UCI notation, since the protocol always replays from the beginning.
func (a *Adapter) buildRequest(game *chess.Game, difficulty Difficulty, kind bridge.Kind) (bridge.Request, error) {
	switch a.State() {
	case StateReady, StateBusy:
	default:
		return bridge.Request{}, ErrClosed
	}

	if game.Outcome() != chess.NoOutcome {
		return bridge.Request{}, ErrGameOver
	}

	cfg := difficulty.Config()
	positions := game.Positions()
	moves := game.Moves()

	startFEN := positions[0].String()
	if startFEN == startPositionFEN {
		startFEN = ""
	}

	encoded := make([]string, len(moves))
	for i, m := range moves {
		encoded[i] = chess.UCINotation{}.Encode(positions[i], m)
	}

	return bridge.Request{
		StartFEN: startFEN,
		Moves:    encoded,
		MoveTime: cfg.MoveTime,
		Depth:    cfg.Depth,
		Kind:     kind,
	}, nil
}

// Shutdown cancels every pending request, quits the engine, and moves the
// adapter to Stopped. Idempotent and bounded; it never hangs on a stuck
// engine.
func (a *Adapter) Shutdown() error {
	a.closeOnce.Do(func() {
		a.state.Store(int32(StateShuttingDown))
		a.logger.Info("shutting down engine adapter", zap.String("path", a.path))
		a.closeErr = a.br.Close()
		a.state.Store(int32(StateStopped))
	})
	return a.closeErr
}

// State returns the adapter's current lifecycle state. Ready and Busy
// alternate as searches start and finish.
func (a *Adapter) State() State {
	s := State(a.state.Load())
	if s == StateReady && a.br.PendingCount() > 0 {
		return StateBusy
	}
	return s
}

// IsReady reports whether the adapter can accept requests immediately.
func (a *Adapter) IsReady() bool {
	return a.State() == StateReady
}

// IsBusy reports whether a search is queued or executing.
func (a *Adapter) IsBusy() bool {
	return a.State() == StateBusy
}

// EnginePath returns the path of the engine executable in use.
func (a *Adapter) EnginePath() string {
	return a.path
}

// Handle refers to one asynchronous request.
type Handle struct {
	h *bridge.Handle
}

// ID returns the request's unique, never-reused identifier.
func (h *Handle) ID() uint64 {
	return h.h.ID()
}

// Done returns a channel closed when the request resolves.
func (h *Handle) Done() <-chan struct{} {
	return h.h.Done()
}

// Cancel requests cancellation. Queued requests resolve immediately; the
// in-flight request is stopped cooperatively. Returns false if the request
// had already resolved.
func (h *Handle) Cancel() bool {
	return h.h.Cancel()
}

// Wait blocks until the request resolves and returns its outcome.
func (h *Handle) Wait(ctx context.Context) (*Result, error) {
	sr, err := h.h.Wait(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	return newResult(sr), nil
}
