// Package bridge serializes access to a single UCI session across many
// calling goroutines. One dedicated worker drains a FIFO queue of search
// requests, so the engine never sees two simultaneous searches, and
// responses are delivered in submission order.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/openboard/enginebridge/internal/stats"
	"github.com/openboard/enginebridge/internal/uci"
)

// Sentinel errors for per-request outcomes.
var (
	// ErrCancelled indicates the request was cancelled before completion.
	ErrCancelled = errors.New("bridge: request cancelled")

	// ErrTimeout indicates no terminal result arrived within the
	// request's deadline.
	ErrTimeout = errors.New("bridge: request deadline exceeded")

	// ErrQueueFull indicates the submission queue is at capacity.
	ErrQueueFull = errors.New("bridge: submission queue full")

	// ErrClosed indicates the bridge has been closed.
	ErrClosed = errors.New("bridge: closed")
)

// Defaults.
const (
	DefaultQueueCapacity = 64
	DefaultDeadlineSlack = 2 * time.Second
	DefaultQuitGrace     = 2 * time.Second
)

// Kind distinguishes what the caller wants the search for.
type Kind int

const (
	// KindBestMove is a search whose result will be played.
	KindBestMove Kind = iota

	// KindHint is a search whose result is suggested to the user.
	KindHint
)

// Request describes one search. The position is always the full move list
// from the game's starting position because UCI replays the game each time.
type Request struct {
	// StartFEN is the game's starting position; empty means the standard
	// initial position.
	StartFEN string

	// Moves is the full move history in UCI notation.
	Moves []string

	// MoveTime bounds the engine's thinking time.
	MoveTime time.Duration

	// Depth bounds the search depth. Zero means unbounded by depth.
	Depth int

	// Kind records what the result is for.
	Kind Kind
}

// Session is the protocol layer the worker drives. *uci.Session satisfies
// it; tests substitute fakes.
type Session interface {
	SetPosition(startFEN string, moves []string) error
	Search(ctx context.Context, movetime time.Duration, depth int) (*uci.SearchResult, error)
	Shutdown(grace time.Duration) error
}

// Dispatcher delivers completion callbacks. Callbacks are never invoked on
// the worker goroutine; the dispatcher decides which goroutine runs them.
type Dispatcher interface {
	Dispatch(fn func())
}

// Callback receives a request's resolution: exactly one of result or error.
type Callback func(*uci.SearchResult, error)

// Bridge owns the worker goroutine and the submission queue.
type Bridge struct {
	sess       Session
	dispatcher Dispatcher
	logger     *zap.Logger
	stats      stats.Collector
	slack      time.Duration
	quitGrace  time.Duration
	onFatal    func(error)

	queue      chan *pending
	quit       chan struct{}
	workerDone chan struct{}

	mu     sync.Mutex
	table  map[uint64]*pending
	closed bool

	nextID       atomic.Uint64
	inFlight     atomic.Bool
	fatalOnce    sync.Once
	shutdownOnce sync.Once
	shutdownErr  error
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger. If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// WithStats sets the stats collector. If not set, a no-op collector is used.
func WithStats(c stats.Collector) Option {
	return func(b *Bridge) { b.stats = c }
}

// WithDispatcher sets the callback dispatcher.
func WithDispatcher(d Dispatcher) Option {
	return func(b *Bridge) { b.dispatcher = d }
}

// WithQueueCapacity bounds how many requests may wait behind the one in
// flight.
func WithQueueCapacity(n int) Option {
	return func(b *Bridge) { b.queue = make(chan *pending, n) }
}

// WithDeadlineSlack sets the safety buffer added to each request's time
// budget to tolerate scheduling jitter before declaring a timeout.
func WithDeadlineSlack(d time.Duration) Option {
	return func(b *Bridge) { b.slack = d }
}

// WithQuitGrace bounds how long session shutdown may take before the
// process is force-terminated.
func WithQuitGrace(d time.Duration) Option {
	return func(b *Bridge) { b.quitGrace = d }
}

// WithOnFatal registers a hook invoked at most once when the session
// becomes unusable (crash or protocol desync). It runs on the worker
// goroutine and must not call back into the bridge.
func WithOnFatal(fn func(error)) Option {
	return func(b *Bridge) { b.onFatal = fn }
}

// New creates a Bridge and starts its worker.
func New(sess Session, opts ...Option) *Bridge {
	b := &Bridge{
		sess:       sess,
		dispatcher: newGoDispatcher(),
		logger:     zap.NewNop(),
		stats:      stats.NewNoop(),
		slack:      DefaultDeadlineSlack,
		quitGrace:  DefaultQuitGrace,
		queue:      make(chan *pending, DefaultQueueCapacity),
		quit:       make(chan struct{}),
		workerDone: make(chan struct{}),
		table:      make(map[uint64]*pending),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	return b
}

// Submit enqueues a request and returns immediately. The callback, if any,
// is delivered through the dispatcher once the request resolves. Request
// IDs are monotonically assigned and never reused.
func (b *Bridge) Submit(req Request, cb Callback) (*Handle, error) {
	p := &pending{
		id:   b.nextID.Add(1),
		req:  req,
		cb:   cb,
		done: make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	b.table[p.id] = p
	b.mu.Unlock()

	select {
	case b.queue <- p:
	default:
		b.mu.Lock()
		delete(b.table, p.id)
		b.mu.Unlock()
		return nil, fmt.Errorf("request %d: %w", p.id, ErrQueueFull)
	}

	b.stats.SetGauge(stats.MetricQueueDepth, int64(len(b.queue)))
	b.logger.Debug("request enqueued",
		zap.Uint64("id", p.id),
		zap.Int("moves", len(req.Moves)),
		zap.Duration("movetime", req.MoveTime),
		zap.Int("depth", req.Depth),
	)
	return &Handle{b: b, p: p}, nil
}

// Cancel cancels the request with the given ID. A queued request resolves
// immediately as cancelled with no engine interaction; the in-flight
// request is stopped cooperatively through the protocol's stop command.
// Returns false if the ID is unknown or already resolved.
func (b *Bridge) Cancel(id uint64) bool {
	b.mu.Lock()
	p := b.table[id]
	b.mu.Unlock()
	if p == nil {
		return false
	}
	return b.cancel(p)
}

// InFlight reports whether a search is executing right now.
func (b *Bridge) InFlight() bool {
	return b.inFlight.Load()
}

// PendingCount returns the number of unresolved requests, including the
// one in flight.
func (b *Bridge) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.table)
}

// Close cancels every pending request, stops the worker, and shuts the
// session down. Idempotent; concurrent calls all wait for completion.
func (b *Bridge) Close() error {
	b.mu.Lock()
	already := b.closed
	b.closed = true
	b.mu.Unlock()

	if !already {
		close(b.quit)
	}

	for _, p := range b.snapshot() {
		b.cancel(p)
	}

	<-b.workerDone

	// Anything the worker never reached resolves as cancelled.
	for _, p := range b.snapshot() {
		b.finishQueued(p, ErrCancelled)
	}

	b.shutdownOnce.Do(func() {
		b.shutdownErr = b.sess.Shutdown(b.quitGrace)
		// The default dispatcher's delivery goroutine drains what is
		// already queued and exits.
		if gd, ok := b.dispatcher.(*goDispatcher); ok {
			close(gd.fns)
		}
	})
	return b.shutdownErr
}

// run is the worker loop. All protocol I/O happens here.
func (b *Bridge) run() {
	defer close(b.workerDone)
	for {
		select {
		case <-b.quit:
			return
		case p := <-b.queue:
			if fatal := b.execute(p); fatal {
				return
			}
		}
	}
}

// execute drives one request through the session. Returns true when the
// session became unusable and the worker must stop.
func (b *Bridge) execute(p *pending) bool {
	if !p.state.CompareAndSwap(stateQueued, stateRunning) {
		// Cancelled while queued; already resolved.
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.req.MoveTime+b.slack)
	defer cancel()
	p.setCancelRun(cancel)

	b.inFlight.Store(true)
	defer b.inFlight.Store(false)
	b.stats.IncCounter(stats.MetricSearches, 1)
	b.stats.SetGauge(stats.MetricQueueDepth, int64(len(b.queue)))

	if err := b.sess.SetPosition(p.req.StartFEN, p.req.Moves); err != nil {
		b.escalate(p, err)
		return true
	}

	start := time.Now()
	res, err := b.sess.Search(ctx, p.req.MoveTime, p.req.Depth)
	b.stats.ObserveHistogram(stats.MetricSearchSeconds, time.Since(start).Seconds())

	switch {
	case err == nil:
		b.finishRunning(p, res, nil)
	case p.wantCancel.Load() && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		b.stats.IncCounter(stats.MetricCancellations, 1)
		b.finishRunning(p, nil, ErrCancelled)
	case errors.Is(err, context.DeadlineExceeded):
		b.stats.IncCounter(stats.MetricTimeouts, 1)
		b.finishRunning(p, nil, fmt.Errorf("no result within %v: %w", p.req.MoveTime+b.slack, ErrTimeout))
	case errors.Is(err, context.Canceled):
		b.stats.IncCounter(stats.MetricCancellations, 1)
		b.finishRunning(p, nil, ErrCancelled)
	default:
		// A cancel or deadline was in play when the session failed: the
		// offending request resolves with its own outcome; the session
		// error drains the rest.
		switch {
		case p.wantCancel.Load() && ctx.Err() != nil:
			b.stats.IncCounter(stats.MetricCancellations, 1)
			b.finishRunning(p, nil, ErrCancelled)
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			b.stats.IncCounter(stats.MetricTimeouts, 1)
			b.finishRunning(p, nil, fmt.Errorf("no result within %v: %w", p.req.MoveTime+b.slack, ErrTimeout))
		}
		b.escalate(p, err)
		return true
	}
	return false
}

// cancel requests cancellation of p: queued requests resolve immediately,
// the running one is interrupted via its context (which makes the session
// send stop).
func (b *Bridge) cancel(p *pending) bool {
	p.wantCancel.Store(true)

	if b.finishQueued(p, ErrCancelled) {
		b.stats.IncCounter(stats.MetricCancellations, 1)
		return true
	}
	if p.state.Load() == stateRunning {
		p.callCancelRun()
		return true
	}
	return false
}

// escalate handles a session-fatal error: the offending request and every
// other pending request resolve with it, and the adapter is notified once.
func (b *Bridge) escalate(p *pending, err error) {
	b.stats.IncCounter(stats.MetricCrashes, 1)
	b.logger.Error("engine session failed", zap.Uint64("id", p.id), zap.Error(err))

	// Refuse new submissions before draining; anything accepted after the
	// drain would never be served once the worker exits.
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	b.finishRunning(p, nil, err)
	for _, other := range b.snapshot() {
		b.finishQueued(other, err)
	}

	b.fatalOnce.Do(func() {
		if b.onFatal != nil {
			b.onFatal(err)
		}
	})
}

func (b *Bridge) snapshot() []*pending {
	b.mu.Lock()
	defer b.mu.Unlock()
	ps := make([]*pending, 0, len(b.table))
	for _, p := range b.table {
		ps = append(ps, p)
	}
	return ps
}

// finishQueued resolves p only if it has not started executing.
func (b *Bridge) finishQueued(p *pending, err error) bool {
	if !p.state.CompareAndSwap(stateQueued, stateResolved) {
		return false
	}
	b.deliver(p, nil, err)
	return true
}

// finishRunning resolves p after the worker executed it.
func (b *Bridge) finishRunning(p *pending, res *uci.SearchResult, err error) bool {
	if !p.state.CompareAndSwap(stateRunning, stateResolved) {
		return false
	}
	b.deliver(p, res, err)
	return true
}

func (b *Bridge) deliver(p *pending, res *uci.SearchResult, err error) {
	p.setResult(res, err)
	close(p.done)

	b.mu.Lock()
	delete(b.table, p.id)
	b.mu.Unlock()

	b.logger.Debug("request resolved", zap.Uint64("id", p.id), zap.Error(err))
	if p.cb != nil {
		cb := p.cb
		b.dispatcher.Dispatch(func() { cb(res, err) })
	}
}
