package enginebridge

import (
	"time"

	"go.uber.org/zap"

	"github.com/openboard/enginebridge/internal/bridge"
	"github.com/openboard/enginebridge/internal/stats"
)

// Dispatcher delivers completion callbacks for the async API. Callbacks
// never run on the protocol worker goroutine; the dispatcher decides which
// goroutine runs them (e.g. a UI event loop).
type Dispatcher interface {
	Dispatch(fn func())
}

// DispatchFunc adapts a function to the Dispatcher interface.
type DispatchFunc func(fn func())

// Dispatch calls f(fn).
func (f DispatchFunc) Dispatch(fn func()) { f(fn) }

// Option configures an Adapter.
type Option interface {
	apply(*options)
}

// options holds the adapter configuration.
type options struct {
	logger        *zap.Logger
	stats         stats.Collector
	dispatcher    Dispatcher
	engineOptions map[string]string
	startTimeout  time.Duration
	deadlineSlack time.Duration
	quitGrace     time.Duration
	queueCapacity int
	hintCacheSize int
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	return options{
		logger:        zap.NewNop(),
		stats:         stats.NewNoop(),
		engineOptions: make(map[string]string),
		startTimeout:  10 * time.Second,
		deadlineSlack: bridge.DefaultDeadlineSlack,
		quitGrace:     bridge.DefaultQuitGrace,
		queueCapacity: bridge.DefaultQueueCapacity,
	}
}

// optionFunc wraps a function to implement Option.
type optionFunc func(*options)

// Compile-time check that optionFunc implements Option.
var _ Option = optionFunc(nil)

func (f optionFunc) apply(o *options) { f(o) }

// WithLogger sets the logger.
// If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = l
	})
}

// WithStats sets the stats collector.
// If not set, a no-op collector is used.
func WithStats(c stats.Collector) Option {
	return optionFunc(func(o *options) {
		o.stats = c
	})
}

// WithDispatcher sets the callback dispatcher for the async API.
// If not set, callbacks are delivered serially on a dedicated goroutine.
func WithDispatcher(d Dispatcher) Option {
	return optionFunc(func(o *options) {
		o.dispatcher = d
	})
}

// WithEngineOption sets a UCI option (e.g. "Threads", "Hash") applied
// during the engine handshake.
func WithEngineOption(name, value string) Option {
	return optionFunc(func(o *options) {
		o.engineOptions[name] = value
	})
}

// WithStartTimeout bounds engine spawn plus handshake.
// Default is 10 seconds.
func WithStartTimeout(d time.Duration) Option {
	return optionFunc(func(o *options) {
		o.startTimeout = d
	})
}

// WithDeadlineSlack sets the safety buffer added to each request's time
// budget before the bridge declares a timeout. Default is 2 seconds.
func WithDeadlineSlack(d time.Duration) Option {
	return optionFunc(func(o *options) {
		o.deadlineSlack = d
	})
}

// WithQuitGrace bounds graceful engine shutdown before the process is
// force-terminated. Default is 2 seconds.
func WithQuitGrace(d time.Duration) Option {
	return optionFunc(func(o *options) {
		o.quitGrace = d
	})
}

// WithQueueCapacity bounds how many requests may wait behind the one in
// flight. Default is 64.
func WithQueueCapacity(n int) Option {
	return optionFunc(func(o *options) {
		o.queueCapacity = n
	})
}

// WithHintCache enables an LRU cache of hint results keyed by position and
// search budget, so asking for the same hint twice skips the engine.
// Disabled by default.
func WithHintCache(capacity int) Option {
	return optionFunc(func(o *options) {
		o.hintCacheSize = capacity
	})
}
