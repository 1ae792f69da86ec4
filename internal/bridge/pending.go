package bridge

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/openboard/enginebridge/internal/uci"
)

// Request lifecycle states.
const (
	stateQueued int32 = iota
	stateRunning
	stateResolved
)

// pending tracks one submitted request from enqueue to resolution. The
// result slot is written exactly once, guarded by the state transition to
// stateResolved, and published by closing done.
type pending struct {
	id   uint64
	req  Request
	cb   Callback
	done chan struct{}

	state      atomic.Int32
	wantCancel atomic.Bool

	mu        sync.Mutex
	res       *uci.SearchResult
	err       error
	cancelRun context.CancelFunc
}

func (p *pending) setResult(res *uci.SearchResult, err error) {
	p.mu.Lock()
	p.res = res
	p.err = err
	p.mu.Unlock()
}

func (p *pending) result() (*uci.SearchResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.res, p.err
}

func (p *pending) setCancelRun(cancel context.CancelFunc) {
	p.mu.Lock()
	p.cancelRun = cancel
	p.mu.Unlock()

	// Cancel may have raced with the transition to running.
	if p.wantCancel.Load() {
		cancel()
	}
}

func (p *pending) callCancelRun() {
	p.mu.Lock()
	cancel := p.cancelRun
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Handle refers to one submitted request. It supports waiting for and
// cancelling that specific request; resolutions of other requests never
// wake a waiter.
type Handle struct {
	b *Bridge
	p *pending
}

// ID returns the request's unique identifier.
func (h *Handle) ID() uint64 {
	return h.p.id
}

// Done returns a channel closed when the request resolves.
func (h *Handle) Done() <-chan struct{} {
	return h.p.done
}

// Cancel requests cancellation. Returns false if the request had already
// resolved.
func (h *Handle) Cancel() bool {
	return h.b.cancel(h.p)
}

// Wait blocks until the request resolves and returns its outcome. If ctx
// is cancelled first, the request itself is cancelled and Wait returns its
// (bounded) resolution, normally ErrCancelled.
func (h *Handle) Wait(ctx context.Context) (*uci.SearchResult, error) {
	select {
	case <-h.p.done:
		return h.p.result()
	case <-ctx.Done():
		h.Cancel()
		<-h.p.done
		return h.p.result()
	}
}

// goDispatcher is the default Dispatcher: a single delivery goroutine
// drains callbacks in resolution order, keeping them off the worker and
// serialized with respect to each other.
type goDispatcher struct {
	fns chan func()
}

func newGoDispatcher() *goDispatcher {
	d := &goDispatcher{fns: make(chan func(), 64)}
	go func() {
		for fn := range d.fns {
			fn()
		}
	}()
	return d
}

func (d *goDispatcher) Dispatch(fn func()) {
	d.fns <- fn
}
