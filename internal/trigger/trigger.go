// Package trigger throttles cursor-driven ownership queries. Rapid
// cursor movement collapses to a single query for the final position,
// and responses that arrive for an outdated position are dropped.
package trigger

import (
	"sync"
	"time"

	"github.com/borrowscope/borrowscope/internal/lsp"
)

// DefaultDelay is the debounce window applied to cursor movement.
const DefaultDelay = 500 * time.Millisecond

// Request is a scheduled ownership query. Generation orders requests:
// a response tagged with a generation older than the latest issued one
// must be discarded by the caller.
type Request struct {
	Generation uint64
	Params     lsp.CursorParams
}

// Debouncer schedules cursor queries after a quiet period. Each
// schedule cancels the previous pending one. Fire delivers at most the
// latest request.
type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
	gen   uint64
	fire  func(Request)
}

// NewDebouncer creates a debouncer that calls fire when a request
// survives the quiet period. A non-positive delay falls back to
// DefaultDelay.
func NewDebouncer(delay time.Duration, fire func(Request)) *Debouncer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Debouncer{delay: delay, fire: fire}
}

// SetDelay changes the quiet period for subsequent schedules.
func (d *Debouncer) SetDelay(delay time.Duration) {
	if delay <= 0 {
		delay = DefaultDelay
	}
	d.mu.Lock()
	d.delay = delay
	d.mu.Unlock()
}

// Schedule queues a query for params, replacing any pending one. The
// returned generation identifies the request; earlier generations are
// stale from this point on.
func (d *Debouncer) Schedule(params lsp.CursorParams) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	req := Request{Generation: d.gen, Params: params}
	d.timer = time.AfterFunc(d.delay, func() { d.dispatch(req) })
	return req.Generation
}

// Now bypasses the quiet period and fires immediately. Used for manual
// queries and save-triggered refreshes. Any pending scheduled query is
// cancelled; it would be stale by the time it fired.
func (d *Debouncer) Now(params lsp.CursorParams) uint64 {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	req := Request{Generation: d.gen, Params: params}
	d.mu.Unlock()
	d.fire(req)
	return req.Generation
}

// Cancel drops any pending query without firing.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
}

// Latest returns the most recently issued generation.
func (d *Debouncer) Latest() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gen
}

// Fresh reports whether a response for generation is still current.
func (d *Debouncer) Fresh(generation uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return generation == d.gen
}

// dispatch runs on the timer goroutine. A request superseded between
// timer expiry and lock acquisition is dropped here rather than fired
// stale.
func (d *Debouncer) dispatch(req Request) {
	d.mu.Lock()
	if req.Generation != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()
	d.fire(req)
}
