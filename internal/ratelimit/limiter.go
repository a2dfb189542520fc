// Package ratelimit implements the fixed-window request throttle applied to
// all inbound API traffic. The counter resets entirely at window boundaries,
// as opposed to a rolling window: bursts of up to 2x the limit are possible
// straddling a boundary. That trade-off is accepted for simplicity.
//
// State is held in process memory only. When the service runs as multiple
// instances each has its own independent window state, weakening the
// effective limit by the instance count. The Limiter interface exists so the
// in-process implementation can be swapped for a shared, atomically
// incrementing external counter without changing call sites.
package ratelimit

import (
	"sync"
	"time"
)

// Result is the outcome of a single rate limit check.
type Result struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Remaining is the number of requests left in the current window.
	Remaining int

	// ResetAt is when the current window expires. On denial, callers use it
	// to compute a Retry-After delay.
	ResetAt time.Time
}

// Limiter is the throttling contract consumed by the traffic middleware.
// Implementations must be safe for concurrent callers.
type Limiter interface {
	// Check records one request attempt against the key and reports whether
	// it is allowed within the current window.
	Check(key string) Result

	// Name identifies the instance in logs and metrics.
	Name() string

	// Stop halts background maintenance and clears all state. After Stop,
	// the limiter must not be used.
	Stop()
}

// Config holds the per-instance tuning for a FixedWindow limiter. Multiple
// named instances with independent configuration may coexist (e.g. a strict
// one for AI-cost-bearing endpoints, a looser one for generic traffic).
type Config struct {
	// Name identifies the instance in logs and metrics.
	Name string

	// MaxRequests is the number of requests allowed per window per key.
	MaxRequests int

	// Window is the fixed window duration.
	Window time.Duration

	// SweepInterval is how often expired entries are garbage-collected.
	// Zero selects defaultSweepInterval.
	SweepInterval time.Duration
}

// defaultSweepInterval bounds memory growth without churning the lock.
const defaultSweepInterval = time.Minute

// entry is one per-key counter. Once now >= resetAt the entry is treated as
// expired and replaced, never incremented further.
type entry struct {
	count   int
	resetAt time.Time
}

// FixedWindow is the in-memory Limiter implementation. Each instance owns a
// background sweep goroutine started by New and halted by Stop.
type FixedWindow struct {
	cfg Config
	now func() time.Time // injectable clock for tests

	mu      sync.Mutex
	entries map[string]*entry

	stopOnce sync.Once
	done     chan struct{}
}

// Option is a functional option for configuring a FixedWindow.
type Option func(*FixedWindow)

// WithClock overrides the time source. Intended for tests that need to move
// a window boundary without sleeping.
func WithClock(now func() time.Time) Option {
	return func(fw *FixedWindow) {
		fw.now = now
	}
}

// New creates a FixedWindow limiter and starts its sweep goroutine.
// The caller owns the returned limiter and must call Stop on shutdown.
func New(cfg Config, opts ...Option) *FixedWindow {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}

	fw := &FixedWindow{
		cfg:     cfg,
		now:     time.Now,
		entries: make(map[string]*entry),
		done:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(fw)
	}

	go fw.sweepLoop()

	return fw
}

// Check implements Limiter.
//
// Within one process, sequential requests from the same key observe
// monotonically increasing counts (read-your-own-write per key).
func (fw *FixedWindow) Check(key string) Result {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	now := fw.now()

	e, ok := fw.entries[key]
	if !ok || !now.Before(e.resetAt) {
		// First request from this key, or the window has expired: start a
		// fresh window with this request counted.
		e = &entry{count: 1, resetAt: now.Add(fw.cfg.Window)}
		fw.entries[key] = e
		return Result{
			Allowed:   true,
			Remaining: fw.cfg.MaxRequests - 1,
			ResetAt:   e.resetAt,
		}
	}

	if e.count < fw.cfg.MaxRequests {
		e.count++
		return Result{
			Allowed:   true,
			Remaining: fw.cfg.MaxRequests - e.count,
			ResetAt:   e.resetAt,
		}
	}

	// Window exhausted. The existing resetAt is reported unchanged so the
	// caller can advertise an accurate retry delay.
	return Result{
		Allowed:   false,
		Remaining: 0,
		ResetAt:   e.resetAt,
	}
}

// Stop halts the sweep goroutine and clears all state. Safe to call more
// than once. Used on process shutdown and in test teardown.
func (fw *FixedWindow) Stop() {
	fw.stopOnce.Do(func() {
		close(fw.done)
		fw.mu.Lock()
		fw.entries = make(map[string]*entry)
		fw.mu.Unlock()
	})
}

// Len returns the number of tracked keys, expired or not. Exposed for tests
// and introspection.
func (fw *FixedWindow) Len() int {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return len(fw.entries)
}

// Name returns the configured instance name.
func (fw *FixedWindow) Name() string {
	return fw.cfg.Name
}

// sweepLoop deletes expired entries on a fixed interval, independent of
// request traffic. It only ever removes entries whose window has already
// passed, so it never races a live window with Check.
func (fw *FixedWindow) sweepLoop() {
	ticker := time.NewTicker(fw.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-fw.done:
			return
		case <-ticker.C:
			fw.sweep()
		}
	}
}

// sweep removes every entry whose window has expired.
func (fw *FixedWindow) sweep() {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	now := fw.now()
	for key, e := range fw.entries {
		if !now.Before(e.resetAt) {
			delete(fw.entries, key)
		}
	}
}
