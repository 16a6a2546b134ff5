package adapter

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/nanuguru/Med-Procedure/core"
	"github.com/nanuguru/Med-Procedure/logging"
)

// RateLimiter caps the number of concurrent calls to one backend across all
// sessions. It is shared by every Guard wrapping the same backend.
type RateLimiter struct {
	max      int64
	inFlight atomic.Int64
	total    atomic.Int64
	rejected atomic.Int64
}

// NewRateLimiter allows up to max concurrent calls; max <= 0 means unlimited.
func NewRateLimiter(max int) *RateLimiter {
	return &RateLimiter{max: int64(max)}
}

// Acquire reserves a slot, reporting false when the limit is reached.
func (rl *RateLimiter) Acquire() bool {
	for {
		cur := rl.inFlight.Load()
		if rl.max > 0 && cur >= rl.max {
			rl.rejected.Add(1)
			return false
		}
		if rl.inFlight.CompareAndSwap(cur, cur+1) {
			rl.total.Add(1)
			return true
		}
	}
}

// Release frees a slot taken by Acquire.
func (rl *RateLimiter) Release() { rl.inFlight.Add(-1) }

// InFlight returns the number of calls currently running.
func (rl *RateLimiter) InFlight() int { return int(rl.inFlight.Load()) }

// Total returns the number of admitted calls.
func (rl *RateLimiter) Total() int { return int(rl.total.Load()) }

// Rejected returns the number of calls refused by the limit.
func (rl *RateLimiter) Rejected() int { return int(rl.rejected.Load()) }

// GuardOptions configure a Guard.
type GuardOptions struct {
	// Timeout bounds a single call; zero disables the per-call timeout.
	Timeout time.Duration
	// Limiter is shared across guards of the same backend; nil disables it.
	Limiter *RateLimiter
	Logger  logging.Logger
}

// Guard decorates an adapter with a per-call timeout, a shared rate limit and
// classification of failures into the adapter error kinds.
type Guard struct {
	inner core.Adapter
	opts  GuardOptions
}

// NewGuard wraps inner.
func NewGuard(inner core.Adapter, optFns ...func(o *GuardOptions)) *Guard {
	opts := GuardOptions{
		Timeout: 30 * time.Second,
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Guard{inner: inner, opts: opts}
}

// Name implements core.Adapter.
func (g *Guard) Name() string { return g.inner.Name() }

// Unwrap returns the decorated adapter.
func (g *Guard) Unwrap() core.Adapter { return g.inner }

// Limiter returns the guard's rate limiter, or nil when calls are unlimited.
func (g *Guard) Limiter() *RateLimiter { return g.opts.Limiter }

// Search implements core.Adapter.
func (g *Guard) Search(ctx context.Context, query string, setting core.Setting) ([]core.SearchResult, error) {
	name := g.inner.Name()

	if g.opts.Limiter != nil {
		if !g.opts.Limiter.Acquire() {
			g.opts.Logger.Warn("adapter call rejected", "adapter", name, "in_flight", g.opts.Limiter.InFlight(), "rejected", g.opts.Limiter.Rejected())
			return nil, core.NewAdapterRateLimited(name, "concurrent call limit reached")
		}
		defer g.opts.Limiter.Release()
	}

	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	results, err := g.inner.Search(ctx, query, setting)
	if err != nil {
		err = Classify(ctx, name, err)
		g.opts.Logger.Warn("adapter call failed", "adapter", name, "duration", time.Since(start), "kind", core.KindOf(err), "error", err)
		return nil, err
	}

	g.opts.Logger.Debug("adapter call completed", "adapter", name, "duration", time.Since(start), "results", len(results))
	return results, nil
}

// Classify maps an arbitrary adapter failure onto AdapterTimeout,
// AdapterRateLimited or AdapterUnavailable. Errors already carrying one of
// those kinds are returned unchanged.
func Classify(ctx context.Context, name string, err error) error {
	switch core.KindOf(err) {
	case core.KindAdapterTimeout, core.KindAdapterRateLimited, core.KindAdapterUnavailable:
		var e *core.Error
		if errors.As(err, &e) {
			return err
		}
		return core.NewAdapterTimeout(name, "%v", err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return core.NewAdapterTimeout(name, "call exceeded its deadline")
	}
	return core.NewAdapterUnavailable(name, "%v", err)
}
