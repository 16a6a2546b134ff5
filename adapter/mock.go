package adapter

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nanuguru/Med-Procedure/core"
)

// Mock is an in-memory core.Adapter with canned results, useful for tests
// and examples.
type Mock struct {
	name      string
	mu        sync.RWMutex
	responses map[string][]core.SearchResult
	fallback  []core.SearchResult
	err       error
	delay     time.Duration
	calls     atomic.Int64
}

// NewMock constructs a Mock returning fallback for every query without a
// registered response.
func NewMock(name string, fallback ...core.SearchResult) *Mock {
	return &Mock{name: name, responses: map[string][]core.SearchResult{}, fallback: fallback}
}

// AddResponse registers the results returned for an exact query.
func (m *Mock) AddResponse(query string, results ...core.SearchResult) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[query] = results
	return m
}

// SetError makes every call fail with err.
func (m *Mock) SetError(err error) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// SetDelay makes every call wait d before answering, honoring cancellation.
func (m *Mock) SetDelay(d time.Duration) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// Calls returns how many times Search was invoked.
func (m *Mock) Calls() int { return int(m.calls.Load()) }

// Name implements core.Adapter.
func (m *Mock) Name() string { return m.name }

// Search implements core.Adapter.
func (m *Mock) Search(ctx context.Context, query string, _ core.Setting) ([]core.SearchResult, error) {
	m.calls.Add(1)

	m.mu.RLock()
	delay, err := m.delay, m.err
	results, ok := m.responses[query]
	if !ok {
		results = m.fallback
	}
	m.mu.RUnlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if err != nil {
		return nil, err
	}

	out := make([]core.SearchResult, len(results))
	for i, r := range results {
		if r.Source == "" {
			r.Source = m.name
		}
		out[i] = r
	}
	return out, nil
}

// Func adapts a plain function to core.Adapter.
type Func struct {
	AdapterName string
	Fn          func(ctx context.Context, query string, setting core.Setting) ([]core.SearchResult, error)
}

// Name implements core.Adapter.
func (f Func) Name() string { return f.AdapterName }

// Search implements core.Adapter.
func (f Func) Search(ctx context.Context, query string, setting core.Setting) ([]core.SearchResult, error) {
	if f.Fn == nil {
		return nil, fmt.Errorf("adapter %s has no function", f.AdapterName)
	}
	return f.Fn(ctx, query, setting)
}
