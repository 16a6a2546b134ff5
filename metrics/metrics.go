// Package metrics collects engine counters from its lifecycle callbacks.
package metrics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nanuguru/Med-Procedure/core"
	"github.com/nanuguru/Med-Procedure/engine"
)

// Snapshot is a point-in-time copy of the collected counters.
type Snapshot struct {
	TotalRequests      int64                    `json:"total_requests"`
	SuccessfulRequests int64                    `json:"successful_requests"`
	FailedRequests     int64                    `json:"failed_requests"`
	CancelledRequests  int64                    `json:"cancelled_requests"`
	ActiveSessions     int64                    `json:"active_sessions"`
	PausedSessions     int64                    `json:"paused_sessions"`
	ValidationRetries  int64                    `json:"validation_retries"`
	AdapterFaults      map[string]int64         `json:"adapter_faults"`
	Stages             map[string]StageSnapshot `json:"stages"`
	Uptime             float64                  `json:"uptime_seconds"`
}

// StageSnapshot summarizes the executions of one pipeline step.
type StageSnapshot struct {
	Count         int64   `json:"count"`
	Errors        int64   `json:"errors"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

type stageStats struct {
	count  int64
	errors int64
	total  time.Duration
}

// Collector counts requests, transitions, retries, faults and stage timings.
type Collector struct {
	started time.Time

	total     atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	cancelled atomic.Int64
	active    atomic.Int64
	paused    atomic.Int64
	retries   atomic.Int64

	mu     sync.Mutex
	faults map[core.ErrorKind]int64
	stages map[core.StepKind]*stageStats
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		started: time.Now(),
		faults:  make(map[core.ErrorKind]int64),
		stages:  make(map[core.StepKind]*stageStats),
	}
}

// Register subscribes the collector to the events of cm.
func (c *Collector) Register(cm *engine.CallbackManager) {
	for _, cb := range c.Callbacks() {
		cm.RegisterCallback(cb)
	}
}

// Callbacks returns the callbacks that feed the collector.
func (c *Collector) Callbacks() []engine.Callback {
	return []engine.Callback{
		engine.NewFunctionCallback(engine.CallbackOnStateChange, func(_ context.Context, cc *engine.CallbackContext) error {
			c.transition(cc.From, cc.To, cc.ErrorKind)
			return nil
		}),
		engine.NewFunctionCallback(engine.CallbackRetry, func(context.Context, *engine.CallbackContext) error {
			c.retries.Add(1)
			return nil
		}),
		engine.NewFunctionCallback(engine.CallbackAdapterFault, func(_ context.Context, cc *engine.CallbackContext) error {
			if cc.Fault != nil {
				c.mu.Lock()
				c.faults[cc.Fault.Kind]++
				c.mu.Unlock()
			}
			return nil
		}),
		engine.NewFunctionCallback(engine.CallbackAfterStage, func(_ context.Context, cc *engine.CallbackContext) error {
			c.observeStage(cc.Stage, cc.Duration, cc.Err)
			return nil
		}),
	}
}

func (c *Collector) transition(from, to core.SessionStatus, kind core.ErrorKind) {
	switch from {
	case "":
		c.total.Add(1)
	case core.StatusProcessing:
		c.active.Add(-1)
	case core.StatusPaused:
		c.paused.Add(-1)
	}

	switch to {
	case core.StatusProcessing:
		c.active.Add(1)
	case core.StatusPaused:
		c.paused.Add(1)
	case core.StatusCompleted:
		c.succeeded.Add(1)
	case core.StatusError:
		if kind == core.KindCancelled {
			c.cancelled.Add(1)
		} else {
			c.failed.Add(1)
		}
	}
}

func (c *Collector) observeStage(stage core.StepKind, d time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.stages[stage]
	if !ok {
		s = &stageStats{}
		c.stages[stage] = s
	}
	s.count++
	s.total += d
	if err != nil {
		s.errors++
	}
}

// Snapshot returns the current counters.
func (c *Collector) Snapshot() Snapshot {
	snap := Snapshot{
		TotalRequests:      c.total.Load(),
		SuccessfulRequests: c.succeeded.Load(),
		FailedRequests:     c.failed.Load(),
		CancelledRequests:  c.cancelled.Load(),
		ActiveSessions:     c.active.Load(),
		PausedSessions:     c.paused.Load(),
		ValidationRetries:  c.retries.Load(),
		AdapterFaults:      map[string]int64{},
		Stages:             map[string]StageSnapshot{},
		Uptime:             time.Since(c.started).Seconds(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range c.faults {
		snap.AdapterFaults[string(k)] = v
	}
	for k, s := range c.stages {
		avg := 0.0
		if s.count > 0 {
			avg = float64(s.total.Microseconds()) / 1000 / float64(s.count)
		}
		snap.Stages[string(k)] = StageSnapshot{Count: s.count, Errors: s.errors, AvgDurationMs: avg}
	}
	return snap
}
