package search

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/nanuguru/Med-Procedure/adapter"
	"github.com/nanuguru/Med-Procedure/core"
	"github.com/nanuguru/Med-Procedure/logging"
)

// Options configure an Aggregator.
type Options struct {
	// Deadline bounds a whole batch independently of per-adapter timeouts.
	Deadline time.Duration
	// Budget is copied onto every AggregatedContext for downstream compaction.
	Budget int
	Logger logging.Logger
	// OnFault, when set, receives every fault of a batch in adapter order.
	OnFault func(ctx context.Context, fault core.Fault)
}

// Aggregator runs capability adapters concurrently and merges their output.
// Adapter priority is the order adapters are passed to New.
type Aggregator struct {
	adapters []core.Adapter
	opts     Options
}

// New creates an Aggregator over adapters in priority order.
func New(adapters []core.Adapter, optFns ...func(o *Options)) *Aggregator {
	opts := Options{
		Deadline: 45 * time.Second,
		Budget:   4000,
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Aggregator{adapters: slices.Clone(adapters), opts: opts}
}

// Adapters returns the adapter names in priority order.
func (a *Aggregator) Adapters() []string {
	names := make([]string, len(a.adapters))
	for i, ad := range a.adapters {
		names[i] = ad.Name()
	}
	return names
}

type outcome struct {
	index   int
	results []core.SearchResult
	err     error
	elapsed time.Duration
}

// Run queries every adapter and returns the merged context. It never fails:
// adapters that error, panic or miss the deadline contribute nothing and are
// recorded as faults.
func (a *Aggregator) Run(ctx context.Context, query string, setting core.Setting) core.AggregatedContext {
	agg := core.AggregatedContext{Query: query, Setting: setting, Budget: a.opts.Budget}
	if len(a.adapters) == 0 {
		return agg
	}

	batchCtx := ctx
	if a.opts.Deadline > 0 {
		var cancel context.CancelFunc
		batchCtx, cancel = context.WithTimeout(ctx, a.opts.Deadline)
		defer cancel()
	}

	// Buffered so late adapters never block after the batch is abandoned.
	outcomes := make(chan outcome, len(a.adapters))
	for i, ad := range a.adapters {
		go func(i int, ad core.Adapter) {
			start := time.Now()
			defer func() {
				if r := recover(); r != nil {
					outcomes <- outcome{index: i, err: fmt.Errorf("adapter panicked: %v", r), elapsed: time.Since(start)}
				}
			}()
			res, err := ad.Search(batchCtx, query, setting)
			outcomes <- outcome{index: i, results: res, err: err, elapsed: time.Since(start)}
		}(i, ad)
	}

	contributions := make([][]core.SearchResult, len(a.adapters))
	reported := make([]bool, len(a.adapters))
	faults := make([]*core.Fault, len(a.adapters))

collect:
	for received := 0; received < len(a.adapters); received++ {
		select {
		case o := <-outcomes:
			reported[o.index] = true
			name := a.adapters[o.index].Name()
			if o.err != nil {
				err := adapter.Classify(batchCtx, name, o.err)
				kind := core.KindOf(err)
				if ctx.Err() != nil {
					kind = core.KindCancelled
				}
				faults[o.index] = &core.Fault{Adapter: name, Kind: kind, Message: err.Error()}
				a.opts.Logger.Warn("adapter contributed nothing", "adapter", name, "kind", kind, "duration", o.elapsed, "error", o.err)
				continue
			}
			contributions[o.index] = o.results
			a.opts.Logger.Debug("adapter contributed", "adapter", name, "results", len(o.results), "duration", o.elapsed)
		case <-batchCtx.Done():
			break collect
		}
	}

	for i, ok := range reported {
		if ok {
			continue
		}
		name := a.adapters[i].Name()
		kind, msg := core.KindAdapterTimeout, "batch deadline reached before the adapter answered"
		if ctx.Err() != nil {
			kind, msg = core.KindCancelled, "batch cancelled before the adapter answered"
		}
		faults[i] = &core.Fault{Adapter: name, Kind: kind, Message: msg}
		a.opts.Logger.Warn("adapter missed the batch deadline", "adapter", name, "kind", kind)
	}

	for _, f := range faults {
		if f == nil {
			continue
		}
		agg.Faults = append(agg.Faults, *f)
		if a.opts.OnFault != nil {
			a.opts.OnFault(ctx, *f)
		}
	}

	agg.Results = a.merge(contributions)
	a.opts.Logger.Info("aggregation finished", "query", query, "setting", setting, "results", len(agg.Results), "faults", len(agg.Faults))

	return agg
}

// merge deduplicates contributions by key, keeping the highest score with
// ties going to the higher priority adapter and then the earlier position,
// and orders the survivors by the same criteria.
func (a *Aggregator) merge(contributions [][]core.SearchResult) []core.SearchResult {
	var merged []core.SearchResult
	index := map[string]int{}

	for priority, results := range contributions {
		name := a.adapters[priority].Name()
		for position, r := range results {
			if strings.TrimSpace(r.Snippet) == "" {
				continue
			}
			if r.Source == "" {
				r.Source = name
			}
			r.Priority = priority
			r.Position = position
			if r.DedupKey == "" {
				r.DedupKey = DedupKey(r.Title, r.URL, r.Snippet)
			}

			if j, ok := index[r.DedupKey]; ok {
				if compareResults(r, merged[j]) < 0 {
					merged[j] = r
				}
				continue
			}
			index[r.DedupKey] = len(merged)
			merged = append(merged, r)
		}
	}

	slices.SortFunc(merged, compareResults)
	return merged
}

// compareResults orders by descending score, then ascending adapter
// priority, then ascending position.
func compareResults(x, y core.SearchResult) int {
	if c := cmp.Compare(y.Score, x.Score); c != 0 {
		return c
	}
	if c := cmp.Compare(x.Priority, y.Priority); c != 0 {
		return c
	}
	return cmp.Compare(x.Position, y.Position)
}
