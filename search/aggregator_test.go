package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanuguru/Med-Procedure/adapter"
	"github.com/nanuguru/Med-Procedure/core"
)

func result(title, text string, score float64) core.SearchResult {
	return core.SearchResult{Title: title, Snippet: text, Score: score}
}

func TestAggregator_OrderingAndDedup(t *testing.T) {
	first := adapter.NewMock("first",
		result("A", "alpha", 0.5),
		result("B", "beta", 0.9),
		result("C", "gamma", 0.7),
	)
	second := adapter.NewMock("second",
		result("D", "delta", 0.7),
		result("A", "alpha", 0.8), // duplicate of first/A with a higher score
		result("B", "beta", 0.9),  // duplicate with equal score: priority keeps first
	)

	agg := New([]core.Adapter{first, second}).Run(context.Background(), "q", core.SettingHospital)

	require.Len(t, agg.Results, 4)
	assert.Empty(t, agg.Faults)

	got := make([]string, len(agg.Results))
	for i, r := range agg.Results {
		got[i] = r.Title + "@" + r.Source
	}
	assert.Equal(t, []string{"B@first", "A@second", "C@first", "D@second"}, got)

	seen := map[string]bool{}
	for i, r := range agg.Results {
		assert.False(t, seen[r.DedupKey], "duplicate key %s", r.DedupKey)
		seen[r.DedupKey] = true
		if i > 0 {
			assert.LessOrEqual(t, compareResults(agg.Results[i-1], r), 0)
		}
	}
}

func TestAggregator_DedupByURL(t *testing.T) {
	a := adapter.NewMock("a", core.SearchResult{Title: "Wound care", URL: "https://www.example.org/wound/", Snippet: "one", Score: 0.4})
	b := adapter.NewMock("b", core.SearchResult{Title: "Wound Care!", URL: "http://example.org/wound?ref=x", Snippet: "two", Score: 0.6})

	agg := New([]core.Adapter{a, b}).Run(context.Background(), "q", core.SettingHome)
	require.Len(t, agg.Results, 1)
	assert.Equal(t, "b", agg.Results[0].Source)
}

func TestAggregator_AllAdaptersFail(t *testing.T) {
	var mu sync.Mutex
	var sunk []core.Fault

	ag := New([]core.Adapter{
		adapter.NewMock("down").SetError(errors.New("connection refused")),
		adapter.NewMock("limited").SetError(core.NewAdapterRateLimited("limited", "429")),
		adapter.Func{AdapterName: "panics", Fn: func(context.Context, string, core.Setting) ([]core.SearchResult, error) {
			panic("boom")
		}},
	}, func(o *Options) {
		o.OnFault = func(_ context.Context, f core.Fault) {
			mu.Lock()
			defer mu.Unlock()
			sunk = append(sunk, f)
		}
	})

	agg := ag.Run(context.Background(), "q", core.SettingHome)
	assert.True(t, agg.Empty())
	require.Len(t, agg.Faults, 3)
	assert.Equal(t, core.KindAdapterUnavailable, agg.Faults[0].Kind)
	assert.Equal(t, core.KindAdapterRateLimited, agg.Faults[1].Kind)
	assert.Equal(t, core.KindAdapterUnavailable, agg.Faults[2].Kind)
	assert.Equal(t, agg.Faults, sunk)
}

func TestAggregator_DeadlineIsBestEffort(t *testing.T) {
	fast := adapter.NewMock("fast", result("A", "alpha", 0.5))
	slow := adapter.NewMock("slow", result("B", "beta", 0.9)).SetDelay(5 * time.Second)

	ag := New([]core.Adapter{slow, fast}, func(o *Options) { o.Deadline = 50 * time.Millisecond })

	start := time.Now()
	agg := ag.Run(context.Background(), "q", core.SettingHospital)
	assert.Less(t, time.Since(start), 2*time.Second)

	require.Len(t, agg.Results, 1)
	assert.Equal(t, "fast", agg.Results[0].Source)
	require.Len(t, agg.Faults, 1)
	assert.Equal(t, "slow", agg.Faults[0].Adapter)
	assert.Equal(t, core.KindAdapterTimeout, agg.Faults[0].Kind)
}

func TestAggregator_Deterministic(t *testing.T) {
	build := func() *Aggregator {
		return New([]core.Adapter{
			adapter.NewMock("a", result("x", "one", 0.5), result("y", "two", 0.5)),
			adapter.NewMock("b", result("z", "three", 0.5), result("x", "one", 0.5)),
		})
	}
	first := build().Run(context.Background(), "q", core.SettingHome)
	second := build().Run(context.Background(), "q", core.SettingHome)
	assert.Equal(t, first, second)
	assert.Len(t, first.Results, 3)
}

func TestAggregator_SkipsBlankSnippetsAndCarriesBudget(t *testing.T) {
	ag := New([]core.Adapter{adapter.NewMock("a", result("blank", "   ", 1), result("ok", "text", 0.1))},
		func(o *Options) { o.Budget = 1234 })

	agg := ag.Run(context.Background(), "q", core.SettingHome)
	require.Len(t, agg.Results, 1)
	assert.Equal(t, 1234, agg.Budget)
	assert.Equal(t, []string{"a"}, ag.Adapters())
}

func TestNormalizeAndDedupKey(t *testing.T) {
	assert.Equal(t, "wound care 101", Normalize("  Wound-Care: 101!! "))
	assert.Equal(t, DedupKey("Wound care", "", "Clean it."), DedupKey("wound  CARE", "", "clean it"))
	assert.NotEqual(t, DedupKey("a", "", "x"), DedupKey("a", "", "y"))
	assert.Equal(t, DedupKey("", "https://example.org/a/", ""), DedupKey("other", "http://www.example.org/a", "z"))
}
