package core

import (
	"context"
	"unicode/utf8"
)

// Adapter is the uniform capability interface wrapping one search or
// language-model backend. Implementations must be safe for concurrent use and
// must not carry partial state from one call into the next.
type Adapter interface {
	// Name identifies the adapter in results, faults and logs.
	Name() string
	// Search returns the backend's contribution for query in the given
	// setting. Failures are reported as *Error with an Adapter* kind.
	Search(ctx context.Context, query string, setting Setting) ([]SearchResult, error)
}

// SearchResult is one item of adapter output.
type SearchResult struct {
	Source   string  `json:"source"`
	Title    string  `json:"title,omitempty"`
	URL      string  `json:"url,omitempty"`
	Snippet  string  `json:"snippet"`
	Score    float64 `json:"score"`
	DedupKey string  `json:"dedup_key"`
	// Priority is the index of the producing adapter in the configured order.
	Priority int `json:"priority"`
	// Position is the item's index within its adapter's output.
	Position int `json:"position"`
}

// Fault records an adapter that contributed nothing to a batch.
type Fault struct {
	Adapter string    `json:"adapter"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// AggregatedContext is the merged, deduplicated and ordered output of one
// aggregation pass.
type AggregatedContext struct {
	Query   string         `json:"query"`
	Setting Setting        `json:"setting"`
	Results []SearchResult `json:"results"`
	Faults  []Fault        `json:"faults,omitempty"`
	// Budget is the size ceiling downstream compaction works against.
	Budget int `json:"budget"`
}

// Size is the total rune count of all result snippets.
func (a AggregatedContext) Size() int {
	n := 0
	for _, r := range a.Results {
		n += utf8.RuneCountInString(r.Snippet)
	}
	return n
}

// Empty reports whether the pass produced no results.
func (a AggregatedContext) Empty() bool { return len(a.Results) == 0 }

// Clone returns a copy with independent slices.
func (a AggregatedContext) Clone() AggregatedContext {
	a.Results = append([]SearchResult(nil), a.Results...)
	a.Faults = append([]Fault(nil), a.Faults...)
	return a
}
