package memory

import (
	"context"
	"fmt"
	"math"

	"github.com/nanuguru/Med-Procedure/core"
)

// Metadata keys written by the engine when it stores a completed procedure.
const (
	MetaServiceName = "service_name"
	MetaSetting     = "setting"
	MetaSessionID   = "session_id"
)

// AdapterName is the source name of recalled results.
const AdapterName = "memory"

// Adapter recalls stored procedures as search results.
type Adapter struct {
	bank          *Bank
	limit         int
	minImportance float64
}

// NewAdapter wraps bank as a core.Adapter returning at most limit results.
func NewAdapter(bank *Bank, limit int) *Adapter {
	if limit <= 0 {
		limit = 3
	}
	return &Adapter{bank: bank, limit: limit, minImportance: 0.5}
}

// Name implements core.Adapter.
func (a *Adapter) Name() string { return AdapterName }

// Search implements core.Adapter. Only memories stored for the same setting
// are recalled.
func (a *Adapter) Search(ctx context.Context, query string, setting core.Setting) ([]core.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []core.SearchResult
	for _, r := range a.bank.Search(query, 0, a.minImportance) {
		if s, ok := r.Metadata[MetaSetting].(string); ok && s != setting.String() {
			continue
		}
		title, _ := r.Metadata[MetaServiceName].(string)
		out = append(out, core.SearchResult{
			Source:  AdapterName,
			Title:   fmt.Sprintf("Stored procedure: %s", title),
			Snippet: r.Content,
			// Recalled material never outranks live sources.
			Score: math.Min(0.5, 0.1*r.Relevance+0.2*r.Importance),
		})
		if len(out) == a.limit {
			break
		}
	}
	return out, nil
}
