// Package websearch provides capability adapters for web search engines:
// the DuckDuckGo instant answer API and SerpAPI's Google engine. Both
// enhance the service name into a nursing procedure query and score results
// by rank.
package websearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/nanuguru/Med-Procedure/adapter"
	"github.com/nanuguru/Med-Procedure/core"
)

const userAgent = "med-procedure/1.0"

// getJSON performs a GET request and decodes a JSON body into out, mapping
// HTTP failures onto adapter error kinds.
func getJSON(ctx context.Context, client *http.Client, name, endpoint string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return core.NewAdapterUnavailable(name, "build request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return adapter.Classify(ctx, name, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return core.NewAdapterRateLimited(name, "search engine returned %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return core.NewAdapterUnavailable(name, "search engine returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return adapter.Classify(ctx, name, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return core.NewAdapterUnavailable(name, "decode response: %v", err)
	}
	return nil
}

func defaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func limitResults(results []core.SearchResult, n int) []core.SearchResult {
	if n > 0 && len(results) > n {
		results = results[:n]
	}
	for i := range results {
		results[i].Score = adapter.PositionScore(i, len(results))
	}
	return results
}

func errMissing(name, what string) error {
	return core.NewAdapterUnavailable(name, "%s is not configured", what)
}

