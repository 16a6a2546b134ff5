package websearch

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nanuguru/Med-Procedure/adapter"
	"github.com/nanuguru/Med-Procedure/core"
)

// SerpAPIEndpoint is SerpAPI's search endpoint.
const SerpAPIEndpoint = "https://serpapi.com/search.json"

// SerpAPIOptions configure the SerpAPI adapter.
type SerpAPIOptions struct {
	APIKey     string
	Endpoint   string
	Engine     string
	MaxResults int
	HTTPClient *http.Client
}

// SerpAPI searches Google through SerpAPI.
type SerpAPI struct {
	opts SerpAPIOptions
}

// NewSerpAPI creates the adapter.
func NewSerpAPI(apiKey string, optFns ...func(o *SerpAPIOptions)) *SerpAPI {
	opts := SerpAPIOptions{
		APIKey:     apiKey,
		Endpoint:   SerpAPIEndpoint,
		Engine:     "google",
		MaxResults: 5,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = defaultHTTPClient(30 * time.Second)
	}
	return &SerpAPI{opts: opts}
}

type serpResponse struct {
	Error          string `json:"error"`
	OrganicResults []struct {
		Position int    `json:"position"`
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
	} `json:"organic_results"`
}

// Name implements core.Adapter.
func (s *SerpAPI) Name() string { return "serpapi" }

// Search implements core.Adapter.
func (s *SerpAPI) Search(ctx context.Context, query string, setting core.Setting) ([]core.SearchResult, error) {
	if s.opts.APIKey == "" {
		return nil, errMissing(s.Name(), "SERPAPI_API_KEY")
	}

	params := url.Values{}
	params.Set("q", adapter.EnhanceQuery(query, setting))
	params.Set("engine", s.opts.Engine)
	params.Set("num", strconv.Itoa(s.opts.MaxResults))
	params.Set("api_key", s.opts.APIKey)

	var resp serpResponse
	if err := getJSON(ctx, s.opts.HTTPClient, s.Name(), s.opts.Endpoint, params, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, core.NewAdapterUnavailable(s.Name(), "%s", resp.Error)
	}

	results := make([]core.SearchResult, 0, len(resp.OrganicResults))
	for _, r := range resp.OrganicResults {
		snippet := strings.TrimSpace(r.Snippet)
		if snippet == "" {
			continue
		}
		results = append(results, core.SearchResult{
			Source:  s.Name(),
			Title:   strings.TrimSpace(r.Title),
			URL:     r.Link,
			Snippet: snippet,
		})
	}

	return limitResults(results, s.opts.MaxResults), nil
}
