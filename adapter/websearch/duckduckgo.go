package websearch

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nanuguru/Med-Procedure/adapter"
	"github.com/nanuguru/Med-Procedure/core"
)

// DuckDuckGoEndpoint is the public instant answer API.
const DuckDuckGoEndpoint = "https://api.duckduckgo.com/"

// DuckDuckGoOptions configure the DuckDuckGo adapter.
type DuckDuckGoOptions struct {
	Endpoint   string
	MaxResults int
	HTTPClient *http.Client
}

// DuckDuckGo searches the DuckDuckGo instant answer API.
type DuckDuckGo struct {
	opts DuckDuckGoOptions
}

// NewDuckDuckGo creates the adapter.
func NewDuckDuckGo(optFns ...func(o *DuckDuckGoOptions)) *DuckDuckGo {
	opts := DuckDuckGoOptions{
		Endpoint:   DuckDuckGoEndpoint,
		MaxResults: 5,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = defaultHTTPClient(30 * time.Second)
	}
	return &DuckDuckGo{opts: opts}
}

type ddgTopic struct {
	Text     string     `json:"Text"`
	FirstURL string     `json:"FirstURL"`
	Name     string     `json:"Name"`
	Topics   []ddgTopic `json:"Topics"`
}

type ddgResponse struct {
	Heading        string     `json:"Heading"`
	AbstractText   string     `json:"AbstractText"`
	AbstractURL    string     `json:"AbstractURL"`
	AbstractSource string     `json:"AbstractSource"`
	RelatedTopics  []ddgTopic `json:"RelatedTopics"`
}

// Name implements core.Adapter.
func (d *DuckDuckGo) Name() string { return "duckduckgo" }

// Search implements core.Adapter.
func (d *DuckDuckGo) Search(ctx context.Context, query string, setting core.Setting) ([]core.SearchResult, error) {
	params := url.Values{}
	params.Set("q", adapter.EnhanceQuery(query, setting))
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	var resp ddgResponse
	if err := getJSON(ctx, d.opts.HTTPClient, d.Name(), d.opts.Endpoint, params, &resp); err != nil {
		return nil, err
	}

	var results []core.SearchResult
	if text := strings.TrimSpace(resp.AbstractText); text != "" {
		results = append(results, core.SearchResult{
			Source:  d.Name(),
			Title:   firstNonEmpty(resp.Heading, resp.AbstractSource),
			URL:     resp.AbstractURL,
			Snippet: text,
		})
	}
	for _, t := range flattenTopics(resp.RelatedTopics) {
		title, _, _ := strings.Cut(t.Text, " - ")
		results = append(results, core.SearchResult{
			Source:  d.Name(),
			Title:   strings.TrimSpace(title),
			URL:     t.FirstURL,
			Snippet: strings.TrimSpace(t.Text),
		})
	}

	return limitResults(results, d.opts.MaxResults), nil
}

func flattenTopics(topics []ddgTopic) []ddgTopic {
	var out []ddgTopic
	for _, t := range topics {
		if len(t.Topics) > 0 {
			out = append(out, flattenTopics(t.Topics)...)
			continue
		}
		if strings.TrimSpace(t.Text) != "" {
			out = append(out, t)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
