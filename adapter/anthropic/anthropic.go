// Package anthropic provides a capability adapter backed by the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/nanuguru/Med-Procedure/adapter"
	"github.com/nanuguru/Med-Procedure/core"
)

// Options configures the adapter (model id, temperature, max tokens, API key).
type Options struct {
	Name        string
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	Score       float64
	APIKey      string
	BaseURL     string
	MaxRetries  int
}

// Adapter turns one Messages API completion into a procedure search result.
type Adapter struct {
	client *anthropic.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Name:        "anthropic",
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.3,
		MaxTokens:   2000,
		Score:       0.9,
		MaxRetries:  2,
	}
}

// New creates an adapter with its own client.
func New(optFns ...func(o *Options)) *Adapter {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	clientOpts := []option.RequestOption{option.WithMaxRetries(opts.MaxRetries)}
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := anthropic.NewClient(clientOpts...)
	return &Adapter{client: &client, opts: opts}
}

// NewFromClient creates an adapter from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Adapter {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Adapter{client: client, opts: opts}
}

// Name implements core.Adapter.
func (a *Adapter) Name() string { return a.opts.Name }

// Search implements core.Adapter.
func (a *Adapter) Search(ctx context.Context, query string, setting core.Setting) ([]core.SearchResult, error) {
	prompt, err := adapter.RenderPrompt(query, setting)
	if err != nil {
		return nil, core.NewAdapterUnavailable(a.opts.Name, "render prompt: %v", err)
	}

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       a.opts.Model,
		MaxTokens:   a.opts.MaxTokens,
		Temperature: anthropic.Float(a.opts.Temperature),
		System:      []anthropic.TextBlockParam{{Text: adapter.SystemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, a.classify(ctx, err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type != "text" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(block.AsText().Text)
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return nil, nil
	}

	return []core.SearchResult{{
		Source:  a.opts.Name,
		Title:   fmt.Sprintf("%s procedure guide (%s)", strings.TrimSpace(query), a.opts.Model),
		Snippet: text,
		Score:   a.opts.Score,
	}}, nil
}

func (a *Adapter) classify(ctx context.Context, err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests:
			return core.NewAdapterRateLimited(a.opts.Name, "provider returned %d", apiErr.StatusCode)
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return core.NewAdapterTimeout(a.opts.Name, "provider returned %d", apiErr.StatusCode)
		default:
			return core.NewAdapterUnavailable(a.opts.Name, "provider returned %d", apiErr.StatusCode)
		}
	}
	return adapter.Classify(ctx, a.opts.Name, err)
}
