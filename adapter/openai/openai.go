// Package openai provides a capability adapter backed by an OpenAI compatible
// Chat Completions API. The same adapter serves OpenAI itself and Groq, whose
// endpoint speaks the OpenAI wire format.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/nanuguru/Med-Procedure/adapter"
	"github.com/nanuguru/Med-Procedure/core"
)

const (
	// GroqBaseURL is Groq's OpenAI compatible endpoint.
	GroqBaseURL = "https://api.groq.com/openai/v1/"
	// GroqModel is the default model requested from Groq.
	GroqModel = "llama-3.3-70b-versatile"
)

// Options configure the adapter. Fields mirror a subset of Chat Completion
// parameters; extend via functional options without breaking callers.
type Options struct {
	Name                string
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	// Score is the relevance assigned to the generated procedure.
	Score float64
	// APIKey and BaseURL are only used by New.
	APIKey     string
	BaseURL    string
	MaxRetries int
}

// Adapter turns a chat completion into a single procedure search result.
type Adapter struct {
	client *openai.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Name:                "openai",
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.3,
		MaxCompletionTokens: 2000,
		Score:               0.9,
		MaxRetries:          2,
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

	client := openai.NewClient(clientOpts...)
	return &Adapter{client: &client, opts: opts}
}

// NewGroq creates an adapter preset for Groq.
func NewGroq(apiKey string, optFns ...func(o *Options)) *Adapter {
	return New(append([]func(o *Options){func(o *Options) {
		o.Name = "groq"
		o.Model = GroqModel
		o.APIKey = apiKey
		o.BaseURL = GroqBaseURL
	}}, optFns...)...)
}

// NewFromClient creates an adapter from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Adapter {
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

	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(adapter.SystemPrompt),
			openai.UserMessage(prompt),
		},
		Model:               a.opts.Model,
		Temperature:         openai.Float(a.opts.Temperature),
		MaxCompletionTokens: openai.Int(a.opts.MaxCompletionTokens),
	})
	if err != nil {
		return nil, a.classify(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return nil, core.NewAdapterUnavailable(a.opts.Name, "no choices returned")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
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
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return core.NewAdapterRateLimited(a.opts.Name, "provider returned %d", apiErr.StatusCode)
		case apiErr.StatusCode == http.StatusRequestTimeout || apiErr.StatusCode == http.StatusGatewayTimeout:
			return core.NewAdapterTimeout(a.opts.Name, "provider returned %d", apiErr.StatusCode)
		default:
			return core.NewAdapterUnavailable(a.opts.Name, "provider returned %d", apiErr.StatusCode)
		}
	}
	return adapter.Classify(ctx, a.opts.Name, err)
}
