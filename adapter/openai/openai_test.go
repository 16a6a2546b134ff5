package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanuguru/Med-Procedure/core"
)

var _ core.Adapter = (*Adapter)(nil)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(func(o *Options) {
		o.Name = "groq"
		o.Model = GroqModel
		o.APIKey = "test-key"
		o.BaseURL = srv.URL + "/"
		o.MaxRetries = 0
	})
}

func TestAdapter_Search(t *testing.T) {
	var gotModel string
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		_ = json.Unmarshal(body, &req)
		gotModel, _ = req["model"].(string)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "llama-3.3-70b-versatile",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "## Steps\n1. Wash hands"}}]
		}`))
	})

	res, err := a.Search(context.Background(), "wound dressing", core.SettingHospital)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "groq", res[0].Source)
	assert.Equal(t, "## Steps\n1. Wash hands", res[0].Snippet)
	assert.Equal(t, 0.9, res[0].Score)
	assert.Equal(t, GroqModel, gotModel)
}

func TestAdapter_RateLimited(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "slow down", "type": "rate_limit"}}`))
	})

	_, err := a.Search(context.Background(), "wound dressing", core.SettingHome)
	require.Error(t, err)
	assert.Equal(t, core.KindAdapterRateLimited, core.KindOf(err))
}

func TestAdapter_ServerError(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": {"message": "down"}}`))
	})

	_, err := a.Search(context.Background(), "wound dressing", core.SettingHome)
	assert.Equal(t, core.KindAdapterUnavailable, core.KindOf(err))
}

func TestNewGroqPreset(t *testing.T) {
	a := NewGroq("key")
	assert.Equal(t, "groq", a.Name())
	assert.Equal(t, GroqModel, a.opts.Model)
	assert.Equal(t, GroqBaseURL, a.opts.BaseURL)
}
