package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanuguru/Med-Procedure/adapter"
	"github.com/nanuguru/Med-Procedure/core"
	"github.com/nanuguru/Med-Procedure/engine"
	"github.com/nanuguru/Med-Procedure/internal/testutil"
	"github.com/nanuguru/Med-Procedure/logging"
	"github.com/nanuguru/Med-Procedure/metrics"
	"github.com/nanuguru/Med-Procedure/session"
)

type fixture struct {
	eng       *engine.Engine
	store     core.SessionStore
	collector *metrics.Collector
	router    http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := session.NewInMemoryStore()
	collector := metrics.NewCollector()
	eng := engine.New(func(o *engine.Options) {
		o.SessionStore = store
		o.Adapters = []core.Adapter{
			adapter.NewMock("groq", testutil.NewResultBuilder("groq").
				Title("Wound dressing guide").URL("https://example.org/dressing").
				Snippet(testutil.WoundDressing().Build()).Score(0.9).Build()),
		}
	})
	collector.Register(eng.Callbacks())
	t.Cleanup(func() { _ = eng.Shutdown(context.Background()) })

	return &fixture{
		eng:       eng,
		store:     store,
		collector: collector,
		router:    NewRouter(eng, collector, "/api/v1", nil),
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestProcedures_StartAndPoll(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/procedures", `{"user_text":"wound dressing","setting":"hospital"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	started := decode[ProcedureResponse](t, rec)
	assert.NotEmpty(t, started.SessionID)
	assert.Equal(t, "wound dressing", started.ServiceName)
	assert.Equal(t, core.SettingHospital, started.Setting)
	assert.Equal(t, "processing", started.Status)
	assert.Empty(t, started.Procedures)
	assert.Equal(t, acceptedMessage, started.Message)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := f.eng.Wait(ctx, started.SessionID)
	require.NoError(t, err)

	rec = f.do(t, http.MethodGet, "/sessions/"+started.SessionID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Equal(t, "completed", raw["status"])
	assert.Equal(t, 1.0, raw["progress"])

	result, ok := raw["result"].(map[string]any)
	require.True(t, ok, "result missing: %s", rec.Body.String())
	procedures, ok := result["procedures"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, procedures["detailed_procedure"], "Clinical Procedure: wound dressing")
	assert.NotEmpty(t, procedures["references"])
}

func TestProcedures_RejectsInvalidInput(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{"bad setting", `{"user_text":"wound dressing","setting":"Clinic"}`},
		{"empty text", `{"user_text":"  ","setting":"Home"}`},
		{"malformed", `{"user_text":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/procedures", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decode[errorBody](t, rec)
			assert.Equal(t, string(core.KindInvalidRequest), body.Error.Kind)
			assert.NotEmpty(t, body.Error.Message)
		})
	}
	assert.Equal(t, 0, f.store.Count())
}

func TestSessions_NotFound(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/sessions/missing", "/sessions/missing/pause"} {
		method := http.MethodGet
		if strings.HasSuffix(path, "pause") {
			method = http.MethodPost
		}
		rec := f.do(t, method, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, string(core.KindNotFound), decode[errorBody](t, rec).Error.Kind)
	}
}

func TestSessions_PauseCompletedConflicts(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Create(testutil.NewSessionBuilder("done").
		Completed(&core.ProcedureDocument{ServiceName: "wound dressing"}).Build()))

	rec := f.do(t, http.MethodPost, "/sessions/done/pause", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(core.KindInvalidState), decode[errorBody](t, rec).Error.Kind)

	rec = f.do(t, http.MethodPost, "/sessions/done/cancel", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSessions_ResumePaused(t *testing.T) {
	f := newFixture(t)
	cp := core.Checkpoint{
		Query:   "wound dressing",
		Context: core.NewCompactedContext("wound dressing", core.SettingHospital),
	}
	require.NoError(t, f.store.Create(testutil.NewSessionBuilder("parked").Paused(cp).Build()))

	rec := f.do(t, http.MethodGet, "/sessions/parked", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, core.StatusPaused, decode[SessionStatusResponse](t, rec).Status)

	rec = f.do(t, http.MethodPost, "/sessions/parked/resume", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, SessionActionResponse{Status: "resumed", SessionID: "parked"}, decode[SessionActionResponse](t, rec))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	final, err := f.eng.Wait(ctx, "parked")
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, final.Status)
}

func TestSessions_PauseAndCancelProcessing(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Create(testutil.NewSessionBuilder("live").Progress(0.33).Build()))

	rec := f.do(t, http.MethodPost, "/sessions/live/pause", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, SessionActionResponse{Status: "paused", SessionID: "live"}, decode[SessionActionResponse](t, rec))

	rec = f.do(t, http.MethodPost, "/sessions/live/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/sessions/live", "")
	status := decode[SessionStatusResponse](t, rec)
	assert.Equal(t, core.StatusError, status.Status)
	require.NotNil(t, status.Error)
	assert.Equal(t, core.KindCancelled, status.Error.Kind)
	assert.Nil(t, status.Result)
}

func TestRouter_PrefixHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/health", "/api/v1/health"} {
		rec := f.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	}

	rec := f.do(t, http.MethodPost, "/api/v1/procedures", `{"user_text":"wound dressing","setting":"Home"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	id := decode[ProcedureResponse](t, rec).SessionID

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := f.eng.Wait(ctx, id)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		rec := f.do(t, http.MethodGet, "/metrics", "")
		var snap metrics.Snapshot
		if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
			return false
		}
		return snap.TotalRequests == 1 && snap.SuccessfulRequests == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMiddleware_CORSAndRequestID(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodOptions, "/procedures", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc123")
	out := httptest.NewRecorder()
	f.router.ServeHTTP(out, req)
	assert.Equal(t, "abc123", out.Header().Get("X-Request-ID"))
}

func TestMiddleware_RecoveryReturns500(t *testing.T) {
	h := Recovery(logging.NoOpLogger{})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal", decode[errorBody](t, rec).Error.Kind)
}
