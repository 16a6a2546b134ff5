package engine

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/nanuguru/Med-Procedure/adapter"
	"github.com/nanuguru/Med-Procedure/core"
	"github.com/nanuguru/Med-Procedure/internal/testutil"
	"github.com/nanuguru/Med-Procedure/memory"
)

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func procedureAdapter(name, text string) *adapter.Mock {
	return adapter.NewMock(name, testutil.NewResultBuilder(name).Title(name+" guide").Snippet(text).Score(0.9).Build())
}

// gate blocks the first call of its adapter until released.
type gate struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	inner   core.Adapter
}

func newGate(inner core.Adapter) *gate {
	return &gate{entered: make(chan struct{}), release: make(chan struct{}), inner: inner}
}

func (g *gate) Name() string { return g.inner.Name() }

func (g *gate) Search(ctx context.Context, query string, setting core.Setting) ([]core.SearchResult, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.inner.Search(ctx, query, setting)
}

func TestEngine_HospitalRunCompletes(t *testing.T) {
	bank := memory.NewBank()
	eng := New(func(o *Options) {
		o.Adapters = []core.Adapter{
			procedureAdapter("groq", testutil.WoundDressing().Build()),
			adapter.NewMock("duckduckgo", testutil.NewResultBuilder("duckduckgo").
				Title("Wound care").URL("https://example.org/wound").
				Snippet("Wound care keeps a wound clean and protected.").Build()),
		}
		o.Memory = bank
	})

	s, err := eng.Start(context.Background(), "wound dressing", core.SettingHospital)
	require.NoError(t, err)
	assert.Equal(t, core.StatusProcessing, s.Status)
	assert.NotEmpty(t, s.ID)

	final, err := eng.Wait(waitCtx(t), s.ID)
	require.NoError(t, err)
	require.Equal(t, core.StatusCompleted, final.Status)
	assert.Equal(t, 1.0, final.Progress)
	assert.Nil(t, final.Error)
	require.NotNil(t, final.Result)

	doc := final.Result
	assert.Len(t, doc.Steps, 5)
	assert.Len(t, doc.Equipment, 3)
	assert.Equal(t, []string{"groq", "duckduckgo"}, doc.SourcesUsed)
	assert.Contains(t, doc.DetailedProcedure, "Setting: Hospital")
	require.NotNil(t, doc.Evaluation)
	assert.Greater(t, doc.Evaluation.Overall, 0.0)

	assert.Eventually(t, func() bool { return bank.Len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return eng.ActiveRuns() == 0 }, time.Second, 5*time.Millisecond)
}

func TestEngine_HomeSettingMismatchRetriesThenCompletes(t *testing.T) {
	text := testutil.WoundDressing().
		Steps("Call support staff to help reposition the patient.").
		Build()
	groq := procedureAdapter("groq", text)

	var retries atomic.Int32
	eng := New(func(o *Options) {
		o.Adapters = []core.Adapter{groq}
		o.Config.MaxRetries = 2
	})
	eng.Callbacks().RegisterCallback(NewFunctionCallback(CallbackRetry, func(_ context.Context, cc *CallbackContext) error {
		retries.Add(1)
		if assert.NotNil(t, cc.Verdict) {
			assert.False(t, cc.Verdict.Passed)
		}
		return nil
	}))

	s, err := eng.Start(context.Background(), "wound dressing", core.SettingHome)
	require.NoError(t, err)

	final, err := eng.Wait(waitCtx(t), s.ID)
	require.NoError(t, err)
	require.Equal(t, core.StatusCompleted, final.Status, "exhausted retries still synthesize")
	assert.EqualValues(t, 2, retries.Load())
	assert.Equal(t, 3, groq.Calls())

	for _, step := range final.Result.Steps {
		assert.NotContains(t, strings.ToLower(step.Text), "support staff")
	}
	assert.NotEmpty(t, final.Result.Adaptations)
}

func TestEngine_AllAdaptersFail(t *testing.T) {
	var faults atomic.Int32
	eng := New(func(o *Options) {
		o.Adapters = []core.Adapter{
			adapter.NewMock("groq").SetError(core.NewAdapterUnavailable("groq", "connection refused")),
			adapter.NewMock("duckduckgo").SetError(core.NewAdapterRateLimited("duckduckgo", "slow down")),
		}
		o.Config.MaxRetries = 1
	})
	eng.Callbacks().RegisterCallback(NewFunctionCallback(CallbackAdapterFault, func(_ context.Context, cc *CallbackContext) error {
		faults.Add(1)
		return nil
	}))

	s, err := eng.Start(context.Background(), "wound dressing", core.SettingHospital)
	require.NoError(t, err)

	final, err := eng.Wait(waitCtx(t), s.ID)
	require.NoError(t, err)
	require.Equal(t, core.StatusError, final.Status)
	require.NotNil(t, final.Error)
	assert.Equal(t, core.KindInsufficientContent, final.Error.Kind)
	assert.Nil(t, final.Result)
	assert.EqualValues(t, 4, faults.Load(), "two adapters over two passes")
}

func TestEngine_PauseCompletedSessionFails(t *testing.T) {
	eng := New(func(o *Options) {
		o.Adapters = []core.Adapter{procedureAdapter("groq", testutil.WoundDressing().Build())}
	})
	s, err := eng.Start(context.Background(), "wound dressing", core.SettingHospital)
	require.NoError(t, err)
	before, err := eng.Wait(waitCtx(t), s.ID)
	require.NoError(t, err)
	require.Equal(t, core.StatusCompleted, before.Status)

	_, err = eng.Pause(s.ID)
	assert.True(t, core.IsKind(err, core.KindInvalidState))
	_, err = eng.Resume(context.Background(), s.ID)
	assert.True(t, core.IsKind(err, core.KindInvalidState))

	after, err := eng.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestEngine_PauseResumeIsDeterministic(t *testing.T) {
	text := testutil.WoundDressing().Build()

	baselineEng := New(func(o *Options) { o.Adapters = []core.Adapter{procedureAdapter("groq", text)} })
	bs, err := baselineEng.Start(context.Background(), "wound dressing", core.SettingHome)
	require.NoError(t, err)
	baseline, err := baselineEng.Wait(waitCtx(t), bs.ID)
	require.NoError(t, err)
	require.Equal(t, core.StatusCompleted, baseline.Status)

	g := newGate(procedureAdapter("groq", text))
	var transitions []string
	var mu sync.Mutex
	eng := New(func(o *Options) { o.Adapters = []core.Adapter{g} })
	eng.Callbacks().RegisterCallback(NewFunctionCallback(CallbackOnStateChange, func(_ context.Context, cc *CallbackContext) error {
		mu.Lock()
		defer mu.Unlock()
		transitions = append(transitions, string(cc.From)+"->"+string(cc.To))
		return nil
	}))

	s, err := eng.Start(context.Background(), "wound dressing", core.SettingHome)
	require.NoError(t, err)
	<-g.entered

	pending, err := eng.Pause(s.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusProcessing, pending.Status, "pause waits for the step boundary")
	assert.True(t, pending.PauseRequested)

	close(g.release)
	paused, err := eng.Wait(waitCtx(t), s.ID)
	require.NoError(t, err)
	require.Equal(t, core.StatusPaused, paused.Status)
	assert.Equal(t, 0, eng.ActiveRuns())

	again, err := eng.Pause(s.ID)
	require.NoError(t, err, "pausing a paused session is a no-op")
	assert.Equal(t, core.StatusPaused, again.Status)

	resumed, err := eng.Resume(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusProcessing, resumed.Status)

	final, err := eng.Wait(waitCtx(t), s.ID)
	require.NoError(t, err)
	require.Equal(t, core.StatusCompleted, final.Status)
	assert.Equal(t, baseline.Result, final.Result)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(transitions) == 4
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"->processing", "processing->paused", "paused->processing", "processing->completed"}, transitions)
}

func TestEngine_ResumeWithdrawsPendingPause(t *testing.T) {
	g := newGate(procedureAdapter("groq", testutil.WoundDressing().Build()))
	eng := New(func(o *Options) { o.Adapters = []core.Adapter{g} })

	s, err := eng.Start(context.Background(), "wound dressing", core.SettingHospital)
	require.NoError(t, err)
	<-g.entered

	_, err = eng.Pause(s.ID)
	require.NoError(t, err)
	withdrawn, err := eng.Resume(context.Background(), s.ID)
	require.NoError(t, err)
	assert.False(t, withdrawn.PauseRequested)

	close(g.release)
	final, err := eng.Wait(waitCtx(t), s.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, final.Status)
}

func TestEngine_ProgressIsMonotonic(t *testing.T) {
	text := testutil.WoundDressing().Steps("Ask the charge nurse to sign off.").Build()

	var mu sync.Mutex
	var seen []float64
	var eng *Engine
	eng = New(func(o *Options) {
		o.Adapters = []core.Adapter{procedureAdapter("groq", text)}
		o.Config.MaxRetries = 2
	})
	eng.Callbacks().RegisterCallback(NewFunctionCallback(CallbackAfterStage, func(_ context.Context, cc *CallbackContext) error {
		s, err := eng.Get(cc.SessionID)
		if err != nil {
			return err
		}
		mu.Lock()
		seen = append(seen, s.Progress)
		mu.Unlock()
		return nil
	}))

	s, err := eng.Start(context.Background(), "wound dressing", core.SettingHome)
	require.NoError(t, err)
	final, err := eng.Wait(waitCtx(t), s.ID)
	require.NoError(t, err)
	require.Equal(t, core.StatusCompleted, final.Status)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.True(t, slices.IsSorted(seen), "progress went backwards: %v", seen)
	assert.Equal(t, 1.0, seen[len(seen)-1])
}

func TestEngine_Cancel(t *testing.T) {
	slow := adapter.NewMock("groq").SetDelay(time.Minute)
	eng := New(func(o *Options) { o.Adapters = []core.Adapter{slow} })

	s, err := eng.Start(context.Background(), "wound dressing", core.SettingHospital)
	require.NoError(t, err)

	cancelled, err := eng.Cancel(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusError, cancelled.Status)
	assert.Equal(t, core.KindCancelled, cancelled.Error.Kind)

	final, err := eng.Wait(waitCtx(t), s.ID)
	require.NoError(t, err)
	assert.Equal(t, core.KindCancelled, final.Error.Kind)

	assert.Eventually(t, func() bool { return eng.ActiveRuns() == 0 }, time.Second, 5*time.Millisecond)

	_, err = eng.Cancel(context.Background(), s.ID)
	assert.True(t, core.IsKind(err, core.KindInvalidState))
	_, err = eng.Resume(context.Background(), s.ID)
	assert.True(t, core.IsKind(err, core.KindInvalidState))
}

func TestEngine_StartRejectsInvalidInput(t *testing.T) {
	eng := New()

	_, err := eng.Start(context.Background(), "  ", core.SettingHome)
	assert.True(t, core.IsKind(err, core.KindInvalidRequest))

	_, err = eng.Start(context.Background(), "wound dressing", core.Setting("Clinic"))
	assert.True(t, core.IsKind(err, core.KindInvalidRequest))

	_, err = eng.Get("missing")
	assert.True(t, core.IsKind(err, core.KindNotFound))
	_, err = eng.Pause("missing")
	assert.True(t, core.IsKind(err, core.KindNotFound))
}

func TestEngine_BeforeStageErrorFailsRun(t *testing.T) {
	eng := New(func(o *Options) {
		o.Adapters = []core.Adapter{procedureAdapter("groq", testutil.WoundDressing().Build())}
	})
	var onError atomic.Int32
	eng.Callbacks().RegisterCallback(NewFunctionCallback(CallbackBeforeStage, func(_ context.Context, cc *CallbackContext) error {
		if cc.Stage == core.StepValidate {
			return errors.New("validation disabled")
		}
		return nil
	}))
	eng.Callbacks().RegisterCallback(NewFunctionCallback(CallbackOnError, func(context.Context, *CallbackContext) error {
		onError.Add(1)
		return nil
	}))

	s, err := eng.Start(context.Background(), "wound dressing", core.SettingHospital)
	require.NoError(t, err)
	final, err := eng.Wait(waitCtx(t), s.ID)
	require.NoError(t, err)

	require.Equal(t, core.StatusError, final.Status)
	assert.Equal(t, core.KindInternal, final.Error.Kind)
	assert.Contains(t, final.Error.Message, "validation disabled")
	assert.Equal(t, 0.33, final.Progress)
	assert.Eventually(t, func() bool { return onError.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestEngine_RecallsStoredProcedures(t *testing.T) {
	bank := memory.NewBank()
	eng := New(func(o *Options) {
		o.Adapters = []core.Adapter{procedureAdapter("groq", testutil.WoundDressing().Build())}
		o.Memory = bank
	})

	first, err := eng.Start(context.Background(), "wound dressing", core.SettingHome)
	require.NoError(t, err)
	_, err = eng.Wait(waitCtx(t), first.ID)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return bank.Len() == 1 }, time.Second, 5*time.Millisecond)

	second, err := eng.Start(context.Background(), "wound dressing", core.SettingHome)
	require.NoError(t, err)
	final, err := eng.Wait(waitCtx(t), second.ID)
	require.NoError(t, err)
	require.Equal(t, core.StatusCompleted, final.Status)
	assert.Contains(t, final.Result.SourcesUsed, memory.AdapterName)
}

func TestEngine_RecalledProcedureKeepsStepsStable(t *testing.T) {
	bank := memory.NewBank()
	eng := New(func(o *Options) {
		o.Adapters = []core.Adapter{procedureAdapter("groq", testutil.WoundDressing().Build())}
		o.Memory = bank
	})

	run := func() *core.ProcedureDocument {
		s, err := eng.Start(context.Background(), "wound dressing", core.SettingHospital)
		require.NoError(t, err)
		final, err := eng.Wait(waitCtx(t), s.ID)
		require.NoError(t, err)
		require.Equal(t, core.StatusCompleted, final.Status)
		return final.Result
	}

	first := run()
	require.NotEmpty(t, first.Adaptations)
	require.Eventually(t, func() bool { return bank.Len() == 1 }, time.Second, 5*time.Millisecond)

	stored := bank.Recent(1)[0].Content
	for _, a := range first.Adaptations {
		assert.NotContains(t, stored, a)
	}
	assert.NotContains(t, stored, "References")

	second := run()
	assert.Contains(t, second.SourcesUsed, memory.AdapterName)
	assert.Equal(t, first.Steps, second.Steps)
	assert.Equal(t, first.Equipment, second.Equipment)
	assert.Equal(t, first.Warnings, second.Warnings)
	for _, step := range second.Steps {
		assert.NotContains(t, first.Adaptations, step.Text)
	}
}

func TestEngine_TracesRunAndStages(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	eng := New(func(o *Options) {
		o.Adapters = []core.Adapter{procedureAdapter("groq", testutil.WoundDressing().Build())}
		o.TracerProvider = tp
	})
	s, err := eng.Start(context.Background(), "wound dressing", core.SettingHospital)
	require.NoError(t, err)
	_, err = eng.Wait(waitCtx(t), s.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		for _, span := range sr.Ended() {
			if span.Name() == "medprocedure.run" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	var names []string
	for _, span := range sr.Ended() {
		names = append(names, span.Name())
	}
	assert.Subset(t, names, []string{"stage.aggregate", "stage.compact", "stage.validate", "stage.synthesize"})
}

func TestEngine_Shutdown(t *testing.T) {
	eng := New(func(o *Options) { o.Adapters = []core.Adapter{adapter.NewMock("groq").SetDelay(time.Minute)} })
	s, err := eng.Start(context.Background(), "wound dressing", core.SettingHospital)
	require.NoError(t, err)

	require.NoError(t, eng.Shutdown(waitCtx(t)))
	assert.Equal(t, 0, eng.ActiveRuns())

	final, err := eng.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusError, final.Status)
	assert.Equal(t, core.KindCancelled, final.Error.Kind)
}
