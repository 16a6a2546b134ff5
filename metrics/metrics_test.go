package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanuguru/Med-Procedure/adapter"
	"github.com/nanuguru/Med-Procedure/core"
	"github.com/nanuguru/Med-Procedure/engine"
	"github.com/nanuguru/Med-Procedure/internal/testutil"
)

func fire(t *testing.T, cm *engine.CallbackManager, typ engine.CallbackType, cc *engine.CallbackContext) {
	t.Helper()
	require.NoError(t, cm.ExecuteCallbacks(context.Background(), typ, cc))
}

func TestCollector_Transitions(t *testing.T) {
	c := NewCollector()
	cm := engine.NewCallbackManager()
	c.Register(cm)

	change := func(from, to core.SessionStatus, kind core.ErrorKind) {
		fire(t, cm, engine.CallbackOnStateChange, &engine.CallbackContext{From: from, To: to, ErrorKind: kind})
	}
	change("", core.StatusProcessing, "")
	change("", core.StatusProcessing, "")
	change("", core.StatusProcessing, "")
	change(core.StatusProcessing, core.StatusPaused, "")
	change(core.StatusProcessing, core.StatusCompleted, "")

	snap := c.Snapshot()
	assert.EqualValues(t, 3, snap.TotalRequests)
	assert.EqualValues(t, 1, snap.ActiveSessions)
	assert.EqualValues(t, 1, snap.PausedSessions)
	assert.EqualValues(t, 1, snap.SuccessfulRequests)

	change(core.StatusPaused, core.StatusError, core.KindCancelled)
	change(core.StatusProcessing, core.StatusError, core.KindInsufficientContent)

	snap = c.Snapshot()
	assert.EqualValues(t, 0, snap.ActiveSessions)
	assert.EqualValues(t, 0, snap.PausedSessions)
	assert.EqualValues(t, 1, snap.CancelledRequests)
	assert.EqualValues(t, 1, snap.FailedRequests)
}

func TestCollector_FaultsRetriesAndStages(t *testing.T) {
	c := NewCollector()
	cm := engine.NewCallbackManager()
	c.Register(cm)

	fire(t, cm, engine.CallbackAdapterFault, &engine.CallbackContext{Fault: &core.Fault{Adapter: "groq", Kind: core.KindAdapterTimeout}})
	fire(t, cm, engine.CallbackAdapterFault, &engine.CallbackContext{Fault: &core.Fault{Adapter: "ddg", Kind: core.KindAdapterTimeout}})
	fire(t, cm, engine.CallbackRetry, &engine.CallbackContext{Retries: 1})
	fire(t, cm, engine.CallbackAfterStage, &engine.CallbackContext{Stage: core.StepAggregate, Duration: 10 * time.Millisecond})
	fire(t, cm, engine.CallbackAfterStage, &engine.CallbackContext{Stage: core.StepAggregate, Duration: 30 * time.Millisecond, Err: errors.New("x")})

	snap := c.Snapshot()
	assert.Equal(t, map[string]int64{"AdapterTimeout": 2}, snap.AdapterFaults)
	assert.EqualValues(t, 1, snap.ValidationRetries)
	assert.Equal(t, StageSnapshot{Count: 2, Errors: 1, AvgDurationMs: 20}, snap.Stages["aggregate"])
}

func TestCollector_WithEngine(t *testing.T) {
	c := NewCollector()
	eng := engine.New(func(o *engine.Options) {
		o.Adapters = []core.Adapter{adapter.NewMock("groq", testutil.NewResultBuilder("groq").Snippet(testutil.WoundDressing().Build()).Build())}
	})
	c.Register(eng.Callbacks())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := eng.Start(ctx, "wound dressing", core.SettingHospital)
	require.NoError(t, err)
	_, err = eng.Wait(ctx, s.ID)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return c.Snapshot().SuccessfulRequests == 1 }, time.Second, 5*time.Millisecond)
	snap := c.Snapshot()
	assert.EqualValues(t, 1, snap.TotalRequests)
	assert.EqualValues(t, 0, snap.ActiveSessions)
	assert.Len(t, snap.Stages, 4)
}
