package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_PauseParkResume(t *testing.T) {
	s := NewSession("s1", "wound dressing", SettingHospital)
	assert.Equal(t, StatusProcessing, s.Status)

	require.NoError(t, s.RequestPause())
	assert.True(t, s.PauseRequested)
	assert.Equal(t, StatusProcessing, s.Status, "pause takes effect at a boundary")

	parked := s.Park(Checkpoint{Next: 2, Query: "wound dressing", Retries: 1})
	require.True(t, parked)
	assert.Equal(t, StatusPaused, s.Status)
	assert.False(t, s.PauseRequested)

	require.NoError(t, s.RequestPause(), "pause on paused session is a no-op")
	assert.Equal(t, StatusPaused, s.Status)

	cp, err := s.Resume()
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 2, cp.Next)
	assert.Equal(t, 1, cp.Retries)
	assert.Equal(t, StatusProcessing, s.Status)
	assert.Nil(t, s.Checkpoint)
}

func TestSession_ParkWithoutRequest(t *testing.T) {
	s := NewSession("s1", "x", SettingHome)
	assert.False(t, s.Park(Checkpoint{Next: 1}))
	assert.Equal(t, StatusProcessing, s.Status)
}

func TestSession_ResumeWithdrawsPendingPause(t *testing.T) {
	s := NewSession("s1", "x", SettingHome)
	require.NoError(t, s.RequestPause())

	cp, err := s.Resume()
	require.NoError(t, err)
	assert.Nil(t, cp)
	assert.False(t, s.PauseRequested)
	assert.False(t, s.Park(Checkpoint{}))
}

func TestSession_TerminalRejectsTransitions(t *testing.T) {
	s := NewSession("s1", "x", SettingHospital)
	require.NoError(t, s.Complete(&ProcedureDocument{ServiceName: "x"}))
	assert.Equal(t, 1.0, s.Progress)

	before := s.Clone()

	err := s.RequestPause()
	assert.True(t, errors.Is(err, ErrInvalidState))
	_, err = s.Resume()
	assert.True(t, IsKind(err, KindInvalidState))
	assert.Error(t, s.Cancel())
	assert.Error(t, s.Fail(KindInternal, "late"))

	assert.Equal(t, before, s)
}

func TestSession_ResultAndErrorExclusive(t *testing.T) {
	s := NewSession("s1", "x", SettingHospital)
	require.NoError(t, s.Fail(KindInsufficientContent, "nothing found"))
	assert.Equal(t, StatusError, s.Status)
	assert.Nil(t, s.Result)
	require.NotNil(t, s.Error)
	assert.Equal(t, KindInsufficientContent, s.Error.Kind)

	assert.Error(t, s.Complete(&ProcedureDocument{}))
}

func TestSession_CancelFromPaused(t *testing.T) {
	s := NewSession("s1", "x", SettingHome)
	require.NoError(t, s.RequestPause())
	require.True(t, s.Park(Checkpoint{Next: 1}))

	require.NoError(t, s.Cancel())
	assert.Equal(t, StatusError, s.Status)
	assert.Equal(t, KindCancelled, s.Error.Kind)
	assert.Nil(t, s.Checkpoint)
}

func TestSession_AdvanceIsMonotonic(t *testing.T) {
	s := NewSession("s1", "x", SettingHome)
	s.Advance(0.66)
	s.Advance(0.33)
	assert.Equal(t, 0.66, s.Progress)
	s.Advance(7)
	assert.Equal(t, 1.0, s.Progress)
}

func TestSession_CloneIsDeep(t *testing.T) {
	s := NewSession("s1", "x", SettingHome)
	require.NoError(t, s.Complete(&ProcedureDocument{Steps: []Step{{Number: 1, Text: "Wash hands"}}}))

	c := s.Clone()
	c.Result.Steps[0].Text = "changed"
	assert.Equal(t, "Wash hands", s.Result.Steps[0].Text)
}
