package testutil

import (
	"github.com/nanuguru/Med-Procedure/core"
)

// SessionBuilder helps construct sessions with fluent chaining for tests.
// Example:
//
//	sess := NewSessionBuilder("sess-1").Setting(core.SettingHome).Progress(0.33).Build()
type SessionBuilder struct {
	s core.Session
}

// NewSessionBuilder creates a builder for a processing Hospital session for
// "wound dressing" with the given id.
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{s: core.NewSession(id, "wound dressing", core.SettingHospital)}
}

// Service sets the requested service name (chainable).
func (b *SessionBuilder) Service(name string) *SessionBuilder { b.s.ServiceName = name; return b }

// Setting sets the care setting (chainable).
func (b *SessionBuilder) Setting(s core.Setting) *SessionBuilder { b.s.Setting = s; return b }

// Progress sets the progress fraction (chainable).
func (b *SessionBuilder) Progress(p float64) *SessionBuilder { b.s.Progress = p; return b }

// Paused parks the session with cp (chainable).
func (b *SessionBuilder) Paused(cp core.Checkpoint) *SessionBuilder {
	b.s.Status = core.StatusProcessing
	b.s.PauseRequested = true
	b.s.Park(cp)
	return b
}

// Completed finishes the session with doc (chainable).
func (b *SessionBuilder) Completed(doc *core.ProcedureDocument) *SessionBuilder {
	b.s.Status = core.StatusProcessing
	_ = b.s.Complete(doc)
	return b
}

// Failed moves the session to error (chainable).
func (b *SessionBuilder) Failed(kind core.ErrorKind, msg string) *SessionBuilder {
	b.s.Status = core.StatusProcessing
	_ = b.s.Fail(kind, msg)
	return b
}

// Build returns the session.
func (b *SessionBuilder) Build() core.Session {
	return b.s.Clone()
}
