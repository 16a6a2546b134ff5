package core

import (
	"time"
)

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	StatusProcessing SessionStatus = "processing"
	StatusPaused     SessionStatus = "paused"
	StatusCompleted  SessionStatus = "completed"
	StatusError      SessionStatus = "error"
)

// Terminal reports whether the status accepts no further transitions.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// ErrorRecord is the structured failure stored on a session.
type ErrorRecord struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Session is the unit of long-running, pausable request state.
//
// Contract:
//   - Status starts at processing; completed and error are terminal
//   - processing and paused may cycle through RequestPause/Park and Resume
//   - Result is set iff Status is completed, Error iff Status is error
//   - Progress never decreases
//
// Session values carry no lock. A SessionStore serializes the transition
// methods per session id and hands out clones.
type Session struct {
	ID          string             `json:"session_id"`
	ServiceName string             `json:"service_name"`
	Setting     Setting            `json:"setting"`
	Status      SessionStatus      `json:"status"`
	Progress    float64            `json:"progress"`
	Result      *ProcedureDocument `json:"result,omitempty"`
	Error       *ErrorRecord       `json:"error,omitempty"`
	Created     time.Time          `json:"created"`
	Updated     time.Time          `json:"updated"`

	// PauseRequested marks a pause that takes effect at the next step boundary.
	PauseRequested bool `json:"pause_requested,omitempty"`
	// Checkpoint is set while the session is paused.
	Checkpoint *Checkpoint `json:"-"`
}

// NewSession creates a processing session.
func NewSession(id, serviceName string, setting Setting) Session {
	now := time.Now()
	return Session{
		ID:          id,
		ServiceName: serviceName,
		Setting:     setting,
		Status:      StatusProcessing,
		Created:     now,
		Updated:     now,
	}
}

// RequestPause records a pause request. It is a no-op on a paused session
// and fails with InvalidState on a terminal one.
func (s *Session) RequestPause() error {
	switch s.Status {
	case StatusProcessing:
		s.PauseRequested = true
		return nil
	case StatusPaused:
		return nil
	}
	return NewInvalidState("session %s is %s and cannot be paused", s.ID, s.Status)
}

// Park moves a processing session with a pending pause request to paused,
// storing cp. It reports whether the session was parked.
func (s *Session) Park(cp Checkpoint) bool {
	if s.Status != StatusProcessing || !s.PauseRequested {
		return false
	}
	s.Status = StatusPaused
	s.PauseRequested = false
	s.Checkpoint = &cp
	return true
}

// Resume moves a paused session back to processing and returns the stored
// checkpoint. On a processing session it withdraws a pending pause request
// and returns nil. Terminal sessions fail with InvalidState.
func (s *Session) Resume() (*Checkpoint, error) {
	switch s.Status {
	case StatusPaused:
		cp := s.Checkpoint
		if cp == nil {
			cp = &Checkpoint{}
		}
		s.Status = StatusProcessing
		s.Checkpoint = nil
		return cp, nil
	case StatusProcessing:
		s.PauseRequested = false
		return nil, nil
	}
	return nil, NewInvalidState("session %s is %s and cannot be resumed", s.ID, s.Status)
}

// Advance raises progress to p. Lower values are ignored.
func (s *Session) Advance(p float64) {
	p = min(max(p, 0), 1)
	if p > s.Progress {
		s.Progress = p
	}
}

// Complete stores the result and finishes the session.
func (s *Session) Complete(doc *ProcedureDocument) error {
	if s.Status != StatusProcessing {
		return NewInvalidState("session %s is %s and cannot complete", s.ID, s.Status)
	}
	s.Status = StatusCompleted
	s.Progress = 1.0
	s.Result = doc
	s.Error = nil
	s.PauseRequested = false
	s.Checkpoint = nil
	return nil
}

// Fail moves a processing session to error.
func (s *Session) Fail(kind ErrorKind, message string) error {
	if s.Status != StatusProcessing {
		return NewInvalidState("session %s is %s and cannot fail", s.ID, s.Status)
	}
	s.setError(kind, message)
	return nil
}

// Cancel terminates a processing or paused session.
func (s *Session) Cancel() error {
	if s.Status.Terminal() {
		return NewInvalidState("session %s is %s and cannot be cancelled", s.ID, s.Status)
	}
	s.setError(KindCancelled, "session cancelled by caller")
	return nil
}

func (s *Session) setError(kind ErrorKind, message string) {
	s.Status = StatusError
	s.Error = &ErrorRecord{Kind: kind, Message: message}
	s.Result = nil
	s.PauseRequested = false
	s.Checkpoint = nil
}

// Clone returns a deep copy safe for independent mutation.
func (s Session) Clone() Session {
	s.Result = s.Result.Clone()
	if s.Error != nil {
		rec := *s.Error
		s.Error = &rec
	}
	if s.Checkpoint != nil {
		cp := s.Checkpoint.Clone()
		s.Checkpoint = &cp
	}
	return s
}

// SessionStore keeps sessions by id and serializes mutations per session.
type SessionStore interface {
	// Create stores a new session; ids are unique.
	Create(s Session) error
	// Get returns a clone of the session or a NotFound error.
	Get(id string) (Session, error)
	// Update applies fn under the session's lock. If fn returns an error the
	// stored session is left unchanged. The updated clone is returned.
	Update(id string, fn func(s *Session) error) (Session, error)
	// Delete removes a session.
	Delete(id string)
	// Count returns the number of stored sessions.
	Count() int
}
