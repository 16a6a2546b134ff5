package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nanuguru/Med-Procedure/core"
	"github.com/nanuguru/Med-Procedure/engine"
)

// SessionStatusResponse is the body of GET /sessions/{id}.
type SessionStatusResponse struct {
	SessionID string             `json:"session_id"`
	Status    core.SessionStatus `json:"status"`
	Progress  float64            `json:"progress"`
	Result    *SessionResult     `json:"result,omitempty"`
	Error     *core.ErrorRecord  `json:"error,omitempty"`
}

// SessionResult wraps the finished document the way clients expect it.
type SessionResult struct {
	Procedures *core.ProcedureDocument `json:"procedures"`
}

// SessionActionResponse acknowledges pause, resume and cancel.
type SessionActionResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
}

// SessionHandler handles session-related HTTP requests.
type SessionHandler struct {
	eng *engine.Engine
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(eng *engine.Engine) *SessionHandler {
	return &SessionHandler{eng: eng}
}

// Get handles GET /sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.eng.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse(s))
}

// Pause handles POST /sessions/{id}/pause
func (h *SessionHandler) Pause(w http.ResponseWriter, r *http.Request) {
	s, err := h.eng.Pause(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionActionResponse{Status: "paused", SessionID: s.ID})
}

// Resume handles POST /sessions/{id}/resume
func (h *SessionHandler) Resume(w http.ResponseWriter, r *http.Request) {
	s, err := h.eng.Resume(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionActionResponse{Status: "resumed", SessionID: s.ID})
}

// Cancel handles POST /sessions/{id}/cancel
func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	s, err := h.eng.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionActionResponse{Status: "cancelled", SessionID: s.ID})
}

func statusResponse(s core.Session) SessionStatusResponse {
	resp := SessionStatusResponse{
		SessionID: s.ID,
		Status:    s.Status,
		Progress:  s.Progress,
		Error:     s.Error,
	}
	if s.Status == core.StatusCompleted && s.Result != nil {
		resp.Result = &SessionResult{Procedures: s.Result}
	}
	return resp
}
