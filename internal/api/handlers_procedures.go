package api

import (
	"net/http"
	"strings"

	"github.com/nanuguru/Med-Procedure/core"
	"github.com/nanuguru/Med-Procedure/engine"
	"github.com/nanuguru/Med-Procedure/logging"
)

// ProcedureRequest is the body of POST /procedures.
type ProcedureRequest struct {
	UserText string `json:"user_text"`
	Setting  string `json:"setting"`
}

// ProcedureResponse acknowledges a started session.
type ProcedureResponse struct {
	SessionID   string         `json:"session_id"`
	ServiceName string         `json:"service_name"`
	Setting     core.Setting   `json:"setting"`
	Procedures  map[string]any `json:"procedures"`
	Status      string         `json:"status"`
	Message     string         `json:"message,omitempty"`
}

const acceptedMessage = "Request is being processed. Use session_id to check status."

// ProcedureHandler starts procedure lookups.
type ProcedureHandler struct {
	eng    *engine.Engine
	logger logging.Logger
}

// NewProcedureHandler creates a new procedure handler.
func NewProcedureHandler(eng *engine.Engine, logger logging.Logger) *ProcedureHandler {
	return &ProcedureHandler{eng: eng, logger: logger}
}

// Create handles POST /procedures
func (h *ProcedureHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ProcedureRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(core.KindInvalidRequest), "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.UserText) == "" {
		writeError(w, http.StatusBadRequest, string(core.KindInvalidRequest), "user_text is required")
		return
	}
	setting, err := core.ParseSetting(req.Setting)
	if err != nil {
		writeErr(w, err)
		return
	}

	h.logger.Info("Processing procedure request", "service", req.UserText, "setting", setting)

	s, err := h.eng.Start(r.Context(), req.UserText, setting)
	if err != nil {
		h.logger.Error("Failed to start session", "error", err)
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ProcedureResponse{
		SessionID:   s.ID,
		ServiceName: s.ServiceName,
		Setting:     s.Setting,
		Procedures:  map[string]any{},
		Status:      string(s.Status),
		Message:     acceptedMessage,
	})
}
