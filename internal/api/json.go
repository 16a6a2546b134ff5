package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/nanuguru/Med-Procedure/core"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Kind: kind, Message: message}})
}

// writeErr maps an engine error onto its HTTP status and error envelope.
func writeErr(w http.ResponseWriter, err error) {
	msg := err.Error()
	var e *core.Error
	if errors.As(err, &e) {
		msg = e.Message
	}
	status := core.StatusOf(err)
	if status < http.StatusBadRequest {
		status = http.StatusInternalServerError
	}
	writeError(w, status, string(core.KindOf(err)), msg)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	return dec.Decode(v)
}
