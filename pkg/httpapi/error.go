package httpapi

import (
	"encoding/json"
	"net/http"
)

// ErrorEnvelope standardizes JSON error responses for API namespaces.
type ErrorEnvelope struct {
	Message string         `json:"message"`
	Code    string         `json:"code"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	if w == nil {
		return nil
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(payload)
}

// WriteError writes an ErrorEnvelope. The request id, when known, is always
// carried in meta so clients can quote it back.
func WriteError(w http.ResponseWriter, status int, requestID, code, message string, meta map[string]any) error {
	if meta == nil {
		meta = map[string]any{}
	}
	if requestID != "" {
		meta["request_id"] = requestID
	}
	if len(meta) == 0 {
		meta = nil
	}
	return WriteJSON(w, status, &ErrorEnvelope{
		Code:    code,
		Message: message,
		Meta:    meta,
	})
}
