package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// timestampFormat is ISO-8601 with millisecond precision.
const timestampFormat = "2006-01-02T15:04:05.000Z07:00"

// ErrorResponse represents a JSON error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Service   string `json:"service,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
	Timestamp string `json:"timestamp"`
}

// WriteError writes a JSON error response that is not tied to a service.
func WriteError(w http.ResponseWriter, code int, errCode, message string) {
	WriteGatewayError(w, code, ErrorResponse{Error: errCode, Message: message})
}

// WriteGatewayError writes resp as the JSON error body, stamping the current time.
func WriteGatewayError(w http.ResponseWriter, code int, resp ErrorResponse) {
	if resp.Timestamp == "" {
		resp.Timestamp = time.Now().UTC().Format(timestampFormat)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}
