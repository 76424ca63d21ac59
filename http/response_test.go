package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gatehttp "github.com/sagarc03/relaygate/http"
)

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()

	gatehttp.WriteError(rec, http.StatusBadRequest, "invalid_body", "Could not read request body")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Equal(t, "invalid_body", raw["error"])
	assert.Equal(t, "Could not read request body", raw["message"])
	assert.NotContains(t, raw, "service")
	assert.NotContains(t, raw, "endpoint")
	assert.Contains(t, raw, "timestamp")
}

func TestWriteGatewayError_TimestampFormat(t *testing.T) {
	rec := httptest.NewRecorder()

	gatehttp.WriteGatewayError(rec, http.StatusBadGateway, gatehttp.ErrorResponse{
		Error:   "bad_gateway",
		Message: "Service users-service could not be reached",
		Service: "users-service",
	})

	body := decodeError(t, rec)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "users-service", body.Service)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`, body.Timestamp)
}

func TestWriteGatewayError_KeepsTimestamp(t *testing.T) {
	rec := httptest.NewRecorder()

	gatehttp.WriteGatewayError(rec, http.StatusServiceUnavailable, gatehttp.ErrorResponse{
		Error:     "service_unavailable",
		Timestamp: "2024-01-02T03:04:05.000Z",
	})

	assert.Equal(t, "2024-01-02T03:04:05.000Z", decodeError(t, rec).Timestamp)
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()

	err := gatehttp.WriteJSON(rec, http.StatusOK, map[string]int{"routes": 3})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"routes":3}`, rec.Body.String())
}
