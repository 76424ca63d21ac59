package relaygate_test

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/sagarc03/relaygate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMethod(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    relaygate.Method
		wantErr bool
	}{
		{"GET", relaygate.MethodGet, false},
		{"get", relaygate.MethodGet, false},
		{" Post ", relaygate.MethodPost, false},
		{"PUT", relaygate.MethodPut, false},
		{"delete", relaygate.MethodDelete, false},
		{"PaTcH", relaygate.MethodPatch, false},
		{"OPTIONS", relaygate.MethodOptions, false},
		{"HEAD", relaygate.MethodUnsupported, true},
		{"TRACE", relaygate.MethodUnsupported, true},
		{"", relaygate.MethodUnsupported, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, err := relaygate.ParseMethod(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, relaygate.ErrUnsupportedMethod))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMethod_HTTP(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.MethodGet, relaygate.MethodGet.HTTP())
	assert.Equal(t, http.MethodPost, relaygate.MethodPost.HTTP())
	assert.Equal(t, http.MethodPut, relaygate.MethodPut.HTTP())
	assert.Equal(t, http.MethodDelete, relaygate.MethodDelete.HTTP())
	assert.Equal(t, http.MethodPatch, relaygate.MethodPatch.HTTP())
	assert.Equal(t, http.MethodOptions, relaygate.MethodOptions.HTTP())
	assert.Equal(t, "", relaygate.MethodUnsupported.HTTP())
	assert.False(t, relaygate.MethodUnsupported.IsValid())
}

func TestTimeouts_Defaults(t *testing.T) {
	t.Parallel()

	var zero relaygate.Timeouts
	assert.Equal(t, 10*time.Second, zero.Connect())
	assert.Equal(t, 30*time.Second, zero.Read())

	set := relaygate.Timeouts{ConnectMS: 250, ReadMS: 1500}
	assert.Equal(t, 250*time.Millisecond, set.Connect())
	assert.Equal(t, 1500*time.Millisecond, set.Read())
}

func TestTables_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		tables  relaygate.Tables
		wantErr bool
	}{
		{"valid", relaygate.Tables{Services: "gateway_services", Routes: "gateway_routes"}, false},
		{"empty services", relaygate.Tables{Routes: "gateway_routes"}, true},
		{"empty routes", relaygate.Tables{Services: "gateway_services"}, true},
		{"uppercase", relaygate.Tables{Services: "Services", Routes: "routes"}, true},
		{"injection", relaygate.Tables{Services: "s; DROP TABLE x", Routes: "routes"}, true},
		{"same table", relaygate.Tables{Services: "t", Routes: "t"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.tables.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, relaygate.ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
