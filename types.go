package relaygate

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	// DefaultConnectTimeout applies when a descriptor leaves connect_ms at zero.
	DefaultConnectTimeout = 10 * time.Second
	// DefaultReadTimeout applies when a descriptor leaves read_ms at zero.
	DefaultReadTimeout = 30 * time.Second
)

// ServiceDescriptor describes one upstream backend and the routes the gateway
// exposes for it.
type ServiceDescriptor struct {
	ID            string        `json:"id" yaml:"id" validate:"required"`
	GatewayPrefix string        `json:"gateway_prefix" yaml:"gateway_prefix" validate:"required,startswith=/"`
	TargetService TargetService `json:"target_service" yaml:"target_service"`
	Timeouts      Timeouts      `json:"timeouts" yaml:"timeouts"`
	Routes        []RouteSpec   `json:"routes" yaml:"routes" validate:"dive"`
}

// TargetService is the indirection used to find a service's base URL.
type TargetService struct {
	HostVar  string `json:"host_var" yaml:"host_var" validate:"required"`
	BasePath string `json:"base_path" yaml:"base_path"`
}

type Timeouts struct {
	ConnectMS int `json:"connect_ms" yaml:"connect_ms" validate:"min=0"`
	ReadMS    int `json:"read_ms" yaml:"read_ms" validate:"min=0"`
}

// Connect returns the connect timeout with the default applied.
func (t Timeouts) Connect() time.Duration {
	if t.ConnectMS <= 0 {
		return DefaultConnectTimeout
	}
	return time.Duration(t.ConnectMS) * time.Millisecond
}

// Read returns the read timeout with the default applied.
func (t Timeouts) Read() time.Duration {
	if t.ReadMS <= 0 {
		return DefaultReadTimeout
	}
	return time.Duration(t.ReadMS) * time.Millisecond
}

type RouteSpec struct {
	Route        string   `json:"route" yaml:"route"`
	Methods      []string `json:"methods" yaml:"methods" validate:"required,min=1"`
	AuthRequired bool     `json:"auth_required" yaml:"auth_required"`
}

// Method is a normalized (lower-case) HTTP verb the gateway can route.
type Method string

const (
	MethodGet     Method = "get"
	MethodPost    Method = "post"
	MethodPut     Method = "put"
	MethodDelete  Method = "delete"
	MethodPatch   Method = "patch"
	MethodOptions Method = "options"

	// MethodUnsupported is returned by ParseMethod for verbs outside the set above.
	MethodUnsupported Method = ""
)

func (m Method) IsValid() bool {
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch, MethodOptions:
		return true
	default:
		return false
	}
}

// HTTP returns the verb as it appears on the wire.
func (m Method) HTTP() string {
	switch m {
	case MethodGet:
		return http.MethodGet
	case MethodPost:
		return http.MethodPost
	case MethodPut:
		return http.MethodPut
	case MethodDelete:
		return http.MethodDelete
	case MethodPatch:
		return http.MethodPatch
	case MethodOptions:
		return http.MethodOptions
	default:
		return ""
	}
}

// ParseMethod normalizes s and reports ErrUnsupportedMethod for anything that
// is not one of get, post, put, delete, patch or options.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return MethodUnsupported, fmt.Errorf("parse method %q: %w", s, ErrUnsupportedMethod)
	}
	return m, nil
}

// RouteBinding is a fully resolved (path, method) entry of the route table.
type RouteBinding struct {
	ServiceID      string
	GatewayPrefix  string
	Route          string
	FullPath       string
	Method         Method
	AuthRequired   bool
	Target         url.URL
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// Key identifies the slot a binding occupies in the table.
func (b RouteBinding) Key() string {
	return string(b.Method) + " " + b.FullPath
}

// Tables holds configurable table names for the descriptor store.
type Tables struct {
	Services string `mapstructure:"services"`
	Routes   string `mapstructure:"routes"`
}

var validTableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// IsValidTableName checks if a table name is valid (lowercase, alphanumeric with underscores, max 63 chars).
func IsValidTableName(name string) bool {
	return validTableNameRegex.MatchString(name) && len(name) <= 63
}

// Validate checks that all required table names are set and valid.
func (t Tables) Validate() error {
	if t.Services == "" || t.Routes == "" {
		return fmt.Errorf("validate tables: services and routes table names cannot be empty: %w", ErrInvalidInput)
	}

	for _, name := range []string{t.Services, t.Routes} {
		if !IsValidTableName(name) {
			return fmt.Errorf("validate tables: invalid table name: %s (must match ^[a-z_][a-z0-9_]*$ and be <= 63 chars): %w", name, ErrInvalidInput)
		}
	}

	if t.Services == t.Routes {
		return fmt.Errorf("validate tables: services and routes must use different tables: %w", ErrInvalidInput)
	}

	return nil
}
