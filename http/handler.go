package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sagarc03/relaygate"
)

// RoutesPath serves the route table when HandlerConfig.ExposeRoutes is set.
const RoutesPath = "/_gateway/routes"

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type HandlerConfig struct {
	CORS            CORSConfig
	SecurityHeaders bool
	// MaxBodySize caps captured request bodies in bytes; 0 means no limit.
	MaxBodySize int64
	Upstream    UpstreamConfig
	// Verifier is consulted for gated routes after the bearer presence check.
	Verifier     TokenVerifier
	Metrics      *Metrics
	MetricsPath  string
	ExposeRoutes bool
	Logger       *slog.Logger
}

// Handler is the gateway facade: it binds every route of a table to its gate
// and the upstream proxy.
type Handler struct {
	config HandlerConfig
	table  *relaygate.RouteTable
	proxy  *Proxy
	logger *slog.Logger
}

// NewHandler creates a Handler for table. Upstream transports are built here,
// once per service.
func NewHandler(config *HandlerConfig, table *relaygate.RouteTable) *Handler {
	cfg := *config
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if table == nil {
		table = &relaygate.RouteTable{}
	}

	cfg.Metrics.observeTable(table)

	return &Handler{
		config: cfg,
		table:  table,
		proxy:  NewProxy(cfg.Upstream, table, cfg.Metrics, logger),
		logger: logger,
	}
}

// Close releases idle upstream connections.
func (h *Handler) Close() {
	h.proxy.Close()
}

// Router returns an http.Handler serving every binding of the table.
// Requests that match no binding get the router's 404 or 405.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(RequestLogger(h.logger))

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}
	if h.config.SecurityHeaders {
		r.Use(SecurityHeaders)
	}
	r.Use(CaptureBody(h.config.MaxBodySize))

	if h.config.Metrics != nil && h.config.MetricsPath != "" {
		r.Method(http.MethodGet, h.config.MetricsPath, h.config.Metrics.Handler())
	}
	if h.config.ExposeRoutes {
		r.Get(RoutesPath, h.handleRoutes)
	}

	for _, b := range h.table.Bindings() {
		h.mount(r, b)
	}

	return r
}

func (h *Handler) mount(r chi.Router, b relaygate.RouteBinding) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("route registration failed, binding skipped",
				"service", b.ServiceID, "method", b.Method.HTTP(), "path", b.FullPath, "err", fmt.Sprint(rec))
		}
	}()

	handler := h.bindingHandler(b)
	pattern := RoutePattern(b.FullPath)
	r.Method(b.Method.HTTP(), pattern, handler)

	// "/orders/" also answers "/orders" unless another binding owns it.
	if alias, ok := strings.CutSuffix(pattern, "/"); ok && alias != "" {
		if _, taken := h.table.Lookup(b.Method, strings.TrimSuffix(b.FullPath, "/")); !taken {
			r.Method(b.Method.HTTP(), alias, handler)
		}
	}
}

func (h *Handler) bindingHandler(b relaygate.RouteBinding) http.Handler {
	gate := MakeGate(b, h.config.Verifier)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !gate(w, r) {
			h.config.Metrics.authRejected(b)
			return
		}
		h.proxy.Dispatch(w, r, b)
	})
}

// RouteView is the public description of one binding.
type RouteView struct {
	Service      string `json:"service"`
	Method       string `json:"method"`
	Path         string `json:"path"`
	Target       string `json:"target"`
	AuthRequired bool   `json:"auth_required"`
}

// SkipView describes a configuration entry that was not bound.
type SkipView struct {
	Service string `json:"service"`
	Route   string `json:"route,omitempty"`
	Method  string `json:"method,omitempty"`
	Reason  string `json:"reason"`
}

// RoutesResponse is the body served at RoutesPath.
type RoutesResponse struct {
	Routes  []RouteView `json:"routes"`
	Skipped []SkipView  `json:"skipped"`
}

// DescribeTable renders table for display.
func DescribeTable(table *relaygate.RouteTable) RoutesResponse {
	resp := RoutesResponse{
		Routes:  make([]RouteView, 0, table.Len()),
		Skipped: []SkipView{},
	}
	for _, b := range table.Bindings() {
		resp.Routes = append(resp.Routes, RouteView{
			Service:      b.ServiceID,
			Method:       b.Method.HTTP(),
			Path:         b.FullPath,
			Target:       b.Target.String(),
			AuthRequired: b.AuthRequired,
		})
	}
	for _, s := range table.Skipped() {
		resp.Skipped = append(resp.Skipped, SkipView{
			Service: s.Service,
			Route:   s.Route,
			Method:  s.Method,
			Reason:  string(s.Reason),
		})
	}
	return resp
}

func (h *Handler) handleRoutes(w http.ResponseWriter, _ *http.Request) {
	_ = WriteJSON(w, http.StatusOK, DescribeTable(h.table))
}

// RoutePattern translates an express style route path into a chi pattern:
// ":id" becomes "{id}", ":id(\\d+)" becomes "{id:\\d+}" and a trailing "*"
// stays a catch-all. An empty path maps to "/".
func RoutePattern(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	segments := strings.Split(path, "/")
	for i, seg := range segments {
		name, ok := strings.CutPrefix(seg, ":")
		if !ok || name == "" {
			continue
		}
		if open := strings.IndexByte(name, '('); open > 0 && strings.HasSuffix(name, ")") {
			segments[i] = "{" + name[:open] + ":" + name[open+1:len(name)-1] + "}"
			continue
		}
		segments[i] = "{" + name + "}"
	}
	return strings.Join(segments, "/")
}
