package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/sagarc03/relaygate"
)

const (
	proxyBufferSize         = 32 * 1024
	defaultIdleConnTimeout  = 90 * time.Second
	defaultIdleConnsPerHost = 64
)

var hopHeaders = map[string]bool{
	"Connection":          true,
	"Proxy-Connection":    true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// UpstreamConfig controls the connections made to upstream services.
type UpstreamConfig struct {
	// InsecureSkipVerify disables upstream TLS certificate validation.
	InsecureSkipVerify  bool `mapstructure:"insecure_skip_verify"`
	MaxIdleConnsPerHost int  `mapstructure:"max_idle_conns_per_host"`
	// IdleConnTimeout in seconds.
	IdleConnTimeout int `mapstructure:"idle_conn_timeout"`
}

// Proxy forwards matched requests to their upstream target.
type Proxy struct {
	config     UpstreamConfig
	transports map[string]http.RoundTripper
	metrics    *Metrics
	logger     *slog.Logger
}

// NewProxy builds one transport per service in table. The transports carry
// the service's connect and read timeouts, so they are created once here and
// never modified afterwards.
func NewProxy(config UpstreamConfig, table *relaygate.RouteTable, metrics *Metrics, logger *slog.Logger) *Proxy {
	if logger == nil {
		logger = slog.Default()
	}

	p := &Proxy{
		config:     config,
		transports: make(map[string]http.RoundTripper),
		metrics:    metrics,
		logger:     logger,
	}

	if table != nil {
		for _, b := range table.Bindings() {
			if _, ok := p.transports[b.ServiceID]; !ok {
				p.transports[b.ServiceID] = newTransport(config, b)
			}
		}
	}

	if config.InsecureSkipVerify {
		logger.Warn("upstream TLS certificate verification is disabled")
	}

	return p
}

// dialError marks failures that happened while establishing the upstream
// connection, before any HTTP exchange.
type dialError struct {
	err error
}

func (e *dialError) Error() string { return e.err.Error() }
func (e *dialError) Unwrap() error { return e.err }

func newTransport(config UpstreamConfig, b relaygate.RouteBinding) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   b.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}

	idleTimeout := defaultIdleConnTimeout
	if config.IdleConnTimeout > 0 {
		idleTimeout = time.Duration(config.IdleConnTimeout) * time.Second
	}
	idlePerHost := defaultIdleConnsPerHost
	if config.MaxIdleConnsPerHost > 0 {
		idlePerHost = config.MaxIdleConnsPerHost
	}

	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, &dialError{err: err}
		}
		return conn, nil
	}

	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: config.InsecureSkipVerify, //nolint:gosec // opt-in via upstream.insecure_skip_verify
		NextProtos:         []string{"h2", "http/1.1"},
	}

	// The handshake counts against the connect timeout.
	dialTLS := func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := dial(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		cfg := tlsConfig.Clone()
		if cfg.ServerName == "" {
			host, _, err := net.SplitHostPort(addr)
			if err != nil {
				host = addr
			}
			cfg.ServerName = host
		}

		hctx, cancel := context.WithTimeout(ctx, b.ConnectTimeout)
		defer cancel()

		tlsConn := tls.Client(conn, cfg)
		if err := tlsConn.HandshakeContext(hctx); err != nil {
			_ = conn.Close()
			return nil, &dialError{err: err}
		}
		return tlsConn, nil
	}

	return &http.Transport{
		DialContext:           dial,
		DialTLSContext:        dialTLS,
		TLSClientConfig:       tlsConfig,
		ResponseHeaderTimeout: b.ReadTimeout,
		ExpectContinueTimeout: time.Second,
		MaxIdleConnsPerHost:   idlePerHost,
		IdleConnTimeout:       idleTimeout,
		ForceAttemptHTTP2:     true,
	}
}

func (p *Proxy) transportFor(b relaygate.RouteBinding) http.RoundTripper {
	if tr, ok := p.transports[b.ServiceID]; ok {
		return tr
	}
	return newTransport(p.config, b)
}

// Close releases idle upstream connections.
func (p *Proxy) Close() {
	for _, tr := range p.transports {
		if t, ok := tr.(*http.Transport); ok {
			t.CloseIdleConnections()
		}
	}
}

// UpstreamURL joins the binding's target with the rewritten request path and
// keeps the original query string.
func UpstreamURL(b relaygate.RouteBinding, in *url.URL) *url.URL {
	out := b.Target

	upstream := b.UpstreamPath(in.EscapedPath())
	if !strings.HasPrefix(upstream, "/") {
		upstream = "/" + upstream
	}
	escaped := strings.TrimSuffix(b.Target.EscapedPath(), "/") + upstream
	path, err := url.PathUnescape(escaped)
	if err != nil {
		path = escaped
	}
	out.Path = path
	out.RawPath = escaped
	out.RawQuery = in.RawQuery
	out.Fragment = ""
	return &out
}

// Dispatch proxies r to the upstream of b and relays the response. Transport
// failures are answered with 504, 503 or 502 unless the upstream status line
// has already been written.
func (p *Proxy) Dispatch(w http.ResponseWriter, r *http.Request, b relaygate.RouteBinding) {
	start := time.Now()
	target := UpstreamURL(b, r.URL)

	body, err := requestBody(r)
	if err != nil {
		p.logger.Warn("could not read request body", "service", b.ServiceID, "err", err)
		WriteGatewayError(w, http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_body",
			Message: "Could not read request body",
			Service: b.ServiceID,
		})
		return
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	out, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), reader)
	if err != nil {
		p.logger.Error("could not build upstream request", "service", b.ServiceID, "target", target.String(), "err", err)
		p.writeFailure(w, b, http.StatusBadGateway, "bad_gateway",
			fmt.Sprintf("Service %s could not be reached", b.ServiceID), start)
		return
	}

	out.Header = cloneHeaderExcluding(r.Header, hopHeaders)
	removeConnectionHeaders(out.Header, r.Header)
	out.Header.Del("Content-Length")
	if _, ok := out.Header["User-Agent"]; !ok {
		out.Header.Set("User-Agent", "")
	}
	out.Host = b.Target.Host
	out.ContentLength = int64(len(body))

	resp, err := p.transportFor(b).RoundTrip(out)
	if err != nil {
		p.handleTransportError(w, r, b, err, start)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	removeConnectionHeaders(resp.Header, resp.Header)
	copyHeaderExcluding(w.Header(), resp.Header, hopHeaders)
	w.WriteHeader(resp.StatusCode)

	// Status and headers are on the wire from here on; failures can only be logged.
	if err := copyStream(w, resp.Body); err != nil {
		p.logger.Warn("response relay interrupted",
			"service", b.ServiceID, "target", target.String(), "status", resp.StatusCode, "err", err)
	}

	p.metrics.observeRequest(b, resp.StatusCode, time.Since(start))
	p.logger.Debug("proxied request",
		"service", b.ServiceID, "method", r.Method, "path", r.URL.Path,
		"target", target.String(), "status", resp.StatusCode, "duration", time.Since(start))
}

func requestBody(r *http.Request) ([]byte, error) {
	if body, ok := CapturedBody(r); ok {
		return body, nil
	}
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	defer func() { _ = r.Body.Close() }()
	return io.ReadAll(r.Body)
}

func (p *Proxy) handleTransportError(w http.ResponseWriter, r *http.Request, b relaygate.RouteBinding, err error, start time.Time) {
	if cerr := r.Context().Err(); errors.Is(cerr, context.Canceled) {
		p.logger.Info("client closed request before upstream responded",
			"service", b.ServiceID, "path", r.URL.Path)
		p.metrics.upstreamError(b, "client_canceled")
		p.writeFailure(w, b, http.StatusBadGateway, "bad_gateway",
			fmt.Sprintf("Request to service %s was canceled", b.ServiceID), start)
		return
	}

	status, kind, message := classifyTransportError(b, err)
	p.logger.Error("upstream request failed",
		"service", b.ServiceID, "method", r.Method, "path", r.URL.Path,
		"status", status, "kind", kind, "err", err)
	p.metrics.upstreamError(b, kind)
	p.writeFailure(w, b, status, kind, message, start)
}

func (p *Proxy) writeFailure(w http.ResponseWriter, b relaygate.RouteBinding, status int, errCode, message string, start time.Time) {
	WriteGatewayError(w, status, ErrorResponse{
		Error:   errCode,
		Message: message,
		Service: b.ServiceID,
	})
	p.metrics.observeRequest(b, status, time.Since(start))
}

// classifyTransportError maps a round trip failure to the client-visible
// status, an error code and a message.
func classifyTransportError(b relaygate.RouteBinding, err error) (int, string, string) {
	var dErr *dialError
	dialing := errors.As(err, &dErr)

	switch {
	case isTimeout(err) && dialing:
		return http.StatusGatewayTimeout, "gateway_timeout",
			fmt.Sprintf("Service %s did not accept a connection within %dms", b.ServiceID, b.ConnectTimeout.Milliseconds())
	case isTimeout(err):
		return http.StatusGatewayTimeout, "gateway_timeout",
			fmt.Sprintf("Service %s did not respond within %dms", b.ServiceID, b.ReadTimeout.Milliseconds())
	case errors.Is(err, syscall.ECONNREFUSED):
		return http.StatusServiceUnavailable, "service_unavailable",
			fmt.Sprintf("Service %s is unavailable", b.ServiceID)
	default:
		return http.StatusBadGateway, "bad_gateway",
			fmt.Sprintf("Service %s returned an invalid response or could not be reached", b.ServiceID)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

func copyHeaderExcluding(to, from http.Header, exclude map[string]bool) {
	for k, v := range from {
		if exclude[http.CanonicalHeaderKey(k)] {
			continue
		}
		to[http.CanonicalHeaderKey(k)] = append([]string(nil), v...)
	}
}

// removeConnectionHeaders deletes from dst the headers that src's Connection
// field marks as hop-by-hop.
func removeConnectionHeaders(dst, src http.Header) {
	var names []string
	for _, v := range src["Connection"] {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
	}
	for _, name := range names {
		dst.Del(name)
	}
}

func cloneHeaderExcluding(h http.Header, exclude map[string]bool) http.Header {
	hh := make(http.Header, len(h))
	copyHeaderExcluding(hh, h, exclude)
	return hh
}

// copyStream copies the upstream body and flushes after every write so
// streamed responses reach the client as they arrive.
func copyStream(w http.ResponseWriter, from io.Reader) error {
	rc := http.NewResponseController(w)
	buf := make([]byte, proxyBufferSize)

	for {
		n, rerr := from.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			_ = rc.Flush()
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}
