// Package http serves a relaygate route table as an HTTP reverse proxy.
//
// Every binding of the table is mounted on a chi router under its method and
// path. A request that matches a binding passes the binding's gate and is then
// dispatched to the upstream service; requests that match nothing receive the
// router's 404 or 405.
//
// # Features
//
//   - Bearer presence gate on routes marked auth_required, with an optional
//     TokenVerifier for real credential checks
//   - Gateway prefix stripping and the legacy auth-service health rewrite
//   - Per-service connect and read timeouts on dedicated transports
//   - Transport failures mapped to 504, 503 and 502 JSON bodies
//   - Request bodies captured once and forwarded byte-for-byte
//   - CORS, security headers, request ids and a per-request log line
//   - Prometheus metrics for proxied requests and upstream failures
//
// # Usage
//
//	table := relaygate.NewBuilder(lookup, logger).Build(descriptors)
//
//	handlerCfg := http.HandlerConfig{
//	    CORS:            http.CORSConfig{Enabled: true, AllowedOrigins: []string{"*"}},
//	    SecurityHeaders: true,
//	    MaxBodySize:     10 << 20,
//	    Metrics:         http.NewMetrics(nil),
//	    MetricsPath:     "/metrics",
//	}
//	handler := http.NewHandler(&handlerCfg, table)
//	defer handler.Close()
//	http.ListenAndServe(":4000", handler.Router())
//
// # Failure responses
//
// Errors produced by the gateway itself are JSON:
//
//	{"error":"gateway_timeout","message":"Service users-service did not respond within 30000ms","service":"users-service","timestamp":"2024-01-02T03:04:05.000Z"}
//
// Gate rejections add the "endpoint" field with the binding's full path.
package http
