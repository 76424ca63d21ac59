package relaygate

import "strings"

// legacyHealthRewrite keeps the auth backend's health check reachable at
// /api/health regardless of the prefix its descriptor declares.
var legacyHealthRewrite = struct {
	service, from, to string
}{service: "auth-service", from: "/api/health", to: "/health"}

// RewritePath computes the upstream path for an incoming request path.
//
// The gateway prefix is stripped when present and an empty remainder becomes
// "/". Paths that do not carry the prefix are returned unchanged.
func RewritePath(incoming, serviceID, gatewayPrefix string) string {
	if serviceID == legacyHealthRewrite.service && incoming == legacyHealthRewrite.from {
		return legacyHealthRewrite.to
	}

	if rest, ok := strings.CutPrefix(incoming, gatewayPrefix); ok {
		if rest == "" {
			return "/"
		}
		return rest
	}

	return incoming
}

// UpstreamPath applies RewritePath for the service that owns b.
func (b RouteBinding) UpstreamPath(incoming string) string {
	return RewritePath(incoming, b.ServiceID, b.GatewayPrefix)
}
