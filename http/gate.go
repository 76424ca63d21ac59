package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sagarc03/relaygate"
)

const bearerScheme = "Bearer "

// TokenVerifier validates a bearer token after the presence check passed.
// Implementations are plugged in by the embedding application; none is
// configured by default.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) error
}

// Gate decides whether a request may be proxied. When it returns false it has
// already written the response.
type Gate func(w http.ResponseWriter, r *http.Request) bool

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is matched case-sensitively.
func BearerToken(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerScheme)
	if !ok {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// MakeGate returns the admission check for b. Routes without auth_required
// always admit. Gated routes require a bearer credential and, when verifier
// is non-nil, one that the verifier accepts.
func MakeGate(b relaygate.RouteBinding, verifier TokenVerifier) Gate {
	if !b.AuthRequired {
		return func(http.ResponseWriter, *http.Request) bool { return true }
	}

	reject := func(w http.ResponseWriter, errCode, message string) {
		WriteGatewayError(w, http.StatusUnauthorized, ErrorResponse{
			Error:    errCode,
			Message:  message,
			Service:  b.ServiceID,
			Endpoint: b.FullPath,
		})
	}

	return func(w http.ResponseWriter, r *http.Request) bool {
		token, ok := BearerToken(r)
		if !ok {
			slog.Debug("request rejected: missing bearer token",
				"service", b.ServiceID, "endpoint", b.FullPath, "method", r.Method)
			reject(w, ErrUnauthorized.Error(), "Missing or malformed bearer token")
			return false
		}

		if verifier != nil {
			if err := verifier.VerifyToken(r.Context(), token); err != nil {
				slog.Debug("request rejected: token verification failed",
					"service", b.ServiceID, "endpoint", b.FullPath, "err", err)
				reject(w, "invalid_token", "Bearer token was not accepted")
				return false
			}
		}

		return true
	}
}
