package relaygate

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
	// ErrMissingHostVariable is returned when a service's host variable is unset or empty
	ErrMissingHostVariable = errors.New("missing host variable")
	// ErrInvalidTarget is returned when host and base path do not form an absolute URL
	ErrInvalidTarget = errors.New("invalid target")
	// ErrUnsupportedMethod is returned for HTTP verbs the gateway does not route
	ErrUnsupportedMethod = errors.New("unsupported method")
)

// ResolutionError reports why a service's target could not be resolved.
type ResolutionError struct {
	Service string
	HostVar string
	Err     error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve target for service %s (host var %s): %v", e.Service, e.HostVar, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }
