package http

import "errors"

// ErrUnauthorized is returned when a gated route has no usable bearer credential.
var ErrUnauthorized = errors.New("unauthorized")
