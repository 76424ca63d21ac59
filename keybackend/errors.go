package keybackend

import "errors"

// ErrUnknownToken is returned when a bearer token matches no configured key.
var ErrUnknownToken = errors.New("unknown bearer token")
