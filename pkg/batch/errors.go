package batch

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest is returned, wrapped with the reason, when a request is
// rejected before any fetch is dispatched.
var ErrInvalidRequest = errors.New("invalid request")

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, reason)
}
