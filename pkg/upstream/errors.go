package upstream

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed fetch. The kind decides retry eligibility.
type ErrorKind string

const (
	// KindTransport covers connection, DNS and timeout failures, plus anything
	// unexpected caught at the fetch boundary.
	KindTransport ErrorKind = "transport"

	// KindHTTPStatus means the upstream answered with a non-200 status.
	KindHTTPStatus ErrorKind = "http_status"

	// KindParse means the body was not valid JSON.
	KindParse ErrorKind = "parse"

	// KindShape means the JSON lacked a non-empty result object.
	KindShape ErrorKind = "shape"
)

// Sentinels for errors.Is against a *FetchError.
var (
	ErrTransport  = errors.New("upstream transport failure")
	ErrHTTPStatus = errors.New("upstream http status failure")
	ErrParse      = errors.New("upstream parse failure")
	ErrShape      = errors.New("upstream shape failure")
)

// FetchError is the classified failure of one fetch attempt.
type FetchError struct {
	Kind ErrorKind

	// Detail is the user-visible explanation. Transport failures leave it empty.
	Detail string

	// StatusCode is set for KindHTTPStatus.
	StatusCode int

	// Err is the underlying cause, kept for logs only.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s error", e.Kind)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Detail)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels.
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrHTTPStatus:
		return e.Kind == KindHTTPStatus
	case ErrParse:
		return e.Kind == KindParse
	case ErrShape:
		return e.Kind == KindShape
	default:
		return false
	}
}

// Retriable reports whether another round may fix this failure: only a
// transport failure that carries no detail qualifies.
func (e *FetchError) Retriable() bool {
	return e != nil && shouldRetry(e.Kind) && e.Detail == ""
}

// shouldRetry determines if a kind of failure is worth another attempt.
func shouldRetry(kind ErrorKind) bool {
	switch kind {
	case KindTransport:
		return true
	case KindHTTPStatus:
		// stable rejection, usually an expired cookie
		return false
	case KindParse, KindShape:
		return false
	default:
		return false
	}
}

// IsRetriable reports whether err is a *FetchError eligible for retry.
func IsRetriable(err error) bool {
	var fe *FetchError
	if !errors.As(err, &fe) {
		return false
	}
	return fe.Retriable()
}
