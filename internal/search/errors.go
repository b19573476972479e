package search

import (
	"fmt"
	"time"
)

// Kind classifies a search failure by the pipeline stage that produced
// it. The HTTP layer maps kinds to status codes.
type Kind string

// Failure kinds in pipeline order.
const (
	KindValidation  Kind = "validation"
	KindRateLimited Kind = "rate_limited"
	KindFetch       Kind = "fetch"
	KindChunk       Kind = "chunk"
	KindEmbed       Kind = "embed"
	KindIndex       Kind = "index"
	KindInternal    Kind = "internal"
)

// Error is a classified pipeline failure. Message is safe to show to
// API clients; the wrapped error carries the internal detail.
type Error struct {
	Kind    Kind
	Message string

	// RetryAfter is set only for KindRateLimited.
	RetryAfter time.Duration

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// newError builds an Error wrapping a cause.
func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}
