package client

import (
	"context"
	"errors"
	"fmt"
)

// =============================================================================
// Navigation Error Kinds
// =============================================================================

// Sentinel errors for the navigation failure policy. Aborted navigations
// and deduped submissions are swallowed silently; an empty body is logged
// as "Navigation failed" and leaves the current page untouched.
var (
	// ErrAborted marks work cancelled through its cancel token.
	ErrAborted = errors.New("aborted")

	// ErrDeduped is the abort cause used when a submission is replaced by a
	// later submission carrying the same dedupe key.
	ErrDeduped = errors.New("deduped")

	// ErrEmptyBody marks an OK response whose body was empty.
	ErrEmptyBody = errors.New("empty response body")

	// ErrTooManyRedirects names the redirect depth-cap failure. The redirect
	// resolver logs "Too many redirects" at the cap and does not return it.
	ErrTooManyRedirects = errors.New("too many redirects")
)

// StatusError marks a non-ok, non-304 response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected response status %d", e.Code)
}

// RenderError wraps a failure from the host re-render callback.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string {
	return "render failed: " + e.Err.Error()
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// isAbort reports whether err stems from a cancelled token, including
// context cancellation surfaced through the fetch layer.
func isAbort(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrAborted) || errors.Is(err, context.Canceled) || errors.Is(err, ErrDeduped)
}
