// Package common provides the error types shared by the downloader, the
// project classifier and the loader. Callers inspect them with errors.As.
package common

import (
	"errors"
	"fmt"
)

// ErrCancelled is matched by every CancellationError, so callers can use
// errors.Is without caring which URL was being fetched.
var ErrCancelled = errors.New("cancelled")

// TransportError reports a network-level failure (connection refused, DNS,
// broken body) or a URL the downloader cannot handle.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPError reports a completed request that returned a non-success status.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("failed to fetch %s: HTTP status %d", e.URL, e.StatusCode)
}

// CancellationError reports a fetch aborted through its context.
type CancellationError struct {
	URL string
	Err error
}

func (e *CancellationError) Error() string {
	return fmt.Sprintf("failed to fetch %s: aborted", e.URL)
}

func (e *CancellationError) Unwrap() error { return e.Err }

func (e *CancellationError) Is(target error) bool {
	return target == ErrCancelled
}

// ParseError reports input that was supposed to be JSON text but is not.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid project JSON: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// UnrecognizedFormatError reports a payload matching none of the known
// project containers. Format describes what was seen instead.
type UnrecognizedFormatError struct {
	Format string
}

func (e *UnrecognizedFormatError) Error() string {
	return fmt.Sprintf("unrecognized project format: %s", e.Format)
}
