// Package downloader retrieves remote project payloads into memory.
// It reports progress as a fraction in [0,1] and always brackets a
// successful fetch with a 0 and a final 1.
package downloader

import (
	"context"
)

// ProgressFunc receives the completed fraction of a fetch, between 0 and 1.
type ProgressFunc func(fraction float64)

// Downloader fetches resources as byte buffers.
type Downloader interface {
	// FetchWithProgress retrieves the resource at uri.
	// onProgress(0) is called before any network activity and onProgress(1)
	// exactly once right before a successful return. Cancelling ctx aborts
	// the transfer when the active transport supports it.
	FetchWithProgress(ctx context.Context, uri string, onProgress ProgressFunc) ([]byte, error)
}

// Transport performs the actual retrieval for the schemes it supports.
// Implementations may emit intermediate progress but never the final 1;
// the manager owns the bookend calls.
type Transport interface {
	Fetch(ctx context.Context, uri string, onProgress ProgressFunc) ([]byte, error)
	// Schemes returns the URI schemes (e.g. ["http", "https"]) handled.
	Schemes() []string
	// Name identifies the transport in logs.
	Name() string
}

// Trace receives byte counts of the fetches made with a context carrying
// it. It complements ProgressFunc when a caller wants sizes, not fractions.
type Trace struct {
	// GotBytes is called with the bytes read so far and the announced
	// total, which is -1 when the server sent no length.
	GotBytes func(loaded, total int64)
}

type traceKey struct{}

// WithTrace returns a copy of ctx that reports fetch sizes to t.
func WithTrace(ctx context.Context, t *Trace) context.Context {
	return context.WithValue(ctx, traceKey{}, t)
}

func traceFrom(ctx context.Context) *Trace {
	t, _ := ctx.Value(traceKey{}).(*Trace)
	if t == nil || t.GotBytes == nil {
		return nil
	}
	return t
}

// Noop is a ProgressFunc that discards every update.
func Noop(float64) {}
