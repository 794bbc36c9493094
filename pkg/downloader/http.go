package downloader

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"sbdl/pkg/common"
)

// maxSizeHint bounds how much memory an announced Content-Length may
// reserve up front. Larger bodies still download, growing as they arrive.
const maxSizeHint = 64 << 20

// Immutable
type streamingTransport struct {
	client    *http.Client
	userAgent string
}

// NewStreamingTransport returns a Transport that reports byte-level
// progress whenever the server announces a Content-Length. The request is
// bound to the caller's context, so cancelling it aborts the transfer.
func NewStreamingTransport(client *http.Client, userAgent string) Transport {
	return &streamingTransport{client: client, userAgent: userAgent}
}

func (t *streamingTransport) Name() string { return "streaming" }

func (t *streamingTransport) Schemes() []string {
	return []string{"http", "https"}
}

func (t *streamingTransport) Fetch(ctx context.Context, uri string, onProgress ProgressFunc) ([]byte, error) {
	resp, err := get(ctx, t.client, uri, t.userAgent)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if resp.ContentLength > 0 && resp.ContentLength <= maxSizeHint {
		buf.Grow(int(resp.ContentLength))
	}

	pw := &progressWriter{
		ctx:        ctx,
		onProgress: onProgress,
		trace:      traceFrom(ctx),
		total:      resp.ContentLength,
	}

	if _, err := io.Copy(io.MultiWriter(&buf, pw), resp.Body); err != nil {
		return nil, fetchError(ctx, uri, err)
	}
	return buf.Bytes(), nil
}

// Immutable
type bufferedTransport struct {
	client    *http.Client
	userAgent string
}

// NewBufferedTransport returns a Transport that reads the whole response
// in one go. It emits no intermediate progress and ignores cancellation:
// an abandoned fetch runs to completion and its result is dropped.
func NewBufferedTransport(client *http.Client, userAgent string) Transport {
	return &bufferedTransport{client: client, userAgent: userAgent}
}

func (t *bufferedTransport) Name() string { return "buffered" }

func (t *bufferedTransport) Schemes() []string {
	return []string{"http", "https"}
}

func (t *bufferedTransport) Fetch(ctx context.Context, uri string, _ ProgressFunc) ([]byte, error) {
	ctx = context.WithoutCancel(ctx)

	resp, err := get(ctx, t.client, uri, t.userAgent)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &common.TransportError{URL: uri, Err: err}
	}
	if trace := traceFrom(ctx); trace != nil {
		trace.GotBytes(int64(len(data)), int64(len(data)))
	}
	return data, nil
}

func get(ctx context.Context, client *http.Client, uri, userAgent string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, &common.TransportError{URL: uri, Err: err}
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fetchError(ctx, uri, err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &common.HTTPError{URL: uri, StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// fetchError classifies a failed request or body read. A done context
// takes precedence over whatever error the transport surfaced for it.
func fetchError(ctx context.Context, uri string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &common.CancellationError{URL: uri, Err: ctxErr}
	}
	return &common.TransportError{URL: uri, Err: err}
}

// Mutable
type progressWriter struct {
	ctx        context.Context
	onProgress ProgressFunc
	trace      *Trace
	total      int64
	written    int64
	last       float64
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n := len(p)
	pw.written += int64(n)

	if pw.ctx.Err() != nil {
		return n, nil
	}
	if pw.trace != nil {
		pw.trace.GotBytes(pw.written, pw.total)
	}

	// Unknown length: only the bookends fire.
	if pw.total <= 0 {
		return n, nil
	}

	fraction := float64(pw.written) / float64(pw.total)
	// The final 1 belongs to the manager.
	if fraction >= 1 || fraction <= pw.last {
		return n, nil
	}
	pw.last = fraction
	pw.onProgress(fraction)
	return n, nil
}
