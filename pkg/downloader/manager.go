package downloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"sbdl/pkg/common"
)

// Option configures the downloader returned by New.
type Option func(*options)

type options struct {
	client    *http.Client
	buffered  bool
	userAgent string
}

// WithHTTPClient sets the client used by the transports.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.client = c
	}
}

// WithBuffered forces the buffered transport, which has no intermediate
// progress and no cancellation.
func WithBuffered(buffered bool) Option {
	return func(o *options) {
		o.buffered = buffered
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		o.userAgent = ua
	}
}

// Mutable
type manager struct {
	handlers map[string]Transport
}

// New creates a Downloader with the transport picked for this environment.
func New(opts ...Option) Downloader {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.client == nil {
		o.client = &http.Client{
			Timeout: 0, // Handled by context
		}
	}

	m := &manager{
		handlers: make(map[string]Transport),
	}
	m.Register(selectTransport(o))
	return m
}

// NewWithTransports creates a Downloader dispatching to the given transports.
// Later transports override earlier ones for a shared scheme.
func NewWithTransports(transports ...Transport) Downloader {
	m := &manager{
		handlers: make(map[string]Transport),
	}
	for _, t := range transports {
		m.Register(t)
	}
	return m
}

// selectTransport probes the client for byte-level progress support.
// http.Client always exposes the response body as a stream, so only an
// explicit request for the buffered mode or a client that cannot stream
// falls back.
func selectTransport(o *options) Transport {
	if !o.buffered && canStream(o.client) {
		return NewStreamingTransport(o.client, o.userAgent)
	}
	return NewBufferedTransport(o.client, o.userAgent)
}

// bufferingRoundTripper is implemented by round trippers that only hand
// back fully read bodies, which makes streaming progress meaningless.
type bufferingRoundTripper interface {
	BuffersResponses() bool
}

func canStream(c *http.Client) bool {
	if b, ok := c.Transport.(bufferingRoundTripper); ok {
		return !b.BuffersResponses()
	}
	return true
}

func (m *manager) Register(t Transport) {
	for _, scheme := range t.Schemes() {
		m.handlers[scheme] = t
	}
}

func (m *manager) FetchWithProgress(ctx context.Context, uri string, onProgress ProgressFunc) ([]byte, error) {
	if onProgress == nil {
		onProgress = Noop
	}
	// Real progress is not always available, but 0 and 1 always fire.
	onProgress(0)

	t, err := m.transportFor(uri)
	if err != nil {
		return nil, &common.TransportError{URL: uri, Err: err}
	}

	slog.Debug("Fetching", "url", uri, "transport", t.Name())
	data, err := t.Fetch(ctx, uri, onProgress)
	if err != nil {
		return nil, err
	}

	onProgress(1)
	return data, nil
}

func (m *manager) transportFor(uri string) (Transport, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid uri: %w", err)
	}
	if !u.IsAbs() {
		return nil, errors.New("invalid uri: not absolute")
	}

	scheme := strings.ToLower(u.Scheme)
	t, ok := m.handlers[scheme]
	if !ok {
		return nil, fmt.Errorf("unsupported scheme: %s", scheme)
	}
	return t, nil
}
