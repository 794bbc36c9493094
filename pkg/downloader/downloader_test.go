package downloader

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"sbdl/pkg/common"
)

type progressRecorder struct {
	mu    sync.Mutex
	calls []float64
}

func (r *progressRecorder) record(f float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, f)
}

func (r *progressRecorder) values() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.calls...)
}

func checkBookends(t *testing.T, calls []float64) {
	t.Helper()
	if len(calls) < 2 {
		t.Fatalf("Expected at least 2 progress calls, got %v", calls)
	}
	if calls[0] != 0 {
		t.Errorf("First progress call should be 0, got %v", calls[0])
	}
	if calls[len(calls)-1] != 1 {
		t.Errorf("Last progress call should be 1, got %v", calls[len(calls)-1])
	}
	ones := 0
	for i, c := range calls {
		if c < 0 || c > 1 {
			t.Errorf("Progress %v out of range", c)
		}
		if i > 0 && c < calls[i-1] {
			t.Errorf("Progress went backwards: %v", calls)
		}
		if c == 1 {
			ones++
		}
	}
	if ones != 1 {
		t.Errorf("Expected exactly one 1, got %d in %v", ones, calls)
	}
}

func TestStreamingDownload(t *testing.T) {
	content := bytes.Repeat([]byte("scratch "), 64*1024)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(content)))
		w.WriteHeader(http.StatusOK)
		for i := 0; i < len(content); i += 32 * 1024 {
			w.Write(content[i : i+32*1024])
			w.(http.Flusher).Flush()
		}
	}))
	defer ts.Close()

	d := New()
	rec := &progressRecorder{}

	data, err := d.FetchWithProgress(context.Background(), ts.URL, rec.record)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Errorf("Content mismatch")
	}

	calls := rec.values()
	checkBookends(t, calls)
	if len(calls) < 3 {
		t.Errorf("Expected intermediate progress for a sized body, got %v", calls)
	}
}

func TestStreamingUnknownLength(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("chunk one "))
		w.(http.Flusher).Flush()
		w.Write([]byte("chunk two"))
	}))
	defer ts.Close()

	rec := &progressRecorder{}
	data, err := New().FetchWithProgress(context.Background(), ts.URL, rec.record)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if string(data) != "chunk one chunk two" {
		t.Errorf("Content mismatch, got %q", data)
	}

	calls := rec.values()
	if len(calls) != 2 || calls[0] != 0 || calls[1] != 1 {
		t.Errorf("Expected only bookends, got %v", calls)
	}
}

func TestTraceBytes(t *testing.T) {
	content := []byte("counted content")
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/chunked" {
			w.Write(content[:7])
			w.(http.Flusher).Flush()
			w.Write(content[7:])
			return
		}
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(content)))
		w.Write(content)
	}))
	defer ts.Close()

	tests := []struct {
		name      string
		d         Downloader
		path      string
		wantTotal int64
	}{
		{"streaming sized", New(), "/", int64(len(content))},
		{"streaming unknown", New(), "/chunked", -1},
		{"buffered", New(WithBuffered(true)), "/", int64(len(content))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var loaded, total int64
			ctx := WithTrace(context.Background(), &Trace{GotBytes: func(l, tot int64) {
				if l < loaded {
					t.Errorf("Byte count went backwards: %d after %d", l, loaded)
				}
				loaded, total = l, tot
			}})

			if _, err := tt.d.FetchWithProgress(ctx, ts.URL+tt.path, nil); err != nil {
				t.Fatal(err)
			}
			if loaded != int64(len(content)) || total != tt.wantTotal {
				t.Errorf("Expected %d/%d bytes, got %d/%d", len(content), tt.wantTotal, loaded, total)
			}
		})
	}
}

func TestBufferedDownload(t *testing.T) {
	content := []byte("some content fetched in one piece")
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(content)))
		w.Write(content)
	}))
	defer ts.Close()

	rec := &progressRecorder{}
	data, err := New(WithBuffered(true)).FetchWithProgress(context.Background(), ts.URL, rec.record)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Errorf("Content mismatch")
	}

	calls := rec.values()
	if len(calls) != 2 || calls[0] != 0 || calls[1] != 1 {
		t.Errorf("Expected only bookends, got %v", calls)
	}
}

func TestHTTPRedirect(t *testing.T) {
	content := []byte("redirected content")

	// Target server
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write(content)
	}))
	defer ts.Close()

	// Redirect server
	rs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, ts.URL, http.StatusMovedPermanently)
	}))
	defer rs.Close()

	data, err := New().FetchWithProgress(context.Background(), rs.URL, nil)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Errorf("Content mismatch, got %q", data)
	}
}

func TestHTTPStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer ts.Close()

	for _, buffered := range []bool{false, true} {
		rec := &progressRecorder{}
		_, err := New(WithBuffered(buffered)).FetchWithProgress(context.Background(), ts.URL, rec.record)

		var httpErr *common.HTTPError
		if !errors.As(err, &httpErr) {
			t.Fatalf("Expected HTTPError, got %v", err)
		}
		if httpErr.StatusCode != http.StatusNotFound || httpErr.URL != ts.URL {
			t.Errorf("Unexpected error fields: %+v", httpErr)
		}
		if calls := rec.values(); len(calls) != 1 || calls[0] != 0 {
			t.Errorf("Expected only the initial 0 on failure, got %v", calls)
		}
	}
}

func TestTransportError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	_, err := New().FetchWithProgress(context.Background(), url, nil)

	var transportErr *common.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("Expected TransportError, got %v", err)
	}
	if !strings.Contains(err.Error(), url) {
		t.Errorf("Expected error to mention %s, got %v", url, err)
	}
}

// rawServer answers a single request with a hand written response.
func rawServer(t *testing.T, response string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		if _, err := http.ReadRequest(bufio.NewReader(conn)); err != nil {
			return
		}
		conn.Write([]byte(response))
	}()
	return "http://" + ln.Addr().String() + "/"
}

func TestHugeContentLength(t *testing.T) {
	url := rawServer(t, "HTTP/1.1 200 OK\r\nContent-Length: 1125899906842624\r\n\r\nabc")

	rec := &progressRecorder{}
	data, err := New().FetchWithProgress(context.Background(), url, rec.record)

	if data != nil {
		t.Errorf("Expected no data for a truncated body, got %d bytes", len(data))
	}
	var te *common.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("Expected TransportError for a truncated body, got %v", err)
	}
	for _, f := range rec.values() {
		if f >= 1 {
			t.Errorf("Unexpected completion progress %v", f)
		}
	}
}

func TestUnsupportedScheme(t *testing.T) {
	rec := &progressRecorder{}
	_, err := New().FetchWithProgress(context.Background(), "ftp://example.com", rec.record)
	if err == nil || !strings.Contains(err.Error(), "unsupported scheme") {
		t.Errorf("Expected unsupported scheme error, got: %v", err)
	}
	if calls := rec.values(); len(calls) != 1 || calls[0] != 0 {
		t.Errorf("Expected only the initial 0, got %v", calls)
	}
}

func TestRelativeURL(t *testing.T) {
	_, err := New().FetchWithProgress(context.Background(), "projects/123", nil)
	var transportErr *common.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("Expected TransportError, got %v", err)
	}
}

func TestCancelStreaming(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100000")
		w.WriteHeader(http.StatusOK)
		w.Write(make([]byte, 1000))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	cancelled := false
	afterCancel := 0
	onProgress := func(f float64) {
		mu.Lock()
		defer mu.Unlock()
		if cancelled {
			afterCancel++
			return
		}
		if f > 0 {
			cancelled = true
			cancel()
		}
	}

	_, err := New().FetchWithProgress(ctx, ts.URL, onProgress)

	var cancelErr *common.CancellationError
	if !errors.As(err, &cancelErr) {
		t.Fatalf("Expected CancellationError, got %v", err)
	}
	if cancelErr.URL != ts.URL {
		t.Errorf("Expected URL %s, got %s", ts.URL, cancelErr.URL)
	}
	if !errors.Is(err, common.ErrCancelled) {
		t.Errorf("Expected errors.Is(err, ErrCancelled)")
	}

	mu.Lock()
	defer mu.Unlock()
	if afterCancel != 0 {
		t.Errorf("Expected no progress after cancellation, got %d calls", afterCancel)
	}
}

type fakeTransport struct {
	data []byte
}

func (f *fakeTransport) Fetch(ctx context.Context, uri string, onProgress ProgressFunc) ([]byte, error) {
	onProgress(0.5)
	return f.data, nil
}
func (f *fakeTransport) Schemes() []string { return []string{"mem"} }
func (f *fakeTransport) Name() string      { return "fake" }

func TestCustomTransport(t *testing.T) {
	d := NewWithTransports(&fakeTransport{data: []byte("in memory")})
	rec := &progressRecorder{}

	data, err := d.FetchWithProgress(context.Background(), "mem://project", rec.record)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(data) != "in memory" {
		t.Errorf("Content mismatch, got %q", data)
	}
	calls := rec.values()
	checkBookends(t, calls)
	if len(calls) != 3 || calls[1] != 0.5 {
		t.Errorf("Expected [0 0.5 1], got %v", calls)
	}
}

type bufferingTripper struct{}

func (bufferingTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	return http.DefaultTransport.RoundTrip(r)
}
func (bufferingTripper) BuffersResponses() bool { return true }

func TestSelectTransport(t *testing.T) {
	if got := selectTransport(&options{client: &http.Client{}}).Name(); got != "streaming" {
		t.Errorf("Expected streaming transport, got %s", got)
	}
	if got := selectTransport(&options{client: &http.Client{}, buffered: true}).Name(); got != "buffered" {
		t.Errorf("Expected buffered transport, got %s", got)
	}
	if got := selectTransport(&options{client: &http.Client{Transport: bufferingTripper{}}}).Name(); got != "buffered" {
		t.Errorf("Expected buffered transport for a buffering round tripper, got %s", got)
	}
}

func TestUserAgent(t *testing.T) {
	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer ts.Close()

	if _, err := New(WithUserAgent("sbdl-test")).FetchWithProgress(context.Background(), ts.URL, nil); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if got != "sbdl-test" {
		t.Errorf("Expected User-Agent sbdl-test, got %q", got)
	}
}
