package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hhplus/orderstorm/internal/behavior"
)

func TestDoSendsRequest(t *testing.T) {
	var gotMethod, gotPath, gotBody, gotType, gotExtra string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotExtra = r.Header.Get("X-Run")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"code":"DUPLICATE_PAYMENT","message":"dup"}`))
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL + "/", Timeout: time.Second, Header: map[string]string{"x-run": "abc"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	resp, err := c.Do(context.Background(), behavior.Request{
		Method: http.MethodPost,
		Path:   "/api/v1/orders",
		Header: http.Header{"Content-Type": {"application/json"}},
		Body:   []byte(`{"userId":1}`),
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}

	if gotMethod != http.MethodPost || gotPath != "/api/v1/orders" {
		t.Fatalf("unexpected request %s %s", gotMethod, gotPath)
	}
	if gotBody != `{"userId":1}` || gotType != "application/json" {
		t.Fatalf("unexpected body %q / content type %q", gotBody, gotType)
	}
	if gotExtra != "abc" {
		t.Fatalf("expected default header, got %q", gotExtra)
	}
	if resp.Status != http.StatusConflict {
		t.Fatalf("status = %d", resp.Status)
	}
	if !strings.Contains(string(resp.Body), "DUPLICATE_PAYMENT") {
		t.Fatalf("body = %q", resp.Body)
	}
	if resp.Timings.Duration <= 0 || resp.Timings.Total < resp.Timings.Duration {
		t.Fatalf("unexpected timings %+v", resp.Timings)
	}
}

func TestDoTimeoutIsTransportError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := New(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = c.Do(context.Background(), behavior.Request{Path: "/slow"})
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %T %v", err, err)
	}
	if !te.Timeout() {
		t.Fatalf("expected timeout, got %v", te.Err)
	}
	if te.Elapsed <= 0 {
		t.Fatal("elapsed should be recorded on failure")
	}
}

func TestDoConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Options{BaseURL: url, Timeout: time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.Do(context.Background(), behavior.Request{Path: "/"})
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
}

func TestDoTruncatesLargeBodies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL, MaxBodyBytes: 10})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resp, err := c.Do(context.Background(), behavior.Request{})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if len(resp.Body) != 10 || !resp.Truncated {
		t.Fatalf("expected 10 truncated bytes, got %d truncated=%v", len(resp.Body), resp.Truncated)
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"empty base", Options{}},
		{"bad scheme", Options{BaseURL: "ftp://example.com"}},
		{"no host", Options{BaseURL: "http://"}},
		{"bad header key", Options{BaseURL: "http://example.com", Header: map[string]string{"bad\nkey": "v"}}},
		{"bad header value", Options{BaseURL: "http://example.com", Header: map[string]string{"X-Ok": "v\r\n"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestURLJoin(t *testing.T) {
	c, err := New(Options{BaseURL: "http://host.docker.internal:8080/"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.URL("api/v1/orders"); got != "http://host.docker.internal:8080/api/v1/orders" {
		t.Fatalf("URL = %q", got)
	}
	if got := c.URL(""); got != "http://host.docker.internal:8080" {
		t.Fatalf("URL = %q", got)
	}
}

func TestInstrumentedTransportPropagates(t *testing.T) {
	var traceparent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("Traceparent")
	}))
	defer srv.Close()

	recorder := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	c, err := New(Options{BaseURL: srv.URL, TracerProvider: tp, Propagate: false})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Do(context.Background(), behavior.Request{Path: "/api/v1/bestsellers"}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if traceparent != "" {
		t.Fatalf("propagation disabled but got traceparent %q", traceparent)
	}
	if len(recorder.Ended()) == 0 {
		t.Fatal("expected an otelhttp client span")
	}
}
