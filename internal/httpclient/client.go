package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/hhplus/orderstorm/internal/behavior"
)

// DefaultMaxBodyBytes caps how much of a response body is kept for classification.
const DefaultMaxBodyBytes = 1 << 20

// Options configure a Client.
type Options struct {
	BaseURL      string
	Timeout      time.Duration
	Header       map[string]string // added to every request unless the request sets the key
	MaxBodyBytes int64
	// Transport replaces the tuned default transport, mostly for tests.
	Transport http.RoundTripper

	// TracerProvider, when set, instruments the transport with otelhttp.
	TracerProvider trace.TracerProvider
	// Propagate injects W3C trace context headers into outgoing requests.
	Propagate bool
}

// Client issues behavior requests against one base URL and reports phase timings.
type Client struct {
	base    string
	http    *http.Client
	header  http.Header
	maxBody int64
}

// Response is a fully read response.
type Response struct {
	Status    int
	Header    http.Header
	Body      []byte
	Truncated bool
	Timings   Timings
}

// New validates opts and builds a Client.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("base URL is required")
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q must use http or https", base)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base URL %q has no host", base)
	}

	headers, err := canonicalHeaders(opts.Header)
	if err != nil {
		return nil, err
	}

	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	client := NewClient(opts.Timeout)
	if opts.Transport != nil {
		client.Transport = opts.Transport
	}
	if opts.TracerProvider != nil {
		otelOpts := []otelhttp.Option{otelhttp.WithTracerProvider(opts.TracerProvider)}
		if opts.Propagate {
			otelOpts = append(otelOpts, otelhttp.WithPropagators(otel.GetTextMapPropagator()))
		} else {
			otelOpts = append(otelOpts, otelhttp.WithPropagators(propagation.NewCompositeTextMapPropagator()))
		}
		client.Transport = otelhttp.NewTransport(client.Transport, otelOpts...)
	}

	return &Client{
		base:    base,
		http:    client,
		header:  headers,
		maxBody: maxBody,
	}, nil
}

// NewClient returns an http.Client tuned for many concurrent workers hitting one host.
func NewClient(timeout time.Duration) *http.Client {
	if timeout < 0 {
		timeout = 0
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          2048,
		MaxIdleConnsPerHost:   1024,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// URL resolves path against the base URL.
func (c *Client) URL(path string) string {
	if path == "" {
		return c.base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.base + path
}

// Do issues r and reads the response body. Every failure to obtain a complete
// response, including timeouts, is returned as a *TransportError.
func (c *Client) Do(ctx context.Context, r behavior.Request) (*Response, error) {
	target := c.URL(r.Path)
	method := strings.ToUpper(strings.TrimSpace(r.Method))
	if method == "" {
		method = http.MethodGet
	}

	tracer := &phaseTracer{}
	ctx = httptrace.WithClientTrace(ctx, tracer.clientTrace())

	body := newBodySource(r.Body)
	reader, _ := body.NewReader()
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &TransportError{Op: method, URL: target, Err: err}
	}
	req.ContentLength = body.ContentLength()
	req.GetBody = body.NewReader

	req.Header = make(http.Header, len(c.header)+len(r.Header))
	for key, values := range c.header {
		req.Header[key] = append([]string(nil), values...)
	}
	for key, values := range r.Header {
		req.Header[http.CanonicalHeaderKey(key)] = append([]string(nil), values...)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: method, URL: target, Err: err, Elapsed: time.Since(start)}
	}
	defer resp.Body.Close()

	data, truncated, err := readBody(resp.Body, c.maxBody)
	end := time.Now()
	if err != nil {
		return nil, &TransportError{Op: "read body", URL: target, Err: err, Elapsed: end.Sub(start)}
	}

	return &Response{
		Status:    resp.StatusCode,
		Header:    resp.Header,
		Body:      data,
		Truncated: truncated,
		Timings:   tracer.timings(start, end),
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

func canonicalHeaders(in map[string]string) (http.Header, error) {
	headers := http.Header{}
	for key, value := range in {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" || strings.ContainsAny(trimmedKey, "\r\n :") {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		canonicalKey := http.CanonicalHeaderKey(trimmedKey)
		if strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("invalid header value for %s", canonicalKey)
		}
		headers.Set(canonicalKey, value)
	}
	return headers, nil
}
