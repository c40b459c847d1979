// Package httpclient is the blocking HTTP transport used by load workers.
//
// A [Client] resolves [behavior.Request] paths against one base URL, reads the
// response body (capped at [DefaultMaxBodyBytes]) and reports per-phase
// [Timings] collected with net/http/httptrace:
//
//	client, err := httpclient.New(httpclient.Options{
//		BaseURL: "http://localhost:8080",
//		Timeout: 30 * time.Second,
//	})
//	resp, err := client.Do(ctx, req)
//
// Any failure to obtain a complete response, including client timeouts, is a
// [*TransportError]; a response with a non-2xx status is not an error.
//
// # Tracing
//
// Setting [Options.TracerProvider] wraps the transport with otelhttp so every
// request becomes a client span. [Options.Propagate] controls whether W3C trace
// context headers are sent to the target.
package httpclient
