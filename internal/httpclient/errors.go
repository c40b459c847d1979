package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// TransportError reports a request that produced no complete response.
type TransportError struct {
	Op      string
	URL     string
	Err     error
	Elapsed time.Duration
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a deadline or client timeout.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}
