package httpclient

import (
	"crypto/tls"
	"net/http/httptrace"
	"sync"
	"time"
)

// Timings break a request down into the phases reported as http_req_* trends.
type Timings struct {
	Total          time.Duration // wall clock from issue to last body byte
	Duration       time.Duration // sending + waiting + receiving
	Blocked        time.Duration // waiting for a connection slot
	Connecting     time.Duration // TCP connect, zero on reuse
	TLSHandshaking time.Duration
	Sending        time.Duration
	Waiting        time.Duration // time to first byte
	Receiving      time.Duration
	Reused         bool
}

// phaseTracer records httptrace callbacks, which may fire on dialer goroutines.
type phaseTracer struct {
	mu           sync.Mutex
	getConn      time.Time
	gotConn      time.Time
	connectStart time.Time
	connectDone  time.Time
	tlsStart     time.Time
	tlsDone      time.Time
	wrote        time.Time
	firstByte    time.Time
	reused       bool
}

func (p *phaseTracer) clientTrace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		GetConn: func(string) {
			p.mark(&p.getConn)
		},
		GotConn: func(info httptrace.GotConnInfo) {
			p.mu.Lock()
			p.gotConn = time.Now()
			p.reused = info.Reused
			p.mu.Unlock()
		},
		ConnectStart: func(string, string) {
			p.mu.Lock()
			if p.connectStart.IsZero() {
				p.connectStart = time.Now()
			}
			p.mu.Unlock()
		},
		ConnectDone: func(string, string, error) {
			p.mark(&p.connectDone)
		},
		TLSHandshakeStart: func() {
			p.mark(&p.tlsStart)
		},
		TLSHandshakeDone: func(tls.ConnectionState, error) {
			p.mark(&p.tlsDone)
		},
		WroteRequest: func(httptrace.WroteRequestInfo) {
			p.mark(&p.wrote)
		},
		GotFirstResponseByte: func() {
			p.mark(&p.firstByte)
		},
	}
}

func (p *phaseTracer) mark(t *time.Time) {
	p.mu.Lock()
	*t = time.Now()
	p.mu.Unlock()
}

// timings derives phase durations. Missing callbacks leave their phase at zero.
func (p *phaseTracer) timings(start, end time.Time) Timings {
	p.mu.Lock()
	defer p.mu.Unlock()

	t := Timings{Reused: p.reused}
	t.Connecting = span(p.connectStart, p.connectDone)
	t.TLSHandshaking = span(p.tlsStart, p.tlsDone)

	getConn := p.getConn
	if getConn.IsZero() {
		getConn = start
	}
	t.Blocked = span(getConn, p.gotConn) - t.Connecting - t.TLSHandshaking
	if t.Blocked < 0 {
		t.Blocked = 0
	}

	sendStart := p.gotConn
	if sendStart.IsZero() {
		sendStart = start
	}
	t.Sending = span(sendStart, p.wrote)
	t.Waiting = span(p.wrote, p.firstByte)
	t.Receiving = span(p.firstByte, end)

	t.Duration = end.Sub(sendStart)
	t.Total = end.Sub(start)
	return t
}

func span(from, to time.Time) time.Duration {
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return 0
	}
	return to.Sub(from)
}
