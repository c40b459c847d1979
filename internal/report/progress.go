package report

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hhplus/orderstorm/internal/classify"
	"github.com/hhplus/orderstorm/internal/metrics"
)

// Run-level gauges published by the engine.
const (
	MetricVUs    = "vus"
	MetricVUsMax = "vus_max"
)

// Point is one progress sample, kept for the HTML charts.
type Point struct {
	Elapsed  float64 `json:"elapsed_s"`
	VUs      int     `json:"vus"`
	Requests int64   `json:"requests"`
	RPS      float64 `json:"rps"`
	P95      float64 `json:"p95_ms"`
	Failed   float64 `json:"failed_rate"`
}

// ProgressReporter displays real-time progress updates read from a sink.
type ProgressReporter struct {
	sink     *metrics.Sink
	interval time.Duration
	ticker   *time.Ticker
	done     chan struct{}
	finished chan struct{}
	writer   io.Writer
	active   int32
	start    time.Time

	mu       sync.Mutex
	history  []Point
	lastReqs float64
	lastTick time.Time
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(sink *metrics.Sink, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	if interval <= 0 {
		interval = time.Second
	}
	now := time.Now()
	return &ProgressReporter{
		sink:     sink,
		interval: interval,
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		writer:   writer,
		start:    now,
		lastTick: now,
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	p.ticker = time.NewTicker(p.interval)
	go p.run()
}

// Stop halts progress updates and terminates the progress line.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 2) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
		fmt.Fprintln(p.writer)
	}
}

// History returns the samples taken so far.
func (p *ProgressReporter) History() []Point {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Point(nil), p.history...)
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case now := <-p.ticker.C:
			pt := p.Sample(now)
			fmt.Fprint(p.writer, formatProgress(pt))
		case <-p.done:
			return
		}
	}
}

// Sample records one progress point at now.
func (p *ProgressReporter) Sample(now time.Time) Point {
	elapsed := now.Sub(p.start)
	reqs := p.sinkValue(classify.MetricRequests, elapsed)

	p.mu.Lock()
	defer p.mu.Unlock()
	pt := Point{Elapsed: elapsed.Seconds(), Requests: int64(reqs)}
	if window := now.Sub(p.lastTick).Seconds(); window > 0 {
		pt.RPS = (reqs - p.lastReqs) / window
	}
	p.lastReqs = reqs
	p.lastTick = now

	if vus, ok := p.sink.Summary(MetricVUs, elapsed); ok {
		pt.VUs = int(vus.Value)
	}
	if d, ok := p.sink.Summary(classify.MetricDuration, elapsed); ok {
		pt.P95 = d.P95
	}
	pt.Failed = p.sinkValue(classify.MetricFailed, elapsed)
	p.history = append(p.history, pt)
	return pt
}

func (p *ProgressReporter) sinkValue(name string, elapsed time.Duration) float64 {
	m, ok := p.sink.Summary(name, elapsed)
	if !ok {
		return 0
	}
	return m.Value
}

func formatProgress(pt Point) string {
	return fmt.Sprintf("\rVUs: %d | Requests: %d | RPS: %.1f | Failed: %.1f%% | P95: %.1fms",
		pt.VUs, pt.Requests, pt.RPS, pt.Failed*100, pt.P95)
}
