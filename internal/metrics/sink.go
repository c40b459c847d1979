package metrics

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// ErrKindMismatch is returned when a sample targets an existing metric under a different kind.
var ErrKindMismatch = errors.New("metric kind mismatch")

// ErrEmptyName is returned for samples without a metric name.
var ErrEmptyName = errors.New("metric name is empty")

// Trend samples are milliseconds; the histogram stores them at microsecond
// resolution from 1µs up to one hour with 3 significant figures.
const (
	trendScale   = 1000
	trendLowest  = 1
	trendHighest = 3_600_000_000
	trendDigits  = 3
)

// Sink is the single shared metric store of a run. Metrics are created on first
// write and keep the kind they were created with.
type Sink struct {
	mu       sync.RWMutex
	metrics  map[string]*metric
	rejected atomic.Int64

	statusMu sync.Mutex
	statuses map[int]int64
	errors   map[string]int64
}

type metric struct {
	name string
	kind Kind

	mu     sync.Mutex
	count  int64
	sum    float64
	min    float64
	max    float64
	last   float64
	passes int64
	hist   *hdrhistogram.Histogram
}

// NewSink creates an empty sink.
func NewSink() *Sink {
	return &Sink{
		metrics:  make(map[string]*metric),
		statuses: make(map[int]int64),
		errors:   make(map[string]int64),
	}
}

// Add records one sample. The first write of a name fixes its kind; a later
// write with another kind is rejected, counted, and reported as ErrKindMismatch.
func (s *Sink) Add(name string, kind Kind, value float64) error {
	if name == "" {
		s.rejected.Add(1)
		return ErrEmptyName
	}
	m, err := s.lookup(name, kind)
	if err != nil {
		s.rejected.Add(1)
		return err
	}
	m.observe(value)
	return nil
}

// Count adds value to a counter.
func (s *Sink) Count(name string, value float64) {
	_ = s.Add(name, KindCounter, value)
}

// Gauge sets a gauge to value.
func (s *Sink) Gauge(name string, value float64) {
	_ = s.Add(name, KindGauge, value)
}

// Rate records one boolean sample.
func (s *Sink) Rate(name string, ok bool) {
	v := 0.0
	if ok {
		v = 1
	}
	_ = s.Add(name, KindRate, v)
}

// Trend records one sample, in milliseconds for durations.
func (s *Sink) Trend(name string, value float64) {
	_ = s.Add(name, KindTrend, value)
}

// TrendDuration records d in milliseconds.
func (s *Sink) TrendDuration(name string, d time.Duration) {
	s.Trend(name, float64(d)/float64(time.Millisecond))
}

// Status counts one response status code.
func (s *Sink) Status(code int) {
	s.statusMu.Lock()
	s.statuses[code]++
	s.statusMu.Unlock()
}

// Error counts one transport error under its friendly type name.
func (s *Sink) Error(err error) {
	if err == nil {
		return
	}
	name := FriendlyErrorName(fmt.Sprintf("%T", errorCause(err)))
	s.statusMu.Lock()
	s.errors[name]++
	s.statusMu.Unlock()
}

// Rejected reports how many samples were refused.
func (s *Sink) Rejected() int64 {
	return s.rejected.Load()
}

// Kind returns the registered kind of name.
func (s *Sink) Kind(name string) (Kind, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.metrics[name]
	if !ok {
		return 0, false
	}
	return m.kind, true
}

// Summary freezes a single metric.
func (s *Sink) Summary(name string, elapsed time.Duration) (MetricSummary, bool) {
	s.mu.RLock()
	m, ok := s.metrics[name]
	s.mu.RUnlock()
	if !ok {
		return MetricSummary{}, false
	}
	return m.summary(elapsed), true
}

// Snapshot freezes every metric. The returned value shares no state with the sink.
func (s *Sink) Snapshot(elapsed time.Duration) Snapshot {
	s.mu.RLock()
	list := make([]*metric, 0, len(s.metrics))
	for _, m := range s.metrics {
		list = append(list, m)
	}
	s.mu.RUnlock()

	snap := Snapshot{
		Elapsed:  elapsed,
		Metrics:  make(map[string]MetricSummary, len(list)),
		Rejected: s.rejected.Load(),
	}
	for _, m := range list {
		snap.Metrics[m.name] = m.summary(elapsed)
	}

	s.statusMu.Lock()
	snap.Statuses = FlattenStatusBuckets(s.statuses)
	if len(s.errors) > 0 {
		snap.Errors = make(map[string]int64, len(s.errors))
		for k, v := range s.errors {
			snap.Errors[k] = v
		}
	}
	s.statusMu.Unlock()
	return snap
}

func (s *Sink) lookup(name string, kind Kind) (*metric, error) {
	s.mu.RLock()
	m, ok := s.metrics[name]
	s.mu.RUnlock()
	if !ok {
		s.mu.Lock()
		m, ok = s.metrics[name]
		if !ok {
			m = newMetric(name, kind)
			s.metrics[name] = m
		}
		s.mu.Unlock()
	}
	if m.kind != kind {
		return nil, fmt.Errorf("%w: %q is a %s, not a %s", ErrKindMismatch, name, m.kind, kind)
	}
	return m, nil
}

func newMetric(name string, kind Kind) *metric {
	m := &metric{name: name, kind: kind}
	if kind == KindTrend {
		m.hist = hdrhistogram.New(trendLowest, trendHighest, trendDigits)
	}
	return m
}

func (m *metric) observe(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.count == 0 || v < m.min {
		m.min = v
	}
	if m.count == 0 || v > m.max {
		m.max = v
	}
	m.count++
	m.last = v
	m.sum += v

	switch m.kind {
	case KindRate:
		if v != 0 {
			m.passes++
		}
	case KindTrend:
		scaled := int64(math.Round(v * trendScale))
		if scaled < trendLowest {
			scaled = trendLowest
		}
		if scaled > trendHighest {
			scaled = trendHighest
		}
		_ = m.hist.RecordValue(scaled)
	}
}

func (m *metric) summary(elapsed time.Duration) MetricSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := MetricSummary{
		Name:  m.name,
		Kind:  m.kind,
		Count: m.count,
	}
	if m.count == 0 {
		return out
	}
	seconds := elapsed.Seconds()

	switch m.kind {
	case KindCounter:
		out.Value = m.sum
		if seconds > 0 {
			out.Rate = m.sum / seconds
		}
	case KindGauge:
		out.Value = m.last
		out.Min = m.min
		out.Max = m.max
	case KindRate:
		out.Passes = m.passes
		out.Fails = m.count - m.passes
		out.Value = float64(m.passes) / float64(m.count)
		out.Rate = out.Value
	case KindTrend:
		out.Min = m.min
		out.Max = m.max
		out.Avg = m.sum / float64(m.count)
		out.hist = hdrhistogram.Import(m.hist.Export())
		out.Med, _ = out.Percentile(50)
		out.P90, _ = out.Percentile(90)
		out.P95, _ = out.Percentile(95)
		out.P99, _ = out.Percentile(99)
		out.P999, _ = out.Percentile(99.9)
	}
	return out
}

// Snapshot is an immutable view of every metric at a point in time.
type Snapshot struct {
	Elapsed  time.Duration            `json:"-" yaml:"-"`
	Metrics  map[string]MetricSummary `json:"metrics" yaml:"metrics"`
	Statuses []StatusBucket           `json:"statuses,omitempty" yaml:"statuses,omitempty"`
	Errors   map[string]int64         `json:"errors,omitempty" yaml:"errors,omitempty"`
	Rejected int64                    `json:"rejected_samples,omitempty" yaml:"rejected_samples,omitempty"`
}

// Get returns the summary of name.
func (s Snapshot) Get(name string) (MetricSummary, bool) {
	m, ok := s.Metrics[name]
	return m, ok
}

// Names lists metric names in lexical order.
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s.Metrics))
	for name := range s.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Value is a convenience for counters and rates: the summary value, or zero when absent.
func (s Snapshot) Value(name string) float64 {
	return s.Metrics[name].Value
}

// wrapperErrors only add request context; the error inside names the failure.
var wrapperErrors = map[string]bool{
	"*httpclient.TransportError": true,
	"*url.Error":                 true,
}

// errorCause looks through request wrappers such as *url.Error, which wraps
// nearly every client failure.
func errorCause(err error) error {
	for wrapperErrors[fmt.Sprintf("%T", err)] {
		inner := errors.Unwrap(err)
		if inner == nil {
			break
		}
		err = inner
	}
	return err
}
