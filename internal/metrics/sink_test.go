package metrics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"sync"
	"testing"
	"time"
)

func TestSinkCounterAndRate(t *testing.T) {
	s := NewSink()
	for i := 0; i < 10; i++ {
		s.Count("http_reqs", 1)
		s.Rate("http_req_failed", i%5 == 0)
	}

	snap := s.Snapshot(2 * time.Second)

	reqs, ok := snap.Get("http_reqs")
	if !ok {
		t.Fatal("http_reqs missing")
	}
	if reqs.Value != 10 {
		t.Fatalf("counter value = %v, want 10", reqs.Value)
	}
	if reqs.Rate != 5 {
		t.Fatalf("counter rate = %v, want 5/s", reqs.Rate)
	}

	failed := snap.Metrics["http_req_failed"]
	if failed.Passes != 2 || failed.Fails != 8 {
		t.Fatalf("rate passes/fails = %d/%d, want 2/8", failed.Passes, failed.Fails)
	}
	if math.Abs(failed.Value-0.2) > 1e-9 {
		t.Fatalf("rate value = %v, want 0.2", failed.Value)
	}
}

func TestSinkKindMismatchIsRejected(t *testing.T) {
	s := NewSink()
	if err := s.Add("success_rate", KindRate, 1); err != nil {
		t.Fatalf("first add: %v", err)
	}
	err := s.Add("success_rate", KindCounter, 5)
	if !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("expected ErrKindMismatch, got %v", err)
	}
	s.Trend("success_rate", 12)

	if got := s.Rejected(); got != 2 {
		t.Fatalf("rejected = %d, want 2", got)
	}
	m := s.Snapshot(time.Second).Metrics["success_rate"]
	if m.Kind != KindRate || m.Count != 1 || m.Value != 1 {
		t.Fatalf("metric corrupted by rejected writes: %+v", m)
	}
}

func TestSinkEmptyName(t *testing.T) {
	s := NewSink()
	if err := s.Add("", KindCounter, 1); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if len(s.Snapshot(time.Second).Metrics) != 0 {
		t.Fatal("empty name must not register a metric")
	}
}

func TestSinkTrendQuantiles(t *testing.T) {
	s := NewSink()
	for i := 1; i <= 1000; i++ {
		s.Trend("http_req_duration", float64(i))
	}
	m := s.Snapshot(time.Second).Metrics["http_req_duration"]

	if m.Min != 1 || m.Max != 1000 {
		t.Fatalf("min/max = %v/%v, want exact 1/1000", m.Min, m.Max)
	}
	if math.Abs(m.Avg-500.5) > 1e-9 {
		t.Fatalf("avg = %v, want 500.5", m.Avg)
	}

	tests := []struct {
		stat string
		want float64
	}{
		{"med", 500},
		{"p(90)", 900},
		{"p(95)", 950},
		{"p99", 990},
		{"p(99.9)", 999},
	}
	for _, tt := range tests {
		got, err := m.Stat(tt.stat)
		if err != nil {
			t.Fatalf("Stat(%q): %v", tt.stat, err)
		}
		if rel := math.Abs(got-tt.want) / tt.want; rel > 0.002 {
			t.Errorf("Stat(%q) = %v, want %v within 0.2%%", tt.stat, got, tt.want)
		}
	}
}

func TestSinkTrendPercentileClampedToObservedRange(t *testing.T) {
	s := NewSink()
	s.TrendDuration("lock_wait_time", 1234567*time.Microsecond)
	m := s.Snapshot(time.Second).Metrics["lock_wait_time"]

	p100, ok := m.Percentile(100)
	if !ok {
		t.Fatal("percentile unavailable")
	}
	if p100 != m.Max {
		t.Fatalf("p100 = %v, want max %v", p100, m.Max)
	}
	if math.Abs(m.Max-1234.567) > 1e-9 {
		t.Fatalf("max = %v, want 1234.567", m.Max)
	}
}

func TestSnapshotIsFrozen(t *testing.T) {
	s := NewSink()
	s.Trend("t", 10)
	s.Count("c", 1)
	snap := s.Snapshot(time.Second)

	s.Trend("t", 5000)
	s.Count("c", 100)

	again, _ := snap.Metrics["t"].Stat("max")
	if again != 10 {
		t.Fatalf("snapshot max changed to %v", again)
	}
	p99, _ := snap.Metrics["t"].Stat("p(99)")
	if p99 != 10 {
		t.Fatalf("snapshot p99 changed to %v", p99)
	}
	if snap.Value("c") != 1 {
		t.Fatalf("snapshot counter changed to %v", snap.Value("c"))
	}
}

func TestSinkConcurrentWrites(t *testing.T) {
	s := NewSink()
	const workers, perWorker = 50, 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				s.Count("http_reqs", 1)
				s.Rate("checks", i%2 == 0)
				s.Trend(fmt.Sprintf("trend_%d", w%3), float64(i))
				s.Status(200 + (i%2)*209)
			}
		}(w)
	}
	wg.Wait()

	snap := s.Snapshot(time.Second)
	if got := snap.Value("http_reqs"); got != workers*perWorker {
		t.Fatalf("http_reqs = %v, want %d", got, workers*perWorker)
	}
	if got := snap.Metrics["checks"].Count; got != workers*perWorker {
		t.Fatalf("checks count = %d, want %d", got, workers*perWorker)
	}
	var trendTotal int64
	for i := 0; i < 3; i++ {
		trendTotal += snap.Metrics[fmt.Sprintf("trend_%d", i)].Count
	}
	if trendTotal != workers*perWorker {
		t.Fatalf("trend samples = %d, want %d", trendTotal, workers*perWorker)
	}
	var statusTotal int64
	for _, b := range snap.Statuses {
		statusTotal += b.Count
	}
	if statusTotal != workers*perWorker {
		t.Fatalf("status total = %d, want %d", statusTotal, workers*perWorker)
	}
}

func TestStatUnavailableForKind(t *testing.T) {
	s := NewSink()
	s.Count("fail_count", 3)
	s.Rate("errors", true)
	snap := s.Snapshot(time.Second)

	if _, err := snap.Metrics["fail_count"].Stat("p(95)"); err == nil {
		t.Fatal("expected error for percentile on counter")
	}
	if _, err := snap.Metrics["errors"].Stat("avg"); err == nil {
		t.Fatal("expected error for avg on rate")
	}
	if v, err := snap.Metrics["fail_count"].Stat("count"); err != nil || v != 3 {
		t.Fatalf("counter count = %v, %v", v, err)
	}
	if _, err := (MetricSummary{Name: "empty", Kind: KindTrend}).Stat("avg"); err == nil {
		t.Fatal("expected error for metric without samples")
	}
}

func TestSinkErrorNames(t *testing.T) {
	s := NewSink()
	s.Error(&url.Error{Op: "Get", URL: "http://x", Err: context.DeadlineExceeded})
	s.Error(errors.New("boom"))
	s.Error(nil)

	snap := s.Snapshot(time.Second)
	if snap.Errors["Context deadline exceeded"] != 1 {
		t.Fatalf("url.Error not unwrapped: %v", snap.Errors)
	}
	if snap.Errors["Request failed"] != 1 {
		t.Fatalf("plain error not counted: %v", snap.Errors)
	}
}

func TestFriendlyErrorName(t *testing.T) {
	tests := map[string]string{
		"":                   "Unknown error",
		"*url.Error":         "Request URL error",
		"*net.OpError":       "Network operation error",
		"*mypkg.BadThingErr": "Bad Thing Err (mypkg)",
		"main.HTTPFailure":   "HTTP Failure",
	}
	for in, want := range tests {
		if got := FriendlyErrorName(in); got != want {
			t.Errorf("FriendlyErrorName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestKindText(t *testing.T) {
	for _, k := range []Kind{KindCounter, KindGauge, KindRate, KindTrend} {
		text, _ := k.MarshalText()
		var back Kind
		if err := back.UnmarshalText(text); err != nil || back != k {
			t.Fatalf("round trip of %s gave %v, %v", k, back, err)
		}
	}
	if _, err := ParseKind("histogram"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
