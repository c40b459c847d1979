package scenario

import (
	"fmt"
	"time"

	"github.com/hhplus/orderstorm/internal/behavior"
	"github.com/hhplus/orderstorm/internal/classify"
	"github.com/hhplus/orderstorm/internal/metrics"
	"github.com/hhplus/orderstorm/internal/runner"
)

func init() {
	register(bestseller())
	register(concurrentOrder())
	for _, s := range orderScenarios() {
		register(s)
	}
}

func stage(d time.Duration, target int) runner.Stage {
	return runner.Stage{Duration: d, Target: target}
}

func bestseller() Scenario {
	return Scenario{
		Name:        "bestseller",
		Description: "read-heavy bestseller browsing ramped to 1000 workers",
		BaseURL:     LocalBaseURL,
		Stages: []runner.Stage{
			stage(10*time.Second, 50),
			stage(20*time.Second, 300),
			stage(30*time.Second, 600),
			stage(30*time.Second, 1000),
			stage(20*time.Second, 1000),
			stage(15*time.Second, 500),
			stage(10*time.Second, 0),
		},
		Thresholds: map[string][]string{
			"http_req_duration":   {"p(50)<300", "p(95)<800", "p(99)<1500", "p(99.9)<2000"},
			"http_req_failed":     {"rate<0.05"},
			"http_reqs":           {"rate>100"},
			"response_time_trend": {"p(50)<150", "p(95)<500"},
			"errors":              {"rate<0.05"},
			"http_req_waiting":    {"p(95)<600"},
			"http_req_connecting": {"p(95)<100"},
		},
		NewProfile: func() behavior.Profile { return behavior.Bestseller() },
		Classifier: classify.Config{
			Checks: []classify.Check{
				classify.StatusIs(200),
				classify.DurationBelow(500 * time.Millisecond),
				classify.EnvelopeHasData(),
				classify.EnvelopeComplete(),
				classify.BodySizeWithin(0, 10000),
			},
			Names: classify.MetricNames{
				Errors:   "errors",
				Latency:  "response_time_trend",
				Requests: "total_requests",
			},
		},
		Summarize: func(s metrics.Snapshot) []Line {
			return []Line{
				{"Total requests", count(s, "total_requests")},
				{"Check failure rate", percent(s, "errors")},
				{"Response time p(95)", millis(s, "response_time_trend", "p(95)")},
			}
		},
	}
}

func concurrentOrder() Scenario {
	return Scenario{
		Name:        "concurrent-order",
		Description: "five users racing for one product's stock",
		BaseURL:     LocalBaseURL,
		Stages: []runner.Stage{
			stage(time.Second, 5),
			stage(time.Second, 15),
			stage(time.Second, 0),
		},
		Thresholds: map[string][]string{
			"http_req_duration": {"p(95)<3000"},
			"http_req_failed":   {"rate<0.15"},
			"success_rate":      {"rate>0.85"},
			"lock_wait_time":    {"p(95)<2000"},
		},
		NewProfile: func() behavior.Profile { return behavior.ConcurrentOrder() },
		Classifier: classify.Config{
			Names: classify.MetricNames{
				Acceptable:     "success_rate",
				Failures:       "fail_count",
				StockExhausted: "stock_overflow_count",
				DuplicateOrder: "duplicate_order_count",
				Latency:        "lock_wait_time",
			},
		},
		SummaryFile: "concurrent_order_test_summary.json",
		Summarize: func(s metrics.Snapshot) []Line {
			return []Line{
				{"Total requests", count(s, "http_reqs")},
				{"Success rate", percent(s, "success_rate")},
				{"Failures", count(s, "fail_count")},
				{"Stock exhausted", count(s, "stock_overflow_count")},
				{"Duplicate orders", count(s, "duplicate_order_count")},
				{"Lock wait avg", millis(s, "lock_wait_time", "avg")},
				{"Lock wait p(95)", millis(s, "lock_wait_time", "p(95)")},
			}
		},
	}
}

func orderScenarios() []Scenario {
	thresholds := func() map[string][]string {
		return map[string][]string{
			"http_req_duration": {"p(95)<1000"},
			"http_req_failed":   {"rate<0.15"},
			"success_rate":      {"rate>0.85"},
		}
	}
	base := Scenario{
		BaseURL:    DockerBaseURL,
		NewProfile: func() behavior.Profile { return behavior.OrderScenario() },
		Classifier: classify.Config{
			AllowedStatuses: []int{200, 409, 400},
			Checks: []classify.Check{
				classify.StatusIs(200),
				classify.StatusIn("total request", 200, 409, 400),
			},
			Names: classify.MetricNames{
				Acceptable: "success_rate",
				Failures:   "fail_count",
				Latency:    "request_duration",
			},
		},
		Summarize: func(s metrics.Snapshot) []Line {
			return []Line{
				{"Success rate", percent(s, "success_rate")},
				{"Failures", count(s, "fail_count")},
				{"Stock exhausted", count(s, "outcome_stock_exhausted")},
				{"Duplicate orders", count(s, "outcome_duplicate_order")},
				{"Request duration p(95)", millis(s, "request_duration", "p(95)")},
			}
		},
	}

	smoke := base.Clone()
	smoke.Name = "smoke"
	smoke.Description = "100 workers ordering for 10s"
	smoke.VUs = 100
	smoke.Duration = 10 * time.Second

	load := base.Clone()
	load.Name = "load"
	load.Description = "sustained 2000 workers ordering"
	load.Stages = []runner.Stage{
		stage(30*time.Second, 2000),
		stage(time.Minute, 2000),
		stage(30*time.Second, 0),
	}
	load.Thresholds = thresholds()

	stress := base.Clone()
	stress.Name = "stress"
	stress.Description = "stepped climb to 5000 workers ordering"
	stress.Stages = []runner.Stage{
		stage(time.Minute, 1000),
		stage(time.Minute, 1000),
		stage(time.Minute, 2000),
		stage(time.Minute, 2000),
		stage(time.Minute, 3000),
		stage(time.Minute, 3000),
		stage(time.Minute, 4000),
		stage(time.Minute, 4000),
		stage(time.Minute, 5000),
		stage(time.Minute, 5000),
		stage(30*time.Second, 0),
	}
	stress.Thresholds = thresholds()

	peak := base.Clone()
	peak.Name = "peak"
	peak.Description = "short spike from 100 to 2000 workers ordering"
	peak.Stages = []runner.Stage{
		stage(10*time.Second, 100),
		stage(10*time.Second, 100),
		stage(20*time.Second, 2000),
		stage(10*time.Second, 100),
		stage(20*time.Second, 0),
	}
	peak.Thresholds = thresholds()

	return []Scenario{smoke, load, stress, peak}
}

func count(s metrics.Snapshot, name string) string {
	return fmt.Sprintf("%.0f", s.Value(name))
}

func percent(s metrics.Snapshot, name string) string {
	m, ok := s.Get(name)
	if !ok || m.Count == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", m.Value*100)
}

func millis(s metrics.Snapshot, name, stat string) string {
	m, ok := s.Get(name)
	if !ok {
		return "n/a"
	}
	v, err := m.Stat(stat)
	if err != nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2fms", v)
}
