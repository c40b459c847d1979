package metrics

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// MetricSummary is the frozen aggregate of one metric. Trend quantiles come from
// an HDR histogram and carry up to 0.1% relative error; min, max and avg are exact.
type MetricSummary struct {
	Name   string  `json:"name" yaml:"name"`
	Kind   Kind    `json:"kind" yaml:"kind"`
	Count  int64   `json:"count" yaml:"count"`
	Value  float64 `json:"value,omitempty" yaml:"value,omitempty"`
	Rate   float64 `json:"rate,omitempty" yaml:"rate,omitempty"`
	Passes int64   `json:"passes,omitempty" yaml:"passes,omitempty"`
	Fails  int64   `json:"fails,omitempty" yaml:"fails,omitempty"`
	Min    float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max    float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Avg    float64 `json:"avg,omitempty" yaml:"avg,omitempty"`
	Med    float64 `json:"med,omitempty" yaml:"med,omitempty"`
	P90    float64 `json:"p90,omitempty" yaml:"p90,omitempty"`
	P95    float64 `json:"p95,omitempty" yaml:"p95,omitempty"`
	P99    float64 `json:"p99,omitempty" yaml:"p99,omitempty"`
	P999   float64 `json:"p99_9,omitempty" yaml:"p99_9,omitempty"`

	hist *hdrhistogram.Histogram
}

// Percentile returns the p-th percentile (0..100) of a trend in milliseconds.
func (m MetricSummary) Percentile(p float64) (float64, bool) {
	if m.hist == nil || m.hist.TotalCount() == 0 || p < 0 || p > 100 {
		return 0, false
	}
	v := float64(m.hist.ValueAtQuantile(p)) / trendScale
	// Keep histogram bucket rounding inside the exact observed range.
	if v < m.Min {
		v = m.Min
	}
	if v > m.Max {
		v = m.Max
	}
	return v, true
}

// Stat resolves a named statistic: count, value, rate, passes, fails, min, max,
// avg, med, and percentiles written p(N) or pN.
func (m MetricSummary) Stat(name string) (float64, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if m.Count == 0 {
		return 0, fmt.Errorf("metric %q has no samples", m.Name)
	}

	switch name {
	case "count":
		if m.Kind == KindCounter {
			return m.Value, nil
		}
		return float64(m.Count), nil
	case "value":
		if m.Kind == KindTrend {
			break
		}
		return m.Value, nil
	case "rate":
		if m.Kind == KindCounter || m.Kind == KindRate {
			return m.Rate, nil
		}
	case "passes":
		if m.Kind == KindRate {
			return float64(m.Passes), nil
		}
	case "fails":
		if m.Kind == KindRate {
			return float64(m.Fails), nil
		}
	case "min":
		if m.Kind == KindTrend || m.Kind == KindGauge {
			return m.Min, nil
		}
	case "max":
		if m.Kind == KindTrend || m.Kind == KindGauge {
			return m.Max, nil
		}
	case "avg", "mean":
		if m.Kind == KindTrend {
			return m.Avg, nil
		}
	case "med", "median":
		if m.Kind == KindTrend {
			return m.Med, nil
		}
	default:
		if p, ok := parsePercentile(name); ok && m.Kind == KindTrend {
			v, ok := m.Percentile(p)
			if !ok {
				return 0, fmt.Errorf("metric %q: percentile %g out of range", m.Name, p)
			}
			return v, nil
		}
	}
	return 0, fmt.Errorf("statistic %q is not available for %s metric %q", name, m.Kind, m.Name)
}

// parsePercentile accepts "p(95)", "p(99.9)", "p95" and "p99_9".
func parsePercentile(s string) (float64, bool) {
	if !strings.HasPrefix(s, "p") {
		return 0, false
	}
	body := strings.TrimPrefix(s, "p")
	if strings.HasPrefix(body, "(") && strings.HasSuffix(body, ")") {
		body = body[1 : len(body)-1]
	}
	body = strings.ReplaceAll(body, "_", ".")
	p, err := strconv.ParseFloat(body, 64)
	if err != nil || p < 0 || p > 100 {
		return 0, false
	}
	return p, true
}
