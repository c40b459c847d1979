package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hhplus/orderstorm/internal/metrics"
)

const metricLabelWidth = 34

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, s Summary) {
	fmt.Fprintln(w, "\n--- Load Test Results ---")
	fmt.Fprintf(w, "Run:               %s\n", s.RunID)
	fmt.Fprintf(w, "Scenario:          %s\n", s.Scenario)
	fmt.Fprintf(w, "Target:            %s\n", s.BaseURL)
	fmt.Fprintf(w, "Duration:          %s\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Max VUs:           %d\n", s.MaxVUs)
	fmt.Fprintf(w, "Iterations:        %d (%d interrupted)\n", s.Iterations, s.Interrupted)
	if s.Aborted {
		fmt.Fprintln(w, "Run was aborted before the plan completed.")
	}

	if len(s.Outcomes) > 0 {
		fmt.Fprintln(w, "\nOutcomes:")
		for _, o := range s.Outcomes {
			fmt.Fprintf(w, "  %-20s %8d  (%.1f%%)\n", o.Outcome, o.Count, o.Share*100)
		}
	}

	if len(s.Domain) > 0 {
		fmt.Fprintf(w, "\n%s summary:\n", s.Scenario)
		for _, line := range s.Domain {
			fmt.Fprintf(w, "  %-24s %s\n", line.Label+":", line.Value)
		}
	}

	if names := s.Metrics.Names(); len(names) > 0 {
		fmt.Fprintln(w, "\nMetrics:")
		for _, name := range names {
			fmt.Fprintf(w, "  %s %s\n", dotted(name), FormatMetric(s.Metrics.Metrics[name]))
		}
	}

	if len(s.Metrics.Statuses) > 0 {
		fmt.Fprintln(w, "\nStatus Buckets:")
		writeStatusBuckets(w, s.Metrics.Statuses, "  ")
	}
	if len(s.Metrics.Errors) > 0 {
		fmt.Fprintln(w, "\nTransport Errors:")
		for _, name := range sortedKeys(s.Metrics.Errors) {
			fmt.Fprintf(w, "  %s: %d\n", name, s.Metrics.Errors[name])
		}
	}
	if s.Metrics.Rejected > 0 {
		fmt.Fprintf(w, "\nRejected samples: %d\n", s.Metrics.Rejected)
	}
	if s.SuppressedLogs > 0 {
		fmt.Fprintf(w, "Suppressed failure logs: %d\n", s.SuppressedLogs)
	}

	if len(s.Thresholds.Results) > 0 {
		fmt.Fprintln(w, "\nThresholds:")
		for _, r := range s.Thresholds.Results {
			fmt.Fprintf(w, "  %s\n", r.Message)
		}
	}
	if s.Passed {
		fmt.Fprintln(w, "\nResult: PASSED")
	} else {
		fmt.Fprintln(w, "\nResult: FAILED (thresholds crossed)")
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, s Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// FormatMetric renders one metric the way k6's end-of-test summary does.
func FormatMetric(m metrics.MetricSummary) string {
	switch m.Kind {
	case metrics.KindCounter:
		return fmt.Sprintf("%s %.2f/s", trimFloat(m.Value), m.Rate)
	case metrics.KindRate:
		return fmt.Sprintf("%.2f%% ✓ %d ✗ %d", m.Value*100, m.Passes, m.Fails)
	case metrics.KindGauge:
		return fmt.Sprintf("%s min=%s max=%s", trimFloat(m.Value), trimFloat(m.Min), trimFloat(m.Max))
	case metrics.KindTrend:
		if m.Count == 0 {
			return "no samples"
		}
		return fmt.Sprintf("avg=%s min=%s med=%s max=%s p(90)=%s p(95)=%s",
			ms(m.Avg), ms(m.Min), ms(m.Med), ms(m.Max), ms(m.P90), ms(m.P95))
	default:
		return ""
	}
}

func dotted(name string) string {
	if len(name) >= metricLabelWidth {
		return name + ":"
	}
	return name + strings.Repeat(".", metricLabelWidth-len(name)) + ":"
}

func ms(v float64) string {
	switch {
	case v >= 1000:
		return fmt.Sprintf("%.2fs", v/1000)
	case v < 1 && v > 0:
		return fmt.Sprintf("%.2fµs", v*1000)
	default:
		return fmt.Sprintf("%.2fms", v)
	}
}

func trimFloat(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}

func writeStatusBuckets(w io.Writer, rows []metrics.StatusBucket, indent string) {
	if len(rows) == 0 {
		fmt.Fprintf(w, "%sNone\n", indent)
		return
	}
	for _, row := range rows {
		fmt.Fprintf(w, "%sHTTP %s: %d\n", indent, row.Code, row.Count)
	}
}
