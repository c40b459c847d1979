package threshold

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/hhplus/orderstorm/internal/metrics"
)

// Threshold represents a performance assertion that can pass or fail.
type Threshold struct {
	Metric    string  `json:"metric" yaml:"metric"`       // e.g., "http_req_duration", "success_rate"
	Aggregate string  `json:"aggregate" yaml:"aggregate"` // e.g., "p(95)", "avg", "rate", "count"
	Operator  string  `json:"operator" yaml:"operator"`   // e.g., "<", "<=", ">", ">=", "==", "!="
	Value     float64 `json:"value" yaml:"value"`         // milliseconds for durations
	Raw       string  `json:"raw" yaml:"raw"`             // original expression for display
}

// Result represents the outcome of evaluating a threshold.
type Result struct {
	Threshold Threshold `json:"threshold" yaml:"threshold"`
	Actual    float64   `json:"actual" yaml:"actual"`
	Pass      bool      `json:"pass" yaml:"pass"`
	Message   string    `json:"message" yaml:"message"`
}

// Verdict is the outcome of a whole threshold set.
type Verdict struct {
	Passed  bool     `json:"passed" yaml:"passed"`
	Results []Result `json:"results,omitempty" yaml:"results,omitempty"`
}

// Failed returns the results that did not pass.
func (v Verdict) Failed() []Result {
	var out []Result
	for _, r := range v.Results {
		if !r.Pass {
			out = append(out, r)
		}
	}
	return out
}

// Evaluator evaluates thresholds against metric snapshots.
type Evaluator struct {
	thresholds []Threshold
}

// NewEvaluator creates a new threshold evaluator.
func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{
		thresholds: append([]Threshold(nil), thresholds...),
	}
}

// Evaluate checks all thresholds against the snapshot.
func (e *Evaluator) Evaluate(snap metrics.Snapshot) Verdict {
	return Evaluate(snap, e.thresholds)
}

// Evaluate checks thresholds against snap. It has no side effects, so the same
// snapshot always yields the same verdict. A metric that is missing or has no
// samples fails its thresholds; an empty threshold set passes.
func Evaluate(snap metrics.Snapshot, thresholds []Threshold) Verdict {
	verdict := Verdict{Passed: true}
	if len(thresholds) == 0 {
		return verdict
	}
	verdict.Results = make([]Result, 0, len(thresholds))
	for _, t := range thresholds {
		r := evaluateOne(t, snap)
		verdict.Passed = verdict.Passed && r.Pass
		verdict.Results = append(verdict.Results, r)
	}
	return verdict
}

func evaluateOne(t Threshold, snap metrics.Snapshot) Result {
	summary, ok := snap.Get(t.Metric)
	if !ok {
		return Result{
			Threshold: t,
			Message:   fmt.Sprintf("✗ %s: metric %q was never recorded", t.Raw, t.Metric),
		}
	}
	actual, err := summary.Stat(t.Aggregate)
	if err != nil {
		return Result{
			Threshold: t,
			Message:   fmt.Sprintf("✗ %s: %v", t.Raw, err),
		}
	}

	pass := compareValues(actual, t.Operator, t.Value)
	status := "✓"
	if !pass {
		status = "✗"
	}

	message := fmt.Sprintf("%s %s: %.2f %s %.2f", status, t.Raw, actual, t.Operator, t.Value)
	return Result{
		Threshold: t,
		Actual:    actual,
		Pass:      pass,
		Message:   message,
	}
}

var expressionPattern = regexp.MustCompile(
	`^([a-z]+|p\(\s*[0-9.]+\s*\)|p[0-9][0-9._]*)\s*(<=|>=|==|!=|<|>)\s*(-?[0-9]*\.?[0-9]+(?:e[-+]?[0-9]+)?)\s*(ms|us|s|m)?$`,
)

var unitScale = map[string]float64{
	"":   1,
	"ms": 1,
	"us": 0.001,
	"s":  1000,
	"m":  60_000,
}

// ParseExpression parses a k6-style expression such as "p(95)<800",
// "rate<0.05", "avg < 200" or "p(99.9)<2s" for metric. Duration units are
// converted to milliseconds.
func ParseExpression(metric, expr string) (Threshold, error) {
	metric = strings.TrimSpace(metric)
	if metric == "" {
		return Threshold{}, fmt.Errorf("threshold %q has no metric", expr)
	}
	cleaned := strings.ToLower(strings.TrimSpace(expr))
	if cleaned == "" {
		return Threshold{}, fmt.Errorf("empty threshold expression for %q", metric)
	}

	matches := expressionPattern.FindStringSubmatch(cleaned)
	if matches == nil {
		return Threshold{}, fmt.Errorf("invalid threshold expression %q for %s (expected e.g. 'p(95)<800' or 'rate<0.05')", expr, metric)
	}

	aggregate, err := normalizeAggregate(matches[1])
	if err != nil {
		return Threshold{}, err
	}
	value, err := strconv.ParseFloat(matches[3], 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %v", matches[3], err)
	}
	value *= unitScale[matches[4]]

	return Threshold{
		Metric:    metric,
		Aggregate: aggregate,
		Operator:  matches[2],
		Value:     value,
		Raw:       metric + " " + strings.TrimSpace(expr),
	}, nil
}

// Parse parses the "metric:expression" form, for example
// "http_req_duration:p95 < 500" or "success_rate:rate>0.85".
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}
	idx := metricSeparator(s)
	if idx <= 0 {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected format: metric:expression, e.g., 'http_req_duration:p(95) < 500')", s)
	}
	t, err := ParseExpression(s[:idx], s[idx+1:])
	if err != nil {
		return Threshold{}, err
	}
	t.Raw = s
	return t, nil
}

// ParseMultiple parses multiple threshold strings.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}

	result := make([]Threshold, 0, len(thresholds))
	var errs []string

	for i, s := range thresholds {
		t, err := Parse(s)
		if err != nil {
			errs = append(errs, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		result = append(result, t)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(errs, "; "))
	}

	return result, nil
}

// ParseSet parses thresholds keyed by metric name. The result is ordered by
// metric name, then by expression order.
func ParseSet(set map[string][]string) ([]Threshold, error) {
	if len(set) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)

	var result []Threshold
	var errs []string
	for _, name := range names {
		for _, expr := range set[name] {
			t, err := ParseExpression(name, expr)
			if err != nil {
				errs = append(errs, err.Error())
				continue
			}
			result = append(result, t)
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(errs, "; "))
	}
	return result, nil
}

func normalizeAggregate(agg string) (string, error) {
	switch agg {
	case "count", "rate", "value", "avg", "min", "max", "med", "passes", "fails":
		return agg, nil
	case "mean":
		return "avg", nil
	case "median":
		return "med", nil
	}
	if strings.HasPrefix(agg, "p") {
		body := strings.TrimPrefix(agg, "p")
		body = strings.TrimSpace(strings.Trim(body, "()"))
		body = strings.ReplaceAll(body, "_", ".")
		p, err := strconv.ParseFloat(body, 64)
		if err == nil && p >= 0 && p <= 100 {
			return "p(" + strconv.FormatFloat(p, 'f', -1, 64) + ")", nil
		}
	}
	return "", fmt.Errorf("unsupported aggregate: %q (supported: p(N), avg, min, max, med, rate, count, value, passes, fails)", agg)
}

// metricSeparator finds the ':' between metric and expression, ignoring any
// inside a {tag} suffix.
func metricSeparator(s string) int {
	depth := 0
	for i, r := range s {
		switch r {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case ':':
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func compareValues(actual float64, operator string, expected float64) bool {
	// Handle floating point comparison with small epsilon
	epsilon := 1e-9

	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	case "!=":
		return math.Abs(actual-expected) >= epsilon
	default:
		return false
	}
}
