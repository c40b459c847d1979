package classify

import (
	"bytes"
	"slices"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/hhplus/orderstorm/internal/httpclient"
	"github.com/hhplus/orderstorm/internal/metrics"
)

// Error codes the order service puts in the "code" field of its error envelope.
var (
	DefaultStockCodes     = []string{"OUT_OF_STOCK_PRODUCT", "OUT_OF_STOCK_COUPON"}
	DefaultDuplicateCodes = []string{"DUPLICATE_PAYMENT", "ALREADY_APPLIED_COUPON", "ALREADY_USED_COUPON"}
)

// Body substrings used when the envelope has no recognised code.
var (
	DefaultStockMarkers     = []string{"재고", "stock"}
	DefaultDuplicateMarkers = []string{"중복", "duplicate"}
)

// Built-in metric names recorded for every request.
const (
	MetricRequests       = "http_reqs"
	MetricFailed         = "http_req_failed"
	MetricDuration       = "http_req_duration"
	MetricBlocked        = "http_req_blocked"
	MetricConnecting     = "http_req_connecting"
	MetricTLSHandshaking = "http_req_tls_handshaking"
	MetricSending        = "http_req_sending"
	MetricWaiting        = "http_req_waiting"
	MetricReceiving      = "http_req_receiving"
	MetricUnexpected     = "unexpected_status"
	MetricChecks         = "checks"
)

// MetricNames maps scenario-level aliases onto a classification. Empty names are skipped.
type MetricNames struct {
	Acceptable     string // Rate: success and every check passed
	Errors         string // Rate: the negation of Acceptable
	Failures       string // Counter: requests that were not acceptable
	StockExhausted string // Counter
	DuplicateOrder string // Counter
	Latency        string // Trend: wall-clock milliseconds
	Requests       string // Counter
}

// Config tunes a Classifier. Zero values fall back to the defaults above.
type Config struct {
	SuccessStatus    int
	AllowedStatuses  []int
	StockCodes       []string
	DuplicateCodes   []string
	StockMarkers     []string
	DuplicateMarkers []string
	Checks           []Check
	Names            MetricNames
}

// Classifier maps responses to outcomes and records them into a sink.
type Classifier struct {
	success          int
	allowed          []int
	stockCodes       []string
	duplicateCodes   []string
	stockMarkers     [][]byte
	duplicateMarkers [][]byte
	checks           []Check
	names            MetricNames
}

// New builds a Classifier from cfg.
func New(cfg Config) *Classifier {
	c := &Classifier{
		success:        cfg.SuccessStatus,
		allowed:        slices.Clone(cfg.AllowedStatuses),
		stockCodes:     orDefault(cfg.StockCodes, DefaultStockCodes),
		duplicateCodes: orDefault(cfg.DuplicateCodes, DefaultDuplicateCodes),
		checks:         slices.Clone(cfg.Checks),
		names:          cfg.Names,
	}
	if c.success == 0 {
		c.success = 200
	}
	if len(c.allowed) == 0 {
		c.allowed = []int{c.success}
	}
	c.stockMarkers = lowerAll(orDefault(cfg.StockMarkers, DefaultStockMarkers))
	c.duplicateMarkers = lowerAll(orDefault(cfg.DuplicateMarkers, DefaultDuplicateMarkers))
	return c
}

// Classify derives the outcome of one request. A non-nil transportErr always
// wins; otherwise the structured error code is consulted before body markers,
// and stock markers before duplicate markers.
func (c *Classifier) Classify(status int, body []byte, transportErr error) Outcome {
	if transportErr != nil {
		return OutcomeTransportFailure
	}
	if status == c.success {
		return OutcomeSuccess
	}

	if code := gjson.GetBytes(body, "code"); code.Type == gjson.String {
		switch {
		case slices.Contains(c.stockCodes, code.Str):
			return OutcomeStockExhausted
		case slices.Contains(c.duplicateCodes, code.Str):
			return OutcomeDuplicateOrder
		}
	}

	lower := bytes.ToLower(body)
	if containsAny(lower, c.stockMarkers) {
		return OutcomeStockExhausted
	}
	if containsAny(lower, c.duplicateMarkers) {
		return OutcomeDuplicateOrder
	}
	return OutcomeOtherFailure
}

// Allowed reports whether status is an expected response status.
func (c *Classifier) Allowed(status int) bool {
	return slices.Contains(c.allowed, status)
}

// Observation is one finished request as seen by the executor.
type Observation struct {
	Status  int
	Body    []byte
	Timings httpclient.Timings
	Err     error
}

// Result is what Record derived from an observation.
type Result struct {
	Outcome      Outcome
	Acceptable   bool
	FailedChecks []string
}

// Record classifies obs and writes every derived sample into sink. Exactly one
// outcome counter is incremented per call, so the outcome counters always sum
// to http_reqs.
func (c *Classifier) Record(sink *metrics.Sink, obs Observation) Result {
	outcome := c.Classify(obs.Status, obs.Body, obs.Err)
	t := obs.Timings
	transportFailed := obs.Err != nil

	sink.Count(MetricRequests, 1)
	sink.TrendDuration(MetricDuration, t.Duration)
	if transportFailed {
		sink.Error(obs.Err)
	} else {
		sink.Status(obs.Status)
		sink.TrendDuration(MetricBlocked, t.Blocked)
		sink.TrendDuration(MetricConnecting, t.Connecting)
		sink.TrendDuration(MetricTLSHandshaking, t.TLSHandshaking)
		sink.TrendDuration(MetricSending, t.Sending)
		sink.TrendDuration(MetricWaiting, t.Waiting)
		sink.TrendDuration(MetricReceiving, t.Receiving)
	}

	allowed := !transportFailed && c.Allowed(obs.Status)
	sink.Rate(MetricFailed, !allowed)
	if !transportFailed && !allowed {
		sink.Count(MetricUnexpected, 1)
	}
	sink.Count(outcome.Counter(), 1)

	res := Result{Outcome: outcome}
	if len(c.checks) > 0 {
		resp := Response{Status: obs.Status, Body: obs.Body, Duration: t.Duration}
		if transportFailed {
			resp.Status = 0
		}
		for _, check := range c.checks {
			ok := check.Fn(resp)
			sink.Rate(MetricChecks, ok)
			sink.Rate(MetricChecks+"{"+check.Name+"}", ok)
			if !ok {
				res.FailedChecks = append(res.FailedChecks, check.Name)
			}
		}
	}
	res.Acceptable = outcome.Kind == Success && len(res.FailedChecks) == 0

	n := c.names
	if n.Requests != "" {
		sink.Count(n.Requests, 1)
	}
	if n.Latency != "" {
		total := t.Total
		if total == 0 {
			total = t.Duration
		}
		sink.TrendDuration(n.Latency, total)
	}
	if n.Acceptable != "" {
		sink.Rate(n.Acceptable, res.Acceptable)
	}
	if n.Errors != "" {
		sink.Rate(n.Errors, !res.Acceptable)
	}
	if n.Failures != "" && !res.Acceptable {
		sink.Count(n.Failures, 1)
	}
	if n.StockExhausted != "" && outcome == OutcomeStockExhausted {
		sink.Count(n.StockExhausted, 1)
	}
	if n.DuplicateOrder != "" && outcome == OutcomeDuplicateOrder {
		sink.Count(n.DuplicateOrder, 1)
	}
	return res
}

func orDefault(v, def []string) []string {
	if len(v) == 0 {
		return slices.Clone(def)
	}
	return slices.Clone(v)
}

func lowerAll(in []string) [][]byte {
	out := make([][]byte, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(s); s != "" {
			out = append(out, []byte(s))
		}
	}
	return out
}

func containsAny(body []byte, markers [][]byte) bool {
	for _, m := range markers {
		if bytes.Contains(body, m) {
			return true
		}
	}
	return false
}
