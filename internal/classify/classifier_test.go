package classify

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hhplus/orderstorm/internal/httpclient"
	"github.com/hhplus/orderstorm/internal/metrics"
)

func TestClassify(t *testing.T) {
	c := New(Config{})

	tests := []struct {
		name   string
		status int
		body   string
		err    error
		want   Outcome
	}{
		{"success envelope", 200, `{"code":200,"data":[]}`, nil, OutcomeSuccess},
		{"korean stock marker", 409, "재고가 부족합니다", nil, OutcomeStockExhausted},
		{"english stock marker", 409, `{"message":"Out of STOCK"}`, nil, OutcomeStockExhausted},
		{"korean duplicate marker", 400, "중복 주문입니다", nil, OutcomeDuplicateOrder},
		{"english duplicate marker", 400, "Duplicate order", nil, OutcomeDuplicateOrder},
		{"stock wins over duplicate", 409, "duplicate stock request", nil, OutcomeStockExhausted},
		{"structured stock code", 422, `{"code":"OUT_OF_STOCK_PRODUCT","message":"상품 수량이 부족합니다."}`, nil, OutcomeStockExhausted},
		{"structured duplicate code", 409, `{"code":"DUPLICATE_PAYMENT","message":"이미 결제된 주문"}`, nil, OutcomeDuplicateOrder},
		{"structured code beats markers", 409, `{"code":"ALREADY_USED_COUPON","message":"stock"}`, nil, OutcomeDuplicateOrder},
		{"unknown code falls back to markers", 400, `{"code":"INVALID_INPUT_VALUE","message":"중복"}`, nil, OutcomeDuplicateOrder},
		{"other failure", 500, `{"code":"INTERNAL_SERVER_ERROR","message":"boom"}`, nil, OutcomeOtherFailure},
		{"empty body", 503, "", nil, OutcomeOtherFailure},
		{"transport failure", 0, "", errors.New("connection refused"), OutcomeTransportFailure},
		{"transport failure ignores body", 200, "ok", errors.New("reset"), OutcomeTransportFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.status, []byte(tt.body), tt.err))
		})
	}
}

func TestClassifyCustomSuccessStatus(t *testing.T) {
	c := New(Config{SuccessStatus: 201})
	assert.Equal(t, OutcomeSuccess, c.Classify(201, nil, nil))
	assert.Equal(t, OutcomeOtherFailure, c.Classify(200, nil, nil))
}

func TestRecordOutcomeCountersSumToRequests(t *testing.T) {
	sink := metrics.NewSink()
	c := New(Config{AllowedStatuses: []int{200, 400, 409}})

	obs := []Observation{
		{Status: 200, Body: []byte(`{"code":200}`)},
		{Status: 409, Body: []byte("재고 부족")},
		{Status: 409, Body: []byte("재고 부족")},
		{Status: 400, Body: []byte("중복")},
		{Status: 500, Body: []byte("oops")},
		{Err: &httpclient.TransportError{Op: "GET", URL: "http://x", Err: errors.New("refused")}},
	}
	for _, o := range obs {
		o.Timings = httpclient.Timings{Duration: 10 * time.Millisecond, Total: 12 * time.Millisecond}
		c.Record(sink, o)
	}

	snap := sink.Snapshot(time.Second)
	var sum float64
	for _, o := range Outcomes {
		sum += snap.Value(o.Counter())
	}
	assert.Equal(t, snap.Value(MetricRequests), sum)
	assert.Equal(t, 6.0, sum)
	assert.Equal(t, 2.0, snap.Value("outcome_stock_exhausted"))
	assert.Equal(t, 1.0, snap.Value("outcome_duplicate_order"))
	assert.Equal(t, 1.0, snap.Value("outcome_other_failure"))
	assert.Equal(t, 1.0, snap.Value("outcome_transport_failure"))

	// 500 and the transport failure are outside the allow-list.
	failed := snap.Metrics[MetricFailed]
	assert.Equal(t, int64(2), failed.Passes)
	assert.Equal(t, 1.0, snap.Value(MetricUnexpected))

	require.Contains(t, snap.Errors, "Transport error")
	assert.Equal(t, int64(6), snap.Metrics[MetricDuration].Count)
	assert.Equal(t, int64(5), snap.Metrics[MetricWaiting].Count)
}

func TestRecordScenarioAliases(t *testing.T) {
	sink := metrics.NewSink()
	c := New(Config{Names: MetricNames{
		Acceptable:     "success_rate",
		Failures:       "fail_count",
		StockExhausted: "stock_overflow_count",
		DuplicateOrder: "duplicate_order_count",
		Latency:        "lock_wait_time",
		Requests:       "total_requests",
	}})

	c.Record(sink, Observation{Status: 200, Timings: httpclient.Timings{Duration: 5 * time.Millisecond, Total: 8 * time.Millisecond}})
	c.Record(sink, Observation{Status: 409, Body: []byte("stock"), Timings: httpclient.Timings{Duration: 5 * time.Millisecond}})
	c.Record(sink, Observation{Status: 409, Body: []byte("duplicate"), Timings: httpclient.Timings{Duration: 5 * time.Millisecond}})

	snap := sink.Snapshot(time.Second)
	assert.InDelta(t, 1.0/3.0, snap.Value("success_rate"), 1e-9)
	assert.Equal(t, 2.0, snap.Value("fail_count"))
	assert.Equal(t, 1.0, snap.Value("stock_overflow_count"))
	assert.Equal(t, 1.0, snap.Value("duplicate_order_count"))
	assert.Equal(t, 3.0, snap.Value("total_requests"))
	assert.Equal(t, 8.0, snap.Metrics["lock_wait_time"].Max)
	_, ok := snap.Get("errors")
	assert.False(t, ok, "unset alias must not be recorded")
}

func TestRecordChecks(t *testing.T) {
	sink := metrics.NewSink()
	c := New(Config{
		Checks: []Check{
			StatusIs(200),
			DurationBelow(500 * time.Millisecond),
			EnvelopeHasData(),
			EnvelopeComplete(),
			BodySizeWithin(0, 10000),
		},
		Names: MetricNames{Errors: "errors"},
	})

	good := Observation{
		Status:  200,
		Body:    []byte(`{"code":200,"message":"OK","data":[{"productId":1}]}`),
		Timings: httpclient.Timings{Duration: 20 * time.Millisecond},
	}
	res := c.Record(sink, good)
	assert.True(t, res.Acceptable)
	assert.Empty(t, res.FailedChecks)

	slow := good
	slow.Timings.Duration = 700 * time.Millisecond
	res = c.Record(sink, slow)
	assert.False(t, res.Acceptable)
	assert.Equal(t, []string{"response time < 500ms"}, res.FailedChecks)
	assert.Equal(t, OutcomeSuccess, res.Outcome)

	snap := sink.Snapshot(time.Second)
	assert.Equal(t, int64(10), snap.Metrics[MetricChecks].Count)
	assert.Equal(t, int64(9), snap.Metrics[MetricChecks].Passes)
	assert.Equal(t, 0.5, snap.Value("errors"))
	assert.Equal(t, 0.5, snap.Value("checks{response time < 500ms}"))
}

func TestChecks(t *testing.T) {
	tests := []struct {
		name  string
		check Check
		resp  Response
		want  bool
	}{
		{"status match", StatusIs(200), Response{Status: 200}, true},
		{"status mismatch", StatusIs(200), Response{Status: 409}, false},
		{"status in", StatusIn("total request", 200, 409, 400), Response{Status: 409}, true},
		{"status not in", StatusIn("total request", 200, 409, 400), Response{Status: 500}, false},
		{"duration ok", DurationBelow(time.Second), Response{Status: 200, Duration: time.Millisecond}, true},
		{"duration after transport failure", DurationBelow(time.Second), Response{}, false},
		{"data array", EnvelopeHasData(), Response{Body: []byte(`{"code":200,"data":[]}`)}, true},
		{"data object", EnvelopeHasData(), Response{Body: []byte(`{"code":200,"data":{}}`)}, false},
		{"data with string code", EnvelopeHasData(), Response{Body: []byte(`{"code":"200","data":[]}`)}, false},
		{"invalid json", EnvelopeHasData(), Response{Body: []byte(`{"code":200,"data":[`)}, false},
		{"complete envelope", EnvelopeComplete(), Response{Body: []byte(`{"code":200,"data":null,"message":"OK"}`)}, true},
		{"missing message", EnvelopeComplete(), Response{Body: []byte(`{"code":200,"data":[]}`)}, false},
		{"empty body", BodySizeWithin(0, 10), Response{}, false},
		{"body in range", BodySizeWithin(0, 10), Response{Body: []byte("abc")}, true},
		{"body too large", BodySizeWithin(0, 3), Response{Body: []byte("abc")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.check.Fn(tt.resp))
		})
	}
}

func TestOutcomeNames(t *testing.T) {
	want := []string{"success", "stock_exhausted", "duplicate_order", "other_failure", "transport_failure"}
	counters := map[string]bool{}
	for i, o := range Outcomes {
		assert.Equal(t, want[i], o.String())
		counters[o.Counter()] = true
	}
	assert.Len(t, counters, len(Outcomes))
	assert.Equal(t, "other_failure", Outcome{Kind: DomainFailure, Cause: CauseNone}.String())
	assert.Equal(t, "unknown", Outcome{}.String())
}
