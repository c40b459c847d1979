package classify

// Kind is the top-level category of a request result.
type Kind uint8

const (
	// Success means the response carried the configured success status.
	Success Kind = iota + 1
	// DomainFailure means the service answered but refused the request.
	DomainFailure
	// TransportFailure means no complete response arrived, including
	// timeouts and requests cut off at the end of a run.
	TransportFailure
)

// Cause refines a DomainFailure.
type Cause uint8

const (
	// CauseNone is used for every Kind other than DomainFailure.
	CauseNone Cause = iota
	// StockExhausted means the product or coupon ran out.
	StockExhausted
	// DuplicateOrder means the service rejected a repeated order or coupon use.
	DuplicateOrder
	// Other is any refusal without a recognised code or marker.
	Other
)

// Outcome is the classification of one request.
type Outcome struct {
	Kind  Kind
	Cause Cause
}

// The five outcomes a request can have. Each has its own outcome_ counter.
var (
	OutcomeSuccess          = Outcome{Kind: Success}
	OutcomeStockExhausted   = Outcome{Kind: DomainFailure, Cause: StockExhausted}
	OutcomeDuplicateOrder   = Outcome{Kind: DomainFailure, Cause: DuplicateOrder}
	OutcomeOtherFailure     = Outcome{Kind: DomainFailure, Cause: Other}
	OutcomeTransportFailure = Outcome{Kind: TransportFailure}
)

// Outcomes lists every outcome in report order.
var Outcomes = []Outcome{
	OutcomeSuccess,
	OutcomeStockExhausted,
	OutcomeDuplicateOrder,
	OutcomeOtherFailure,
	OutcomeTransportFailure,
}

// String returns the snake_case outcome name used in metric names and logs.
func (o Outcome) String() string {
	switch o.Kind {
	case Success:
		return "success"
	case TransportFailure:
		return "transport_failure"
	case DomainFailure:
		switch o.Cause {
		case StockExhausted:
			return "stock_exhausted"
		case DuplicateOrder:
			return "duplicate_order"
		}
		return "other_failure"
	}
	return "unknown"
}

// Counter is the metric counting this outcome.
func (o Outcome) Counter() string {
	return "outcome_" + o.String()
}
