package metrics

import "fmt"

// Kind identifies how a metric aggregates its samples.
type Kind uint8

const (
	// KindCounter sums samples.
	KindCounter Kind = iota + 1
	// KindGauge keeps the last sample plus its extremes.
	KindGauge
	// KindRate counts non-zero samples against the total.
	KindRate
	// KindTrend keeps the sample distribution.
	KindTrend
)

func (k Kind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindGauge:
		return "gauge"
	case KindRate:
		return "rate"
	case KindTrend:
		return "trend"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// MarshalText renders the kind by name in JSON and YAML reports.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "counter":
		return KindCounter, nil
	case "gauge":
		return KindGauge, nil
	case "rate":
		return KindRate, nil
	case "trend":
		return KindTrend, nil
	}
	return 0, fmt.Errorf("unknown metric kind %q", s)
}

// UnmarshalText accepts the names produced by MarshalText.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
