package behavior

import (
	"net/http"
	"time"
)

// Endpoints of the order service.
const (
	BestsellersPath = "/api/v1/bestsellers"
	OrdersPath      = "/api/v1/orders"
)

// UserAgent identifies generated traffic.
const UserAgent = "orderstorm"

// Bestseller is the read-heavy browsing profile: five think-time classes keyed
// by worker identity, with one pause in ten cut short.
func Bestseller() *ReadHeavy {
	return &ReadHeavy{
		Name: "bestsellers",
		Path: BestsellersPath,
		Header: http.Header{
			"Accept":     {"application/json"},
			"User-Agent": {UserAgent},
		},
		Pause: Segmented{
			Buckets: []Uniform{
				seconds(0.1, 0.9),
				seconds(0.3, 1.8),
				seconds(0.5, 2.5),
				seconds(1, 4),
				seconds(2, 7),
			},
			Override:            seconds(0.05, 0.55),
			OverrideProbability: 0.1,
		},
	}
}

// ConcurrentOrder has five users racing for product 4 with one or two units each.
func ConcurrentOrder() *Order {
	return &Order{
		Name:      "create_order",
		Path:      OrdersPath,
		Header:    jsonHeader(),
		Users:     Pool{1, 2, 3, 4, 5},
		ProductID: 4,
		Quantity:  IntRange{Min: 1, Max: 2},
		Pause:     Fixed(200 * time.Millisecond),
	}
}

// OrderScenario spreads five-unit orders for product 4 across users 1 to 30.
func OrderScenario() *Order {
	return &Order{
		Name:      "create_order",
		Path:      OrdersPath,
		Header:    jsonHeader(),
		Users:     IntRange{Min: 1, Max: 30},
		ProductID: 4,
		Quantity:  IntRange{Min: 5, Max: 5},
		Pause:     Fixed(time.Second),
	}
}

func jsonHeader() http.Header {
	return http.Header{
		"Content-Type": {"application/json"},
		"User-Agent":   {UserAgent},
	}
}
