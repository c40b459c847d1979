package behavior

import (
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"
)

// Request is one request a worker is about to issue. Header is shared between
// iterations and must be treated as read-only.
type Request struct {
	Name   string
	Method string
	Path   string
	Header http.Header
	Body   []byte
	// Fields describe the sampled parameters for failure logs and spans.
	Fields map[string]string
}

// Profile produces the next request and the pause that follows it. rnd is owned
// by the calling worker, so implementations need no locking.
type Profile interface {
	Next(worker int, rnd *rand.Rand) (Request, time.Duration)
}

// ReadHeavy issues the same read request with a per-worker think time.
type ReadHeavy struct {
	Name   string
	Path   string
	Header http.Header
	Pause  Pause
}

// Next implements Profile.
func (p *ReadHeavy) Next(worker int, rnd *rand.Rand) (Request, time.Duration) {
	req := Request{
		Name:   p.Name,
		Method: http.MethodGet,
		Path:   p.Path,
		Header: p.Header,
	}
	return req, pauseFor(p.Pause, worker, rnd)
}

// Picker draws an identifier.
type Picker interface {
	Pick(rnd *rand.Rand) int64
}

// IntRange picks uniformly from the inclusive range [Min, Max].
type IntRange struct {
	Min int64
	Max int64
}

// Pick implements Picker.
func (r IntRange) Pick(rnd *rand.Rand) int64 {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + rnd.Int64N(r.Max-r.Min+1)
}

// Pool picks uniformly from a fixed set.
type Pool []int64

// Pick implements Picker.
func (p Pool) Pick(rnd *rand.Rand) int64 {
	if len(p) == 0 {
		return 0
	}
	return p[rnd.IntN(len(p))]
}

// Order places single-line orders for a small, fixed set of users and one
// product, so concurrent workers contend on the same rows.
type Order struct {
	Name      string
	Path      string
	Header    http.Header
	Users     Picker
	ProductID int64
	Quantity  Picker
	Pause     Pause
}

type orderBody struct {
	UserID        int64          `json:"userId"`
	UserCouponID  *int64         `json:"userCouponId"`
	OrderProducts []orderProduct `json:"orderProducts"`
}

type orderProduct struct {
	ProductID int64 `json:"productId"`
	Quantity  int64 `json:"quantity"`
}

// Next implements Profile.
func (p *Order) Next(worker int, rnd *rand.Rand) (Request, time.Duration) {
	user := p.Users.Pick(rnd)
	qty := p.Quantity.Pick(rnd)

	// A struct of integers always marshals.
	body, _ := json.Marshal(orderBody{
		UserID:        user,
		OrderProducts: []orderProduct{{ProductID: p.ProductID, Quantity: qty}},
	})

	req := Request{
		Name:   p.Name,
		Method: http.MethodPost,
		Path:   p.Path,
		Header: p.Header,
		Body:   body,
		Fields: map[string]string{
			"user_id":    strconv.FormatInt(user, 10),
			"product_id": strconv.FormatInt(p.ProductID, 10),
			"quantity":   strconv.FormatInt(qty, 10),
		},
	}
	return req, pauseFor(p.Pause, worker, rnd)
}

func pauseFor(p Pause, worker int, rnd *rand.Rand) time.Duration {
	if p == nil {
		return 0
	}
	return p.Duration(worker, rnd)
}
