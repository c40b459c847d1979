package classify

import (
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
)

// Response is what a check sees. Status is zero after a transport failure.
type Response struct {
	Status   int
	Body     []byte
	Duration time.Duration
}

// Check is a named boolean assertion over a response.
type Check struct {
	Name string
	Fn   func(Response) bool
}

// StatusIs passes when the status equals code.
func StatusIs(code int) Check {
	return Check{
		Name: "status is " + strconv.Itoa(code),
		Fn:   func(r Response) bool { return r.Status == code },
	}
}

// StatusIn passes when the status is one of codes.
func StatusIn(name string, codes ...int) Check {
	allowed := slices.Clone(codes)
	return Check{
		Name: name,
		Fn:   func(r Response) bool { return slices.Contains(allowed, r.Status) },
	}
}

// DurationBelow passes when the request finished within d.
func DurationBelow(d time.Duration) Check {
	return Check{
		Name: fmt.Sprintf("response time < %s", d),
		Fn:   func(r Response) bool { return r.Status != 0 && r.Duration < d },
	}
}

// EnvelopeHasData passes for {"code":200,"data":[...]} bodies.
func EnvelopeHasData() Check {
	return Check{
		Name: "response has data",
		Fn: func(r Response) bool {
			if !gjson.ValidBytes(r.Body) {
				return false
			}
			res := gjson.GetManyBytes(r.Body, "code", "data")
			return res[0].Type == gjson.Number && res[0].Int() == 200 && res[1].IsArray()
		},
	}
}

// EnvelopeComplete passes when the body carries code, data and message keys.
func EnvelopeComplete() Check {
	return Check{
		Name: "response structure is correct",
		Fn: func(r Response) bool {
			if !gjson.ValidBytes(r.Body) {
				return false
			}
			for _, res := range gjson.GetManyBytes(r.Body, "code", "data", "message") {
				if !res.Exists() {
					return false
				}
			}
			return true
		},
	}
}

// BodySizeWithin passes when min < len(body) < max.
func BodySizeWithin(min, max int) Check {
	return Check{
		Name: "response size is reasonable",
		Fn:   func(r Response) bool { return len(r.Body) > min && len(r.Body) < max },
	}
}
