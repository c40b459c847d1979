package behavior

import (
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func TestBestsellerPauseStaysInWorkerBucket(t *testing.T) {
	p := Bestseller()
	rnd := newRand(1)
	override := seconds(0.05, 0.55)

	buckets := map[int]Uniform{
		5: seconds(0.1, 0.9),
		1: seconds(0.3, 1.8),
		2: seconds(0.5, 2.5),
		3: seconds(1, 4),
		4: seconds(2, 7),
	}
	for worker, bucket := range buckets {
		for i := 0; i < 500; i++ {
			req, pause := p.Next(worker, rnd)
			assert.Equal(t, http.MethodGet, req.Method)
			assert.Equal(t, BestsellersPath, req.Path)
			inBucket := pause >= bucket.Min && pause < bucket.Max
			inOverride := pause >= override.Min && pause < override.Max
			require.Truef(t, inBucket || inOverride, "worker %d pause %s outside %v and override", worker, pause, bucket)
		}
	}
}

func TestSegmentedOverrideProbability(t *testing.T) {
	s := Segmented{
		Buckets:             []Uniform{{Min: 10 * time.Second, Max: 20 * time.Second}},
		Override:            Uniform{Min: 0, Max: time.Second},
		OverrideProbability: 0.1,
	}
	rnd := newRand(7)

	const n = 20000
	overridden := 0
	for i := 0; i < n; i++ {
		if s.Duration(1, rnd) < time.Second {
			overridden++
		}
	}
	assert.InDelta(t, 0.1, float64(overridden)/n, 0.01)
}

func TestSegmentedWithoutBuckets(t *testing.T) {
	assert.Zero(t, Segmented{}.Duration(3, newRand(1)))
}

func TestUniformDegenerateRange(t *testing.T) {
	u := Uniform{Min: time.Second, Max: time.Second}
	assert.Equal(t, time.Second, u.Duration(1, newRand(1)))
}

func TestConcurrentOrderBody(t *testing.T) {
	p := ConcurrentOrder()
	rnd := newRand(42)

	seenQty := map[int64]bool{}
	seenUser := map[int64]bool{}
	for i := 0; i < 1000; i++ {
		req, pause := p.Next(1+i%5, rnd)
		require.Equal(t, http.MethodPost, req.Method)
		require.Equal(t, OrdersPath, req.Path)
		require.Equal(t, 200*time.Millisecond, pause)
		require.Equal(t, "application/json", req.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.Unmarshal(req.Body, &body))
		require.Contains(t, body, "userCouponId")
		assert.Nil(t, body["userCouponId"])

		var typed orderBody
		require.NoError(t, json.Unmarshal(req.Body, &typed))
		require.Len(t, typed.OrderProducts, 1)
		assert.Equal(t, int64(4), typed.OrderProducts[0].ProductID)
		assert.Contains(t, []int64{1, 2}, typed.OrderProducts[0].Quantity)
		assert.Contains(t, []int64{1, 2, 3, 4, 5}, typed.UserID)
		seenQty[typed.OrderProducts[0].Quantity] = true
		seenUser[typed.UserID] = true

		assert.Equal(t, "4", req.Fields["product_id"])
	}
	assert.Len(t, seenQty, 2)
	assert.Len(t, seenUser, 5)
}

func TestOrderScenarioRanges(t *testing.T) {
	p := OrderScenario()
	rnd := newRand(3)
	for i := 0; i < 500; i++ {
		req, pause := p.Next(1, rnd)
		assert.Equal(t, time.Second, pause)

		var typed orderBody
		require.NoError(t, json.Unmarshal(req.Body, &typed))
		assert.GreaterOrEqual(t, typed.UserID, int64(1))
		assert.LessOrEqual(t, typed.UserID, int64(30))
		assert.Equal(t, int64(5), typed.OrderProducts[0].Quantity)
	}
}

func TestSameSeedSameSequence(t *testing.T) {
	a, b := newRand(99), newRand(99)
	p := ConcurrentOrder()
	for i := 0; i < 50; i++ {
		ra, _ := p.Next(1, a)
		rb, _ := p.Next(1, b)
		require.Equal(t, string(ra.Body), string(rb.Body))
	}
}

func TestPickers(t *testing.T) {
	rnd := newRand(5)
	assert.Equal(t, int64(0), Pool(nil).Pick(rnd))
	assert.Equal(t, int64(9), IntRange{Min: 9, Max: 3}.Pick(rnd))
	for i := 0; i < 100; i++ {
		v := IntRange{Min: -2, Max: 2}.Pick(rnd)
		assert.True(t, v >= -2 && v <= 2)
	}
}
