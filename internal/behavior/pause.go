package behavior

import (
	"math/rand/v2"
	"time"
)

// Pause decides how long a worker idles after an iteration.
type Pause interface {
	Duration(worker int, rnd *rand.Rand) time.Duration
}

// Fixed always pauses for the same duration.
type Fixed time.Duration

// Duration implements Pause.
func (f Fixed) Duration(int, *rand.Rand) time.Duration {
	return time.Duration(f)
}

// Uniform pauses for a duration drawn uniformly from [Min, Max).
type Uniform struct {
	Min time.Duration
	Max time.Duration
}

// Duration implements Pause.
func (u Uniform) Duration(_ int, rnd *rand.Rand) time.Duration {
	if u.Max <= u.Min {
		return u.Min
	}
	return u.Min + time.Duration(rnd.Float64()*float64(u.Max-u.Min))
}

// Segmented assigns each worker a bucket by identity (worker mod len(Buckets)),
// then replaces the bucket draw with Override with probability OverrideProbability.
type Segmented struct {
	Buckets             []Uniform
	Override            Uniform
	OverrideProbability float64
}

// Duration implements Pause.
func (s Segmented) Duration(worker int, rnd *rand.Rand) time.Duration {
	if len(s.Buckets) == 0 {
		return 0
	}
	idx := worker % len(s.Buckets)
	if idx < 0 {
		idx += len(s.Buckets)
	}
	d := s.Buckets[idx].Duration(worker, rnd)
	if s.OverrideProbability > 0 && rnd.Float64() < s.OverrideProbability {
		d = s.Override.Duration(worker, rnd)
	}
	return d
}

func seconds(min, max float64) Uniform {
	return Uniform{
		Min: time.Duration(min * float64(time.Second)),
		Max: time.Duration(max * float64(time.Second)),
	}
}
