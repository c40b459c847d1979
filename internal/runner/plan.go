package runner

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Stage moves the number of active workers linearly from the previous stage's
// target (zero for the first stage) to Target over Duration.
type Stage struct {
	Duration time.Duration `json:"duration" yaml:"duration"`
	Target   int           `json:"target" yaml:"target"`
}

type stagePlan struct {
	segments  []stageSegment
	duration  time.Duration
	maxTarget int
}

type stageSegment struct {
	start    time.Duration
	duration time.Duration
	from     float64
	to       float64
}

// ValidateStages reports the first problem with a stage list or flat shape.
func ValidateStages(stages []Stage, vus int, duration time.Duration) error {
	_, err := compilePlan(stages, vus, duration)
	return err
}

// Shape returns the largest target and total length of a valid stage list or
// flat shape.
func Shape(stages []Stage, vus int, duration time.Duration) (maxTarget int, total time.Duration, err error) {
	plan, err := compilePlan(stages, vus, duration)
	if err != nil {
		return 0, 0, err
	}
	return plan.maxTarget, plan.duration, nil
}

// compilePlan turns a stage list, or a flat vus/duration pair when stages is
// empty, into time-indexed segments. A zero-duration stage jumps straight to
// its target.
func compilePlan(stages []Stage, vus int, duration time.Duration) (*stagePlan, error) {
	plan := &stagePlan{}

	if len(stages) == 0 {
		if vus <= 0 {
			return nil, errors.New("vus must be greater than 0 when no stages are given")
		}
		if duration <= 0 {
			return nil, errors.New("duration must be greater than 0 when no stages are given")
		}
		plan.appendSegment(stageSegment{duration: duration, from: float64(vus), to: float64(vus)})
		plan.duration = duration
		return plan, nil
	}

	var offset time.Duration
	from := 0.0
	for i, stage := range stages {
		if stage.Duration < 0 {
			return nil, fmt.Errorf("stage %d: duration must not be negative", i+1)
		}
		if stage.Target < 0 {
			return nil, fmt.Errorf("stage %d: target must not be negative", i+1)
		}
		to := float64(stage.Target)
		if stage.Duration > 0 {
			plan.appendSegment(stageSegment{
				start:    offset,
				duration: stage.Duration,
				from:     from,
				to:       to,
			})
			offset += stage.Duration
		}
		from = to
	}

	if len(plan.segments) == 0 {
		return nil, errors.New("stages have no duration")
	}
	plan.duration = offset
	return plan, nil
}

func (p *stagePlan) appendSegment(seg stageSegment) {
	p.segments = append(p.segments, seg)
	p.maxTarget = max(p.maxTarget, int(math.Max(seg.from, seg.to)))
}

// targetAt returns the worker count the plan asks for at elapsed. Once the
// plan is over it returns the final stage's target and false. Rounding the
// interpolated value keeps the result within [min(from,to), max(from,to)] of
// the active segment.
func (p *stagePlan) targetAt(elapsed time.Duration) (int, bool) {
	if p == nil || len(p.segments) == 0 {
		return 0, false
	}
	if elapsed < 0 {
		elapsed = 0
	}
	for _, seg := range p.segments {
		end := seg.start + seg.duration
		if elapsed < seg.start || elapsed >= end {
			continue
		}
		if seg.from == seg.to {
			return int(seg.from), true
		}
		progress := float64(elapsed-seg.start) / float64(seg.duration)
		return int(math.Round(seg.from + (seg.to-seg.from)*progress)), true
	}
	if elapsed < p.segments[0].start {
		return 0, false
	}
	return int(p.segments[len(p.segments)-1].to), false
}

func (p *stagePlan) totalDuration() time.Duration {
	if p == nil {
		return 0
	}
	return p.duration
}
