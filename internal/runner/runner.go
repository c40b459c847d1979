package runner

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultGracefulStop is how long stopping workers may finish their iteration
// at the end of a run before in-flight work is cancelled.
const DefaultGracefulStop = 30 * time.Second

const controllerTick = 100 * time.Millisecond

// VU is the per-worker state handed to the executor. It is only touched by the
// worker goroutine that owns it.
type VU struct {
	ID        int
	Iteration int64
	Rand      *rand.Rand
}

// Executor performs one iteration for vu and returns the pause that follows it.
type Executor interface {
	Iterate(ctx context.Context, vu *VU) time.Duration
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, vu *VU) time.Duration

// Iterate implements Executor.
func (f ExecutorFunc) Iterate(ctx context.Context, vu *VU) time.Duration {
	return f(ctx, vu)
}

// Options configure the Runner. Either Stages or VUs with Duration must be set.
type Options struct {
	Stages       []Stage
	VUs          int
	Duration     time.Duration
	GracefulStop time.Duration
	Seed         uint64
	Executor     Executor
	// OnScale is called from the controller goroutine whenever the number of
	// active workers changes.
	OnScale func(active int)
}

func (o *Options) normalize() {
	if o.GracefulStop <= 0 {
		o.GracefulStop = DefaultGracefulStop
	}
	if o.Seed == 0 {
		o.Seed = uint64(time.Now().UnixNano())
	}
}

// Result captures execution summary.
type Result struct {
	Iterations  int64
	Interrupted int64
	Duration    time.Duration
	MaxActive   int
	// Aborted is set when the caller's context ended the run before the plan did.
	Aborted bool
}

// Runner scales a set of closed-loop workers along a stage plan.
type Runner struct {
	opt  Options
	plan *stagePlan

	active      atomic.Int64
	iterations  atomic.Int64
	interrupted atomic.Int64
}

// New validates the stage shape and returns a Runner.
func New(opt Options) (*Runner, error) {
	if opt.Executor == nil {
		return nil, errors.New("executor is required")
	}
	opt.normalize()
	plan, err := compilePlan(opt.Stages, opt.VUs, opt.Duration)
	if err != nil {
		return nil, err
	}
	opt.Stages = append([]Stage(nil), opt.Stages...)
	return &Runner{opt: opt, plan: plan}, nil
}

// PlannedDuration is the length of the stage plan, excluding the graceful stop.
func (r *Runner) PlannedDuration() time.Duration {
	return r.plan.totalDuration()
}

// MaxTarget is the largest worker count any stage asks for.
func (r *Runner) MaxTarget() int {
	return r.plan.maxTarget
}

// Active reports the number of workers currently scheduled to run.
func (r *Runner) Active() int {
	return int(r.active.Load())
}

// Iterations reports the number of completed iterations so far.
func (r *Runner) Iterations() int64 {
	return r.iterations.Load()
}

// Run drives the plan to completion, or until ctx is done, then stops every
// worker. Stopping workers get GracefulStop to finish the iteration in hand;
// after that the context passed to the executor is cancelled. Run returns only
// once every worker goroutine has exited.
func (r *Runner) Run(ctx context.Context) Result {
	start := time.Now()

	// Iterations keep running through the caller's cancellation until the
	// graceful stop window closes.
	iterCtx, hardCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer hardCancel()

	pool := &workerPool{
		ctx:         iterCtx,
		exec:        r.opt.Executor,
		seed:        r.opt.Seed,
		iterations:  &r.iterations,
		interrupted: &r.interrupted,
	}

	var maxActive int
	scale := func(n int) {
		if pool.scale(n) {
			r.active.Store(int64(len(pool.active)))
			maxActive = max(maxActive, len(pool.active))
			if r.opt.OnScale != nil {
				r.opt.OnScale(len(pool.active))
			}
		}
	}

	aborted := false
	if target, ok := r.plan.targetAt(0); ok {
		scale(target)
	}

	ticker := time.NewTicker(controllerTick)
loop:
	for {
		select {
		case <-ctx.Done():
			aborted = true
			break loop
		case <-ticker.C:
			// The final tick applies the last stage's target before draining.
			target, ok := r.plan.targetAt(time.Since(start))
			scale(target)
			if !ok {
				break loop
			}
		}
	}
	ticker.Stop()

	scale(0)

	drained := make(chan struct{})
	go func() {
		pool.wg.Wait()
		close(drained)
	}()
	timer := time.NewTimer(r.opt.GracefulStop)
	select {
	case <-drained:
		timer.Stop()
	case <-timer.C:
		hardCancel()
		<-drained
	}

	return Result{
		Iterations:  r.iterations.Load(),
		Interrupted: r.interrupted.Load(),
		Duration:    time.Since(start),
		MaxActive:   maxActive,
		Aborted:     aborted,
	}
}

// workerPool owns the active stack. Only the controller goroutine touches it.
type workerPool struct {
	ctx     context.Context
	exec    Executor
	seed    uint64
	spawned uint64
	active  []*worker
	// stopping holds workers told to stop that may still be finishing an
	// iteration. They count against the target until they exit.
	stopping    []*worker
	wg          sync.WaitGroup
	iterations  *atomic.Int64
	interrupted *atomic.Int64
}

// scale grows or shrinks the active stack to n and reports whether it changed.
// Identities stay contiguous: a new worker takes len(active)+1 and the youngest
// worker is the first to go. Growth is held back by workers still stopping, so
// active plus stopping workers never exceed n while scaling up and in-flight
// iterations never exceed the largest target.
func (p *workerPool) scale(n int) bool {
	if n < 0 {
		n = 0
	}
	p.stopping = slices.DeleteFunc(p.stopping, func(w *worker) bool {
		return w.load() == stateStopped
	})

	changed := false
	for len(p.active) < n-len(p.stopping) {
		p.spawned++
		w := newWorker(len(p.active)+1, rand.New(rand.NewPCG(p.seed, p.spawned)))
		p.active = append(p.active, w)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w.run(p.ctx, p.exec, p.iterations, p.interrupted)
		}()
		changed = true
	}
	for len(p.active) > n {
		last := len(p.active) - 1
		p.active[last].signalStop()
		p.stopping = append(p.stopping, p.active[last])
		p.active[last] = nil
		p.active = p.active[:last]
		changed = true
	}
	return changed
}
