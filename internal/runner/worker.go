package runner

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"
)

type workerState int32

const (
	stateIdle workerState = iota
	stateRunning
	stateStopping
	stateStopped
)

func (s workerState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateRunning:
		return "running"
	case stateStopping:
		return "stopping"
	case stateStopped:
		return "stopped"
	}
	return "unknown"
}

type worker struct {
	vu       VU
	state    atomic.Int32
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func newWorker(id int, rnd *rand.Rand) *worker {
	return &worker{
		vu:   VU{ID: id, Rand: rnd},
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (w *worker) load() workerState {
	return workerState(w.state.Load())
}

// signalStop asks the worker to exit after its current iteration. It never blocks.
func (w *worker) signalStop() {
	w.stopOnce.Do(func() {
		w.state.CompareAndSwap(int32(stateIdle), int32(stateStopping))
		w.state.CompareAndSwap(int32(stateRunning), int32(stateStopping))
		close(w.stop)
	})
}

// run loops iterate, pause, stop-check until told to stop or ctx is cancelled.
func (w *worker) run(ctx context.Context, exec Executor, iterations, interrupted *atomic.Int64) {
	defer close(w.done)
	defer w.state.Store(int32(stateStopped))
	w.state.CompareAndSwap(int32(stateIdle), int32(stateRunning))

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		pause := exec.Iterate(ctx, &w.vu)
		if ctx.Err() != nil {
			interrupted.Add(1)
			return
		}
		w.vu.Iteration++
		iterations.Add(1)

		if pause <= 0 {
			continue
		}
		timer := time.NewTimer(pause)
		select {
		case <-timer.C:
		case <-w.stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}
