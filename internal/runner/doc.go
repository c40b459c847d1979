// Package runner schedules closed-loop load workers.
//
// A [Runner] compiles a list of [Stage] values (or a flat VUs/Duration pair)
// into a piecewise-linear plan and re-evaluates it every 100ms. The active
// worker set grows by appending workers with identity len(active)+1 and
// shrinks by stopping the youngest, so identities always cover 1..active.
//
//	r, err := runner.New(runner.Options{
//		Stages: []runner.Stage{
//			{Duration: 10 * time.Second, Target: 50},
//			{Duration: 20 * time.Second, Target: 300},
//		},
//		Executor: exec,
//	})
//	res := r.Run(ctx)
//
// Each worker repeats: run one iteration through the [Executor], pause for the
// duration it returned, check for a stop signal. Stopping never interrupts an
// iteration in progress; at the end of a run workers get
// [Options.GracefulStop] to finish before their context is cancelled.
package runner
