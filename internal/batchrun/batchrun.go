// Package batchrun runs a set of independent engine configurations
// concurrently and aggregates their outcomes into a single batch exit
// code (spec §7, SPEC_FULL §10.4/§12.2).
//
// Grounded on the teacher's sim/cluster/simulator.go ClusterSimulator,
// which composes N InstanceSimulators sharing a clock and event queue;
// here the generalization drops the shared clock (each run owns its own
// engine.Engine and eventbus.Bus) and instead shares only a bounded
// concurrency limit, via golang.org/x/sync/errgroup rather than the
// teacher's single-goroutine EventHeap loop — the teacher never needed
// concurrent instances in the same process, but a what-if batch over N
// scheduling-policy variants does.
package batchrun

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/rtschedsim/rtschedsim/internal/audit"
	"github.com/rtschedsim/rtschedsim/internal/engine"
	"github.com/rtschedsim/rtschedsim/internal/eventbus"
	"github.com/rtschedsim/rtschedsim/internal/metrics"
	"github.com/rtschedsim/rtschedsim/internal/model"
)

// RunConfig is one named engine run within a RunSet: a model plus the
// platform's core ids (metrics needs these to report 0.0 utilization for
// a core the run never touches).
type RunConfig struct {
	Name    string
	Model   *model.Model
	CoreIDs []string
}

// RunSet is a batch of independently configured runs sharing nothing but
// a concurrency budget, generalizing the teacher's DeploymentConfig
// (N identical replicas) to N possibly-distinct scheduling variants
// (spec SPEC_FULL §12.2).
type RunSet struct {
	Runs        []RunConfig
	Concurrency int // 0 means unbounded
}

// Result is one run's outcome: its retained trace, metrics document,
// audit report, and any error encountered building or running it.
type Result struct {
	Name    string
	Trace   []eventbus.Event
	Metrics *metrics.Document
	Audit   *audit.Report
	Err     error
}

// BatchExitCode is the exit code spec §7 assigns a batch containing at
// least one failed run under strict-fail-on-error semantics.
const BatchExitCode = 3

// Run executes every RunConfig in rs concurrently, bounded by
// rs.Concurrency (via errgroup.SetLimit), and returns one Result per run
// in the same order as rs.Runs. A panic-free run failure is recorded on
// its Result.Err rather than aborting the batch — one bad variant must
// not prevent the others from reporting.
func Run(ctx context.Context, rs RunSet) ([]Result, error) {
	results := make([]Result, len(rs.Runs))

	g, gctx := errgroup.WithContext(ctx)
	if rs.Concurrency > 0 {
		g.SetLimit(rs.Concurrency)
	}

	for i, rc := range rs.Runs {
		i, rc := i, rc
		g.Go(func() error {
			results[i] = runOne(gctx, rc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func runOne(ctx context.Context, rc RunConfig) Result {
	res := Result{Name: rc.Name}

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	bus := eventbus.New()
	e := engine.New()
	if err := e.Build(rc.Model, bus); err != nil {
		res.Err = err
		return res
	}
	if err := e.Run(); err != nil {
		res.Err = err
		return res
	}

	res.Trace = bus.Events()
	res.Metrics = metrics.Compute(e.Jobs(), res.Trace, rc.CoreIDs, rc.Model.Sim.Duration)
	res.Audit = audit.Run(res.Trace, e.Jobs())
	return res
}

// ExitCode derives the overall batch exit code from a slice of Results:
// 0 if every run succeeded, BatchExitCode (3) if any run failed (spec
// §7's "strict-fail-on-error" batch semantics).
func ExitCode(results []Result) int {
	for _, r := range results {
		if r.Err != nil {
			return BatchExitCode
		}
	}
	return 0
}
