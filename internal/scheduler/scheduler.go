// Package scheduler selects the runnable segment per core and decides
// preemption (spec §4.5, C5).
package scheduler

import (
	"sort"

	"github.com/rtschedsim/rtschedsim/internal/model"
	"github.com/rtschedsim/rtschedsim/internal/simerr"
)

// Runnable is one candidate the scheduler may choose to run next.
type Runnable struct {
	JobID        string
	TaskID       string
	SegmentID    string
	Key          float64 // scheduler priority key: smaller = more urgent
	ReadyTime    float64
	ReleaseTime  float64
	Preemptible  bool
}

// Scheduler selects the occupant for a core from its ready set, given
// whatever is currently running there (if anything).
type Scheduler interface {
	// Select returns the Runnable that should occupy the core, or ok=false
	// if nothing should run (ready set empty).
	Select(ready []Runnable, running *Runnable) (chosen Runnable, preempt bool, ok bool)
	// Key computes the scheduler's priority key for a job (spec §4.5):
	// EDF uses absolute deadline, RM uses period (non_rt => a large finite
	// sentinel that ranks below every period).
	Key(absoluteDeadline float64, period *float64) float64
}

type base struct {
	tieBreaker   model.TieBreaker
	allowPreempt bool
}

func (b base) less(a, c Runnable) bool {
	if a.Key != c.Key {
		return a.Key < c.Key
	}
	switch b.tieBreaker {
	case model.TieBreakLIFO:
		if a.ReadyTime != c.ReadyTime {
			return a.ReadyTime > c.ReadyTime
		}
	case model.TieBreakSegmentKey:
		if a.SegmentID != c.SegmentID {
			return a.SegmentID < c.SegmentID
		}
	default: // fifo
		if a.ReadyTime != c.ReadyTime {
			return a.ReadyTime < c.ReadyTime
		}
		if a.ReleaseTime != c.ReleaseTime {
			return a.ReleaseTime < c.ReleaseTime
		}
		return a.TaskID < c.TaskID
	}
	// segment_key and lifo still need a final deterministic fallback.
	if a.ReleaseTime != c.ReleaseTime {
		return a.ReleaseTime < c.ReleaseTime
	}
	return a.TaskID < c.TaskID
}

func (b base) best(ready []Runnable) (Runnable, bool) {
	if len(ready) == 0 {
		return Runnable{}, false
	}
	sorted := make([]Runnable, len(ready))
	copy(sorted, ready)
	sort.SliceStable(sorted, func(i, j int) bool { return b.less(sorted[i], sorted[j]) })
	return sorted[0], true
}

// decide applies the shared preemption policy of spec §4.5: if
// allow_preempt=false, a running segment always keeps the core. Otherwise
// a strictly more urgent newly-ready candidate preempts iff the running
// segment is preemptible.
func (b base) decide(ready []Runnable, running *Runnable) (Runnable, bool, bool) {
	best, ok := b.best(ready)
	if running == nil {
		return best, false, ok
	}
	if !ok {
		// nothing else ready; keep running occupant
		return *running, false, true
	}
	if !b.allowPreempt {
		return *running, false, true
	}
	if best.Key < running.Key && running.Preemptible {
		return best, true, true
	}
	return *running, false, true
}

// EDF selects by absolute deadline (smaller = higher priority).
type EDF struct{ base }

// NewEDF builds an EDF scheduler with the given tie-break and preemption
// policy (spec §6 scheduler.params).
func NewEDF(tieBreaker model.TieBreaker, allowPreempt bool) *EDF {
	return &EDF{base{tieBreaker: tieBreaker, allowPreempt: allowPreempt}}
}

func (e *EDF) Select(ready []Runnable, running *Runnable) (Runnable, bool, bool) {
	return e.decide(ready, running)
}

func (e *EDF) Key(absoluteDeadline float64, _ *float64) float64 {
	return absoluteDeadline
}

// RateMonotonic selects by period (smaller = higher priority); non_rt
// jobs receive the finite sentinel 1e300 (lowest priority), per spec §4.5.
type RateMonotonic struct{ base }

// NewRateMonotonic builds a Rate-Monotonic scheduler.
func NewRateMonotonic(tieBreaker model.TieBreaker, allowPreempt bool) *RateMonotonic {
	return &RateMonotonic{base{tieBreaker: tieBreaker, allowPreempt: allowPreempt}}
}

func (r *RateMonotonic) Select(ready []Runnable, running *Runnable) (Runnable, bool, bool) {
	return r.decide(ready, running)
}

func (r *RateMonotonic) Key(_ float64, period *float64) float64 {
	if period == nil {
		return positiveInfinity
	}
	return *period
}

const positiveInfinity = 1e300 // large-but-finite sentinel; keeps Key comparable/serializable

// New builds a Scheduler by name from the model's SchedulerChoice, per
// spec §6. Returns a ClassConfig error for an unrecognized name.
func New(choice model.SchedulerChoice, params model.SchedulerParams) (Scheduler, error) {
	switch choice {
	case model.SchedulerEDF, "":
		return NewEDF(params.TieBreaker, params.AllowPreempt), nil
	case model.SchedulerRM:
		return NewRateMonotonic(params.TieBreaker, params.AllowPreempt), nil
	default:
		return nil, simerr.Configf("unknown_scheduler", "unrecognized scheduler %q", choice)
	}
}
