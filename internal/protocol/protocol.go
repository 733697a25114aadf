// Package protocol implements the three resource-access disciplines of
// spec §4.4 (C4): Mutex, Priority Inheritance (PIP), and Priority Ceiling
// (PCP). All three share one interface so the engine can treat a
// resource's protocol polymorphically.
package protocol

// Priority is an abstract comparable priority key, per spec §9 "Priority
// domains". Convention used throughout this package: a LARGER Priority
// value means a MORE urgent / higher scheduling priority. This is the
// opposite sign of a raw EDF absolute deadline (where smaller deadline
// means more urgent) — the engine is responsible for handing protocols
// Priority = -deadline under EDF and Priority = -period (non_rt => -1e300,
// the negated RM sentinel key) under RM, so that "effective priority strictly greater than system
// ceiling" (PCP) and "system ceiling = maximum ceiling of currently held
// resources" (spec §4.4) both read correctly as ordinary float
// comparisons regardless of which scheduler is active. This is the
// concrete mechanism behind spec §9's "priority domain unification".
type Priority = float64

// Outcome is the result of a try-acquire attempt.
type Outcome int

const (
	Granted Outcome = iota
	MustBlock
)

// Holder identifies the segment instance currently holding or waiting for
// a resource. JobID+SegmentID is sufficient because a job has at most one
// running instance of a given segment at a time (spec §3 lifecycle).
type Holder struct {
	JobID     string
	SegmentID string
	Priority  Priority // job's effective priority at request time (may already be raised)
}

// RaiseEvent describes a PriorityRaise (spec §4.1/§4.4): Owner's
// effective priority is raised because DueTo is blocked waiting on a
// resource Owner holds.
type RaiseEvent struct {
	OwnerJobID  string
	DueToJobID  string
	NewPriority Priority
}

// RestoreEvent describes a PriorityRestore: Owner's effective priority
// returns to NewPriority (its base priority, or the max still required
// by resources it continues to hold).
type RestoreEvent struct {
	OwnerJobID  string
	NewPriority Priority
}

// CeilingEvent describes a CeilingPush/CeilingPop (PCP only).
type CeilingEvent struct {
	ResourceID string
	Ceiling    Priority
}

// AcquireResult is returned by TryAcquire.
type AcquireResult struct {
	Outcome Outcome
	Raises  []RaiseEvent
	Pushed  *CeilingEvent // non-nil only for PCP, only on Granted
}

// ReleaseResult is returned by Release.
type ReleaseResult struct {
	NextJobID, NextSegmentID string
	Granted                  bool
	Restores                 []RestoreEvent
	Popped                   *CeilingEvent // non-nil only for PCP
}

// Protocol governs acquisition and release of one resource instance. An
// implementation is instantiated once per Resource and reset with the
// engine (spec §9: per-run state lives in the protocol, not globally) —
// except PIP and PCP, whose cross-resource invariants (inheritance
// chains, system ceiling) require a manager shared across all resource
// instances of that protocol kind within one engine run; see pip.go and
// pcp.go.
type Protocol interface {
	// TryAcquire attempts to grant the resource to h. On MustBlock, h is
	// recorded as a waiter. Block/unblock bookkeeping is internal to the
	// implementation; the interface has no separate block/unblock hooks.
	TryAcquire(h Holder) AcquireResult
	// Release releases a resource held by h.
	Release(h Holder) ReleaseResult
	// Holders returns the current holder set (0 or 1 entry for
	// mutex/PIP/PCP — spec §8 invariant 2).
	Holders() []Holder
	// EffectivePriority returns h's current effective priority, after
	// any protocol-induced raise (PIP) — equal to base priority for
	// Mutex and PCP, which do not raise the holder's own priority.
	EffectivePriority(jobID string) Priority
}
