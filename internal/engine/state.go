package engine

import "github.com/rtschedsim/rtschedsim/internal/model"

// SegmentState is the per-job lifecycle of one segment execution (spec
// §3): Pending -> Ready -> Running -> {Blocked <-> Running} -> Completed
// | Aborted.
type SegmentState string

const (
	SegPending   SegmentState = "pending"
	SegReady     SegmentState = "ready"
	SegRunning   SegmentState = "running"
	SegBlocked   SegmentState = "blocked"
	SegCompleted SegmentState = "completed"
	SegAborted   SegmentState = "aborted"
)

// SubtaskState mirrors the DAG-node readiness derived from its
// predecessors' completion. A subtask has no distinct "running" state of
// its own — that granularity lives on its segments.
type SubtaskState string

const (
	SubPending   SubtaskState = "pending"
	SubReady     SubtaskState = "ready"
	SubCompleted SubtaskState = "completed"
)

// subtaskRuntime tracks one subtask's progress through its ordered
// segment list within a single job.
type subtaskRuntime struct {
	def            *model.Subtask
	state          SubtaskState
	nextSegmentIdx int // index into def.Segments of the next segment to run
}

// candKey identifies a candidate runnable by (job, segment) identity.
type candKey struct{ jobID, segID string }

// candidateRef resolves a candKey back to its runtime objects.
type candidateRef struct {
	job *Job
	seg *segmentRuntime
}

// segmentRuntime tracks one segment's execution progress within a job.
type segmentRuntime struct {
	def   *model.Segment
	owner *subtaskRuntime
	state SegmentState

	// remainingNominal is work remaining in nominal WCET units — spec
	// §4.6 "remaining nominal work" — so resuming on a different-speed
	// core rescales correctly.
	remainingNominal float64
	// unitDuration is wall-seconds per nominal unit on the core this
	// segment is currently (or was last) running on; set each time the
	// segment starts running, used to convert elapsed wall time back to
	// nominal work on preemption.
	unitDuration float64

	// lastCoreID is the core this segment instance last ran on, used to
	// detect migration of an unmapped segment (spec §4.5).
	lastCoreID string
	coreID     string // core currently assigned to, while Running/Blocked
	// runStartTime is the simulated time this run-segment began its
	// current (possibly interrupted) execution; used to convert elapsed
	// wall time back to nominal work on preemption.
	runStartTime float64

	// readyTime is the simulated time this segment most recently entered
	// SegReady — the FIFO tie-break key (spec §4.5), refreshed on every
	// re-entry (initial release, unblock, or post-preemption).
	readyTime float64

	// heldResources is the set of resource ids currently held by this
	// segment; released in full on any abort path (spec §9 "Resource-
	// holding abort paths").
	heldResources []string
	// pendingResources is the subset of def.RequiredResourceIDs not yet
	// held, in request order; non-empty while Blocked.
	pendingResources []string
	blockedOnResource string

	runToken int // bumped each time the segment (re)starts running; invalidates stale completion events
}

// JobState is the overall lifecycle state of a job.
type JobState string

const (
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobAborted   JobState = "aborted"
)

// Job is the runtime instantiation of one task release (spec §3).
type Job struct {
	ID             string
	TaskID         string
	ReleaseTime    float64
	Deadline       float64 // absolute deadline = release + task.Deadline; +Inf if task has none
	HasDeadline    bool
	AbortOnMiss    bool
	State          JobState
	DeadlineMissed bool
	PreemptCount   int
	MigrationCount int

	def      *model.TaskGraph
	subtasks map[string]*subtaskRuntime
	segments map[string]*segmentRuntime // keyed by segment id (unique within task)

	// schedKey is this job's scheduler priority key (spec §4.5),
	// computed once at release and held constant for the job's life.
	schedKey float64

	// effectivePriority is this job's current priority in the protocol
	// package's "larger = more urgent" domain (spec §9 priority domain
	// unification). It starts at protoPriority() and is raised/restored
	// in place by RaiseEvent/RestoreEvent handling (internal/engine/
	// resource.go), so a PIP-inherited priority is visible to the
	// scheduler via effectiveKey, not just within the protocol package.
	effectivePriority float64
}

func (j *Job) allSubtasksCompleted() bool {
	for _, st := range j.subtasks {
		if st.state != SubCompleted {
			return false
		}
	}
	return true
}

// protoPriority converts the job's scheduler key into the protocol
// package's "larger = more urgent" domain (spec §9 priority domain
// unification): Priority = -schedKey.
func (j *Job) protoPriority() float64 {
	return -j.schedKey
}

// effectiveKey converts the job's current (possibly PIP-raised)
// effective priority back into the scheduler's key domain (smaller =
// more urgent), so dispatch can feed it straight into scheduler.Runnable.Key.
func (j *Job) effectiveKey() float64 {
	return -j.effectivePriority
}
