package model

// TaskType distinguishes the real-time class of a TaskGraph (spec §3).
type TaskType string

const (
	TaskTimeDeterministic TaskType = "time_deterministic"
	TaskDynamicRT         TaskType = "dynamic_rt"
	TaskNonRT             TaskType = "non_rt"
)

// ArrivalProcessType selects a built-in arrival generator (spec §4.2).
type ArrivalProcessType string

const (
	ArrivalFixed    ArrivalProcessType = "fixed"
	ArrivalUniform  ArrivalProcessType = "uniform"
	ArrivalPoisson  ArrivalProcessType = "poisson"
	ArrivalOneShot  ArrivalProcessType = "one_shot"
	ArrivalCustom   ArrivalProcessType = "custom"
)

// ArrivalProcess configures a task's release-time generator.
type ArrivalProcess struct {
	Type ArrivalProcessType

	Interval     float64 // fixed
	MinInterval  float64 // uniform
	MaxInterval  float64 // uniform
	Rate         float64 // poisson

	GeneratorID string         // custom
	Params      map[string]any // custom, opaque

	MaxReleases int // 0 = unbounded
}

// TaskGraph is one schedulable entity: a DAG of subtasks, released
// repeatedly (or once) by its ArrivalProcess.
type TaskGraph struct {
	ID           string
	Name         string
	Type         TaskType
	Period       *float64
	Deadline     *float64
	Phase        float64
	Arrival      *ArrivalProcess
	AbortOnMiss  bool
	MappingHint  string // task-level fallback mapping hint
	Subtasks     []Subtask

	// Legacy fields, mapped onto ArrivalProcess by NormalizeLegacyArrival
	// (spec §4.2, §12.3) when Arrival is nil. LegacyArrivalModel is not
	// consulted by that mapping.
	LegacyArrival        string
	LegacyMinInterArrival *float64
	LegacyMaxInterArrival *float64
	LegacyArrivalModel    string
}

// Subtask is one DAG node: an ordered list of segments plus predecessor
// and successor edges within its task's DAG.
type Subtask struct {
	ID            string
	Predecessors  []string
	Successors    []string
	MappingHint   string
	Segments      []Segment
}

// Segment is the smallest atomic schedulable unit.
type Segment struct {
	ID                  string
	Index               int // 1-based, monotone within the subtask
	WCET                float64
	ACET                *float64
	RequiredResourceIDs []string
	MappingHint         string
	Preemptible         bool
	ReleaseOffset       *float64 // time_deterministic only
}

// ResolveMapping implements the three-level fallback of spec §3:
// segment.mapping_hint → subtask.mapping_hint → task.mapping_hint.
// Returns "" if none of the three levels supplies a hint.
func ResolveMapping(task *TaskGraph, subtask *Subtask, segment *Segment) string {
	if segment.MappingHint != "" {
		return segment.MappingHint
	}
	if subtask.MappingHint != "" {
		return subtask.MappingHint
	}
	return task.MappingHint
}
