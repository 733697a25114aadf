package engine

import (
	"testing"

	"github.com/rtschedsim/rtschedsim/internal/eventbus"
	"github.com/rtschedsim/rtschedsim/internal/model"
)

func deadlinePtr(f float64) *float64 { return &f }

func singleCorePlatform() model.Platform {
	return model.Platform{
		ProcessorTypes: []model.ProcessorType{{ID: "pt", Name: "pt", CoreCount: 1, SpeedFactor: 1}},
		Cores:          []model.Core{{ID: "c0", TypeID: "pt", SpeedFactor: 1}},
	}
}

func eventsOfKind(events []eventbus.Event, kind eventbus.Kind) []eventbus.Event {
	var out []eventbus.Event
	for _, e := range events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// TestEngine_SingleTaskCompletesEDF mirrors spec §8 scenario 1: a single
// DAG task with two sequential segments, EDF, one core — the job must
// complete exactly when its segments' durations sum.
func TestEngine_SingleTaskCompletesEDF(t *testing.T) {
	m := &model.Model{
		Version:  "0.2",
		Platform: singleCorePlatform(),
		Tasks: []model.TaskGraph{
			{
				ID: "t1", Type: model.TaskDynamicRT, Deadline: deadlinePtr(50),
				Arrival: &model.ArrivalProcess{Type: model.ArrivalOneShot},
				Subtasks: []model.Subtask{
					{ID: "s1", Segments: []model.Segment{
						{ID: "seg1", Index: 1, WCET: 3, Preemptible: true},
						{ID: "seg2", Index: 2, WCET: 2, Preemptible: true},
					}},
				},
			},
		},
		Scheduler:       model.SchedulerEDF,
		SchedulerParams: model.SchedulerParams{TieBreaker: model.TieBreakFIFO, AllowPreempt: true, ETM: model.ETMConstant},
		Sim:             model.SimParams{Duration: 20, Seed: 1},
	}

	bus := eventbus.New()
	e := New()
	if err := e.Build(m, bus); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if err := e.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	events := bus.Events()
	ends := eventsOfKind(events, eventbus.KindSegmentEnd)
	if len(ends) != 2 {
		t.Fatalf("expected 2 SegmentEnd events, got %d: %+v", len(ends), ends)
	}
	if ends[0].Time != 3 || ends[1].Time != 5 {
		t.Fatalf("expected segment completions at t=3 and t=5, got %v and %v", ends[0].Time, ends[1].Time)
	}

	completes := eventsOfKind(events, eventbus.KindJobComplete)
	if len(completes) != 1 {
		t.Fatalf("expected exactly 1 JobComplete event, got %d", len(completes))
	}
	if completes[0].Time != 5 {
		t.Fatalf("expected job completion at t=5, got %v", completes[0].Time)
	}
	if completes[0].Payload["job_id"] != "t1#1" {
		t.Fatalf("expected job id t1#1, got %v", completes[0].Payload["job_id"])
	}
}

// TestEngine_AbortOnDeadlineMiss mirrors spec §8 scenario 5: a job whose
// segment cannot finish before its deadline, with abort_on_miss set,
// must be forcibly preempted and aborted with its (empty) resource set
// fully released — exactly one DeadlineMiss, never a JobComplete.
func TestEngine_AbortOnDeadlineMiss(t *testing.T) {
	m := &model.Model{
		Version:  "0.2",
		Platform: singleCorePlatform(),
		Tasks: []model.TaskGraph{
			{
				ID: "miss", Type: model.TaskDynamicRT, Deadline: deadlinePtr(2), AbortOnMiss: true,
				Arrival: &model.ArrivalProcess{Type: model.ArrivalOneShot},
				Subtasks: []model.Subtask{
					{ID: "s1", Segments: []model.Segment{{ID: "seg1", Index: 1, WCET: 10, Preemptible: true}}},
				},
			},
		},
		Scheduler:       model.SchedulerEDF,
		SchedulerParams: model.SchedulerParams{TieBreaker: model.TieBreakFIFO, AllowPreempt: true, ETM: model.ETMConstant},
		Sim:             model.SimParams{Duration: 5, Seed: 1},
	}

	bus := eventbus.New()
	e := New()
	if err := e.Build(m, bus); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if err := e.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	events := bus.Events()
	if misses := eventsOfKind(events, eventbus.KindDeadlineMiss); len(misses) != 1 {
		t.Fatalf("expected exactly 1 DeadlineMiss event, got %d", len(misses))
	}
	if aborts := eventsOfKind(events, eventbus.KindJobAbort); len(aborts) != 1 {
		t.Fatalf("expected exactly 1 JobAbort event, got %d", len(aborts))
	}
	if completes := eventsOfKind(events, eventbus.KindJobComplete); len(completes) != 0 {
		t.Fatalf("expected no JobComplete event for an aborted job, got %d", len(completes))
	}
	preempts := eventsOfKind(events, eventbus.KindPreempt)
	if len(preempts) != 1 || preempts[0].Payload["kind"] != string(eventbus.PreemptForced) {
		t.Fatalf("expected exactly 1 forced preempt, got %+v", preempts)
	}

	job := e.Jobs()["miss#1"]
	if job == nil || job.State != JobAborted {
		t.Fatalf("expected job miss#1 to be aborted, got %+v", job)
	}
}

// TestEngine_MigrationAcrossHeterogeneousCores mirrors spec §8 scenario 2:
// an unmapped (floating) segment preempted off one core must be flagged
// with a Migration event if it resumes on a different, faster core.
func TestEngine_MigrationAcrossHeterogeneousCores(t *testing.T) {
	platform := model.Platform{
		ProcessorTypes: []model.ProcessorType{{ID: "pt", Name: "pt", CoreCount: 2, SpeedFactor: 1}},
		Cores: []model.Core{
			{ID: "c0", TypeID: "pt", SpeedFactor: 1},
			{ID: "c1", TypeID: "pt", SpeedFactor: 2},
		},
	}
	m := &model.Model{
		Version:  "0.2",
		Platform: platform,
		Tasks: []model.TaskGraph{
			{
				ID: "low", Type: model.TaskDynamicRT, Deadline: deadlinePtr(100),
				Arrival: &model.ArrivalProcess{Type: model.ArrivalOneShot},
				Subtasks: []model.Subtask{
					{ID: "s1", Segments: []model.Segment{{ID: "seg1", Index: 1, WCET: 10, Preemptible: true}}},
				},
			},
			{
				ID: "high1", Type: model.TaskDynamicRT, Deadline: deadlinePtr(10),
				Arrival: &model.ArrivalProcess{Type: model.ArrivalOneShot},
				Subtasks: []model.Subtask{
					{ID: "s1", Segments: []model.Segment{{ID: "seg1", Index: 1, WCET: 2, Preemptible: true}}},
				},
			},
			{
				ID: "high2", Type: model.TaskDynamicRT, Deadline: deadlinePtr(1), MappingHint: "c0",
				Arrival: &model.ArrivalProcess{Type: model.ArrivalOneShot, Interval: 0}, Phase: 2,
				Subtasks: []model.Subtask{
					{ID: "s1", Segments: []model.Segment{{ID: "seg1", Index: 1, WCET: 5, Preemptible: true}}},
				},
			},
		},
		Scheduler:       model.SchedulerEDF,
		SchedulerParams: model.SchedulerParams{TieBreaker: model.TieBreakFIFO, AllowPreempt: true, ETM: model.ETMConstant},
		Sim:             model.SimParams{Duration: 3, Seed: 1},
	}

	bus := eventbus.New()
	e := New()
	if err := e.Build(m, bus); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if err := e.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	migrations := eventsOfKind(bus.Events(), eventbus.KindMigration)
	found := false
	for _, ev := range migrations {
		if ev.Payload["job_id"] == "low#1" && ev.Payload["from_core"] == "c0" && ev.Payload["to_core"] == "c1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a Migration event moving low#1 from c0 to c1, got %+v", migrations)
	}

	job := e.Jobs()["low#1"]
	if job == nil || job.MigrationCount < 1 {
		t.Fatalf("expected low#1 to have recorded at least 1 migration, got %+v", job)
	}
}

// TestEngine_PIPBlocksMediumPriorityPreemption mirrors spec §8 scenario 3:
// a high-priority job blocked on a PIP-governed resource raises the
// resource-holding low-priority job's effective priority. A medium-priority
// job released mid-critical-section would preempt the holder under its
// static (unraised) key, but must not once PIP has raised it — the holder
// must keep the core until its critical section ends.
func TestEngine_PIPBlocksMediumPriorityPreemption(t *testing.T) {
	m := &model.Model{
		Version:  "0.2",
		Platform: singleCorePlatform(),
		Resources: []model.Resource{
			{ID: "res", BoundCoreID: "c0", Protocol: model.ProtocolPIP},
		},
		Tasks: []model.TaskGraph{
			{
				ID: "low", Type: model.TaskDynamicRT, Deadline: deadlinePtr(100),
				Arrival: &model.ArrivalProcess{Type: model.ArrivalOneShot},
				Subtasks: []model.Subtask{
					{ID: "s1", Segments: []model.Segment{
						{ID: "seg1", Index: 1, WCET: 5, Preemptible: true, RequiredResourceIDs: []string{"res"}},
					}},
				},
			},
			{
				ID: "high", Type: model.TaskDynamicRT, Deadline: deadlinePtr(3), Phase: 0.1,
				Arrival: &model.ArrivalProcess{Type: model.ArrivalOneShot, Interval: 0},
				Subtasks: []model.Subtask{
					{ID: "s1", Segments: []model.Segment{
						{ID: "seg1", Index: 1, WCET: 1, Preemptible: true, RequiredResourceIDs: []string{"res"}},
					}},
				},
			},
			{
				ID: "med", Type: model.TaskDynamicRT, Deadline: deadlinePtr(20), Phase: 0.5,
				Arrival: &model.ArrivalProcess{Type: model.ArrivalOneShot, Interval: 0},
				Subtasks: []model.Subtask{
					{ID: "s1", Segments: []model.Segment{{ID: "seg1", Index: 1, WCET: 3, Preemptible: true}}},
				},
			},
		},
		Scheduler:       model.SchedulerEDF,
		SchedulerParams: model.SchedulerParams{TieBreaker: model.TieBreakFIFO, AllowPreempt: true, ETM: model.ETMConstant},
		Sim:             model.SimParams{Duration: 10, Seed: 1},
	}

	bus := eventbus.New()
	e := New()
	if err := e.Build(m, bus); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if err := e.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	events := bus.Events()

	lowCriticalEnd := -1.0
	for _, ev := range eventsOfKind(events, eventbus.KindSegmentEnd) {
		if ev.Payload["job_id"] == "low#1" {
			lowCriticalEnd = ev.Time
		}
	}
	if lowCriticalEnd < 0 {
		t.Fatalf("expected low#1 to finish its critical section, got %+v", events)
	}

	for _, ev := range eventsOfKind(events, eventbus.KindSegmentStart) {
		if ev.Payload["job_id"] == "med#1" && ev.Time < lowCriticalEnd {
			t.Fatalf("expected med#1 to never start before low#1's critical section ends at %v, but it started at %v", lowCriticalEnd, ev.Time)
		}
	}
}
