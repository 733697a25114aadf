package metrics

import (
	"testing"

	"github.com/rtschedsim/rtschedsim/internal/engine"
	"github.com/rtschedsim/rtschedsim/internal/eventbus"
	"github.com/rtschedsim/rtschedsim/internal/model"
)

func deadlinePtr(f float64) *float64 { return &f }

func TestCompute_SingleCompletedJob(t *testing.T) {
	// GIVEN a one-task, one-core model that completes cleanly
	m := &model.Model{
		Version: "0.2",
		Platform: model.Platform{
			ProcessorTypes: []model.ProcessorType{{ID: "pt", CoreCount: 1, SpeedFactor: 1}},
			Cores:          []model.Core{{ID: "c0", TypeID: "pt", SpeedFactor: 1}},
		},
		Tasks: []model.TaskGraph{
			{
				ID: "t1", Type: model.TaskDynamicRT, Deadline: deadlinePtr(50),
				Arrival: &model.ArrivalProcess{Type: model.ArrivalOneShot},
				Subtasks: []model.Subtask{
					{ID: "s1", Segments: []model.Segment{{ID: "seg1", Index: 1, WCET: 4, Preemptible: true}}},
				},
			},
		},
		Scheduler:       model.SchedulerEDF,
		SchedulerParams: model.SchedulerParams{TieBreaker: model.TieBreakFIFO, AllowPreempt: true, ETM: model.ETMConstant},
		Sim:             model.SimParams{Duration: 10, Seed: 1},
	}

	bus := eventbus.New()
	e := engine.New()
	if err := e.Build(m, bus); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if err := e.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// WHEN metrics are computed over the run
	doc := Compute(e.Jobs(), bus.Events(), []string{"c0"}, m.Sim.Duration)

	// THEN the single job shows up completed with the expected response time
	if len(doc.PerJob) != 1 {
		t.Fatalf("expected 1 per-job row, got %d", len(doc.PerJob))
	}
	row := doc.PerJob[0]
	if row.JobID != "t1#1" || row.Aborted || row.Missed {
		t.Fatalf("unexpected per-job row: %+v", row)
	}
	if row.ResponseTime == nil || *row.ResponseTime != 4 {
		t.Fatalf("expected response_time=4, got %+v", row.ResponseTime)
	}
	if doc.Summary.JobsReleased != 1 || doc.Summary.JobsCompleted != 1 || doc.Summary.JobsAborted != 0 {
		t.Fatalf("unexpected summary: %+v", doc.Summary)
	}
	if doc.Summary.CoreUtilization["c0"] != 0.4 {
		t.Fatalf("expected c0 utilization=0.4, got %v", doc.Summary.CoreUtilization["c0"])
	}
}

func TestCompute_MissingCoreStaysZero(t *testing.T) {
	// GIVEN no events at all and an idle core
	doc := Compute(map[string]*engine.Job{}, nil, []string{"c0", "c1"}, 10)

	// THEN both cores report zero utilization rather than being omitted
	if doc.Summary.CoreUtilization["c0"] != 0 || doc.Summary.CoreUtilization["c1"] != 0 {
		t.Fatalf("expected zero utilization for idle cores, got %+v", doc.Summary.CoreUtilization)
	}
	if len(doc.PerJob) != 0 {
		t.Fatalf("expected no per-job rows, got %d", len(doc.PerJob))
	}
}
