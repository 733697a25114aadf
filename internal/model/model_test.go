package model

import (
	"strings"
	"testing"
)

func floatPtr(f float64) *float64 { return &f }

const validYAML = `
version: "0.2"
platform:
  processor_types:
    - id: pt
      core_count: 1
      speed_factor: 1
  cores:
    - id: c0
      type_id: pt
      speed_factor: 1
tasks:
  - id: t1
    type: dynamic_rt
    deadline: 50
    arrival_process:
      type: one_shot
    subtasks:
      - id: s1
        segments:
          - id: seg1
            index: 1
            wcet: 4
            preemptible: true
scheduler:
  name: edf
sim:
  duration: 10
  seed: 1
`

// TestLoad_YAML_RoundTripsIntoModel checks the sniffed-YAML path parses
// into a fully-formed Model.
func TestLoad_YAML_RoundTripsIntoModel(t *testing.T) {
	m, err := Load([]byte(validYAML), "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Version != "0.2" {
		t.Fatalf("expected version 0.2, got %q", m.Version)
	}
	if len(m.Tasks) != 1 || m.Tasks[0].ID != "t1" {
		t.Fatalf("expected one task t1, got %+v", m.Tasks)
	}
	if m.Tasks[0].Deadline == nil || *m.Tasks[0].Deadline != 50 {
		t.Fatalf("expected deadline 50, got %+v", m.Tasks[0].Deadline)
	}
	if err := Validate(m); err != nil {
		t.Fatalf("expected the loaded model to validate, got %v", err)
	}
}

// TestLoad_JSON_SniffsOnLeadingBrace checks the same document, converted
// to a minimal JSON shape, is accepted without an explicit format.
func TestLoad_JSON_SniffsOnLeadingBrace(t *testing.T) {
	jsonDoc := `{
		"version": "0.2",
		"platform": {
			"processor_types": [{"id": "pt", "core_count": 1, "speed_factor": 1}],
			"cores": [{"id": "c0", "type_id": "pt", "speed_factor": 1}]
		},
		"tasks": [{
			"id": "t1", "type": "dynamic_rt", "deadline": 50,
			"arrival_process": {"type": "one_shot"},
			"subtasks": [{"id": "s1", "segments": [{"id": "seg1", "index": 1, "wcet": 4, "preemptible": true}]}]
		}],
		"scheduler": {"name": "edf"},
		"sim": {"duration": 10, "seed": 1}
	}`
	m, err := Load([]byte(jsonDoc), "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := Validate(m); err != nil {
		t.Fatalf("expected the loaded model to validate, got %v", err)
	}
}

// TestLoad_RejectsUnsupportedVersion checks a document declaring a
// version other than SupportedVersion is rejected before any semantic
// check runs.
func TestLoad_RejectsUnsupportedVersion(t *testing.T) {
	_, err := Load([]byte(strings.Replace(validYAML, `"0.2"`, `"0.1"`, 1)), "yaml")
	if err == nil {
		t.Fatal("expected an error for an unsupported document version")
	}
}

// TestValidate_RejectsCoreCountMismatch checks a processor type
// declaring more cores than the platform actually lists is rejected.
func TestValidate_RejectsCoreCountMismatch(t *testing.T) {
	m := &Model{
		Version: "0.2",
		Platform: Platform{
			ProcessorTypes: []ProcessorType{{ID: "pt", CoreCount: 2, SpeedFactor: 1}},
			Cores:          []Core{{ID: "c0", TypeID: "pt", SpeedFactor: 1}},
		},
		Scheduler: SchedulerEDF,
		Sim:       SimParams{Duration: 10, Seed: 1},
	}
	if err := Validate(m); err == nil {
		t.Fatal("expected a core_count_mismatch error")
	}
}

// TestValidate_RejectsDAGCycle checks a two-subtask cycle is caught.
func TestValidate_RejectsDAGCycle(t *testing.T) {
	m := &Model{
		Version: "0.2",
		Platform: Platform{
			ProcessorTypes: []ProcessorType{{ID: "pt", CoreCount: 1, SpeedFactor: 1}},
			Cores:          []Core{{ID: "c0", TypeID: "pt", SpeedFactor: 1}},
		},
		Tasks: []TaskGraph{
			{
				ID: "t1", Type: TaskDynamicRT, Deadline: floatPtr(10),
				Arrival: &ArrivalProcess{Type: ArrivalOneShot},
				Subtasks: []Subtask{
					{ID: "a", Successors: []string{"b"}, Segments: []Segment{{ID: "seg-a", Index: 1, WCET: 1}}},
					{ID: "b", Successors: []string{"a"}, Segments: []Segment{{ID: "seg-b", Index: 1, WCET: 1}}},
				},
			},
		},
		Scheduler: SchedulerEDF,
		Sim:       SimParams{Duration: 10, Seed: 1},
	}
	if err := Validate(m); err == nil {
		t.Fatal("expected a dag_cycle error")
	}
}

// TestValidate_RejectsMissingDeadlineForRealTimeTask checks a real-time
// task with no deadline is rejected.
func TestValidate_RejectsMissingDeadlineForRealTimeTask(t *testing.T) {
	m := &Model{
		Version: "0.2",
		Platform: Platform{
			ProcessorTypes: []ProcessorType{{ID: "pt", CoreCount: 1, SpeedFactor: 1}},
			Cores:          []Core{{ID: "c0", TypeID: "pt", SpeedFactor: 1}},
		},
		Tasks: []TaskGraph{
			{
				ID: "t1", Type: TaskDynamicRT,
				Arrival:  &ArrivalProcess{Type: ArrivalOneShot},
				Subtasks: []Subtask{{ID: "s1", Segments: []Segment{{ID: "seg1", Index: 1, WCET: 1}}}},
			},
		},
		Scheduler: SchedulerEDF,
		Sim:       SimParams{Duration: 10, Seed: 1},
	}
	if err := Validate(m); err == nil {
		t.Fatal("expected a missing_deadline error")
	}
}

// TestNormalizeLegacyArrival_MinMaxBecomesUniform checks the legacy
// min/max-inter-arrival pair normalizes to a uniform process.
func TestNormalizeLegacyArrival_MinMaxBecomesUniform(t *testing.T) {
	task := &TaskGraph{LegacyMinInterArrival: floatPtr(2), LegacyMaxInterArrival: floatPtr(5)}
	NormalizeLegacyArrival(task)
	if task.Arrival == nil || task.Arrival.Type != ArrivalUniform {
		t.Fatalf("expected a uniform arrival process, got %+v", task.Arrival)
	}
	if task.Arrival.MinInterval != 2 || task.Arrival.MaxInterval != 5 {
		t.Fatalf("expected min=2 max=5, got %+v", task.Arrival)
	}
}

// TestNormalizeLegacyArrival_SingleValueBecomesFixed checks a bare
// legacy "arrival" duration normalizes to a fixed-interval process.
func TestNormalizeLegacyArrival_SingleValueBecomesFixed(t *testing.T) {
	task := &TaskGraph{LegacyArrival: "3.5"}
	NormalizeLegacyArrival(task)
	if task.Arrival == nil || task.Arrival.Type != ArrivalFixed {
		t.Fatalf("expected a fixed arrival process, got %+v", task.Arrival)
	}
	if task.Arrival.Interval != 3.5 {
		t.Fatalf("expected interval 3.5, got %v", task.Arrival.Interval)
	}
}

// TestNormalizeLegacyArrival_NoOpWhenArrivalAlreadySet checks an
// explicit ArrivalProcess is never overwritten by legacy fields.
func TestNormalizeLegacyArrival_NoOpWhenArrivalAlreadySet(t *testing.T) {
	explicit := &ArrivalProcess{Type: ArrivalPoisson, Rate: 0.1}
	task := &TaskGraph{Arrival: explicit, LegacyArrival: "3.5"}
	NormalizeLegacyArrival(task)
	if task.Arrival != explicit {
		t.Fatalf("expected the explicit arrival process to be preserved unchanged")
	}
}
