// Package metrics derives the spec §6/§4.7 metrics document from an
// engine run: per-job response times, deadline miss rate, preempt and
// migration counts, and per-core utilization. Everything here is a pure
// function of the retained event trace plus the engine's final job
// table — metrics never re-simulates or mutates engine state.
//
// Grounded on the teacher's sim/trace/summary.go Summarize pattern
// (single aggregation pass producing a plain result struct), generalized
// from request/routing records to job lifecycle and per-core busy
// intervals.
package metrics

import (
	"sort"

	"github.com/rtschedsim/rtschedsim/internal/engine"
	"github.com/rtschedsim/rtschedsim/internal/eventbus"
	"github.com/rtschedsim/rtschedsim/internal/trace"
)

// PerJob is one job's row in the metrics document (spec §6).
type PerJob struct {
	JobID        string   `json:"job_id"`
	TaskID       string   `json:"task_id"`
	Release      float64  `json:"release"`
	Complete     *float64 `json:"complete,omitempty"`
	ResponseTime *float64 `json:"response_time,omitempty"`
	Missed       bool     `json:"missed"`
	Aborted      bool     `json:"aborted"`
}

// Summary is the aggregate half of the metrics document (spec §6).
type Summary struct {
	JobsReleased          int                `json:"jobs_released"`
	JobsCompleted         int                `json:"jobs_completed"`
	JobsAborted           int                `json:"jobs_aborted"`
	DeadlineMissRate      float64            `json:"deadline_miss_rate"`
	SchedulerPreemptCount int                `json:"scheduler_preempt_count"`
	ForcedPreemptCount    int                `json:"forced_preempt_count"`
	PreemptCount          int                `json:"preempt_count"`
	MigrationCount        int                `json:"migration_count"`
	CoreUtilization       map[string]float64 `json:"core_utilization"`
}

// Document is the full metrics JSON document of spec §6.
type Document struct {
	PerJob  []PerJob `json:"per_job"`
	Summary Summary  `json:"summary"`
}

// Compute builds a Document from jobs (the engine's final job table),
// events (the full retained trace, in emission order), the platform's
// core ids (so an always-idle core still reports 0.0 utilization rather
// than being omitted), and the run's configured sim.duration.
func Compute(jobs map[string]*engine.Job, events []eventbus.Event, coreIDs []string, duration float64) *Document {
	completeTime := make(map[string]float64)
	for _, e := range events {
		if e.Kind == eventbus.KindJobComplete {
			if jobID, ok := e.Payload["job_id"].(string); ok {
				completeTime[jobID] = e.Time
			}
		}
	}

	doc := &Document{
		Summary: Summary{CoreUtilization: make(map[string]float64, len(coreIDs))},
	}

	ids := make([]string, 0, len(jobs))
	for id := range jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		job := jobs[id]
		row := PerJob{
			JobID:   job.ID,
			TaskID:  job.TaskID,
			Release: job.ReleaseTime,
			Missed:  job.DeadlineMissed,
			Aborted: job.State == engine.JobAborted,
		}
		if t, ok := completeTime[id]; ok {
			tt := t
			row.Complete = &tt
			rt := t - job.ReleaseTime
			row.ResponseTime = &rt
		}
		doc.PerJob = append(doc.PerJob, row)

		doc.Summary.JobsReleased++
		switch job.State {
		case engine.JobCompleted:
			doc.Summary.JobsCompleted++
		case engine.JobAborted:
			doc.Summary.JobsAborted++
		}
	}
	if doc.Summary.JobsReleased > 0 {
		missed := 0
		for _, id := range ids {
			if jobs[id].DeadlineMissed {
				missed++
			}
		}
		doc.Summary.DeadlineMissRate = float64(missed) / float64(doc.Summary.JobsReleased)
	}

	sum := trace.Summarize(events)
	doc.Summary.SchedulerPreemptCount = sum.SchedulerPreempts
	doc.Summary.ForcedPreemptCount = sum.ForcedPreempts
	doc.Summary.PreemptCount = sum.SchedulerPreempts + sum.ForcedPreempts
	doc.Summary.MigrationCount = sum.Migrations

	for _, c := range coreIDs {
		doc.Summary.CoreUtilization[c] = 0
	}
	busy := coreBusyTime(events)
	for core, t := range busy {
		if duration > 0 {
			doc.Summary.CoreUtilization[core] = t / duration
		}
	}
	return doc
}

// coreBusyTime sums, per core, the wall time between a SegmentStart and
// whichever event ends that run — its SegmentEnd or a Preempt on the
// same core — by scanning the trace in emission order. This is derived
// straight from the public event record rather than internal engine
// state, matching spec §4.7 "metrics derived by streaming the event
// trace".
func coreBusyTime(events []eventbus.Event) map[string]float64 {
	busy := make(map[string]float64)
	openSince := make(map[string]float64)
	for _, e := range events {
		core, _ := e.Payload["core_id"].(string)
		if core == "" {
			continue
		}
		switch e.Kind {
		case eventbus.KindSegmentStart:
			openSince[core] = e.Time
		case eventbus.KindSegmentEnd, eventbus.KindPreempt:
			if start, ok := openSince[core]; ok {
				busy[core] += e.Time - start
				delete(openSince, core)
			}
		}
	}
	return busy
}
