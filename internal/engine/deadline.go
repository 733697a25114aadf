package engine

import (
	"sort"

	"github.com/rtschedsim/rtschedsim/internal/eventbus"
)

// handleDeadline fires exactly once per job at its absolute deadline
// (spec §3: "now == deadline counts as a miss"). A job that already
// completed or aborted before its deadline check runs is unaffected.
func (e *Engine) handleDeadline(jobID string) error {
	job, ok := e.jobs[jobID]
	if !ok || job.State != JobRunning {
		return nil
	}
	job.DeadlineMissed = true
	e.publish(eventbus.KindDeadlineMiss, map[string]any{"job_id": job.ID, "task_id": job.TaskID, "deadline": job.Deadline})
	if job.AbortOnMiss {
		e.abortJob(job)
	}
	return nil
}

// abortJob forces every segment of job to release its resources and
// enter SegAborted, guaranteeing the "resource-holding abort path"
// invariant (spec §9): no abort may leave a resource permanently held.
func (e *Engine) abortJob(job *Job) {
	for _, segID := range sortedSegmentIDs(job) {
		seg := job.segments[segID]
		switch seg.state {
		case SegRunning:
			coreID := seg.coreID
			e.publish(eventbus.KindPreempt, map[string]any{
				"job_id": job.ID, "segment_id": seg.def.ID, "core_id": coreID, "kind": string(eventbus.PreemptForced),
			})
			seg.state = SegAborted
			e.releaseAllResources(job, seg)
			if occ := e.occupant[coreID]; occ != nil && occ.jobID == job.ID && occ.segmentID == seg.def.ID {
				e.occupant[coreID] = nil
			}
		case SegBlocked, SegReady, SegPending:
			seg.state = SegAborted
			if len(seg.heldResources) > 0 {
				e.releaseAllResources(job, seg)
			}
		}
	}
	job.State = JobAborted
	e.publish(eventbus.KindJobAbort, map[string]any{"job_id": job.ID, "time": e.clock})
}

func sortedSegmentIDs(job *Job) []string {
	ids := make([]string, 0, len(job.segments))
	for id := range job.segments {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
