package engine

import "github.com/rtschedsim/rtschedsim/internal/eventbus"

// handleCompletion finalizes a segment's natural completion. A stale
// entry (the segment was preempted, migrated, or the job aborted since
// this event was scheduled) is silently dropped — the standard lazy-
// deletion technique for a binary-heap event queue.
func (e *Engine) handleCompletion(ev *internalEvent) error {
	job, ok := e.jobs[ev.jobID]
	if !ok || job.State != JobRunning {
		return nil
	}
	seg, ok := job.segments[ev.segmentID]
	if !ok || seg.state != SegRunning || seg.coreID != ev.coreID || seg.runToken != ev.token {
		return nil
	}

	seg.remainingNominal = 0
	seg.state = SegCompleted
	e.releaseAllResources(job, seg)
	e.publish(eventbus.KindSegmentEnd, map[string]any{"job_id": job.ID, "segment_id": seg.def.ID, "core_id": ev.coreID})
	if occ := e.occupant[ev.coreID]; occ != nil && occ.jobID == job.ID && occ.segmentID == seg.def.ID {
		e.occupant[ev.coreID] = nil
	}

	rt := seg.owner
	rt.nextSegmentIdx++
	if rt.nextSegmentIdx < len(rt.def.Segments) {
		next := job.segments[rt.def.Segments[rt.nextSegmentIdx].ID]
		next.state = SegReady
		next.readyTime = e.clock
	} else {
		rt.state = SubCompleted
		for _, succID := range rt.def.Successors {
			succ := job.subtasks[succID]
			if succ.state == SubPending && e.allPredecessorsCompleted(job, succ) {
				e.makeSubtaskReady(job, succ)
			}
		}
	}

	if job.allSubtasksCompleted() {
		job.State = JobCompleted
		e.publish(eventbus.KindJobComplete, map[string]any{"job_id": job.ID, "completion_time": e.clock})
	}
	return nil
}
