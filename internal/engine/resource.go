package engine

import (
	"github.com/rtschedsim/rtschedsim/internal/eventbus"
	"github.com/rtschedsim/rtschedsim/internal/model"
	"github.com/rtschedsim/rtschedsim/internal/protocol"
)

// acquireResources attempts to bring seg from its current resource hold
// up to its full requirement (spec §5 batch acquisition). Returns true
// once every required resource is held. On the first block, seg is
// marked SegBlocked and a SegmentBlocked event is published exactly
// once; under atomic_rollback, any resources already granted during this
// attempt are released as a unit before the segment waits (spec §5
// "atomic_rollback").
func (e *Engine) acquireResources(job *Job, seg *segmentRuntime) bool {
	if seg.pendingResources == nil && seg.blockedOnResource == "" && len(seg.heldResources) == 0 {
		seg.pendingResources = append([]string{}, seg.def.RequiredResourceIDs...)
	}

	for len(seg.pendingResources) > 0 {
		rid := seg.pendingResources[0]
		proto := e.resourceProto[rid]
		res := proto.TryAcquire(protocol.Holder{JobID: job.ID, SegmentID: seg.def.ID, Priority: job.effectivePriority})

		if res.Outcome == protocol.Granted {
			seg.heldResources = append(seg.heldResources, rid)
			seg.pendingResources = seg.pendingResources[1:]
			e.publish(eventbus.KindResourceAcquire, map[string]any{"job_id": job.ID, "segment_id": seg.def.ID, "resource_id": rid})
			if res.Pushed != nil {
				e.publish(eventbus.KindCeilingPush, map[string]any{"resource_id": res.Pushed.ResourceID, "ceiling": res.Pushed.Ceiling})
			}
			continue
		}

		for _, raise := range res.Raises {
			e.publishRaise(raise)
		}

		if e.acquirePolicy == model.AcquireAtomicRollback && len(seg.heldResources) > 0 {
			released := seg.heldResources
			remaining := seg.pendingResources[1:]
			seg.heldResources = nil
			seg.pendingResources = append(append([]string{}, released...), remaining...)
			for _, held := range released {
				rel := e.resourceProto[held].Release(protocol.Holder{JobID: job.ID, SegmentID: seg.def.ID})
				e.publish(eventbus.KindResourceRelease, map[string]any{"job_id": job.ID, "segment_id": seg.def.ID, "resource_id": held, "rollback": true})
				e.applyReleaseResult(held, rel)
			}
		} else {
			seg.pendingResources = seg.pendingResources[1:]
		}

		seg.blockedOnResource = rid
		if seg.state != SegBlocked {
			seg.state = SegBlocked
			e.publish(eventbus.KindSegmentBlocked, map[string]any{"job_id": job.ID, "segment_id": seg.def.ID, "resource_id": rid})
		}
		return false
	}
	return true
}

// onResourceGranted is invoked when a Release() call grants rid directly
// to (jobID, segmentID) as the next waiter. The resource is already held
// per the protocol's internal state, so this records it locally and
// resumes the acquisition attempt for whatever remains.
func (e *Engine) onResourceGranted(jobID, segmentID, rid string) {
	job, ok := e.jobs[jobID]
	if !ok {
		return
	}
	seg, ok := job.segments[segmentID]
	if !ok || seg.blockedOnResource != rid {
		return
	}
	seg.blockedOnResource = ""
	seg.heldResources = append(seg.heldResources, rid)
	e.publish(eventbus.KindResourceAcquire, map[string]any{"job_id": job.ID, "segment_id": seg.def.ID, "resource_id": rid, "via_wake": true})

	if e.acquireResources(job, seg) {
		seg.state = SegReady
		seg.readyTime = e.clock
		e.publish(eventbus.KindSegmentUnblocked, map[string]any{"job_id": job.ID, "segment_id": seg.def.ID})
	}
}

// releaseAllResources releases every resource seg currently holds,
// applying whatever grant/raise-restore/ceiling-pop follows from each
// release (spec §4.4).
func (e *Engine) releaseAllResources(job *Job, seg *segmentRuntime) {
	held := seg.heldResources
	seg.heldResources = nil
	for _, rid := range held {
		rel := e.resourceProto[rid].Release(protocol.Holder{JobID: job.ID, SegmentID: seg.def.ID})
		e.publish(eventbus.KindResourceRelease, map[string]any{"job_id": job.ID, "segment_id": seg.def.ID, "resource_id": rid})
		e.applyReleaseResult(rid, rel)
	}
}

func (e *Engine) applyReleaseResult(resourceID string, rel protocol.ReleaseResult) {
	if rel.Popped != nil {
		e.publish(eventbus.KindCeilingPop, map[string]any{"resource_id": rel.Popped.ResourceID, "ceiling": rel.Popped.Ceiling})
	}
	for _, rst := range rel.Restores {
		if owner, ok := e.jobs[rst.OwnerJobID]; ok {
			owner.effectivePriority = rst.NewPriority
		}
		e.publish(eventbus.KindPriorityRestore, map[string]any{"job_id": rst.OwnerJobID, "new_priority": rst.NewPriority})
	}
	if rel.Granted {
		e.onResourceGranted(rel.NextJobID, rel.NextSegmentID, resourceID)
	}
}

func (e *Engine) publishRaise(r protocol.RaiseEvent) {
	if owner, ok := e.jobs[r.OwnerJobID]; ok {
		owner.effectivePriority = r.NewPriority
	}
	e.publish(eventbus.KindPriorityRaise, map[string]any{"job_id": r.OwnerJobID, "due_to_job_id": r.DueToJobID, "new_priority": r.NewPriority})
}
