package engine

import (
	"github.com/rtschedsim/rtschedsim/internal/eventbus"
	"github.com/rtschedsim/rtschedsim/internal/model"
	"github.com/rtschedsim/rtschedsim/internal/scheduler"
)

// dispatchAll re-evaluates every core's occupant after a state change
// (spec §4.6: "for each core whose run-state may have changed, invoke
// the scheduler"). It is called once after every internal event is
// applied, which is sufficient because only an event can change
// readiness, completion, or blocking.
//
// A segment with no resolved core mapping ("floating") is a candidate on
// every core; it is consumed by whichever core's scheduler picks it
// first, in platform declaration order, so it is never double-assigned
// within one dispatch pass.
func (e *Engine) dispatchAll() error {
	pinned := make(map[string][]scheduler.Runnable)
	var floating []scheduler.Runnable
	lookup := make(map[candKey]candidateRef)

	for _, jobID := range e.sortedJobIDs() {
		job := e.jobs[jobID]
		if job.State != JobRunning {
			continue
		}
		for _, rt := range e.sortedSubtasks(job) {
			if rt.state != SubReady || rt.nextSegmentIdx >= len(rt.def.Segments) {
				continue
			}
			segDef := &rt.def.Segments[rt.nextSegmentIdx]
			seg := job.segments[segDef.ID]
			if seg.state != SegReady {
				continue
			}
			r := scheduler.Runnable{
				JobID: job.ID, TaskID: job.TaskID, SegmentID: seg.def.ID,
				Key: job.effectiveKey(), ReadyTime: seg.readyTime, ReleaseTime: job.ReleaseTime,
				Preemptible: seg.def.Preemptible,
			}
			lookup[candKey{job.ID, seg.def.ID}] = candidateRef{job: job, seg: seg}

			mapped := model.ResolveMapping(job.def, rt.def, seg.def)
			if mapped != "" {
				pinned[mapped] = append(pinned[mapped], r)
			} else {
				floating = append(floating, r)
			}
		}
	}

	for _, coreID := range e.coreOrder {
		candidates := append(append([]scheduler.Runnable{}, pinned[coreID]...), floating...)
		if err := e.dispatchCore(coreID, candidates, lookup, &floating); err != nil {
			return err
		}
	}
	return nil
}

// dispatchCore repeatedly asks the scheduler for coreID's best occupant,
// preempting or starting as needed, retrying if the chosen candidate
// turns out to be resource-blocked, until the core settles (idle, kept
// its current occupant, or started a new one).
func (e *Engine) dispatchCore(coreID string, candidates []scheduler.Runnable, lookup map[candKey]candidateRef, floating *[]scheduler.Runnable) error {
	for {
		var runningPtr *scheduler.Runnable
		if occ := e.occupant[coreID]; occ != nil {
			runningJob := e.jobs[occ.jobID]
			runningSeg := runningJob.segments[occ.segmentID]
			r := scheduler.Runnable{
				JobID: occ.jobID, TaskID: runningJob.TaskID, SegmentID: occ.segmentID,
				Key: runningJob.effectiveKey(), ReadyTime: runningSeg.readyTime, ReleaseTime: runningJob.ReleaseTime,
				Preemptible: runningSeg.def.Preemptible,
			}
			runningPtr = &r
		}

		chosen, preempt, ok := e.sched.Select(candidates, runningPtr)
		if !ok {
			return nil
		}
		if runningPtr != nil && !preempt && chosen.JobID == runningPtr.JobID && chosen.SegmentID == runningPtr.SegmentID {
			return nil
		}

		if runningPtr != nil && preempt {
			e.preemptSegment(e.jobs[runningPtr.JobID], e.jobs[runningPtr.JobID].segments[runningPtr.SegmentID], coreID, eventbus.PreemptScheduler)
		}

		ref, found := lookup[candKey{chosen.JobID, chosen.SegmentID}]
		if !found {
			return nil
		}
		started, err := e.tryStart(ref.job, ref.seg, coreID)
		if err != nil {
			return err
		}

		candidates = removeRunnable(candidates, chosen)
		removeFromPool(floating, chosen)

		if started {
			return nil
		}
		// chosen was resource-blocked; loop again over what remains.
	}
}

func removeRunnable(list []scheduler.Runnable, target scheduler.Runnable) []scheduler.Runnable {
	out := make([]scheduler.Runnable, 0, len(list))
	for _, r := range list {
		if r.JobID == target.JobID && r.SegmentID == target.SegmentID {
			continue
		}
		out = append(out, r)
	}
	return out
}

func removeFromPool(pool *[]scheduler.Runnable, target scheduler.Runnable) {
	*pool = removeRunnable(*pool, target)
}

// tryStart attempts to acquire seg's remaining required resources and,
// if fully satisfied, begins running it on coreID.
func (e *Engine) tryStart(job *Job, seg *segmentRuntime, coreID string) (bool, error) {
	if !e.acquireResources(job, seg) {
		return false, nil
	}
	if err := e.beginRunning(job, seg, coreID); err != nil {
		return false, err
	}
	return true, nil
}

// beginRunning transitions seg into SegRunning on coreID, consulting the
// execution-time model for its remaining nominal work and scheduling its
// (possibly superseded) natural completion (spec §4.3, §4.6).
func (e *Engine) beginRunning(job *Job, seg *segmentRuntime, coreID string) error {
	fullDuration, err := e.etm.Duration(seg.def, &e.model.Platform, coreID)
	if err != nil {
		return err
	}
	unitDuration := fullDuration / seg.def.WCET
	wallRemaining := unitDuration * seg.remainingNominal

	seg.unitDuration = unitDuration
	seg.coreID = coreID
	seg.runStartTime = e.clock
	seg.runToken++
	seg.state = SegRunning
	e.occupant[coreID] = &occupant{jobID: job.ID, segmentID: seg.def.ID}

	mapped := model.ResolveMapping(job.def, seg.owner.def, seg.def)
	if mapped == "" && seg.lastCoreID != "" && seg.lastCoreID != coreID {
		job.MigrationCount++
		e.publish(eventbus.KindMigration, map[string]any{
			"job_id": job.ID, "segment_id": seg.def.ID, "from_core": seg.lastCoreID, "to_core": coreID,
		})
	}
	seg.lastCoreID = coreID

	e.publish(eventbus.KindSegmentStart, map[string]any{"job_id": job.ID, "segment_id": seg.def.ID, "core_id": coreID})
	e.pushEvent(&internalEvent{
		time: e.clock + wallRemaining, kind: evCompletion,
		jobID: job.ID, segmentID: seg.def.ID, coreID: coreID, token: seg.runToken,
	})
	return nil
}

// preemptSegment removes seg from coreID, rescaling its remaining
// nominal work by the elapsed wall time under the core it was just
// running on (spec §4.6). Held resources are not released — only the
// core is taken away.
func (e *Engine) preemptSegment(job *Job, seg *segmentRuntime, coreID string, kind eventbus.PreemptKind) {
	elapsed := e.clock - seg.runStartTime
	if seg.unitDuration > 0 {
		consumed := elapsed / seg.unitDuration
		seg.remainingNominal -= consumed
		if seg.remainingNominal < 0 {
			seg.remainingNominal = 0
		}
	}
	seg.state = SegReady
	seg.readyTime = e.clock
	job.PreemptCount++
	e.occupant[coreID] = nil
	e.publish(eventbus.KindPreempt, map[string]any{
		"job_id": job.ID, "segment_id": seg.def.ID, "core_id": coreID, "kind": string(kind),
	})
}
