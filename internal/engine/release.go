package engine

import (
	"fmt"
	"math"
	"sort"

	"github.com/rtschedsim/rtschedsim/internal/eventbus"
)

// handleRelease instantiates a new Job for taskID at the current clock,
// seeds its subtask/segment runtime state, schedules the task's next
// release and (if real-time) its deadline check, and publishes
// JobRelease/SubtaskReady (spec §3, §4.2).
func (e *Engine) handleRelease(taskID string) error {
	t := e.model.TaskByID(taskID)
	if t == nil {
		return nil
	}
	e.jobSeq[taskID]++
	jobID := fmt.Sprintf("%s#%d", taskID, e.jobSeq[taskID])

	job := &Job{
		ID:          jobID,
		TaskID:      taskID,
		ReleaseTime: e.clock,
		AbortOnMiss: t.AbortOnMiss,
		State:       JobRunning,
		def:         t,
		subtasks:    make(map[string]*subtaskRuntime, len(t.Subtasks)),
		segments:    make(map[string]*segmentRuntime),
	}
	if t.Deadline != nil {
		job.HasDeadline = true
		job.Deadline = e.clock + *t.Deadline
	} else {
		job.Deadline = math.Inf(1)
	}
	job.schedKey = e.sched.Key(job.Deadline, t.Period)
	job.effectivePriority = job.protoPriority()

	for i := range t.Subtasks {
		st := &t.Subtasks[i]
		rt := &subtaskRuntime{def: st, state: SubPending}
		job.subtasks[st.ID] = rt
		for j := range st.Segments {
			seg := &st.Segments[j]
			job.segments[seg.ID] = &segmentRuntime{def: seg, owner: rt, state: SegPending, remainingNominal: seg.WCET}
		}
	}
	e.jobs[jobID] = job
	e.refreshPCPCeilings(job)

	e.publish(eventbus.KindJobRelease, map[string]any{"job_id": jobID, "task_id": taskID, "deadline": job.Deadline})

	for _, rt := range e.sortedSubtasks(job) {
		if len(rt.def.Predecessors) == 0 {
			e.makeSubtaskReady(job, rt)
		}
	}

	if seq, ok := e.arrivalSeqs[taskID]; ok {
		if t0, ok2 := seq.Next(); ok2 {
			e.pushEvent(&internalEvent{time: t0, kind: evRelease, taskID: taskID})
		}
	}
	if job.HasDeadline {
		e.pushEvent(&internalEvent{time: job.Deadline, kind: evDeadline, jobID: jobID})
	}
	return nil
}

// makeSubtaskReady marks rt ready and exposes its first segment, if any,
// as a scheduling candidate.
func (e *Engine) makeSubtaskReady(job *Job, rt *subtaskRuntime) {
	rt.state = SubReady
	rt.nextSegmentIdx = 0
	e.publish(eventbus.KindSubtaskReady, map[string]any{"job_id": job.ID, "subtask_id": rt.def.ID})
	if len(rt.def.Segments) == 0 {
		return
	}
	seg := job.segments[rt.def.Segments[0].ID]
	seg.state = SegReady
	seg.readyTime = e.clock
}

func (e *Engine) allPredecessorsCompleted(job *Job, rt *subtaskRuntime) bool {
	for _, p := range rt.def.Predecessors {
		if job.subtasks[p].state != SubCompleted {
			return false
		}
	}
	return true
}

// sortedJobIDs returns job ids in lexicographic order, for deterministic
// iteration over the (unordered) jobs map.
func (e *Engine) sortedJobIDs() []string {
	ids := make([]string, 0, len(e.jobs))
	for id := range e.jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// sortedSubtasks returns job's subtask runtimes ordered by subtask id.
func (e *Engine) sortedSubtasks(job *Job) []*subtaskRuntime {
	out := make([]*subtaskRuntime, 0, len(job.subtasks))
	for _, rt := range job.subtasks {
		out = append(out, rt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].def.ID < out[j].def.ID })
	return out
}
