package model

import (
	"github.com/rtschedsim/rtschedsim/internal/simerr"
)

// Validate runs the semantic checks spec §3/§7 require before a Model can
// be handed to engine.Build. Legacy arrival fields are normalized first
// (spec §12.3) so downstream checks only ever see ArrivalProcess.
func Validate(m *Model) error {
	for i := range m.Tasks {
		NormalizeLegacyArrival(&m.Tasks[i])
	}

	if err := validateCoreCounts(m); err != nil {
		return err
	}
	if err := validateResourceBindings(m); err != nil {
		return err
	}
	for i := range m.Tasks {
		if err := validateTask(m, &m.Tasks[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateCoreCounts checks "the number of cores whose type_id = T equals
// T.core_count" (spec §3).
func validateCoreCounts(m *Model) error {
	counts := make(map[string]int, len(m.Platform.ProcessorTypes))
	for _, c := range m.Platform.Cores {
		if m.Platform.TypeByID(c.TypeID) == nil {
			return simerr.Modelf("dangling_type_id", "core %s references unknown processor type %s", c.ID, c.TypeID)
		}
		counts[c.TypeID]++
	}
	for _, t := range m.Platform.ProcessorTypes {
		if counts[t.ID] != t.CoreCount {
			return simerr.Modelf("core_count_mismatch", "processor type %s declares core_count=%d but platform has %d cores of that type", t.ID, t.CoreCount, counts[t.ID])
		}
		if t.SpeedFactor <= 0 {
			return simerr.Modelf("invalid_speed_factor", "processor type %s has non-positive speed factor %v", t.ID, t.SpeedFactor)
		}
	}
	for _, c := range m.Platform.Cores {
		if c.SpeedFactor <= 0 {
			return simerr.Modelf("invalid_speed_factor", "core %s has non-positive speed factor %v", c.ID, c.SpeedFactor)
		}
	}
	return nil
}

// validateResourceBindings checks a resource's bound core exists and that
// its protocol is one of the closed set (spec §3).
func validateResourceBindings(m *Model) error {
	for _, r := range m.Resources {
		if m.Platform.CoreByID(r.BoundCoreID) == nil {
			return simerr.Modelf("dangling_core_id", "resource %s bound to unknown core %s", r.ID, r.BoundCoreID)
		}
		switch r.Protocol {
		case ProtocolMutex, ProtocolPIP, ProtocolPCP:
		default:
			return simerr.Modelf("unknown_protocol", "resource %s has unknown protocol %q", r.ID, r.Protocol)
		}
	}
	return nil
}

func validateTask(m *Model, t *TaskGraph) error {
	if t.Type != TaskNonRT && t.Deadline == nil {
		return simerr.Modelf("missing_deadline", "task %s is real-time (%s) but has no deadline", t.ID, t.Type)
	}
	if t.Type == TaskTimeDeterministic && t.Period == nil {
		return simerr.Modelf("missing_period", "time_deterministic task %s has no period", t.ID)
	}

	ids := make(map[string]*Subtask, len(t.Subtasks))
	if len(t.Subtasks) == 0 {
		return simerr.Modelf("empty_subtasks", "task %s has no subtasks", t.ID)
	}
	for i := range t.Subtasks {
		st := &t.Subtasks[i]
		if _, dup := ids[st.ID]; dup {
			return simerr.Modelf("duplicate_subtask_id", "task %s has duplicate subtask id %s", t.ID, st.ID)
		}
		ids[st.ID] = st
		if len(st.Segments) == 0 {
			return simerr.Modelf("empty_segments", "subtask %s (task %s) has no segments", st.ID, t.ID)
		}
		lastIdx := 0
		for j := range st.Segments {
			seg := &st.Segments[j]
			if seg.WCET <= 0 {
				return simerr.Modelf("invalid_wcet", "segment %s (subtask %s) has non-positive wcet", seg.ID, st.ID)
			}
			if seg.Index <= lastIdx {
				return simerr.Modelf("non_monotone_segment_index", "segment %s (subtask %s) index %d is not monotone after %d", seg.ID, st.ID, seg.Index, lastIdx)
			}
			lastIdx = seg.Index
			for _, rid := range seg.RequiredResourceIDs {
				r := m.ResourceByID(rid)
				if r == nil {
					return simerr.Modelf("dangling_resource_id", "segment %s requires unknown resource %s", seg.ID, rid)
				}
				if err := validateResourceMapping(m, t, st, seg, r); err != nil {
					return err
				}
			}
		}
	}
	for _, st := range t.Subtasks {
		for _, pred := range st.Predecessors {
			if _, ok := ids[pred]; !ok {
				return simerr.Modelf("dangling_subtask_id", "subtask %s (task %s) references unknown predecessor %s", st.ID, t.ID, pred)
			}
		}
		for _, succ := range st.Successors {
			if _, ok := ids[succ]; !ok {
				return simerr.Modelf("dangling_subtask_id", "subtask %s (task %s) references unknown successor %s", st.ID, t.ID, succ)
			}
		}
	}
	if err := checkAcyclic(t); err != nil {
		return err
	}
	if err := validateMappingResolvability(m, t); err != nil {
		return err
	}
	return nil
}

// validateResourceMapping rejects a segment's resource request when the
// segment's resolved mapping does not match the resource's bound core
// (spec §3: "requests from segments mapped elsewhere are rejected at
// validation time"). A segment with no resolvable mapping hint passes
// this check; validateMappingResolvability rejects only unmapped
// time_deterministic tasks on a multi-core platform, so other unmapped
// segments are not checked against the resource's bound core.
func validateResourceMapping(m *Model, t *TaskGraph, st *Subtask, seg *Segment, r *Resource) error {
	hint := ResolveMapping(t, st, seg)
	if hint == "" {
		return nil
	}
	if hint != r.BoundCoreID {
		return simerr.Modelf("resource_mapping_mismatch", "segment %s maps to core %s but requires resource %s bound to core %s", seg.ID, hint, r.ID, r.BoundCoreID)
	}
	return nil
}

// checkAcyclic verifies the DAG over subtasks within a task is acyclic
// (spec §3) using a recursive DFS with white/gray/black colouring (gray
// marks subtasks on the current path).
func checkAcyclic(t *TaskGraph) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(t.Subtasks))
	bySubtask := make(map[string]*Subtask, len(t.Subtasks))
	for i := range t.Subtasks {
		bySubtask[t.Subtasks[i].ID] = &t.Subtasks[i]
	}

	var visit func(id string) error
	visit = func(id string) error {
		color[id] = gray
		for _, succ := range bySubtask[id].Successors {
			switch color[succ] {
			case gray:
				return simerr.Modelf("dag_cycle", "task %s has a cycle through subtask %s", t.ID, succ)
			case white:
				if err := visit(succ); err != nil {
					return err
				}
			}
		}
		color[id] = black
		return nil
	}

	for i := range t.Subtasks {
		id := t.Subtasks[i].ID
		if color[id] == white {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateMappingResolvability enforces: "if none is present and the
// platform has multiple cores, a time_deterministic task fails semantic
// validation" (spec §3).
func validateMappingResolvability(m *Model, t *TaskGraph) error {
	if t.Type != TaskTimeDeterministic || len(m.Platform.Cores) <= 1 {
		return nil
	}
	for i := range t.Subtasks {
		st := &t.Subtasks[i]
		for j := range st.Segments {
			seg := &st.Segments[j]
			if ResolveMapping(t, st, seg) == "" {
				return simerr.Modelf("unresolvable_mapping", "time_deterministic task %s segment %s has no mapping hint on a multi-core platform", t.ID, seg.ID)
			}
		}
	}
	return nil
}
