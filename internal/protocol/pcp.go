package protocol

import "math"

// pcpResourceState tracks one PCP resource's current holder, FIFO
// waiters, and static ceiling (refreshed by the engine per job release —
// spec §4.4 "refreshed per release").
type pcpResourceState struct {
	holder  *Holder
	waiters []Holder
	ceiling Priority
}

// PCPManager implements Priority Ceiling Protocol across every PCP
// resource in one engine run, maintaining the single system ceiling
// spec §4.4 requires: "the maximum ceiling of currently held resources,
// or -∞ if none."
type PCPManager struct {
	resources map[string]*pcpResourceState
	heldBy    map[string][]string // jobID -> resource ids currently held
}

// NewPCPManager creates an empty manager.
func NewPCPManager() *PCPManager {
	return &PCPManager{
		resources: make(map[string]*pcpResourceState),
		heldBy:    make(map[string][]string),
	}
}

// Resource returns the Protocol implementation bound to resourceID,
// creating its state (with ceiling -Inf until SetCeiling is called) on
// first use.
func (m *PCPManager) Resource(resourceID string) Protocol {
	if _, ok := m.resources[resourceID]; !ok {
		m.resources[resourceID] = &pcpResourceState{ceiling: math.Inf(-1)}
	}
	return &pcpResource{id: resourceID, mgr: m}
}

// SetCeiling refreshes a resource's static ceiling, in the scheduler's
// active priority domain (spec §4.4: under EDF, ceiling = the minimum
// absolute deadline across jobs that may request it, converted to our
// Priority convention as -deadline so "maximum ceiling" reads correctly
// — see protocol.go's Priority doc comment).
func (m *PCPManager) SetCeiling(resourceID string, ceiling Priority) {
	if _, ok := m.resources[resourceID]; !ok {
		m.resources[resourceID] = &pcpResourceState{}
	}
	m.resources[resourceID].ceiling = ceiling
}

// SystemCeiling returns the maximum ceiling among currently held
// resources, or -Inf if none are held (spec §4.4).
func (m *PCPManager) SystemCeiling() Priority {
	ceiling := math.Inf(-1)
	for _, rs := range m.resources {
		if rs.holder != nil && rs.ceiling > ceiling {
			ceiling = rs.ceiling
		}
	}
	return ceiling
}

type pcpResource struct {
	id  string
	mgr *PCPManager
}

func (r *pcpResource) TryAcquire(h Holder) AcquireResult {
	rs := r.mgr.resources[r.id]

	systemCeiling := r.mgr.SystemCeiling()
	alreadyContributes := false
	for _, rid := range r.mgr.heldBy[h.JobID] {
		if r.mgr.resources[rid].ceiling >= systemCeiling {
			alreadyContributes = true
			break
		}
	}

	if rs.holder == nil && (h.Priority > systemCeiling || alreadyContributes) {
		rs.holder = &h
		r.mgr.heldBy[h.JobID] = append(r.mgr.heldBy[h.JobID], r.id)
		return AcquireResult{Outcome: Granted, Pushed: &CeilingEvent{ResourceID: r.id, Ceiling: rs.ceiling}}
	}

	rs.waiters = append(rs.waiters, h)
	return AcquireResult{Outcome: MustBlock}
}

func (r *pcpResource) Release(h Holder) ReleaseResult {
	rs := r.mgr.resources[r.id]
	if rs.holder == nil || rs.holder.JobID != h.JobID || rs.holder.SegmentID != h.SegmentID {
		return ReleaseResult{}
	}

	r.mgr.heldBy[h.JobID] = removeString(r.mgr.heldBy[h.JobID], r.id)
	poppedCeiling := rs.ceiling
	rs.holder = nil

	var result ReleaseResult
	result.Popped = &CeilingEvent{ResourceID: r.id, Ceiling: poppedCeiling}

	if len(rs.waiters) == 0 {
		return result
	}
	// FIFO among waiters; PCP's acquisition gate (not grant order) is
	// what prevents priority inversion, so no priority-ordered grant is
	// required here the way PIP's release is.
	next := rs.waiters[0]
	rs.waiters = rs.waiters[1:]
	rs.holder = &next
	r.mgr.heldBy[next.JobID] = append(r.mgr.heldBy[next.JobID], r.id)
	result.NextJobID = next.JobID
	result.NextSegmentID = next.SegmentID
	result.Granted = true
	result.Popped = nil // re-granted immediately, system ceiling does not drop
	return result
}

func (r *pcpResource) Holders() []Holder {
	rs := r.mgr.resources[r.id]
	if rs.holder == nil {
		return nil
	}
	return []Holder{*rs.holder}
}

// EffectivePriority: PCP does not raise a holder's own priority — the
// gate at acquisition time is what prevents inversion, not a boost.
func (r *pcpResource) EffectivePriority(jobID string) Priority {
	rs := r.mgr.resources[r.id]
	if rs.holder != nil && rs.holder.JobID == jobID {
		return rs.holder.Priority
	}
	for _, w := range rs.waiters {
		if w.JobID == jobID {
			return w.Priority
		}
	}
	return 0
}
