package protocol

// pipResourceState is one resource's FIFO waiter set under PIP.
type pipResourceState struct {
	holder  *Holder
	waiters []Holder
}

// PIPManager implements Priority Inheritance across every PIP resource in
// one engine run (spec §4.4, §9 "global mutable state lives inside the
// engine instance"). A single manager is shared by every PIPResource
// instance so that inheritance chains can propagate across resources:
// if L holds r0 and blocks waiting on r1 (held by Z), Z must also
// inherit from whoever is waiting on L for r0.
type PIPManager struct {
	resources     map[string]*pipResourceState
	basePriority  map[string]Priority
	effective     map[string]Priority
	heldResources map[string][]string // jobID -> resource ids currently held
	blockedOn     map[string]string   // jobID -> resource id it is waiting on, if any
}

// NewPIPManager creates an empty manager; call Resource(id) once per PIP
// resource bound to it.
func NewPIPManager() *PIPManager {
	return &PIPManager{
		resources:     make(map[string]*pipResourceState),
		basePriority:  make(map[string]Priority),
		effective:     make(map[string]Priority),
		heldResources: make(map[string][]string),
		blockedOn:     make(map[string]string),
	}
}

// Resource returns the Protocol implementation bound to resourceID.
func (m *PIPManager) Resource(resourceID string) Protocol {
	if _, ok := m.resources[resourceID]; !ok {
		m.resources[resourceID] = &pipResourceState{}
	}
	return &pipResource{id: resourceID, mgr: m}
}

func (m *PIPManager) ensureJob(jobID string, base Priority) {
	if _, ok := m.basePriority[jobID]; !ok {
		m.basePriority[jobID] = base
		m.effective[jobID] = base
	}
}

func (m *PIPManager) effectivePriority(jobID string) Priority {
	if p, ok := m.effective[jobID]; ok {
		return p
	}
	return 0
}

// pipResource is the thin per-resource handle implementing Protocol.
type pipResource struct {
	id  string
	mgr *PIPManager
}

func (r *pipResource) TryAcquire(h Holder) AcquireResult {
	r.mgr.ensureJob(h.JobID, h.Priority)
	rs := r.mgr.resources[r.id]
	if rs.holder == nil {
		rs.holder = &h
		r.mgr.heldResources[h.JobID] = append(r.mgr.heldResources[h.JobID], r.id)
		return AcquireResult{Outcome: Granted}
	}
	rs.waiters = append(rs.waiters, h)
	r.mgr.blockedOn[h.JobID] = r.id
	raises := r.mgr.propagateRaise(r.id)
	return AcquireResult{Outcome: MustBlock, Raises: raises}
}

func (r *pipResource) Release(h Holder) ReleaseResult {
	rs := r.mgr.resources[r.id]
	if rs.holder == nil || rs.holder.JobID != h.JobID || rs.holder.SegmentID != h.SegmentID {
		return ReleaseResult{}
	}

	r.mgr.heldResources[h.JobID] = removeString(r.mgr.heldResources[h.JobID], r.id)

	var result ReleaseResult
	if len(rs.waiters) == 0 {
		rs.holder = nil
	} else {
		idx := r.mgr.highestPriorityWaiter(rs.waiters)
		next := rs.waiters[idx]
		rs.waiters = append(rs.waiters[:idx], rs.waiters[idx+1:]...)
		rs.holder = &next
		delete(r.mgr.blockedOn, next.JobID)
		r.mgr.heldResources[next.JobID] = append(r.mgr.heldResources[next.JobID], r.id)
		result.NextJobID = next.JobID
		result.NextSegmentID = next.SegmentID
		result.Granted = true
	}

	newPrio := r.mgr.basePriority[h.JobID]
	for _, rid := range r.mgr.heldResources[h.JobID] {
		other := r.mgr.resources[rid]
		for _, w := range other.waiters {
			if wp := r.mgr.effectivePriority(w.JobID); wp > newPrio {
				newPrio = wp
			}
		}
	}
	if newPrio != r.mgr.effective[h.JobID] {
		r.mgr.effective[h.JobID] = newPrio
		result.Restores = append(result.Restores, RestoreEvent{OwnerJobID: h.JobID, NewPriority: newPrio})
	}
	return result
}

func (r *pipResource) Holders() []Holder {
	rs := r.mgr.resources[r.id]
	if rs.holder == nil {
		return nil
	}
	return []Holder{*rs.holder}
}

func (r *pipResource) EffectivePriority(jobID string) Priority {
	return r.mgr.effectivePriority(jobID)
}

// propagateRaise walks the blocking chain starting at resourceID's
// current holder, raising each owner in turn to the max of its base
// priority and the effective priority of its waiters, and continuing
// into whatever resource that owner is itself blocked on (spec §4.4
// "Chains: a raise propagates through transitive blocking relations").
// A visited set guards against cycles, which a deadlock-free wait-for
// graph should never produce but which must not hang the engine if one
// slips through (see audit rule wait_for_deadlock).
func (m *PIPManager) propagateRaise(resourceID string) []RaiseEvent {
	var events []RaiseEvent
	visited := make(map[string]bool)
	cur := resourceID
	for cur != "" {
		rs := m.resources[cur]
		if rs == nil || rs.holder == nil {
			break
		}
		owner := rs.holder.JobID
		if visited[owner] {
			break
		}
		visited[owner] = true

		maxP := m.basePriority[owner]
		dueTo := ""
		for _, w := range rs.waiters {
			if wp := m.effectivePriority(w.JobID); wp > maxP {
				maxP = wp
				dueTo = w.JobID
			}
		}
		if maxP <= m.effective[owner] {
			break
		}
		m.effective[owner] = maxP
		events = append(events, RaiseEvent{OwnerJobID: owner, DueToJobID: dueTo, NewPriority: maxP})

		next, ok := m.blockedOn[owner]
		if !ok {
			break
		}
		cur = next
	}
	return events
}

func (m *PIPManager) highestPriorityWaiter(waiters []Holder) int {
	best := 0
	bestP := m.effectivePriority(waiters[0].JobID)
	for i := 1; i < len(waiters); i++ {
		if p := m.effectivePriority(waiters[i].JobID); p > bestP {
			best = i
			bestP = p
		}
	}
	return best
}

func removeString(ss []string, target string) []string {
	out := ss[:0]
	for _, s := range ss {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}
