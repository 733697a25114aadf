package protocol

// Mutex grants one holder at a time, FIFO among waiters. No priority
// manipulation (spec §4.4).
type Mutex struct {
	holder  *Holder
	waiters []Holder
}

// NewMutex creates an unheld Mutex.
func NewMutex() *Mutex {
	return &Mutex{}
}

func (m *Mutex) TryAcquire(h Holder) AcquireResult {
	if m.holder == nil {
		m.holder = &h
		return AcquireResult{Outcome: Granted}
	}
	m.waiters = append(m.waiters, h)
	return AcquireResult{Outcome: MustBlock}
}

func (m *Mutex) Release(h Holder) ReleaseResult {
	if m.holder == nil || m.holder.JobID != h.JobID || m.holder.SegmentID != h.SegmentID {
		return ReleaseResult{}
	}
	if len(m.waiters) == 0 {
		m.holder = nil
		return ReleaseResult{}
	}
	next := m.waiters[0]
	m.waiters = m.waiters[1:]
	m.holder = &next
	return ReleaseResult{NextJobID: next.JobID, NextSegmentID: next.SegmentID, Granted: true}
}

func (m *Mutex) Holders() []Holder {
	if m.holder == nil {
		return nil
	}
	return []Holder{*m.holder}
}

func (m *Mutex) EffectivePriority(jobID string) Priority {
	if m.holder != nil && m.holder.JobID == jobID {
		return m.holder.Priority
	}
	for _, w := range m.waiters {
		if w.JobID == jobID {
			return w.Priority
		}
	}
	return 0
}
