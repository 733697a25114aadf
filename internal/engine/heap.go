package engine

import "container/heap"

// evKind enumerates the internal (not published) event kinds driving the
// engine's main loop (spec §4.6).
type evKind int

const (
	evRelease evKind = iota
	evCompletion
	evDeadline
)

// internalEvent is one entry in the engine's future-event priority queue,
// ordered by (time, seq) — spec §4.6 "deterministic tie-breaking by
// insertion order among same-time events".
type internalEvent struct {
	time float64
	seq  uint64
	kind evKind

	taskID    string // evRelease
	jobID     string // evCompletion, evDeadline
	segmentID string // evCompletion
	coreID    string // evCompletion
	token     int    // evCompletion: run-generation, to detect a stale (preempted-then-rescheduled) entry
}

// eventHeap is a container/heap.Interface min-heap over internalEvent,
// ascending by (time, seq).
type eventHeap []*internalEvent

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].time != h[j].time {
		return h[i].time < h[j].time
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x any)   { *h = append(*h, x.(*internalEvent)) }
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

func newEventHeap() *eventHeap {
	h := eventHeap{}
	heap.Init(&h)
	return &h
}

func (e *Engine) pushEvent(ev *internalEvent) {
	e.eventSeq++
	ev.seq = e.eventSeq
	heap.Push(e.h, ev)
}

func (e *Engine) popEvent() *internalEvent {
	if e.h.Len() == 0 {
		return nil
	}
	return heap.Pop(e.h).(*internalEvent)
}

func (e *Engine) peekEvent() *internalEvent {
	if e.h.Len() == 0 {
		return nil
	}
	return (*e.h)[0]
}
