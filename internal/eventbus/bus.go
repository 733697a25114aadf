// Package eventbus publishes the ordered, typed trace of simulation
// events (spec §4.1). The bus is owned by the caller, not the engine
// (spec §9 "Event bus with persistent subscribers") — its subscriber set
// survives an engine build()/reset() because the engine never constructs
// or clears a Bus itself; it only publishes to one handed to it.
package eventbus

import "sort"

// Kind enumerates the event kinds from spec §4.1.
type Kind string

const (
	KindJobRelease       Kind = "JobRelease"
	KindSubtaskReady     Kind = "SubtaskReady"
	KindSegmentStart     Kind = "SegmentStart"
	KindSegmentEnd       Kind = "SegmentEnd"
	KindSegmentBlocked   Kind = "SegmentBlocked"
	KindSegmentUnblocked Kind = "SegmentUnblocked"
	KindPreempt          Kind = "Preempt"
	KindMigration        Kind = "Migration"
	KindResourceAcquire  Kind = "ResourceAcquire"
	KindResourceRelease  Kind = "ResourceRelease"
	KindDeadlineMiss     Kind = "DeadlineMiss"
	KindJobComplete      Kind = "JobComplete"
	KindJobAbort         Kind = "JobAbort"
	KindPriorityRaise    Kind = "PriorityRaise"
	KindPriorityRestore  Kind = "PriorityRestore"
	KindCeilingPush      Kind = "CeilingPush"
	KindCeilingPop       Kind = "CeilingPop"
)

// PreemptKind distinguishes a scheduler-chosen preemption from a forced
// (deadline-abort) preemption (spec §4.5).
type PreemptKind string

const (
	PreemptScheduler PreemptKind = "scheduler"
	PreemptForced    PreemptKind = "forced"
)

// Event is one published record: a monotone sequence number, simulated
// time, kind, and a kind-specific payload map.
type Event struct {
	Seq     uint64         `json:"seq"`
	ID      string         `json:"id"`
	Time    float64        `json:"time"`
	Kind    Kind           `json:"kind"`
	Payload map[string]any `json:"payload"`
}

// Subscriber receives every published event, in publication order.
type Subscriber interface {
	Notify(e Event)
}

// SubscriberFunc adapts a plain function to the Subscriber interface.
type SubscriberFunc func(e Event)

func (f SubscriberFunc) Notify(e Event) { f(e) }

// Bus is the caller-owned, engine-injected publication point. Its
// subscriber list is never touched by Engine.Build/Reset; only the
// caller attaches or detaches subscribers.
type Bus struct {
	subscribers []Subscriber
	seq         uint64
	events      []Event // full retained trace, in emission (append) order
}

// New creates an empty Bus with no subscribers and no retained events.
func New() *Bus {
	return &Bus{}
}

// Subscribe attaches a Subscriber. Order of attachment determines the
// order subscribers are notified for a given event, but never affects
// the emitted sequence numbers or trace order.
func (b *Bus) Subscribe(s Subscriber) {
	b.subscribers = append(b.subscribers, s)
}

// Publish assigns the event its sequence number, retains it, and
// notifies every subscriber in attachment order. The caller supplies
// Time and Kind and Payload; Seq is always bus-assigned and ID is
// assigned according to the active EventIDMode by the caller before
// calling Publish (the bus does not know about ID modes — that is an
// engine-level concern per spec §4.1, kept out of the bus so the bus has
// no dependency on the model/config layer).
func (b *Bus) Publish(time float64, kind Kind, id string, payload map[string]any) Event {
	b.seq++
	e := Event{Seq: b.seq, ID: id, Time: time, Kind: kind, Payload: payload}
	b.events = append(b.events, e)
	for _, s := range b.subscribers {
		s.Notify(e)
	}
	return e
}

// Events returns a copy of the full retained trace in emission order.
// The bus does not sort: an event published with an earlier time than
// its predecessor stays where it was appended.
func (b *Bus) Events() []Event {
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// NextSeq returns the sequence number that would be assigned to the next
// published event, without consuming it. Used by the deterministic
// EventIDMode to preview the id before Publish is called.
func (b *Bus) NextSeq() uint64 {
	return b.seq + 1
}

// sortedByTimeThenSeq is a defensive (time, seq) re-sort; only the
// package tests use it.
func sortedByTimeThenSeq(events []Event) []Event {
	out := make([]Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}
