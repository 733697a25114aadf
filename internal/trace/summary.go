package trace

import "github.com/rtschedsim/rtschedsim/internal/eventbus"

// Summary aggregates coarse counts over a retained event trace, grounded
// on the teacher's trace.Summarize — a single pass that avoids rescanning
// the NDJSON file once it has been written. It feeds internal/metrics so
// that per-kind tallying is not duplicated there.
type Summary struct {
	TotalEvents        int
	KindCounts         map[eventbus.Kind]int
	SchedulerPreempts  int
	ForcedPreempts     int
	Migrations         int
	JobReleases        int
	JobCompletions     int
	JobAborts          int
	DeadlineMisses     int
}

// Summarize computes a Summary from events. Safe for a nil or empty
// slice (returns zero-value counts).
func Summarize(events []eventbus.Event) *Summary {
	s := &Summary{KindCounts: make(map[eventbus.Kind]int)}
	s.TotalEvents = len(events)
	for _, e := range events {
		s.KindCounts[e.Kind]++
		switch e.Kind {
		case eventbus.KindPreempt:
			if e.Payload["kind"] == string(eventbus.PreemptForced) {
				s.ForcedPreempts++
			} else {
				s.SchedulerPreempts++
			}
		case eventbus.KindMigration:
			s.Migrations++
		case eventbus.KindJobRelease:
			s.JobReleases++
		case eventbus.KindJobComplete:
			s.JobCompletions++
		case eventbus.KindJobAbort:
			s.JobAborts++
		case eventbus.KindDeadlineMiss:
			s.DeadlineMisses++
		}
	}
	return s
}
