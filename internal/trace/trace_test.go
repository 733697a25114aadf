package trace

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rtschedsim/rtschedsim/internal/eventbus"
)

func TestWriter_Notify_AppendsEvent(t *testing.T) {
	// GIVEN an empty writer
	w := NewWriter()

	// WHEN an event is notified
	w.Notify(eventbus.Event{Seq: 1, Time: 0, Kind: eventbus.KindJobRelease, Payload: map[string]any{"job_id": "t1#1"}})

	// THEN it is retained
	if len(w.Events()) != 1 {
		t.Fatalf("expected 1 retained event, got %d", len(w.Events()))
	}
}

func TestWriter_Flush_WritesOneJSONObjectPerLine(t *testing.T) {
	// GIVEN a writer fed two events
	w := NewWriter()
	w.Notify(eventbus.Event{Seq: 1, Time: 0, Kind: eventbus.KindJobRelease, Payload: map[string]any{"job_id": "t1#1"}})
	w.Notify(eventbus.Event{Seq: 2, Time: 3, Kind: eventbus.KindJobComplete, Payload: map[string]any{"job_id": "t1#1"}})

	// WHEN flushed
	var buf bytes.Buffer
	if err := w.Flush(&buf); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}

	// THEN the output is exactly two lines, each a valid JSON object
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	for _, line := range lines {
		var ev eventbus.Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("line is not valid JSON: %v", err)
		}
	}
}

func TestWriter_Reset_ClearsBuffer(t *testing.T) {
	// GIVEN a writer with one event
	w := NewWriter()
	w.Notify(eventbus.Event{Seq: 1, Kind: eventbus.KindJobRelease})

	// WHEN reset
	w.Reset()

	// THEN no events remain
	if len(w.Events()) != 0 {
		t.Fatalf("expected 0 events after Reset, got %d", len(w.Events()))
	}
}

func TestSummarize_NilEvents_ReturnsZeroValue(t *testing.T) {
	// GIVEN no events
	// WHEN summarized
	s := Summarize(nil)

	// THEN every count is zero
	if s.TotalEvents != 0 || s.Migrations != 0 || s.JobCompletions != 0 {
		t.Fatalf("expected zero-value summary, got %+v", s)
	}
}

func TestSummarize_TalliesPreemptsByKind(t *testing.T) {
	// GIVEN a mix of scheduler and forced preempts plus one migration
	events := []eventbus.Event{
		{Kind: eventbus.KindPreempt, Payload: map[string]any{"kind": string(eventbus.PreemptScheduler)}},
		{Kind: eventbus.KindPreempt, Payload: map[string]any{"kind": string(eventbus.PreemptForced)}},
		{Kind: eventbus.KindMigration},
		{Kind: eventbus.KindJobComplete},
		{Kind: eventbus.KindJobAbort},
		{Kind: eventbus.KindDeadlineMiss},
	}

	// WHEN summarized
	s := Summarize(events)

	// THEN each kind is tallied independently
	if s.SchedulerPreempts != 1 {
		t.Errorf("expected 1 scheduler preempt, got %d", s.SchedulerPreempts)
	}
	if s.ForcedPreempts != 1 {
		t.Errorf("expected 1 forced preempt, got %d", s.ForcedPreempts)
	}
	if s.Migrations != 1 {
		t.Errorf("expected 1 migration, got %d", s.Migrations)
	}
	if s.JobCompletions != 1 || s.JobAborts != 1 || s.DeadlineMisses != 1 {
		t.Errorf("expected 1 each of completion/abort/deadline-miss, got %+v", s)
	}
	if s.TotalEvents != len(events) {
		t.Errorf("expected TotalEvents=%d, got %d", len(events), s.TotalEvents)
	}
}
