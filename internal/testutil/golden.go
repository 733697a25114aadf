// Package testutil provides shared test infrastructure for this
// simulator's package tests: golden NDJSON trace loading and
// tolerance-aware comparison helpers.
//
// Grounded on the teacher's sim/internal/testutil/golden.go
// (LoadGoldenDataset/AssertFloat64Equal), generalized from a single
// flat golden-metrics JSON document to per-scenario golden NDJSON traces
// read from testdata/golden/<name>.ndjson, since this module's golden
// artifact is an event trace rather than a metrics summary row. The
// repository ships no golden trace files.
package testutil

import (
	"bufio"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"

	"github.com/rtschedsim/rtschedsim/internal/eventbus"
)

// LoadGoldenTrace reads testdata/golden/<name>.ndjson, resolved relative
// to this source file, and decodes it into a slice of eventbus.Event in
// file order. Fails the test on any I/O or decode error.
func LoadGoldenTrace(t *testing.T, name string) []eventbus.Event {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("failed to get current file path")
	}
	path := filepath.Join(filepath.Dir(thisFile), "testdata", "golden", name+".ndjson")

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open golden trace %s: %v", name, err)
	}
	defer f.Close()

	var events []eventbus.Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e eventbus.Event
		if err := json.Unmarshal(line, &e); err != nil {
			t.Fatalf("failed to parse golden trace %s: %v", name, err)
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("failed reading golden trace %s: %v", name, err)
	}
	return events
}

// AssertFloat64Equal compares two float64 values with relative
// tolerance, exactly as the teacher's helper of the same name.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// AssertTraceEqual compares two event traces for equivalence: same
// length, same Kind per position, float-valued payload fields (and
// Time) compared with relTol, every other payload field compared for
// exact equality. Event IDs are never compared — they are an opaque
// identifier whose format varies with EventIDMode and carries no
// semantic content (spec §4.1).
func AssertTraceEqual(t *testing.T, want, got []eventbus.Event, relTol float64) {
	t.Helper()
	if len(want) != len(got) {
		t.Fatalf("trace length mismatch: want %d events, got %d", len(want), len(got))
	}
	for i := range want {
		w, g := want[i], got[i]
		if w.Kind != g.Kind {
			t.Errorf("event %d: kind mismatch: want %s, got %s", i, w.Kind, g.Kind)
			continue
		}
		AssertFloat64Equal(t, eventFieldLabel(i, "time"), w.Time, g.Time, relTol)
		assertPayloadEqual(t, i, w.Payload, g.Payload, relTol)
	}
}

func eventFieldLabel(i int, field string) string {
	return "event[" + strconv.Itoa(i) + "]." + field
}

func assertPayloadEqual(t *testing.T, eventIdx int, want, got map[string]any, relTol float64) {
	t.Helper()
	for k, wv := range want {
		gv, ok := got[k]
		if !ok {
			t.Errorf("event %d: missing payload field %q", eventIdx, k)
			continue
		}
		switch wvt := wv.(type) {
		case float64:
			gvt, ok := gv.(float64)
			if !ok {
				t.Errorf("event %d: payload field %q type mismatch: want float64, got %T", eventIdx, k, gv)
				continue
			}
			AssertFloat64Equal(t, eventFieldLabel(eventIdx, k), wvt, gvt, relTol)
		default:
			if wv != gv {
				t.Errorf("event %d: payload field %q mismatch: want %v, got %v", eventIdx, k, wv, gv)
			}
		}
	}
	for k := range got {
		if _, ok := want[k]; !ok {
			t.Errorf("event %d: unexpected payload field %q", eventIdx, k)
		}
	}
}
