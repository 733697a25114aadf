package model

import "fmt"

// NormalizeLegacyArrival maps a task's legacy arrival fields onto an
// ArrivalProcess, when the task has no explicit arrival_process (spec
// §4.2, §12.3). min_inter_arrival plus max_inter_arrival become a uniform
// process; otherwise a numeric arrival becomes a fixed process.
// arrival_model is not consulted. Mutates t.Arrival in place; no-op if
// t.Arrival is already set or no usable legacy field is present.
//
// max_inter_arrival == min_inter_arrival is accepted and routed through
// "uniform" with min==max (see spec §9 Open Questions). The uniform
// generator makes no PRNG draw when the bounds are equal, so every
// inter-arrival gap is exactly that bound, as with a fixed process.
func NormalizeLegacyArrival(t *TaskGraph) {
	if t.Arrival != nil {
		return
	}
	switch {
	case t.LegacyMinInterArrival != nil && t.LegacyMaxInterArrival != nil:
		t.Arrival = &ArrivalProcess{
			Type:        ArrivalUniform,
			MinInterval: *t.LegacyMinInterArrival,
			MaxInterval: *t.LegacyMaxInterArrival,
		}
	case t.LegacyArrival != "":
		if f, ok := parseLegacyFixed(t.LegacyArrival); ok {
			t.Arrival = &ArrivalProcess{Type: ArrivalFixed, Interval: f}
		}
	}
}

// parseLegacyFixed reads a leading number from the legacy arrival string
// as a fixed release interval; ok is false when no number can be read.
func parseLegacyFixed(s string) (float64, bool) {
	var f float64
	n, err := fmt.Sscan(s, &f)
	if err != nil || n != 1 {
		return 0, false
	}
	return f, true
}
