// Package rng provides deterministic, order-independent per-subsystem PRNG
// streams derived from a single simulation seed (spec §4.6 Determinism,
// §9 "global mutable state").
package rng

import (
	"hash/fnv"
	"math/rand"
)

// Partitioned hands out an isolated *rand.Rand per named subsystem, all
// derived from one master seed. Two Partitioned instances built from the
// same seed produce bit-identical streams per subsystem regardless of the
// order in which subsystems are first requested — derivation hashes the
// subsystem name rather than chaining off a shared cursor.
//
// Not safe for concurrent use; the engine is single-threaded (spec §5).
type Partitioned struct {
	masterSeed int64
	streams    map[string]*rand.Rand
}

// New creates a Partitioned RNG rooted at masterSeed.
func New(masterSeed int64) *Partitioned {
	return &Partitioned{
		masterSeed: masterSeed,
		streams:    make(map[string]*rand.Rand),
	}
}

// For returns the *rand.Rand for the given subsystem name, creating it
// lazily on first use. Repeated calls with the same name return the same
// stream.
func (p *Partitioned) For(name string) *rand.Rand {
	if r, ok := p.streams[name]; ok {
		return r
	}
	r := rand.New(rand.NewSource(p.deriveSeed(name)))
	p.streams[name] = r
	return r
}

// ForTask is a convenience wrapper for a task's arrival-process stream.
func (p *Partitioned) ForTask(taskID string) *rand.Rand {
	return p.For("arrival:" + taskID)
}

func (p *Partitioned) deriveSeed(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return p.masterSeed ^ int64(h.Sum64())
}

// Reset discards all derived streams; the next For() call re-derives from
// the same masterSeed, reproducing the original sequence. engine.Reset
// does not call it: it rebuilds through Build, which creates a fresh
// Partitioned with New.
func (p *Partitioned) Reset() {
	p.streams = make(map[string]*rand.Rand)
}

// Subsystem name constants for event-id and PCP-ceiling streams. The
// engine itself draws only per-task arrival streams (ForTask) and does
// not use these.
const (
	SubsystemEventID = "event_id"
	SubsystemPCP     = "pcp_ceiling"
)
