package eventbus

import (
	"fmt"
	"hash/fnv"

	"github.com/google/uuid"
)

// IDMode selects how event ids are generated (spec §4.1). Ordering of
// events is always by (time, sequence) regardless of id choice — the id
// is a label, never a sort key.
type IDMode int

const (
	IDDeterministic IDMode = iota
	IDSeededRandom
	IDRandom
)

// IDGenerator produces the ID field for the event about to be published
// at the given sequence number.
type IDGenerator struct {
	mode IDMode
	seed int64
}

// NewIDGenerator builds a generator for the given mode and run seed.
func NewIDGenerator(mode IDMode, seed int64) *IDGenerator {
	return &IDGenerator{mode: mode, seed: seed}
}

// Next returns the id string for the event about to be assigned seq.
func (g *IDGenerator) Next(seq uint64) string {
	switch g.mode {
	case IDDeterministic:
		return fmt.Sprintf("%d", seq)
	case IDSeededRandom:
		h := fnv.New64a()
		_, _ = fmt.Fprintf(h, "%d:%d", seq, g.seed)
		return fmt.Sprintf("%x", h.Sum64())
	case IDRandom:
		return uuid.NewString()
	default:
		return fmt.Sprintf("%d", seq)
	}
}
