package arrival

// Sequence wraps a Generator with the running (prev, count) state needed
// to pull successive release times lazily, as the engine's scheduling
// loop does: it only ever needs "the next release," never the whole
// sequence materialized up front (spec §4.2 "lazy sequence").
type Sequence struct {
	gen   Generator
	prev  float64
	count int
	done  bool
}

// NewSequence wraps gen into a pull-based Sequence.
func NewSequence(gen Generator) *Sequence {
	return &Sequence{gen: gen}
}

// Next pulls the next release time, or ok=false once the sequence is
// exhausted. Once exhausted, Sequence remembers that and always returns
// ok=false thereafter (generators are not required to be idempotent past
// their end).
func (s *Sequence) Next() (float64, bool) {
	if s.done {
		return 0, false
	}
	t, ok := s.gen.Next(s.prev, s.count)
	if !ok {
		s.done = true
		return 0, false
	}
	s.prev = t
	s.count++
	return t, true
}
