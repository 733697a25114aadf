// Package arrival produces lazy release-time sequences for tasks (spec
// §4.2, C2). Generators are pure functions of their parameters and an
// injected PRNG stream; two runs sharing a seed yield identical release
// schedules (spec §4.6 Determinism).
package arrival

import (
	"math/rand"

	"github.com/rtschedsim/rtschedsim/internal/model"
	"github.com/rtschedsim/rtschedsim/internal/simerr"
)

// Generator produces the next release time given the previous one (or
// phase, for the first release). Returns ok=false when the sequence is
// exhausted (one_shot after its single release, or max_releases reached).
type Generator interface {
	Next(prev float64, count int) (t float64, ok bool)
}

// CustomFunc is the signature third-party extension generators must
// implement (spec §9: "the only category where third-party extension is
// actually required").
type CustomFunc func(prev float64, count int, params map[string]any, rng *rand.Rand) (t float64, ok bool)

// Registry holds built-in generator constructors plus any externally
// registered custom generators, keyed by generator id.
type Registry struct {
	custom map[string]CustomFunc
}

// NewRegistry creates an empty Registry; RegisterCustom adds extensions.
func NewRegistry() *Registry {
	return &Registry{custom: make(map[string]CustomFunc)}
}

// RegisterCustom installs a third-party generator under id, for use by
// arrival_process.type="custom" / generator=id (spec §4.2, §9).
func (r *Registry) RegisterCustom(id string, fn CustomFunc) {
	r.custom[id] = fn
}

// Build resolves a task's ArrivalProcess into a Generator bound to the
// task's phase and an injected rng stream. Returns a ClassConfig error
// for an unknown generator id (spec §7).
func (r *Registry) Build(ap *model.ArrivalProcess, phase float64, rng *rand.Rand) (Generator, error) {
	switch ap.Type {
	case model.ArrivalFixed:
		return &fixedGen{interval: ap.Interval, phase: phase, max: ap.MaxReleases}, nil
	case model.ArrivalUniform:
		return &uniformGen{min: ap.MinInterval, max: ap.MaxInterval, phase: phase, maxReleases: ap.MaxReleases, rng: rng}, nil
	case model.ArrivalPoisson:
		return &poissonGen{rate: ap.Rate, phase: phase, max: ap.MaxReleases, rng: rng}, nil
	case model.ArrivalOneShot:
		return &oneShotGen{phase: phase}, nil
	case model.ArrivalCustom:
		fn, ok := r.custom[ap.GeneratorID]
		if !ok {
			return nil, simerr.Configf("unknown_arrival_generator", "no custom arrival generator registered for id %q", ap.GeneratorID)
		}
		return &customGen{fn: fn, phase: phase, params: ap.Params, rng: rng}, nil
	default:
		return nil, simerr.Configf("unknown_arrival_process_type", "unrecognized arrival process type %q", ap.Type)
	}
}

// fixedGen implements tₖ = phase + k·interval (spec §4.2).
type fixedGen struct {
	interval float64
	phase    float64
	max      int
	k        int
}

func (g *fixedGen) Next(_ float64, count int) (float64, bool) {
	if g.max > 0 && count >= g.max {
		return 0, false
	}
	t := g.phase + float64(count)*g.interval
	return t, true
}

// uniformGen implements tₖ = tₖ₋₁ + U[min,max].
type uniformGen struct {
	min, max    float64
	phase       float64
	maxReleases int
	rng         *rand.Rand
}

func (g *uniformGen) Next(prev float64, count int) (float64, bool) {
	if g.maxReleases > 0 && count >= g.maxReleases {
		return 0, false
	}
	if count == 0 {
		return g.phase, true
	}
	span := g.max - g.min
	draw := g.min
	if span > 0 {
		draw = g.min + g.rng.Float64()*span
	}
	return prev + draw, true
}

// poissonGen implements inter-arrivals ~ Exp(rate).
type poissonGen struct {
	rate float64
	phase float64
	max   int
	rng   *rand.Rand
}

func (g *poissonGen) Next(prev float64, count int) (float64, bool) {
	if g.max > 0 && count >= g.max {
		return 0, false
	}
	if count == 0 {
		return g.phase, true
	}
	if g.rate <= 0 {
		return prev, false
	}
	iat := g.rng.ExpFloat64() / g.rate
	return prev + iat, true
}

// oneShotGen releases exactly once, at phase.
type oneShotGen struct {
	phase float64
}

func (g *oneShotGen) Next(_ float64, count int) (float64, bool) {
	if count > 0 {
		return 0, false
	}
	return g.phase, true
}

// customGen delegates to a registered CustomFunc (spec §4.2 "custom").
type customGen struct {
	fn     CustomFunc
	phase  float64
	params map[string]any
	rng    *rand.Rand
}

func (g *customGen) Next(prev float64, count int) (float64, bool) {
	if count == 0 {
		return g.fn(g.phase, count, g.params, g.rng)
	}
	return g.fn(prev, count, g.params, g.rng)
}
