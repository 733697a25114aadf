// Package etm implements the execution-time model (spec §4.3, C3):
// duration(segment, core) -> Time, consulted once when a segment begins
// running on a core.
package etm

import (
	"github.com/rtschedsim/rtschedsim/internal/model"
	"github.com/rtschedsim/rtschedsim/internal/simerr"
)

// Model maps (segment, core) to an effective wall-time duration.
type Model interface {
	Duration(seg *model.Segment, platform *model.Platform, coreID string) (float64, error)
}

// Constant implements "wcet / effective_core_speed(core)" (spec §4.3).
type Constant struct{}

func (Constant) Duration(seg *model.Segment, platform *model.Platform, coreID string) (float64, error) {
	speed := platform.EffectiveSpeed(coreID)
	if speed <= 0 {
		return 0, simerr.Runtimef("invalid_core_speed", "core %s has non-positive effective speed", coreID)
	}
	return seg.WCET / speed, nil
}

// TableBased implements the scale-factor lookup of spec §4.3: per
// (segment_id, core_id) scale, falling back to a per-segment default,
// then a global default. Result = wcet * scale / effective_core_speed.
type TableBased struct {
	// Scales is keyed by segment id, then core id.
	Scales map[string]map[string]float64
	// SegmentDefault is keyed by segment id; used when (segment,core) is
	// absent from Scales.
	SegmentDefault map[string]float64
	// GlobalDefault applies when neither of the above has an entry.
	GlobalDefault float64
}

// NewTableBased builds a TableBased ETM with GlobalDefault=1.0 and empty
// maps, ready for callers to populate from etm_params (spec §6).
func NewTableBased() *TableBased {
	return &TableBased{
		Scales:         make(map[string]map[string]float64),
		SegmentDefault: make(map[string]float64),
		GlobalDefault:  1.0,
	}
}

func (t *TableBased) Duration(seg *model.Segment, platform *model.Platform, coreID string) (float64, error) {
	speed := platform.EffectiveSpeed(coreID)
	if speed <= 0 {
		return 0, simerr.Runtimef("invalid_core_speed", "core %s has non-positive effective speed", coreID)
	}
	scale := t.GlobalDefault
	if byCore, ok := t.Scales[seg.ID]; ok {
		if s, ok := byCore[coreID]; ok {
			scale = s
		} else if d, ok := t.SegmentDefault[seg.ID]; ok {
			scale = d
		}
	} else if d, ok := t.SegmentDefault[seg.ID]; ok {
		scale = d
	}
	return seg.WCET * scale / speed, nil
}

// FromParams builds an ETM from the model's configured kind and opaque
// etm_params (spec §6). Returns a ClassConfig error for an unknown kind.
func FromParams(kind model.ETMKind, params map[string]any) (Model, error) {
	switch kind {
	case model.ETMConstant, "":
		return Constant{}, nil
	case model.ETMTableBased:
		tb := NewTableBased()
		if params == nil {
			return tb, nil
		}
		if gd, ok := params["global_default"].(float64); ok {
			tb.GlobalDefault = gd
		}
		if segDefaults, ok := params["segment_default"].(map[string]any); ok {
			for seg, v := range segDefaults {
				if f, ok := v.(float64); ok {
					tb.SegmentDefault[seg] = f
				}
			}
		}
		if scales, ok := params["scales"].(map[string]any); ok {
			for seg, perCore := range scales {
				m, ok := perCore.(map[string]any)
				if !ok {
					continue
				}
				byCore := make(map[string]float64, len(m))
				for core, v := range m {
					if f, ok := v.(float64); ok {
						byCore[core] = f
					}
				}
				tb.Scales[seg] = byCore
			}
		}
		return tb, nil
	default:
		return nil, simerr.Configf("unknown_etm", "unrecognized execution-time model %q", kind)
	}
}
