package model

import (
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rtschedsim/rtschedsim/internal/simerr"
)

// SupportedVersion is the only input document version this engine
// generation accepts (spec §6).
const SupportedVersion = "0.2"

// doc mirrors the on-disk document shape; yaml.v3 and encoding/json both
// decode into it directly since the two formats agree on field names.
type doc struct {
	Version   string          `yaml:"version" json:"version"`
	Platform  docPlatform     `yaml:"platform" json:"platform"`
	Resources []docResource   `yaml:"resources" json:"resources"`
	Tasks     []docTask       `yaml:"tasks" json:"tasks"`
	Scheduler docScheduler    `yaml:"scheduler" json:"scheduler"`
	Sim       docSim          `yaml:"sim" json:"sim"`
}

type docPlatform struct {
	ProcessorTypes []ProcessorType `yaml:"processor_types" json:"processor_types"`
	Cores          []Core          `yaml:"cores" json:"cores"`
}

type docResource struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	BoundCoreID string `yaml:"bound_core_id" json:"bound_core_id"`
	Protocol    string `yaml:"protocol" json:"protocol"`
}

type docArrival struct {
	Type        string         `yaml:"type" json:"type"`
	Interval    float64        `yaml:"interval" json:"interval"`
	MinInterval float64        `yaml:"min_interval" json:"min_interval"`
	MaxInterval float64        `yaml:"max_interval" json:"max_interval"`
	Rate        float64        `yaml:"rate" json:"rate"`
	GeneratorID string         `yaml:"generator" json:"generator"`
	Params      map[string]any `yaml:"params" json:"params"`
	MaxReleases int            `yaml:"max_releases" json:"max_releases"`
}

type docSegment struct {
	ID                  string   `yaml:"id" json:"id"`
	Index               int      `yaml:"index" json:"index"`
	WCET                float64  `yaml:"wcet" json:"wcet"`
	ACET                *float64 `yaml:"acet" json:"acet"`
	RequiredResourceIDs []string `yaml:"required_resources" json:"required_resources"`
	MappingHint         string   `yaml:"mapping_hint" json:"mapping_hint"`
	Preemptible         bool     `yaml:"preemptible" json:"preemptible"`
	ReleaseOffset       *float64 `yaml:"release_offset" json:"release_offset"`
}

type docSubtask struct {
	ID           string       `yaml:"id" json:"id"`
	Predecessors []string     `yaml:"predecessors" json:"predecessors"`
	Successors   []string     `yaml:"successors" json:"successors"`
	MappingHint  string       `yaml:"mapping_hint" json:"mapping_hint"`
	Segments     []docSegment `yaml:"segments" json:"segments"`
}

type docTask struct {
	ID          string       `yaml:"id" json:"id"`
	Name        string       `yaml:"name" json:"name"`
	Type        string       `yaml:"type" json:"type"`
	Period      *float64     `yaml:"period" json:"period"`
	Deadline    *float64     `yaml:"deadline" json:"deadline"`
	Phase       float64      `yaml:"phase" json:"phase"`
	Arrival     *docArrival  `yaml:"arrival_process" json:"arrival_process"`
	AbortOnMiss bool         `yaml:"abort_on_miss" json:"abort_on_miss"`
	MappingHint string       `yaml:"mapping_hint" json:"mapping_hint"`
	Subtasks    []docSubtask `yaml:"subtasks" json:"subtasks"`

	LegacyArrival         string   `yaml:"arrival" json:"arrival"`
	LegacyMinInterArrival *float64 `yaml:"min_inter_arrival" json:"min_inter_arrival"`
	LegacyMaxInterArrival *float64 `yaml:"max_inter_arrival" json:"max_inter_arrival"`
	LegacyArrivalModel    string   `yaml:"arrival_model" json:"arrival_model"`
}

type docScheduler struct {
	Name   string                 `yaml:"name" json:"name"`
	Params map[string]any         `yaml:"params" json:"params"`
}

type docSim struct {
	Duration float64 `yaml:"duration" json:"duration"`
	Seed     int64   `yaml:"seed" json:"seed"`
}

// Load parses a model document from bytes. format is "yaml" or "json";
// an empty format falls back to sniffing (leading '{' means JSON).
func Load(data []byte, format string) (*Model, error) {
	var d doc
	f := format
	if f == "" {
		trimmed := strings.TrimSpace(string(data))
		if strings.HasPrefix(trimmed, "{") {
			f = "json"
		} else {
			f = "yaml"
		}
	}
	var err error
	switch f {
	case "json":
		err = json.Unmarshal(data, &d)
	case "yaml":
		err = yaml.Unmarshal(data, &d)
	default:
		return nil, simerr.Modelf("unknown_format", "unrecognized model document format %q", f)
	}
	if err != nil {
		return nil, simerr.Modelf("parse_error", "parsing model document").Wrap(err)
	}
	if d.Version != SupportedVersion {
		return nil, simerr.Modelf("unsupported_version", "model document version %q is not supported (want %q)", d.Version, SupportedVersion)
	}
	return fromDoc(&d), nil
}

func fromDoc(d *doc) *Model {
	m := &Model{
		Version: d.Version,
		Platform: Platform{
			ProcessorTypes: d.Platform.ProcessorTypes,
			Cores:          d.Platform.Cores,
		},
		Scheduler: SchedulerChoice(d.Scheduler.Name),
		Sim: SimParams{
			Duration: d.Sim.Duration,
			Seed:     d.Sim.Seed,
		},
	}
	m.SchedulerParams = schedulerParamsFromMap(d.Scheduler.Params)

	for _, r := range d.Resources {
		m.Resources = append(m.Resources, Resource{
			ID:          r.ID,
			Name:        r.Name,
			BoundCoreID: r.BoundCoreID,
			Protocol:    Protocol(r.Protocol),
		})
	}

	for _, t := range d.Tasks {
		tg := TaskGraph{
			ID:                    t.ID,
			Name:                  t.Name,
			Type:                  TaskType(t.Type),
			Period:                t.Period,
			Deadline:              t.Deadline,
			Phase:                 t.Phase,
			AbortOnMiss:           t.AbortOnMiss,
			MappingHint:           t.MappingHint,
			LegacyArrival:         t.LegacyArrival,
			LegacyMinInterArrival: t.LegacyMinInterArrival,
			LegacyMaxInterArrival: t.LegacyMaxInterArrival,
			LegacyArrivalModel:    t.LegacyArrivalModel,
		}
		if t.Arrival != nil {
			tg.Arrival = &ArrivalProcess{
				Type:        ArrivalProcessType(t.Arrival.Type),
				Interval:    t.Arrival.Interval,
				MinInterval: t.Arrival.MinInterval,
				MaxInterval: t.Arrival.MaxInterval,
				Rate:        t.Arrival.Rate,
				GeneratorID: t.Arrival.GeneratorID,
				Params:      t.Arrival.Params,
				MaxReleases: t.Arrival.MaxReleases,
			}
		}
		for _, st := range t.Subtasks {
			sub := Subtask{
				ID:           st.ID,
				Predecessors: st.Predecessors,
				Successors:   st.Successors,
				MappingHint:  st.MappingHint,
			}
			for _, seg := range st.Segments {
				sub.Segments = append(sub.Segments, Segment{
					ID:                  seg.ID,
					Index:               seg.Index,
					WCET:                seg.WCET,
					ACET:                seg.ACET,
					RequiredResourceIDs: seg.RequiredResourceIDs,
					MappingHint:         seg.MappingHint,
					Preemptible:         seg.Preemptible,
					ReleaseOffset:       seg.ReleaseOffset,
				})
			}
			tg.Subtasks = append(tg.Subtasks, sub)
		}
		m.Tasks = append(m.Tasks, tg)
	}
	return m
}

func schedulerParamsFromMap(params map[string]any) SchedulerParams {
	sp := SchedulerParams{
		TieBreaker:    TieBreakFIFO,
		AllowPreempt:  true,
		EventIDMode:   EventIDDeterministic,
		AcquirePolicy: AcquireLegacySequential,
		ETM:           ETMConstant,
	}
	if params == nil {
		return sp
	}
	if v, ok := params["tie_breaker"].(string); ok && v != "" {
		sp.TieBreaker = TieBreaker(v)
	}
	if v, ok := params["allow_preempt"].(bool); ok {
		sp.AllowPreempt = v
	}
	if v, ok := params["event_id_mode"].(string); ok && v != "" {
		sp.EventIDMode = EventIDMode(v)
	}
	if v, ok := params["resource_acquire_policy"].(string); ok && v != "" {
		sp.AcquirePolicy = ResourceAcquirePolicy(v)
	}
	if v, ok := params["etm"].(string); ok && v != "" {
		sp.ETM = ETMKind(v)
	}
	if v, ok := params["etm_params"].(map[string]any); ok {
		sp.ETMParams = v
	}
	return sp
}
