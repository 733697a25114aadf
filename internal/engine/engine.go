// Package engine implements the discrete-event simulation core (spec
// §4.6, C6): it owns the future-event priority queue, drives job and
// segment lifecycles, invokes the scheduler per core, and applies
// resource-protocol outcomes — publishing every state change to an
// injected eventbus.Bus.
//
// Grounded on the teacher's sim/simulator.go EventQueue/Schedule/Run
// loop and sim/cluster/simulator.go's ClusterSimulator/EventHeap pattern
// (deterministic event ids, handleRequestArrival-style dispatch).
package engine

import (
	"math"

	"github.com/rtschedsim/rtschedsim/internal/arrival"
	"github.com/rtschedsim/rtschedsim/internal/etm"
	"github.com/rtschedsim/rtschedsim/internal/eventbus"
	"github.com/rtschedsim/rtschedsim/internal/model"
	"github.com/rtschedsim/rtschedsim/internal/protocol"
	"github.com/rtschedsim/rtschedsim/internal/rng"
	"github.com/rtschedsim/rtschedsim/internal/scheduler"
	"github.com/rtschedsim/rtschedsim/internal/simerr"
)

// occupant identifies the job/segment currently running on a core.
type occupant struct {
	jobID     string
	segmentID string
}

// Engine is the simulation run state. Zero value is not usable; use New.
// Build() (re)materializes all derived state from a model.Model; a Bus is
// injected by the caller and outlives any number of Build/Reset cycles
// (spec §9: persistent subscribers).
type Engine struct {
	bus   *eventbus.Bus
	model *model.Model
	sched scheduler.Scheduler
	etm   etm.Model
	idGen *eventbus.IDGenerator
	rng   *rng.Partitioned

	resourceProto map[string]protocol.Protocol
	pipMgr        *protocol.PIPManager
	pcpMgr        *protocol.PCPManager
	acquirePolicy model.ResourceAcquirePolicy

	customArrivals map[string]arrival.CustomFunc
	arrivalSeqs    map[string]*arrival.Sequence

	h         *eventHeap
	eventSeq  uint64
	clock     float64
	duration  float64
	jobSeq    map[string]int // per-task release counter, for job id generation
	jobs      map[string]*Job
	coreOrder []string
	occupant  map[string]*occupant // coreID -> current occupant, nil entry means idle

	stopped bool
	paused  bool
}

// New creates an unbuilt Engine. Call RegisterCustomArrival (if needed)
// before Build.
func New() *Engine {
	return &Engine{customArrivals: make(map[string]arrival.CustomFunc)}
}

// RegisterCustomArrival installs a third-party arrival generator, usable
// by any task whose arrival_process.type="custom" names this id (spec
// §4.2, §9). Must be called before Build.
func (e *Engine) RegisterCustomArrival(id string, fn arrival.CustomFunc) {
	e.customArrivals[id] = fn
}

// Build validates m and materializes the engine's runtime state: the
// scheduler, execution-time model, per-resource protocols, RNG streams,
// and the initial release events for every task. bus is attached but
// never cleared or reconstructed here — its subscriber set is the
// caller's responsibility across repeated Build calls (spec §9).
func (e *Engine) Build(m *model.Model, bus *eventbus.Bus) error {
	if err := model.Validate(m); err != nil {
		return err
	}

	sched, err := scheduler.New(m.Scheduler, m.SchedulerParams)
	if err != nil {
		return err
	}
	etmModel, err := etm.FromParams(m.SchedulerParams.ETM, m.SchedulerParams.ETMParams)
	if err != nil {
		return err
	}

	e.bus = bus
	e.model = m
	e.sched = sched
	e.etm = etmModel
	e.duration = m.Sim.Duration
	e.rng = rng.New(m.Sim.Seed)
	e.idGen = eventbus.NewIDGenerator(idModeFromModel(m.SchedulerParams.EventIDMode), m.Sim.Seed)
	e.acquirePolicy = m.SchedulerParams.AcquirePolicy

	e.pipMgr = protocol.NewPIPManager()
	e.pcpMgr = protocol.NewPCPManager()
	e.resourceProto = make(map[string]protocol.Protocol, len(m.Resources))
	for _, r := range m.Resources {
		switch r.Protocol {
		case model.ProtocolMutex:
			e.resourceProto[r.ID] = protocol.NewMutex()
		case model.ProtocolPIP:
			e.resourceProto[r.ID] = e.pipMgr.Resource(r.ID)
		case model.ProtocolPCP:
			e.resourceProto[r.ID] = e.pcpMgr.Resource(r.ID)
		}
	}

	reg := arrival.NewRegistry()
	for id, fn := range e.customArrivals {
		reg.RegisterCustom(id, fn)
	}

	e.h = newEventHeap()
	e.eventSeq = 0
	e.clock = 0
	e.jobSeq = make(map[string]int, len(m.Tasks))
	e.jobs = make(map[string]*Job)
	e.arrivalSeqs = make(map[string]*arrival.Sequence, len(m.Tasks))
	e.stopped = false
	e.paused = false

	e.coreOrder = make([]string, len(m.Platform.Cores))
	e.occupant = make(map[string]*occupant, len(m.Platform.Cores))
	for i, c := range m.Platform.Cores {
		e.coreOrder[i] = c.ID
		e.occupant[c.ID] = nil
	}

	for i := range m.Tasks {
		t := &m.Tasks[i]
		ap := t.Arrival
		if ap == nil {
			return simerr.Modelf("missing_arrival_process", "task %s has no arrival process after normalization", t.ID)
		}
		gen, err := reg.Build(ap, t.Phase, e.rng.ForTask(t.ID))
		if err != nil {
			return err
		}
		seq := arrival.NewSequence(gen)
		e.arrivalSeqs[t.ID] = seq
		if t0, ok := seq.Next(); ok {
			e.pushEvent(&internalEvent{time: t0, kind: evRelease, taskID: t.ID})
		}
	}
	return nil
}

// Reset rewinds RNG streams and replays Build against the last model,
// reproducing the original run deterministically (spec §4.6). The bus is
// left untouched: its subscribers persist (spec §9).
func (e *Engine) Reset() error {
	if e.model == nil {
		return simerr.Runtimef("not_built", "Reset called before Build")
	}
	m, bus := e.model, e.bus
	return e.Build(m, bus)
}

// refreshPCPCeilings recomputes the ceiling of every PCP resource job's
// task can reference, as the maximum protocol-domain priority among
// currently active jobs that could request it (spec §4.7 scenario 4:
// "ceiling must be computed in the absolute-deadline domain at each
// release... values drawn from the set of active job deadlines, not
// static priorities"). Called once per job release (spec §4.4 "refreshed
// per release") rather than once at Build, since under EDF the relevant
// quantity is an active job's absolute deadline, not a static per-task
// number.
func (e *Engine) refreshPCPCeilings(job *Job) {
	for _, r := range e.model.Resources {
		if r.Protocol != model.ProtocolPCP || !taskReferencesResource(job.def, r.ID) {
			continue
		}
		ceiling := math.Inf(-1)
		for _, other := range e.jobs {
			if other.State != JobRunning || !taskReferencesResource(other.def, r.ID) {
				continue
			}
			if p := other.protoPriority(); p > ceiling {
				ceiling = p
			}
		}
		e.pcpMgr.SetCeiling(r.ID, ceiling)
	}
}

func taskReferencesResource(t *model.TaskGraph, resourceID string) bool {
	for _, st := range t.Subtasks {
		for _, seg := range st.Segments {
			for _, rid := range seg.RequiredResourceIDs {
				if rid == resourceID {
					return true
				}
			}
		}
	}
	return false
}

func idModeFromModel(m model.EventIDMode) eventbus.IDMode {
	switch m {
	case model.EventIDSeededRandom:
		return eventbus.IDSeededRandom
	case model.EventIDRandom:
		return eventbus.IDRandom
	default:
		return eventbus.IDDeterministic
	}
}

// publish assigns an id per the configured EventIDMode and forwards to
// the bus.
func (e *Engine) publish(kind eventbus.Kind, payload map[string]any) eventbus.Event {
	id := e.idGen.Next(e.bus.NextSeq())
	return e.bus.Publish(e.clock, kind, id, payload)
}

// Run drives the engine to completion: every event at or before
// Sim.Duration, in (time, seq) order, until the queue drains, Stop is
// called, or Pause takes effect.
func (e *Engine) Run() error {
	for {
		if e.stopped || e.paused {
			return nil
		}
		top := e.peekEvent()
		if top == nil || top.time > e.duration {
			return nil
		}
		if err := e.Step(); err != nil {
			return err
		}
	}
}

// Step advances the simulation by exactly one internal event (spec
// §4.6). Does nothing and returns nil if the queue is empty or the next
// event falls after Sim.Duration.
func (e *Engine) Step() error {
	ev := e.popEvent()
	if ev == nil {
		return nil
	}
	if ev.time > e.duration {
		return nil
	}
	e.clock = ev.time

	var err error
	switch ev.kind {
	case evRelease:
		err = e.handleRelease(ev.taskID)
	case evCompletion:
		err = e.handleCompletion(ev)
	case evDeadline:
		err = e.handleDeadline(ev.jobID)
	}
	if err != nil {
		return err
	}

	return e.dispatchAll()
}

// Pause stops Run from advancing further without discarding queued
// events; Resume continues the same run.
func (e *Engine) Pause()  { e.paused = true }
func (e *Engine) Resume() { e.paused = false }

// Stop halts the run permanently; a subsequent Build or Reset is
// required to run again.
func (e *Engine) Stop() { e.stopped = true }

// Jobs returns the current job table, for inspection by metrics/audit.
func (e *Engine) Jobs() map[string]*Job { return e.jobs }

// Clock returns the current simulated time.
func (e *Engine) Clock() float64 { return e.clock }
