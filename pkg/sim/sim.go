// Package sim owns the per-session simulation state and drives the tick
// pipeline: mobility, proximity, routing, ledger cleanup.  A Simulation is
// a plain owned object; callers may run several independent instances, but
// each instance expects its operations to be serialized by the caller.
package sim

import (
	"errors"
	"fmt"
	"math"

	model "marathon-sim/driftsim/pkg/datamodel"
	"marathon-sim/driftsim/pkg/logic"
	"marathon-sim/driftsim/pkg/topology"

	logger "github.com/sirupsen/logrus"
)

// snapping threshold for degenerate (near zero length) edges
const edgeEpsilon = 1e-3

var (
	ErrNegativeTimeStep = errors.New("negative time step")
	ErrNotInitialized   = errors.New("simulation not initialized")
	ErrBadAgentCount    = errors.New("invalid agent count")
)

// a Simulation holds all mutable state of one session.  No other component
// mutates this state directly; collaborators read snapshots through the
// query methods.
type Simulation struct {
	log    *logger.Logger
	config *model.Config

	nodes  []*model.GraphNode
	agents []*model.Agent
	ledger *model.Ledger
	stats  model.RoutingStats

	routing logic.Logic
	mode    string

	seq   uint32
	clock float64

	lastEncounters []model.Encounter
}

// create a simulation bound to a config and logger.  The logic and topology
// registries are populated on first use so that library consumers (and
// tests) need no separate global setup.
func New(config *model.Config, log *logger.Logger) *Simulation {
	if logic.LogicStore == nil {
		logic.LogicEnginesInit(log, config)
	}
	if topology.BuilderStore == nil {
		topology.BuilderInit(log)
	}
	return &Simulation{
		log:    log,
		config: config,
		ledger: model.NewLedger(),
	}
}

// (Re)build topology and agents and seed a single message.  The routing mode
// is fixed until the next Init.  agentCount < 2 yields a valid simulation
// with no seeded message; any failure leaves the instance empty rather than
// partially constructed.
func (s *Simulation) Init(agentCount int, routingMode string) error {
	s.clear()

	if agentCount < 0 {
		return fmt.Errorf("%w: %v", ErrBadAgentCount, agentCount)
	}

	routing, err := logic.GetLogicByName(routingMode)
	if err != nil {
		return fmt.Errorf("routing mode %q: %w", routingMode, err)
	}

	builder, err := topology.GetBuilderByName(s.config.Simulation.Topology)
	if err != nil {
		return fmt.Errorf("topology %q: %w", s.config.Simulation.Topology, err)
	}

	// for now, use the same count for graph nodes and agents, but keep them
	// conceptually separate
	s.nodes = builder.Build(agentCount, s.config)
	s.routing = routing
	s.mode = routingMode

	s.agents = make([]*model.Agent, agentCount)
	for i := range s.agents {
		a := &model.Agent{
			Id:      model.AgentId(i + 1),
			Custody: make(map[model.MessageKey]*model.Message),
		}
		if len(s.nodes) > 0 {
			a.CurrentNode = int(model.Intn(int64(len(s.nodes))))
			start := s.nodes[a.CurrentNode]
			if len(start.Neighbors) > 0 {
				a.TargetNode = start.Neighbors[model.Intn(int64(len(start.Neighbors)))]
			} else {
				a.TargetNode = a.CurrentNode
			}
			a.Pos = start.Pos
		}
		s.agents[i] = a
	}

	// inject a single message (TTL effectively infinite; the field is unused)
	if agentCount >= 2 {
		src := int(model.Intn(int64(agentCount)))
		dst := (src + 1 + int(model.Intn(int64(agentCount-1)))) % agentCount
		s.seq++
		m := &model.Message{
			Src: s.agents[src].Id,
			Dst: s.agents[dst].Id,
			Seq: s.seq,
		}
		s.ledger.Add(m)
		s.agents[src].Hold(m)
		// the initial carrier has already "received" the seed message
		s.agents[src].EverHeldSeed = true
		s.stats.Delivered = 1
		s.log.Debugf("seeded message %v -> %v (seq %v)", m.Src, m.Dst, m.Seq)
	}

	s.log.Infof("initialized %v agents on a %q topology with %q routing",
		agentCount, s.config.Simulation.Topology, routingMode)
	return nil
}

// re-initialize with a new agent count, keeping the session's routing mode
func (s *Simulation) Resize(agentCount int) error {
	if s.routing == nil {
		return ErrNotInitialized
	}
	return s.Init(agentCount, s.mode)
}

// clears topology, agents, ledger, and statistics to empty/zero
func (s *Simulation) Reset() {
	s.clear()
}

func (s *Simulation) clear() {
	s.nodes = nil
	s.agents = nil
	s.ledger = model.NewLedger()
	s.stats = model.RoutingStats{}
	s.routing = nil
	s.mode = ""
	s.seq = 0
	s.clock = 0
	s.lastEncounters = nil
}

// Advance the simulation by dt seconds.  A tick is atomic: mobility fully
// completes, then proximity detection, then routing, then ledger cleanup.
// dt = 0 still runs the full encounter/routing pass over the unchanged
// positions; negative or non-finite dt is rejected.
func (s *Simulation) Step(dt float64) error {
	if math.IsNaN(dt) || math.IsInf(dt, 0) {
		return fmt.Errorf("%w: %v", ErrNegativeTimeStep, dt)
	}
	if dt < 0 {
		return fmt.Errorf("%w: %v", ErrNegativeTimeStep, dt)
	}

	s.clock += dt
	if len(s.agents) == 0 {
		s.lastEncounters = nil
		return nil
	}

	// 1. agent mobility (random walk on graph edges)
	s.moveAgents(dt)

	// 2. proximity detection on the uniform grid
	encounters := findEncounters(s.agents, s.config.Simulation.CommRange, s.clock)

	// 3. routing over the completed encounter list
	if s.routing != nil {
		step := logic.NewStepState()
		for i := range encounters {
			s.routing.HandleEncounter(&encounters[i], s.agents, s.ledger, &s.stats, step)
		}
	}

	// 4. delivery check and message removal
	if s.config.Simulation.RemoveDeliveredMessages {
		s.removeDelivered()
	}

	s.lastEncounters = encounters
	return nil
}

// advance every agent along its current edge, interpolating its position,
// and pick a fresh waypoint on arrival
func (s *Simulation) moveAgents(dt float64) {
	if len(s.nodes) == 0 {
		return
	}
	speed := s.config.Simulation.AgentSpeed

	for _, a := range s.agents {
		src := s.nodes[a.CurrentNode]
		dst := s.nodes[a.TargetNode]
		edge := dst.Pos.Sub(src.Pos)
		length := math.Sqrt(edge.Len2())

		if length < edgeEpsilon {
			// degenerate edge; snapping avoids dividing by a near-zero length
			a.Progress = 1.0
		} else {
			a.Progress += (speed * dt) / length
			if a.Progress > 1.0 {
				a.Progress = 1.0
			}
		}

		a.Pos = model.Lerp(src.Pos, dst.Pos, a.Progress)

		if a.Progress >= 1.0 {
			a.CurrentNode = a.TargetNode
			cur := s.nodes[a.CurrentNode]
			if len(cur.Neighbors) > 0 {
				a.TargetNode = cur.Neighbors[model.Intn(int64(len(cur.Neighbors)))]
				a.Progress = 0.0
			}
			// no neighbors: the agent stays parked on this node
		}
	}
}

// a message is delivered once any agent whose id equals its destination
// currently holds a copy; delivered messages leave the ledger and every
// custody set in the same tick
func (s *Simulation) removeDelivered() {
	var delivered []model.MessageKey
	s.ledger.Range(func(m *model.Message) bool {
		destIdx := int(m.Dst) - 1
		if destIdx >= 0 && destIdx < len(s.agents) && s.agents[destIdx].Holds(m.Key()) {
			delivered = append(delivered, m.Key())
		}
		return true
	})

	for _, k := range delivered {
		s.ledger.Remove(k)
		for _, a := range s.agents {
			a.Drop(k)
		}
	}
}

// --- read-only queries; safe to call between ticks ---

func (s *Simulation) AgentCount() int {
	return len(s.agents)
}

func (s *Simulation) RoutingMode() string {
	return s.mode
}

func (s *Simulation) Clock() float64 {
	return s.clock
}

// static node positions
func (s *Simulation) NodePositions() []model.Vec3 {
	out := make([]model.Vec3, len(s.nodes))
	for i, n := range s.nodes {
		out[i] = n.Pos
	}
	return out
}

// current interpolated agent positions
func (s *Simulation) AgentPositions() []model.Vec3 {
	out := make([]model.Vec3, len(s.agents))
	for i, a := range s.agents {
		out[i] = a.Pos
	}
	return out
}

// snapshot of the cumulative routing counters
func (s *Simulation) Stats() model.RoutingStats {
	return s.stats
}

// snapshot of the currently live messages
func (s *Simulation) Messages() []model.Message {
	return s.ledger.Snapshot()
}

// per-agent flags: has this agent ever held the seed message?
func (s *Simulation) DeliveredFlags() []bool {
	out := make([]bool, len(s.agents))
	for i, a := range s.agents {
		out[i] = a.EverHeldSeed
	}
	return out
}

// the encounter pairs found by the most recent Step
func (s *Simulation) LastEncounters() []model.Encounter {
	out := make([]model.Encounter, len(s.lastEncounters))
	copy(out, s.lastEncounters)
	return out
}
