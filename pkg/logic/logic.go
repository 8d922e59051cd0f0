// Package logic holds the routing logic engines.  An engine decides, for
// each encounter, which messages change custody; the ledger and statistics
// record the consequences.
package logic

import (
	"errors"
	model "marathon-sim/driftsim/pkg/datamodel"

	logger "github.com/sirupsen/logrus"
)

// the sequence number of the seed message injected at initialization
const SeedSeq uint32 = 1

// our logger
var logg *logger.Logger

// defines the interface for routing Logic
type Logic interface {
	InitLogic(config *model.Config, log *logger.Logger)

	// potentially does a message exchange between the two agents of an
	// encounter.  Called once per encounter, both directions handled inside.
	HandleEncounter(encounter *model.Encounter, agents []*model.Agent, ledger *model.Ledger, stats *model.RoutingStats, step *StepState)

	// get the logic name
	GetLogicName() string
}

// a map of all of the supported routing Logic implementations
var LogicStore map[string]Logic

// initialize the logic engines.
//
// Important: new logic engines need to be added here!
func LogicEnginesInit(log *logger.Logger, config *model.Config) {
	LogicStore = make(map[string]Logic)
	// populate the LogicStore with all of the available logic engines
	LogicStore["carryonly"] = &CarryOnlyLogic{}
	LogicStore["epidemic"] = &EpidemicLogic{}

	// initialize each logic engine
	for name, l := range LogicStore {
		log.Debugf("initializing logic '%v'", name)
		l.InitLogic(config, log)
	}
	//set the log generally
	logg = log
}

func GetInstalledLogicEngines() []string {
	enginesArr := make([]string, 0, len(LogicStore))
	for k := range LogicStore {
		enginesArr = append(enginesArr, k)
	}
	return enginesArr
}

func GetLogicByName(name string) (Logic, error) {
	logic, ok := LogicStore[name]
	if !ok {
		return nil, errors.New("logic engine not found")
	}
	return logic, nil
}

// a (receiving agent, message) pair
type receipt struct {
	agent int
	key   model.MessageKey
}

// StepState tracks which (agent, message) pairs received a copy during the
// current tick.  A message an agent just received is not forwarded again by
// that agent until the next tick, which bounds epidemic spread to one hop
// per agent per message per tick.
type StepState struct {
	received map[receipt]bool
}

func NewStepState() *StepState {
	return &StepState{received: make(map[receipt]bool)}
}

func (st *StepState) MarkReceived(agent int, k model.MessageKey) {
	st.received[receipt{agent: agent, key: k}] = true
}

func (st *StepState) ReceivedThisStep(agent int, k model.MessageKey) bool {
	return st.received[receipt{agent: agent, key: k}]
}

// mark that an agent has held the seed message at least once.  Only the
// first time counts toward the delivered statistic.
func markSeedHeld(a *model.Agent, m *model.Message, stats *model.RoutingStats) {
	if m.Seq != SeedSeq {
		return
	}
	if !a.EverHeldSeed {
		a.EverHeldSeed = true
		stats.Delivered++ // count distinct agents that have ever held the seed message
	}
}

// this function places the message in the custody of the recipient and
// updates the counters on it
func TransferMessage(from, to *model.Agent, toIdx int, m *model.Message, stats *model.RoutingStats, step *StepState) bool {
	// if it's already present on the recipient, don't transfer
	if to.Holds(m.Key()) {
		return false
	}

	to.Hold(m)
	m.Hops++
	stats.Transmitted++
	stats.Received++

	markSeedHeld(to, m, stats)

	// the recipient cannot forward this message again this tick
	step.MarkReceived(toIdx, m.Key())
	return true
}
