package logic

import (
	model "marathon-sim/driftsim/pkg/datamodel"

	logger "github.com/sirupsen/logrus"
)

// EpidemicLogic replicates every held message to any encountered peer that
// lacks it.  During an encounter each side forwards all messages the other
// side does not hold, each message at most once per encounter, and a message
// received earlier in the same tick is not forwarded again until the next
// tick.  Multi-hop spread therefore takes multiple ticks.
type EpidemicLogic struct {
	log *logger.Logger
}

// initializing the logic with the config block and a log
func (el *EpidemicLogic) InitLogic(config *model.Config, log *logger.Logger) {
	el.log = log
}

// forward everything the recipient lacks, skipping messages the carrier
// itself only received this tick
func (el *EpidemicLogic) handleHelper(from *model.Agent, fromIdx int, to *model.Agent, toIdx int, stats *model.RoutingStats, step *StepState) {
	for k, m := range from.Custody {
		if step.ReceivedThisStep(fromIdx, k) {
			continue // newly received earlier this step
		}
		TransferMessage(from, to, toIdx, m, stats, step)
	}
}

// replicates messages between the two agents, in both directions
func (el *EpidemicLogic) HandleEncounter(encounter *model.Encounter, agents []*model.Agent, ledger *model.Ledger, stats *model.RoutingStats, step *StepState) {
	a := agents[encounter.A]
	b := agents[encounter.B]

	el.handleHelper(a, encounter.A, b, encounter.B, stats, step)
	el.handleHelper(b, encounter.B, a, encounter.A, stats, step)
}

// get the logic name
func (el *EpidemicLogic) GetLogicName() string {
	return "epidemic"
}
