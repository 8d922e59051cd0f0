package logic

import (
	model "marathon-sim/driftsim/pkg/datamodel"

	logger "github.com/sirupsen/logrus"
)

// CarryOnlyLogic forwards a message only when the encountered peer is the
// message's final destination.  Forwarding to intermediates is not allowed,
// so a message rides with its original carrier until the carrier happens to
// meet the destination.  The destination takes custody only so that the
// uniform ledger cleanup can observe the delivery; with the default cleanup
// the copy is purged in the same tick, so between ticks at most one agent
// holds a live copy.
type CarryOnlyLogic struct {
	log *logger.Logger
}

// initializing the logic with the config block and a log
// in the carry-only case, nothing else is needed
func (cl *CarryOnlyLogic) InitLogic(config *model.Config, log *logger.Logger) {
	cl.log = log
}

// hand over each message whose destination is the encountered peer
func (cl *CarryOnlyLogic) handleHelper(from, to *model.Agent, toIdx int, stats *model.RoutingStats, step *StepState) {
	for _, m := range from.Custody {
		if m.Dst != to.Id {
			continue
		}
		TransferMessage(from, to, toIdx, m, stats, step)
	}
}

// delivers messages directly to their destinations, in both directions
func (cl *CarryOnlyLogic) HandleEncounter(encounter *model.Encounter, agents []*model.Agent, ledger *model.Ledger, stats *model.RoutingStats, step *StepState) {
	a := agents[encounter.A]
	b := agents[encounter.B]

	cl.handleHelper(a, b, encounter.B, stats, step)
	cl.handleHelper(b, a, encounter.A, stats, step)
}

// get the logic name
func (cl *CarryOnlyLogic) GetLogicName() string {
	return "carryonly"
}
