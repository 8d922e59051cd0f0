package sim

import (
	"errors"
	"fmt"

	model "marathon-sim/driftsim/pkg/datamodel"
)

// Validation errors.  Validate wraps these with detail, so callers can test
// categories with errors.Is.
var (
	ErrLedgerInconsistent = errors.New("ledger/custody inconsistency")
	ErrBadProgress        = errors.New("edge progress out of range")
	ErrAsymmetricGraph    = errors.New("asymmetric neighbor relation")
	ErrBadDeliveredCount  = errors.New("delivered counter out of bounds")
)

// Validate checks the structural invariants of the simulation and returns a
// structured error describing the first breach found, or nil.  It is cheap
// enough to run after every tick in tests and is available in all builds;
// the caller decides whether a breach is fatal.
func (s *Simulation) Validate() error {

	// every ledger message must be held by at least one agent
	var orphan error
	s.ledger.Range(func(m *model.Message) bool {
		for _, a := range s.agents {
			if a.Holds(m.Key()) {
				return true
			}
		}
		orphan = fmt.Errorf("%w: message %v held by no agent", ErrLedgerInconsistent, m.Key())
		return false
	})
	if orphan != nil {
		return orphan
	}

	// every custody entry must exist in the ledger and reference the
	// ledger's own entry
	for _, a := range s.agents {
		for k, m := range a.Custody {
			entry := s.ledger.Get(k)
			if entry == nil {
				return fmt.Errorf("%w: agent %v holds %v which is not live", ErrLedgerInconsistent, a.Id, k)
			}
			if entry != m {
				return fmt.Errorf("%w: agent %v holds a detached copy of %v", ErrLedgerInconsistent, a.Id, k)
			}
			if m.Key() != k {
				return fmt.Errorf("%w: agent %v custody key %v does not match message %v", ErrLedgerInconsistent, a.Id, k, m.Key())
			}
		}
	}

	// edge progress stays within [0,1]
	for _, a := range s.agents {
		if a.Progress < 0 || a.Progress > 1 {
			return fmt.Errorf("%w: agent %v progress %v", ErrBadProgress, a.Id, a.Progress)
		}
	}

	// neighbor relations remain symmetric
	for i, n := range s.nodes {
		for _, j := range n.Neighbors {
			if j < 0 || j >= len(s.nodes) {
				return fmt.Errorf("%w: node %v links to out-of-range node %v", ErrAsymmetricGraph, i, j)
			}
			back := false
			for _, k := range s.nodes[j].Neighbors {
				if k == i {
					back = true
					break
				}
			}
			if !back {
				return fmt.Errorf("%w: edge %v->%v has no reverse edge", ErrAsymmetricGraph, i, j)
			}
		}
	}

	// delivered is bounded by the agent count and must agree with the
	// per-agent flags
	flagged := uint64(0)
	for _, a := range s.agents {
		if a.EverHeldSeed {
			flagged++
		}
	}
	if s.stats.Delivered > uint64(len(s.agents)) {
		return fmt.Errorf("%w: delivered=%v agents=%v", ErrBadDeliveredCount, s.stats.Delivered, len(s.agents))
	}
	if s.stats.Delivered != flagged {
		return fmt.Errorf("%w: delivered=%v but %v agents flagged", ErrBadDeliveredCount, s.stats.Delivered, flagged)
	}

	return nil
}
