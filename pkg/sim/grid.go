package sim

import (
	"math"

	model "marathon-sim/driftsim/pkg/datamodel"
)

// integer cell coordinates of the uniform spatial grid
type cellKey struct {
	gx, gy, gz int
}

func cellFor(p model.Vec3, cellSize float64) cellKey {
	return cellKey{
		gx: int(math.Floor(p.X / cellSize)),
		gy: int(math.Floor(p.Y / cellSize)),
		gz: int(math.Floor(p.Z / cellSize)),
	}
}

// findEncounters returns every unordered pair of agents within commRange of
// each other, using a uniform grid with cell size equal to the range.  The
// grid is rebuilt from scratch on every call; recomputation is cheaper than
// the bookkeeping an incremental structure would need at these populations.
//
// Each agent inspects its own cell and the 26 adjacent cells, and only pairs
// with a higher-indexed agent, so every pair is considered exactly once per
// tick.  Traversal is by ascending agent index and a fixed neighborhood
// order, which makes the output order deterministic for a given agent
// layout.  With roughly uniform agent density the cost is near linear; a
// crowd packed into one cell degrades toward quadratic within that cell,
// which is an accepted worst case.
func findEncounters(agents []*model.Agent, commRange float64, now float64) []model.Encounter {
	if len(agents) == 0 || commRange <= 0 {
		return nil
	}

	grid := make(map[cellKey][]int, len(agents)*2)
	for i, a := range agents {
		key := cellFor(a.Pos, commRange)
		grid[key] = append(grid[key], i)
	}

	encounters := make([]model.Encounter, 0, len(agents)*4)
	commRange2 := commRange * commRange

	for i, ai := range agents {
		ci := cellFor(ai.Pos, commRange)
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				for dz := -1; dz <= 1; dz++ {
					ck := cellKey{gx: ci.gx + dx, gy: ci.gy + dy, gz: ci.gz + dz}
					for _, idx := range grid[ck] {
						if idx <= i {
							continue // ensure each pair at most once per step
						}
						aj := agents[idx]
						if model.Dist2(ai.Pos, aj.Pos) <= commRange2 {
							encounters = append(encounters, model.Encounter{
								A:    i,
								B:    idx,
								Time: now,
								Pos:  model.Midpoint(ai.Pos, aj.Pos),
							})
						}
					}
				}
			}
		}
	}

	return encounters
}
