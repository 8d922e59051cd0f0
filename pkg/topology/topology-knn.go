package topology

import (
	model "marathon-sim/driftsim/pkg/datamodel"
	"sort"

	logger "github.com/sirupsen/logrus"
)

// KNNBuilder scatters nodes uniformly at random inside a bounded cube and
// links each node to its k nearest neighbors.  Edges are added in both
// directions, so the neighbor relation is symmetric, but the resulting
// graph is not guaranteed to be connected: two well-separated clusters can
// each satisfy their k-nearest links internally.  Callers must tolerate a
// component that some agents never leave.
type KNNBuilder struct {
	log *logger.Logger
}

func (kb *KNNBuilder) Init(log *logger.Logger) {
	kb.log = log
}

func (kb *KNNBuilder) GetBuilderName() string {
	return "knn"
}

type distIdx struct {
	d2 float64
	j  int
}

func (kb *KNNBuilder) Build(n int, config *model.Config) []*model.GraphNode {
	extent := config.Simulation.WorldExtent
	k := config.Simulation.NeighborCount

	nodes := make([]*model.GraphNode, n)
	for i := range nodes {
		nodes[i] = &model.GraphNode{
			Pos: model.Vec3{
				X: model.Float64() * extent,
				Y: model.Float64() * extent,
				Z: model.Float64() * extent,
			},
		}
	}

	// with fewer than two nodes there is nothing to link; agents placed on
	// such a graph simply never move
	if n <= 1 {
		return nodes
	}

	for i := range nodes {
		dists := make([]distIdx, 0, n-1)
		for j := range nodes {
			if j == i {
				continue
			}
			dists = append(dists, distIdx{
				d2: model.Dist2(nodes[i].Pos, nodes[j].Pos),
				j:  j,
			})
		}
		sort.Slice(dists, func(a, b int) bool { return dists[a].d2 < dists[b].d2 })

		limit := k
		if limit > len(dists) {
			limit = len(dists)
		}
		for c := 0; c < limit; c++ {
			j := dists[c].j
			// add undirected edge i <-> j (avoid obvious duplicates)
			if !hasNeighbor(nodes[i], j) {
				nodes[i].Neighbors = append(nodes[i].Neighbors, j)
			}
			if !hasNeighbor(nodes[j], i) {
				nodes[j].Neighbors = append(nodes[j].Neighbors, i)
			}
		}
	}

	return nodes
}

func hasNeighbor(n *model.GraphNode, j int) bool {
	for _, nb := range n.Neighbors {
		if nb == j {
			return true
		}
	}
	return false
}
