package topology

import (
	"testing"

	model "marathon-sim/driftsim/pkg/datamodel"

	logger "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *model.Config {
	config := model.MakeDefaultConfig()
	config.Simulation.WorldExtent = 1000.0
	config.Simulation.NeighborCount = 3
	return config
}

func quietLogger() *logger.Logger {
	log := logger.New()
	log.SetLevel(logger.ErrorLevel)
	return log
}

func TestBuilderRegistry(t *testing.T) {
	BuilderInit(quietLogger())

	b, err := GetBuilderByName("knn")
	require.NoError(t, err)
	assert.Equal(t, "knn", b.GetBuilderName())

	_, err = GetBuilderByName("voronoi")
	assert.Error(t, err)

	assert.Contains(t, GetInstalledBuilders(), "knn")
}

func TestKNNBuild(t *testing.T) {
	BuilderInit(quietLogger())
	model.Seed(1234)
	config := testConfig()

	b, err := GetBuilderByName("knn")
	require.NoError(t, err)
	nodes := b.Build(60, config)
	require.Len(t, nodes, 60)

	t.Run("positions inside the cube", func(t *testing.T) {
		for _, n := range nodes {
			assert.GreaterOrEqual(t, n.Pos.X, 0.0)
			assert.LessOrEqual(t, n.Pos.X, config.Simulation.WorldExtent)
			assert.GreaterOrEqual(t, n.Pos.Y, 0.0)
			assert.LessOrEqual(t, n.Pos.Y, config.Simulation.WorldExtent)
			assert.GreaterOrEqual(t, n.Pos.Z, 0.0)
			assert.LessOrEqual(t, n.Pos.Z, config.Simulation.WorldExtent)
		}
	})

	t.Run("neighbor relation is symmetric", func(t *testing.T) {
		for i, n := range nodes {
			for _, j := range n.Neighbors {
				require.Contains(t, nodes[j].Neighbors, i, "edge %v->%v has no reverse", i, j)
			}
		}
	})

	t.Run("every node links to at least k neighbors", func(t *testing.T) {
		// each node asks for k links; reverse edges can only add more
		for i, n := range nodes {
			assert.GreaterOrEqual(t, len(n.Neighbors), config.Simulation.NeighborCount, "node %v", i)
		}
	})

	t.Run("no self loops or duplicates", func(t *testing.T) {
		for i, n := range nodes {
			seen := make(map[int]bool)
			for _, j := range n.Neighbors {
				assert.NotEqual(t, i, j)
				assert.False(t, seen[j], "node %v lists neighbor %v twice", i, j)
				seen[j] = true
			}
		}
	})
}

func TestKNNDegenerateSizes(t *testing.T) {
	BuilderInit(quietLogger())
	model.Seed(5)
	config := testConfig()
	b, err := GetBuilderByName("knn")
	require.NoError(t, err)

	t.Run("zero nodes", func(t *testing.T) {
		assert.Empty(t, b.Build(0, config))
	})

	t.Run("one node has no neighbors", func(t *testing.T) {
		nodes := b.Build(1, config)
		require.Len(t, nodes, 1)
		assert.Empty(t, nodes[0].Neighbors)
	})

	t.Run("two nodes link to each other", func(t *testing.T) {
		nodes := b.Build(2, config)
		require.Len(t, nodes, 2)
		assert.Equal(t, []int{1}, nodes[0].Neighbors)
		assert.Equal(t, []int{0}, nodes[1].Neighbors)
	})
}
