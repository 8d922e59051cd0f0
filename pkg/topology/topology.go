// Package topology builds the static graphs that agents walk on.
package topology

import (
	"errors"
	"fmt"
	model "marathon-sim/driftsim/pkg/datamodel"
	"strings"

	logger "github.com/sirupsen/logrus"
)

// a Builder is a thing that produces a static mobility graph for a node
// count and the simulation config
type Builder interface {
	// initializes the builder
	Init(logger *logger.Logger)

	// builds a graph with `n` nodes.  The neighbor relation of the result
	// must be symmetric.
	Build(n int, config *model.Config) []*model.GraphNode

	// gets the builder name
	GetBuilderName() string
}

// a map of all registered topology builders
var BuilderStore map[string]Builder

// initialize the builders; new builders need to be added here
func BuilderInit(log *logger.Logger) {
	BuilderStore = make(map[string]Builder)

	// populate the BuilderStore with all of the available builders
	BuilderStore["knn"] = &KNNBuilder{}

	// initialize each builder
	for name, b := range BuilderStore {
		log.Debugf("initializing topology builder '%v'", name)
		b.Init(log)
	}
}

func GetInstalledBuilders() string {
	buildersArr := make([]string, 0, len(BuilderStore))
	for k := range BuilderStore {
		buildersArr = append(buildersArr, k)
	}
	return strings.Join(buildersArr, ",")
}

func PrintBuilders() {
	fmt.Println("installed topology builders:")
	for b := range BuilderStore {
		fmt.Println("\t" + b)
	}
}

func GetBuilderByName(name string) (Builder, error) {
	b, ok := BuilderStore[name]
	if !ok {
		return nil, errors.New("topology builder not found")
	}
	return b, nil
}
