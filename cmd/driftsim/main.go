package main

import (
	"fmt"
	"os"
	"os/user"

	model "marathon-sim/driftsim/pkg/datamodel"
	logics "marathon-sim/driftsim/pkg/logic"
	"marathon-sim/driftsim/pkg/topology"

	"github.com/akamensky/argparse"
	logger "github.com/sirupsen/logrus"
)

// create global log variable
var log *logger.Logger

func main() {

	parser := argparse.NewParser("driftsim", "store-carry-forward DTN simulator")
	runType := parser.Selector("r", "run", []string{"sim", "web", "list"}, &argparse.Options{
		Required: true,
		Help:     "run type",
	})
	configPath := parser.String("c", "config", &argparse.Options{
		Help: "path to a json or yaml config file; defaults apply when omitted",
	})
	agentCount := parser.Int("n", "agents", &argparse.Options{
		Default: 0,
		Help:    "override the configured agent count",
	})
	routingMode := parser.String("m", "mode", &argparse.Options{
		Help: "override the configured routing mode (carryonly, epidemic)",
	})

	if err := parser.Parse(os.Args); err != nil {
		fmt.Fprint(os.Stderr, parser.Usage(err))
		os.Exit(1)
	}

	// load the configuration, defaults first
	config := model.MakeDefaultConfig()
	if *configPath != "" {
		var err error
		config, err = model.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	if *agentCount > 0 {
		config.Simulation.AgentCount = *agentCount
	}
	if *routingMode != "" {
		config.Simulation.RoutingMode = *routingMode
	}

	// set up the logger
	log = logger.New()
	level, err := logger.ParseLevel(config.TopLevel.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log.SetLevel(level)
	customFormatter := new(logger.TextFormatter)
	customFormatter.TimestampFormat = config.TopLevel.TimeFormat
	customFormatter.FullTimestamp = true
	log.SetFormatter(UTCFormatter{customFormatter})

	// set up PRNG
	model.Seed(int64(config.TopLevel.Seed))
	log.Infof("random seed is %v", config.TopLevel.Seed)
	log.Infof("logging at log level %v; all times in UTC", config.TopLevel.Log)

	// initialize the registries
	topology.BuilderInit(log)
	logics.LogicEnginesInit(log, config)

	username := "unknown"
	if u, err := user.Current(); err == nil {
		username = u.Username
	}

	switch *runType {
	case "sim":
		// initialize the database for recording
		if config.Simulation.Recording {
			if err := model.Init(log, config); err != nil {
				log.Fatalf("cannot initialize database: %v", err)
			}
		}
		simulate(config, username)

	case "web":
		webService(config)

	case "list":
		fmt.Println("installed logic engines:")
		for _, name := range logics.GetInstalledLogicEngines() {
			fmt.Println("\t" + name)
		}
		topology.PrintBuilders()
	}

	log.Info(" ... ending ... ")
}
