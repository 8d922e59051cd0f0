package main

import (
	"database/sql"
	"fmt"
	"net/http"
	"sync"
	"time"

	model "marathon-sim/driftsim/pkg/datamodel"
	"marathon-sim/driftsim/pkg/sim"
)

// run one complete experiment: tick the simulation for the configured number
// of epochs, stream encounters and per-tick counters to the recorders, and
// write the summary row when done.
func simulate(config *model.Config, investigator string) {

	expName := config.Simulation.ExperimentName

	simulation := sim.New(config, log)
	if err := simulation.Init(config.Simulation.AgentCount, config.Simulation.RoutingMode); err != nil {
		log.Fatalf("cannot initialize simulation: %v", err)
	}

	recording := config.Simulation.Recording
	var exp *model.Experiment
	var encounterChan chan *model.EncounterRecord
	var tickStatsChan chan *model.TickStats
	var recorderBarrier sync.WaitGroup

	if recording {
		// create an experiment and save it in the DB
		exp = &model.Experiment{
			ExperimentName: expName,
			Investigator:   investigator,
			RoutingMode:    config.Simulation.RoutingMode,
			Topology:       config.Simulation.Topology,
			AgentCount:     config.Simulation.AgentCount,
			Seed:           config.TopLevel.Seed,
			DateStarted: sql.NullTime{
				Time:  time.Now().UTC(),
				Valid: true,
			},
		}
		if r := model.DB.Create(&exp); r.Error != nil {
			log.Warn("cannot create experiment.  this is likely because an experiment with the same name already exists")
			log.Warn("Recommendation: change the experiment name to something new, and try again")
			log.Fatalf("cannot create experiment: %v", r.Error)
		}

		encounterChan = make(chan *model.EncounterRecord, 1000)
		tickStatsChan = make(chan *model.TickStats, 1000)
		recorderBarrier.Add(2)
		go model.RecordEncounters(expName, encounterChan, &recorderBarrier)
		go model.RecordTickStats(expName, tickStatsChan, &recorderBarrier)
	}

	// expose the prometheus metrics endpoint for the duration of the run
	collector, err := NewCollector(nil)
	if err != nil {
		log.Warnf("cannot register metrics: %v", err)
	} else {
		addr := fmt.Sprintf("%v:%v", config.WebServer.Host, config.WebServer.MetricsPort)
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		go func() {
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Warnf("metrics server stopped: %v", err)
			}
		}()
		log.Infof("serving metrics on http://%v/metrics", addr)
	}

	// kick off the simulation time reporter
	reporterChan := make(chan float64)
	go simSpeedReporter(reporterChan, config.Simulation.Epochs)

	log.Infof("beginning simulation %v: %v agents, %q routing, %v epochs of %vs",
		expName, config.Simulation.AgentCount, config.Simulation.RoutingMode,
		config.Simulation.Epochs, config.Simulation.TimeStep)

	dt := config.Simulation.TimeStep
	start := time.Now()

	// the delivered-over-time series for the post-run report
	times := make([]float64, 0, config.Simulation.Epochs)
	deliveredSeries := make([]float64, 0, config.Simulation.Epochs)

	epochs := 0
	for epoch := 0; epoch < config.Simulation.Epochs; epoch++ {
		if err := simulation.Step(dt); err != nil {
			log.Fatalf("step failed: %v", err)
		}
		epochs++

		stats := simulation.Stats()
		now := simulation.Clock()

		if recording {
			for _, enc := range simulation.LastEncounters() {
				encounterChan <- &model.EncounterRecord{
					ExperimentName: expName,
					Time:           enc.Time,
					Agent1:         model.AgentId(enc.A + 1),
					Agent2:         model.AgentId(enc.B + 1),
					X:              enc.Pos.X,
					Y:              enc.Pos.Y,
					Z:              enc.Pos.Z,
				}
			}
			tickStatsChan <- &model.TickStats{
				ExperimentName: expName,
				Time:           now,
				Delivered:      stats.Delivered,
				Transmitted:    stats.Transmitted,
				Received:       stats.Received,
				LiveMessages:   len(simulation.Messages()),
			}
		}

		if collector != nil {
			collector.Observe(stats, simulation.AgentCount(), len(simulation.Messages()))
		}

		times = append(times, now)
		deliveredSeries = append(deliveredSeries, float64(stats.Delivered))
		reporterChan <- now

		// everyone has held the seed message and nothing is left to route
		if stats.Delivered == uint64(simulation.AgentCount()) && len(simulation.Messages()) == 0 {
			log.Infof("seed message fully propagated after %v epochs", epochs)
			break
		}
	}
	close(reporterChan)

	stats := simulation.Stats()
	elapsed := time.Since(start)
	log.Infof("simulation done: delivered=%v tx=%v rx=%v in %v",
		stats.Delivered, stats.Transmitted, stats.Received, elapsed.String())

	if recording {
		close(encounterChan)
		close(tickStatsChan)
		recorderBarrier.Wait()

		res := &model.ResultRecord{
			ExperimentName: expName,
			Epochs:         epochs,
			Delivered:      stats.Delivered,
			Transmitted:    stats.Transmitted,
			Received:       stats.Received,
			WallSeconds:    elapsed.Seconds(),
		}
		if r := model.DB.Save(&res); r.Error != nil {
			log.Warnf("cannot save the results: %v", r.Error)
		}

		// finally, note when it is that this experiment finished
		exp.DateFinished.Time = time.Now().UTC()
		exp.DateFinished.Valid = true
		if r := model.DB.Save(&exp); r.Error != nil {
			log.Fatalf("cannot update experiment: %v", r.Error)
		}
	}

	if config.Simulation.ReportFile != "" {
		if err := writeDeliveryReport(times, deliveredSeries, config.Simulation.ReportFile); err != nil {
			log.Warnf("cannot write delivery report: %v", err)
		} else {
			log.Infof("wrote delivery report to %v", config.Simulation.ReportFile)
		}
	}
}

func simSpeedReporter(timeChan chan float64, totalEpochs int) {
	const timeDelta = time.Second * 5

	lastTimeWallClock := time.Now()
	lastTimeSimTime := -1.0
	var td time.Duration
	simulatedEpochs := 0
	for t := range timeChan {
		simulatedEpochs += 1
		if lastTimeSimTime > 0 {
			if td = time.Since(lastTimeWallClock); td > timeDelta {
				perDone := 100.0 * float64(simulatedEpochs) / float64(totalEpochs)
				log.Infof("sim time is %f [simulated %v seconds in %v (wall clock); speedup=%f; %v%% complete]",
					t, t-lastTimeSimTime, td, (t-lastTimeSimTime)/td.Seconds(), perDone)
				lastTimeWallClock = time.Now()
				lastTimeSimTime = t
			}
		} else {
			lastTimeSimTime = t
		}
	}
}
