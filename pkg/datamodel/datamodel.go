// This package defines the data model for driftsim.
// Persistent tables use gorm (https://gorm.io/) an ORM model for Golang.
package datamodel

import (
	"database/sql"
	"errors"
	"strconv"
	"sync"

	logger "github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite" // Sqlite driver based on GGO

	"gorm.io/gorm"
)

// a reference to the DB GORM object
var DB *gorm.DB

// returned by Init when the configured database type is not sqlite or mysql
var ErrUnsupportedDatabase = errors.New("invalid or unsupported database type")

// our logger
var log *logger.Logger

// an agent identifier (basically, an int).  Agent ids are 1-based; index 0
// into the agent slice is agent id 1.
type AgentId int

// return a string of the agentid
func AgentIdString(i AgentId) string {
	return strconv.Itoa(int(i))
}

// return an int of the agentid
func AgentIdInt(i AgentId) int {
	return int(i)
}

// a node of the static mobility graph.  Neighbors is an ordered list of node
// indices; the builder keeps the relation symmetric.
type GraphNode struct {
	Pos       Vec3
	Neighbors []int
}

// a message identity.  Two custody entries refer to the same message iff
// their keys are equal.
type MessageKey struct {
	Src AgentId
	Dst AgentId
	Seq uint32
}

// a message in flight.  TTL is carried but unused (0 means "no expiry");
// Hops counts successful transfers of this message across all carriers.
type Message struct {
	Src  AgentId
	Dst  AgentId
	Seq  uint32
	TTL  uint32
	Hops uint32
}

// the identity triple of the message
func (m *Message) Key() MessageKey {
	return MessageKey{Src: m.Src, Dst: m.Dst, Seq: m.Seq}
}

// cumulative routing counters for one simulation session.  Delivered counts
// distinct agents that have ever held the seed message, not distinct
// deliveries; it never decreases.  Duplicates is reserved.
type RoutingStats struct {
	Delivered   uint64
	Transmitted uint64
	Received    uint64
	Duplicates  uint64
}

// a mobile agent walking the graph.  Custody maps message identity to the
// ledger's entry for that message, so routing never scans the ledger to
// resolve a custody entry.
type Agent struct {
	Id           AgentId
	CurrentNode  int
	TargetNode   int
	Progress     float64
	Pos          Vec3
	Custody      map[MessageKey]*Message
	EverHeldSeed bool
}

// does the agent hold this message?
func (a *Agent) Holds(k MessageKey) bool {
	_, ok := a.Custody[k]
	return ok
}

// store a message in the agent's custody
func (a *Agent) Hold(m *Message) {
	a.Custody[m.Key()] = m
}

// remove a message from the agent's custody
func (a *Agent) Drop(k MessageKey) {
	delete(a.Custody, k)
}

// a pair of agents found within communication range during one tick.  A and
// B are agent indices with A < B; Pos is the midpoint of the two agents at
// detection time.
type Encounter struct {
	A    int
	B    int
	Time float64
	Pos  Vec3
}

// An `Experiment` describes one simulation session: its configuration knobs
// and when it ran.
type Experiment struct {
	ExperimentName string `gorm:"primaryKey"`
	Investigator   string
	RoutingMode    string
	Topology       string
	AgentCount     int
	Seed           int
	DateStarted    sql.NullTime
	DateFinished   sql.NullTime
}

// this DB table stores every encounter the proximity index produced
type EncounterRecord struct {
	ExperimentName string  `gorm:"primaryKey;index:exptime,priority:1"`
	Time           float64 `gorm:"primaryKey;index:exptime,priority:2"`
	Agent1         AgentId `gorm:"primaryKey"`
	Agent2         AgentId `gorm:"primaryKey"`
	X              float64
	Y              float64
	Z              float64
}

// this DB table stores the cumulative counters at the end of each tick
type TickStats struct {
	ExperimentName string  `gorm:"primaryKey,priority:1"`
	Time           float64 `gorm:"primaryKey,priority:2"`
	Delivered      uint64
	Transmitted    uint64
	Received       uint64
	LiveMessages   int
}

// this DB table just lists the results of an experiment
type ResultRecord struct {
	ExperimentName string `gorm:"primaryKey"`
	Epochs         int
	Delivered      uint64
	Transmitted    uint64
	Received       uint64
	WallSeconds    float64
}

// Initialize the database layer.  The database type and file (or DSN) come
// from the config; sqlite and mysql are supported, as the recording tables
// are plain gorm models.
func Init(mainLogger *logger.Logger, config *Config) error {

	dbType := config.TopLevel.Database
	dbFileOrDSN := config.TopLevel.DBFile

	var err error

	log = mainLogger

	switch dbType {
	case "sqlite":
		DB, err = gorm.Open(sqlite.Open(dbFileOrDSN), &gorm.Config{
			SkipDefaultTransaction: true,
			PrepareStmt:            true,
		})
	case "mysql":
		DB, err = gorm.Open(mysql.Open(dbFileOrDSN), &gorm.Config{
			SkipDefaultTransaction: true,
			PrepareStmt:            true,
		})
	default:
		return ErrUnsupportedDatabase
	}

	if err != nil {
		return err
	}
	log.Infof("using database '%v'", dbFileOrDSN)

	// a list of blank structs
	tablesToMigrate := []interface{}{
		&Experiment{},
		&EncounterRecord{},
		&TickStats{},
		&ResultRecord{},
	}

	for _, table := range tablesToMigrate {
		if err := DB.AutoMigrate(table); err != nil {
			return err
		}
	}
	return nil
}

// Record encounters.  This function should be started as a goroutine.  It
// waits for incoming encounters and records them in the database, in batches
// for efficiency
func RecordEncounters(experimentName string, encounterChan chan *EncounterRecord, barrier *sync.WaitGroup) {
	const batchsize = 1024 // an arbitrary choice
	encounters := make([]*EncounterRecord, 0, batchsize)

	for encounter := range encounterChan {
		encounters = append(encounters, encounter)

		// if we've reached our batch size, send them to the DB
		if len(encounters) >= batchsize {
			if r := DB.Create(&encounters); r.Error != nil {
				log.Warnf("failed to record encounters: %v", r.Error)
			}
			encounters = nil // reset the buffer
		}
	}

	// if we get here, that means that the encounterChan has been closed.

	// if we have any left over in the queue, flush them to the DB
	if len(encounters) > 0 {
		if r := DB.Create(&encounters); r.Error != nil {
			log.Warnf("failed to record encounters: %v", r.Error)
		}
	}

	barrier.Done()
}

// Record per-tick counters.  This function should be started as a goroutine.
// It waits for incoming tick stats and records them in the database, in
// batches for efficiency.
func RecordTickStats(experimentName string, statsChan chan *TickStats, barrier *sync.WaitGroup) {
	const batchsize = 1024 // an arbitrary choice
	stats := make([]*TickStats, 0, batchsize)

	for ts := range statsChan {
		stats = append(stats, ts)

		if len(stats) >= batchsize {
			if r := DB.Create(&stats); r.Error != nil {
				log.Warnf("failed to record tick stats: %v", r.Error)
			}
			stats = nil
		}
	}

	if len(stats) > 0 {
		if r := DB.Create(&stats); r.Error != nil {
			log.Warnf("failed to record tick stats: %v", r.Error)
		}
	}

	barrier.Done()
}
