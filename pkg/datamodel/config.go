/**
 * configuration for a simulation run, includes default values for all args
 *
 */

package datamodel

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

type Config struct {
	TopLevel   TopLevelConfig   `json:"top_level" yaml:"top_level"`
	WebServer  WebServerConfig  `json:"web_server" yaml:"web_server"`
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`
}

type TopLevelConfig struct {
	// top level
	Log        string `json:"log" yaml:"log"`
	Database   string `json:"db" yaml:"db"`
	DBFile     string `json:"dbfile" yaml:"dbfile"`
	TimeFormat string `json:"time_format" yaml:"time_format"`
	Seed       int    `json:"seed" yaml:"seed"`
}

type WebServerConfig struct {
	// web server
	Port        int  `json:"port" yaml:"port"`
	Host        string `json:"host" yaml:"host"`
	MetricsPort int  `json:"metrics_port" yaml:"metrics_port"`
}

type SimulationConfig struct {
	// simulation

	// experiment name must be unique for each run
	ExperimentName string `json:"experiment_name" yaml:"experiment_name"`

	AgentCount    int     `json:"agent_count" yaml:"agent_count"`
	RoutingMode   string  `json:"routing_mode" yaml:"routing_mode"`
	Topology      string  `json:"topology" yaml:"topology"`
	NeighborCount int     `json:"neighbor_count" yaml:"neighbor_count"`
	WorldExtent   float64 `json:"world_extent" yaml:"world_extent"`
	CommRange     float64 `json:"comm_range" yaml:"comm_range"`
	AgentSpeed    float64 `json:"agent_speed" yaml:"agent_speed"`
	TimeStep      float64 `json:"time_step" yaml:"time_step"`
	Epochs        int     `json:"epochs" yaml:"epochs"`

	// whether the ledger cleanup removes a message once its destination
	// holds a copy.  True matches the carry-forward mechanism; false lets
	// an epidemic message keep spreading after delivery.
	RemoveDeliveredMessages bool `json:"remove_delivered_messages" yaml:"remove_delivered_messages"`

	ReportFile string `json:"report_file" yaml:"report_file"`
	Recording  bool   `json:"recording" yaml:"recording"`
}

/**
initializes the configuration to default values
*/
func MakeDefaultConfig() *Config {

	DefaultConfig := new(Config)

	// generate a new experiment name using a UUID fragment
	DefaultConfig.Simulation.ExperimentName = "TEST-" + uuid.NewString()[:10]

	DefaultConfig.TopLevel.Log = "DEBUG"
	DefaultConfig.TopLevel.Database = "sqlite"
	DefaultConfig.TopLevel.DBFile = "driftsim.db"
	DefaultConfig.TopLevel.TimeFormat = "2006-01-02 15:04:05.000"
	DefaultConfig.TopLevel.Seed = 12345
	DefaultConfig.WebServer.Port = 8080
	DefaultConfig.WebServer.Host = "localhost"
	DefaultConfig.WebServer.MetricsPort = 9090
	DefaultConfig.Simulation.AgentCount = 50
	DefaultConfig.Simulation.RoutingMode = "epidemic"
	DefaultConfig.Simulation.Topology = "knn"
	DefaultConfig.Simulation.NeighborCount = 3
	DefaultConfig.Simulation.WorldExtent = 1500.0
	DefaultConfig.Simulation.CommRange = 80.0
	DefaultConfig.Simulation.AgentSpeed = 150.0
	DefaultConfig.Simulation.TimeStep = 0.1
	DefaultConfig.Simulation.Epochs = 10000
	DefaultConfig.Simulation.RemoveDeliveredMessages = true
	DefaultConfig.Simulation.ReportFile = ""
	DefaultConfig.Simulation.Recording = true

	return DefaultConfig
}

// Load a config file on top of the defaults.  The format is chosen by the
// file extension: .yaml/.yml or .json.
func LoadConfig(path string) (*Config, error) {
	config := MakeDefaultConfig()

	filedata, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch {
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		err = yaml.Unmarshal(filedata, config)
	case strings.HasSuffix(path, ".json"):
		err = json.Unmarshal(filedata, config)
	default:
		err = fmt.Errorf("unrecognized config format: %v", path)
	}
	if err != nil {
		return nil, err
	}
	return config, nil
}
