package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"git.fiblab.net/sim/epidemic/agent"
	"git.fiblab.net/sim/epidemic/infection"
	"git.fiblab.net/sim/epidemic/simulation"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

var ErrMissingKey = errors.New("missing required attributes in config file")

// keys that must be present in the file
var REQUIRED_KEYS = []string{
	"mapPath",
	"jobsFile",
	"numberOfAgents",
	"threadNumber",
	"infectedAgent",
	"vaccinationPercentage",
	"reportInterval",
}

const (
	// JSON/BSON nodes, roads and buildings
	MAP_FORMAT_RAW = "raw"
	// city map protobuf, lanes, junctions and aois
	MAP_FORMAT_PB = "pb"
)

type ReportConfig struct {
	// {db}.{collection prefix}, empty disables
	Mongo string `yaml:"mongo"`
	// empty bucket disables
	S3Bucket string `yaml:"s3Bucket"`
	S3Prefix string `yaml:"s3Prefix"`
	S3Region string `yaml:"s3Region"`
}

type Config struct {
	// {fspath} or {db}.{col}
	MapPath            string `yaml:"mapPath"`
	MapFormat          string `yaml:"mapFormat"`
	JobsFile           string `yaml:"jobsFile"`
	BuildingConfigPath string `yaml:"buildingConfigPath"`
	GridHeight         int    `yaml:"gridHeight"`
	GridWidth          int    `yaml:"gridWidth"`

	NumberOfAgents        int     `yaml:"numberOfAgents"`
	ThreadNumber          int     `yaml:"threadNumber"`
	InfectedAgent         float64 `yaml:"infectedAgent"`
	VaccinationPercentage float64 `yaml:"vaccinationPercentage"`
	ReportInterval        int     `yaml:"reportInterval"`
	StepLength            int64   `yaml:"stepLength"`
	Seed                  int64   `yaml:"seed"`
	HeartbeatInterval     int     `yaml:"heartbeatInterval"`

	Dormant             int64   `yaml:"dormant"`
	Recovery            int64   `yaml:"recovery"`
	ExposureProbability float64 `yaml:"exposureProbability"`
	VaccineEfficacy     float64 `yaml:"vaccineEfficacy"`
	// node or building
	ContactGranularity string `yaml:"contactGranularity"`
	// meters, a positive radius selects the proximity policy
	ContactRadius   float64 `yaml:"contactRadius"`
	SymptomaticRate float64 `yaml:"symptomaticRate"`
	SevereRate      float64 `yaml:"severeRate"`

	AgentSpeed float64  `yaml:"agentSpeed"`
	HomeTypes  []string `yaml:"homeTypes"`

	Report ReportConfig `yaml:"report"`
}

func Default() Config {
	sim := simulation.DefaultConfig()
	return Config{
		MapFormat:           MAP_FORMAT_RAW,
		GridHeight:          100,
		GridWidth:           100,
		StepLength:          sim.StepLength,
		HeartbeatInterval:   sim.HeartbeatInterval,
		Dormant:             sim.Dormant,
		Recovery:            sim.Recovery,
		ExposureProbability: 0.01,
		VaccineEfficacy:     0.9,
		ContactGranularity:  string(infection.GRANULARITY_NODE),
		SymptomaticRate:     sim.Symptoms.SymptomaticRate,
		SevereRate:          sim.Symptoms.SevereRate,
		AgentSpeed:          sim.AgentSpeed,
		HomeTypes:           sim.HomeTypes,
	}
}

// Parse decodes a YAML document over the defaults. Every missing required
// key is reported at once.
func Parse(data []byte) (*Config, error) {
	keys := make(map[string]any)
	if err := yaml.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	missing := lo.Filter(REQUIRED_KEYS, func(k string, _ int) bool {
		_, ok := keys[k]
		return !ok
	})
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingKey, strings.Join(missing, " "))
	}
	c := Default()
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &c, nil
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Infof("config loaded from %s", path)
	return c, nil
}

func (c *Config) Simulation() simulation.Config {
	return simulation.Config{
		AgentNum:              c.NumberOfAgents,
		ThreadNumber:          c.ThreadNumber,
		InfectedAgentFraction: c.InfectedAgent,
		VaccinationPercentage: c.VaccinationPercentage,
		ReportInterval:        c.ReportInterval,
		StepLength:            c.StepLength,
		Seed:                  c.Seed,
		Dormant:               c.Dormant,
		Recovery:              c.Recovery,
		Symptoms: agent.SymptomParams{
			SymptomaticRate: c.SymptomaticRate,
			SevereRate:      c.SevereRate,
		},
		AgentSpeed:        c.AgentSpeed,
		HomeTypes:         c.HomeTypes,
		HeartbeatInterval: c.HeartbeatInterval,
	}
}

func (c *Config) InfectionParams() infection.Params {
	return infection.Params{
		Probability:     c.ExposureProbability,
		VaccineEfficacy: c.VaccineEfficacy,
		Dormant:         c.Dormant,
		Recovery:        c.Recovery,
	}
}
