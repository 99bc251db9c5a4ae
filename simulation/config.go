package simulation

import (
	"errors"
	"fmt"

	"git.fiblab.net/sim/epidemic/agent"
)

var ErrBadConfig = errors.New("invalid simulation config")

type Config struct {
	AgentNum     int
	ThreadNumber int
	// fraction of agents infected at step 0, in [0,1]
	InfectedAgentFraction float64
	// percent of vaccinated agents, in [0,100]
	VaccinationPercentage float64
	// steps between two report flushes
	ReportInterval int
	// simulated seconds per step
	StepLength int64
	Seed       int64
	// generated when empty
	RunID string

	// infection durations of the initially infected agents, seconds
	Dormant  int64
	Recovery int64
	Symptoms agent.SymptomParams

	// m/s
	AgentSpeed float64
	// building types agents live in
	HomeTypes []string
	// steps between two progress log lines, 0 disables
	HeartbeatInterval int
}

func DefaultConfig() Config {
	return Config{
		ThreadNumber:      1,
		ReportInterval:    60,
		StepLength:        60,
		Dormant:           agent.DEFAULT_DORMANT,
		Recovery:          agent.DEFAULT_RECOVERY,
		Symptoms:          agent.DefaultSymptomParams(),
		AgentSpeed:        agent.DEFAULT_SPEED,
		HomeTypes:         []string{"house", "residential", "apartments"},
		HeartbeatInterval: 60,
	}
}

func (c *Config) Validate() error {
	switch {
	case c.AgentNum <= 0:
		return fmt.Errorf("%w: numberOfAgents=%d", ErrBadConfig, c.AgentNum)
	case c.ThreadNumber <= 0:
		return fmt.Errorf("%w: threadNumber=%d", ErrBadConfig, c.ThreadNumber)
	case c.InfectedAgentFraction < 0 || c.InfectedAgentFraction > 1:
		return fmt.Errorf("%w: infectedAgent=%v not in [0,1]", ErrBadConfig, c.InfectedAgentFraction)
	case c.VaccinationPercentage < 0 || c.VaccinationPercentage > 100:
		return fmt.Errorf("%w: vaccinationPercentage=%v not in [0,100]", ErrBadConfig, c.VaccinationPercentage)
	case c.ReportInterval <= 0:
		return fmt.Errorf("%w: reportInterval=%d", ErrBadConfig, c.ReportInterval)
	case c.StepLength <= 0:
		return fmt.Errorf("%w: stepLength=%d", ErrBadConfig, c.StepLength)
	case c.Dormant < 0 || c.Recovery < 0:
		return fmt.Errorf("%w: dormant=%d recovery=%d", ErrBadConfig, c.Dormant, c.Recovery)
	case c.AgentSpeed <= 0:
		return fmt.Errorf("%w: agentSpeed=%v", ErrBadConfig, c.AgentSpeed)
	case len(c.HomeTypes) == 0:
		return fmt.Errorf("%w: no home building type", ErrBadConfig)
	}
	return nil
}
