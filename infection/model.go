package infection

import (
	"errors"
	"fmt"

	"git.fiblab.net/sim/epidemic/agent"
)

var ErrBadParams = errors.New("invalid infection parameters")

// Model decides who gets exposed each step. Snapshot is called once per
// step before Infect is called for every agent in id order.
type Model interface {
	Snapshot(agents []*agent.Agent)
	// Infect returns the new infection of a, or nil.
	Infect(a *agent.Agent, stepLength float64, currentStep int64) *agent.Infection
}

// Params are shared by every policy.
type Params struct {
	// chance of exposure per contact and step
	Probability float64
	// fraction of Probability removed for a vaccinated target, 1 means full protection
	VaccineEfficacy float64
	// seconds
	Dormant  int64
	Recovery int64
}

func (p Params) Validate() error {
	if p.Probability < 0 || p.Probability > 1 {
		return fmt.Errorf("%w: probability %v not in [0,1]", ErrBadParams, p.Probability)
	}
	if p.VaccineEfficacy < 0 || p.VaccineEfficacy > 1 {
		return fmt.Errorf("%w: vaccine efficacy %v not in [0,1]", ErrBadParams, p.VaccineEfficacy)
	}
	if p.Dormant < 0 || p.Recovery < 0 {
		return fmt.Errorf("%w: negative duration dormant=%d recovery=%d", ErrBadParams, p.Dormant, p.Recovery)
	}
	return nil
}

// ExposureProbability is the per-contact probability for target.
func (p Params) ExposureProbability(target *agent.Agent) float64 {
	if target.Vaccinated {
		return p.Probability * (1 - p.VaccineEfficacy)
	}
	return p.Probability
}

// infectious keeps the infectious agents of a step by id.
type infectious map[int]*agent.Agent

func snapshot(agents []*agent.Agent) infectious {
	s := make(infectious)
	for _, a := range agents {
		if a.Status == agent.Infectious {
			s[a.ID] = a
		}
	}
	return s
}
