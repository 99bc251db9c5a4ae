package infection

import (
	"fmt"
	"math/rand"

	"git.fiblab.net/sim/epidemic/agent"
	"github.com/samber/lo"
)

// Proximity exposes a susceptible agent to every infectious agent within
// Radius meters of its position. Rolls follow origin id order.
type Proximity struct {
	Params
	Radius float64

	rng        *rand.Rand
	infectious []*agent.Agent
}

func NewProximity(params Params, radius float64, rng *rand.Rand) (*Proximity, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if radius < 0 {
		return nil, fmt.Errorf("%w: negative contact radius %v", ErrBadParams, radius)
	}
	return &Proximity{Params: params, Radius: radius, rng: rng}, nil
}

func (p *Proximity) Snapshot(agents []*agent.Agent) {
	p.infectious = lo.Filter(agents, func(a *agent.Agent, _ int) bool {
		return a.Status == agent.Infectious
	})
}

func (p *Proximity) Infect(a *agent.Agent, _ float64, currentStep int64) *agent.Infection {
	if a.Status != agent.Susceptible {
		return nil
	}
	prob := p.ExposureProbability(a)
	for _, origin := range p.infectious {
		if origin == a || origin.Position.Distance(a.Position) > p.Radius {
			continue
		}
		if p.rng.Float64() < prob {
			return agent.NewInfection(origin, a, currentStep, p.Dormant, p.Recovery)
		}
	}
	return nil
}
