package infection

import (
	"fmt"
	"math/rand"
	"sort"

	"git.fiblab.net/sim/epidemic/agent"
	"git.fiblab.net/sim/epidemic/mapdata"
	"github.com/samber/lo"
)

type Granularity string

const (
	// agents at the same road node meet
	GRANULARITY_NODE Granularity = "node"
	// agents inside the same building meet, agents in transit meet nobody
	GRANULARITY_BUILDING Granularity = "building"
)

// Contact exposes a susceptible agent to every infectious agent sharing its
// node or building. Each contact is one roll, in origin id order; the first
// success is the origin.
type Contact struct {
	Params
	Granularity Granularity

	rng        *rand.Rand
	infectious infectious
	byBuilding map[*mapdata.Building][]*agent.Agent
}

func NewContact(params Params, granularity Granularity, rng *rand.Rand) (*Contact, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	switch granularity {
	case "":
		granularity = GRANULARITY_NODE
	case GRANULARITY_NODE, GRANULARITY_BUILDING:
	default:
		return nil, fmt.Errorf("%w: unknown contact granularity %q", ErrBadParams, granularity)
	}
	return &Contact{Params: params, Granularity: granularity, rng: rng}, nil
}

func (c *Contact) Snapshot(agents []*agent.Agent) {
	c.infectious = snapshot(agents)
	c.byBuilding = make(map[*mapdata.Building][]*agent.Agent)
	if c.Granularity != GRANULARITY_BUILDING {
		return
	}
	for _, a := range agents {
		if _, ok := c.infectious[a.ID]; ok && a.Building != nil {
			c.byBuilding[a.Building] = append(c.byBuilding[a.Building], a)
		}
	}
}

// contacts returns the infectious agents co-located with a, ordered by id.
func (c *Contact) contacts(a *agent.Agent) []*agent.Agent {
	var out []*agent.Agent
	switch c.Granularity {
	case GRANULARITY_BUILDING:
		if a.Building == nil {
			return nil
		}
		out = c.byBuilding[a.Building]
	default:
		if a.Node == nil {
			return nil
		}
		out = lo.FilterMap(a.Node.Occupants(), func(id int, _ int) (*agent.Agent, bool) {
			origin, ok := c.infectious[id]
			return origin, ok
		})
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	}
	return out
}

func (c *Contact) Infect(a *agent.Agent, _ float64, currentStep int64) *agent.Infection {
	if a.Status != agent.Susceptible {
		return nil
	}
	p := c.ExposureProbability(a)
	for _, origin := range c.contacts(a) {
		if origin == a {
			continue
		}
		if c.rng.Float64() < p {
			log.Debugf("agent %d exposed by agent %d at %s", a.ID, origin.ID, a.Location())
			return agent.NewInfection(origin, a, currentStep, c.Dormant, c.Recovery)
		}
	}
	return nil
}
