package simulation

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"git.fiblab.net/sim/epidemic/agent"
	"git.fiblab.net/sim/epidemic/mapdata"
	"github.com/samber/lo"
)

var (
	ErrNoHome       = errors.New("no home building in the city")
	ErrNoPopulation = errors.New("job classes have no population proportion")
)

// classCounts splits n agents by population proportion. Rounding leftovers go
// one by one to the classes in declaration order.
func classCounts(classes []*agent.JobClass, n int) ([]int, error) {
	total := lo.SumBy(classes, func(c *agent.JobClass) float64 {
		return math.Max(c.PopulationProportion, 0)
	})
	if total <= 0 {
		return nil, ErrNoPopulation
	}
	counts := make([]int, len(classes))
	assigned := 0
	for i, c := range classes {
		if c.PopulationProportion <= 0 {
			continue
		}
		counts[i] = int(math.Floor(c.PopulationProportion / total * float64(n)))
		assigned += counts[i]
	}
	for i := 0; assigned < n; i = (i + 1) % len(classes) {
		if classes[i].PopulationProportion > 0 {
			counts[i]++
			assigned++
		}
	}
	return counts, nil
}

// generate creates the homes and the agents, placing every agent at home.
func (k *Kernel) generate(classes []*agent.JobClass) error {
	houses := k.city.BuildingsOf(k.cfg.HomeTypes...)
	if len(houses) == 0 {
		return fmt.Errorf("%w: types %v", ErrNoHome, k.cfg.HomeTypes)
	}
	k.homes = lo.Map(houses, func(b *mapdata.Building, i int) *agent.Home {
		return agent.NewHome(i, b)
	})
	for _, c := range classes {
		c.Buildings = k.city.BuildingsByType[c.BuildingType]
	}
	counts, err := classCounts(classes, k.cfg.AgentNum)
	if err != nil {
		return err
	}
	k.agents = make([]*agent.Agent, 0, k.cfg.AgentNum)
	for i, c := range classes {
		for j := 0; j < counts[i]; j++ {
			job, err := agent.NewJob(c, k.rng)
			if err != nil {
				return fmt.Errorf("building type %q: %w", c.BuildingType, err)
			}
			id := len(k.agents)
			age := c.MinAge + k.rng.Intn(lo.Max([]int{c.MaxAge - c.MinAge, 0})+1)
			home := k.homes[k.rng.Intn(len(k.homes))]
			a := agent.New(id, age, agent.SampleRisk(age, k.rng), home, job)
			a.Speed = k.cfg.AgentSpeed
			home.AddOccupant(id)
			job.Building.AddWorker(id)
			a.PlaceAtHome()
			k.agents = append(k.agents, a)
		}
		log.Debugf("job class %q: %d agents", c.Name, counts[i])
	}

	for _, i := range pick(k.rng, len(k.agents), k.cfg.VaccinationPercentage/100) {
		k.agents[i].Vaccinated = true
	}
	for _, i := range pick(k.rng, len(k.agents), k.cfg.InfectedAgentFraction) {
		k.track(agent.NewInfection(nil, k.agents[i], 0, k.cfg.Dormant, k.cfg.Recovery))
	}
	log.Infof("generated %d agents in %d homes, %d infected", len(k.agents), len(k.homes), len(k.active))
	return nil
}

// pick returns round(fraction*n) distinct indices in [0,n).
func pick(rng *rand.Rand, n int, fraction float64) []int {
	count := lo.Clamp(int(math.Round(fraction*float64(n))), 0, n)
	return rng.Perm(n)[:count]
}

// chunk slices agents into parts contiguous chunks; the remainder of the
// division goes to the first chunk.
func chunk(agents []*agent.Agent, parts int) [][]*agent.Agent {
	parts = lo.Clamp(parts, 1, lo.Max([]int{len(agents), 1}))
	size := len(agents) / parts
	first := size + len(agents)%parts
	chunks := make([][]*agent.Agent, 0, parts)
	chunks = append(chunks, agents[:first])
	for start := first; start < len(agents); start += size {
		chunks = append(chunks, agents[start:start+size])
	}
	return chunks
}
