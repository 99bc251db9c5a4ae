package simulation_test

import (
	"context"
	"math/rand"
	"testing"

	"git.fiblab.net/sim/epidemic/agent"
	"git.fiblab.net/sim/epidemic/infection"
	"git.fiblab.net/sim/epidemic/mapdata"
	"git.fiblab.net/sim/epidemic/mapdata/maptest"
	"git.fiblab.net/sim/epidemic/report"
	"git.fiblab.net/sim/epidemic/router"
	"git.fiblab.net/sim/epidemic/simulation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clerks() []*agent.JobClass {
	return []*agent.JobClass{{
		Name:                 "clerk",
		BuildingType:         "office",
		MinWorkhour:          4,
		MaxWorkhour:          6,
		MinStartHour:         8,
		MaxStartHour:         9,
		MinAge:               20,
		MaxAge:               60,
		Workdays:             0b1111111,
		PopulationProportion: 1,
	}}
}

func testConfig(agents int) simulation.Config {
	cfg := simulation.DefaultConfig()
	cfg.AgentNum = agents
	cfg.ThreadNumber = 3
	cfg.HomeTypes = []string{"house"}
	cfg.Seed = 11
	return cfg
}

func newKernel(t *testing.T, cfg simulation.Config, params infection.Params, sink report.Sink) *simulation.Kernel {
	city, err := maptest.City(maptest.Blocks(4, "house", "office"), 2)
	require.NoError(t, err)
	model, err := infection.NewContact(params, infection.GRANULARITY_NODE, rand.New(rand.NewSource(cfg.Seed+1)))
	require.NoError(t, err)
	k, err := simulation.New(cfg, city, router.New(city), clerks(), model, sink)
	require.NoError(t, err)
	return k
}

func statuses(k *simulation.Kernel) map[agent.InfectionStatus]int {
	out := make(map[agent.InfectionStatus]int)
	for _, a := range k.Agents() {
		out[a.Status]++
	}
	return out
}

func TestScenarioSingleSeedRecovers(t *testing.T) {
	cfg := testConfig(10)
	cfg.InfectedAgentFraction = 0.1
	cfg.Dormant = 0
	cfg.Recovery = 100
	cfg.StepLength = 1
	k := newKernel(t, cfg, infection.Params{Probability: 0}, nil)
	require.Len(t, k.Agents(), 10)

	ctx := context.Background()
	s := k.Step(ctx)
	assert.Equal(t, 1, s.Infectious)
	assert.Equal(t, 9, s.Susceptible)
	var seed *agent.Agent
	for _, a := range k.Agents() {
		if a.Status == agent.Infectious {
			seed = a
		}
	}
	require.NotNil(t, seed)

	for step := int64(1); step <= 101; step++ {
		s = k.Step(ctx)
		require.Equal(t, step, s.Step)
		if step < 100 {
			assert.Equal(t, agent.Infectious, seed.Status, "step %d", step)
		}
	}
	assert.Equal(t, agent.Recovered, seed.Status)
	assert.Equal(t, agent.Normal, seed.Symptom)
	assert.Equal(t, map[agent.InfectionStatus]int{agent.Susceptible: 9, agent.Recovered: 1}, statuses(k))
	assert.Equal(t, 1, s.Recovered)
	assert.Equal(t, 9, s.Susceptible)
}

func TestPopulationCountsSumToTotal(t *testing.T) {
	cfg := testConfig(60)
	cfg.InfectedAgentFraction = 0.2
	cfg.Dormant = 600
	cfg.Recovery = 3600
	k := newKernel(t, cfg, infection.Params{Probability: 0.5, Dormant: 600, Recovery: 3600}, nil)
	require.NoError(t, k.Run(context.Background(), 600, nil))
	recovered := 0
	for _, s := range k.History() {
		require.Equal(t, 60, s.Total(), "step %d", s.Step)
		require.GreaterOrEqual(t, s.Recovered, recovered)
		recovered = s.Recovered
	}
	assert.Greater(t, k.Stats().Infections, 12)
}

func TestDeterministicWithSeed(t *testing.T) {
	run := func() []report.Summary {
		cfg := testConfig(40)
		cfg.InfectedAgentFraction = 0.1
		cfg.VaccinationPercentage = 30
		k := newKernel(t, cfg, infection.Params{Probability: 0.3, VaccineEfficacy: 0.8, Dormant: 1800, Recovery: 7200}, nil)
		require.NoError(t, k.Run(context.Background(), 24*60, nil))
		out := make([]report.Summary, 0, len(k.History()))
		for _, s := range k.History() {
			s.RunID = ""
			out = append(out, s)
		}
		return out
	}
	assert.Equal(t, run(), run())
}

func TestPopulation(t *testing.T) {
	cfg := testConfig(25)
	cfg.VaccinationPercentage = 40
	cfg.InfectedAgentFraction = 0.2
	k := newKernel(t, cfg, infection.Params{}, nil)

	vaccinated, infected, residents := 0, 0, 0
	for i, a := range k.Agents() {
		assert.Equal(t, i, a.ID)
		assert.Equal(t, "house", a.Home.Building.Type)
		assert.Equal(t, "office", a.Job.Building.Type)
		assert.GreaterOrEqual(t, a.Age, 20)
		assert.LessOrEqual(t, a.Age, 60)
		assert.Equal(t, a.Home.Building, a.Building)
		assert.Contains(t, a.Node.Occupants(), a.ID)
		if a.Vaccinated {
			vaccinated++
		}
		if a.Infection != nil {
			infected++
		}
	}
	for _, h := range k.Homes() {
		residents += len(h.Occupants)
	}
	assert.Equal(t, 10, vaccinated)
	assert.Equal(t, 5, infected)
	assert.Equal(t, 25, residents)
}

func TestChunks(t *testing.T) {
	cfg := testConfig(10)
	cfg.ThreadNumber = 4
	k := newKernel(t, cfg, infection.Params{}, nil)
	sizes := make([]int, 0)
	next := 0
	for _, c := range k.Chunks() {
		sizes = append(sizes, len(c))
		for _, a := range c {
			assert.Equal(t, next, a.ID)
			next++
		}
	}
	assert.Equal(t, []int{4, 2, 2, 2}, sizes)
}

func TestCommute(t *testing.T) {
	cfg := testConfig(30)
	k := newKernel(t, cfg, infection.Params{}, nil)
	ctx := context.Background()

	// 11:00, everybody is at work
	require.NoError(t, k.Run(ctx, 11*60+1, nil))
	for _, a := range k.Agents() {
		assert.Equal(t, a.Job.Building, a.Building, "agent %d", a.ID)
		assert.Equal(t, agent.LOCATION_WORK, a.Location())
	}
	// 23:00, everybody is back home
	require.NoError(t, k.Run(ctx, 12*60, nil))
	for _, a := range k.Agents() {
		assert.Equal(t, a.Home.Building, a.Building, "agent %d", a.ID)
	}
	assert.Zero(t, k.Stats().Frozen)
	assert.Zero(t, k.Stats().Unreachable)
}

func routes(k *simulation.Kernel) map[int][]*mapdata.Node {
	out := make(map[int][]*mapdata.Node)
	for _, a := range k.Agents() {
		out[a.ID] = append([]*mapdata.Node(nil), a.Route()...)
	}
	return out
}

func TestRefreshRoutesIdempotent(t *testing.T) {
	k := newKernel(t, testConfig(30), infection.Params{}, nil)
	ctx := context.Background()
	k.RefreshRoutes(ctx, 0, 9)
	first := routes(k)
	moving := 0
	for _, a := range k.Agents() {
		if a.Moving() {
			moving++
		}
	}
	assert.Positive(t, moving)

	k.RefreshRoutes(ctx, 0, 9)
	assert.Equal(t, first, routes(k))
}

func TestRefreshRoutesCancelled(t *testing.T) {
	k := newKernel(t, testConfig(30), infection.Params{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	k.RefreshRoutes(ctx, 0, 9)
	for _, a := range k.Agents() {
		assert.False(t, a.Moving())
	}
	assert.Equal(t, int64(30), k.Stats().StaleRoutes)

	assert.ErrorIs(t, k.Run(ctx, 10, nil), context.Canceled)
	assert.Empty(t, k.History())
}

func TestReportFlush(t *testing.T) {
	cfg := testConfig(20)
	cfg.ReportInterval = 10
	cfg.InfectedAgentFraction = 0.1
	cfg.Dormant = 60
	cfg.Recovery = 600
	sink := report.NewMemorySink()
	k := newKernel(t, cfg, infection.Params{}, sink)
	ctx := context.Background()

	require.NoError(t, k.Run(ctx, 25, nil))
	assert.Equal(t, 2, sink.Flushes())
	assert.Len(t, sink.Summaries(), 20)
	// seeds recover after 11 minutes, at step 11
	assert.Len(t, sink.Infections(), 2)
	for _, s := range sink.Summaries() {
		assert.Equal(t, k.RunID, s.RunID)
	}

	require.NoError(t, k.Close(ctx))
	assert.Len(t, sink.Summaries(), 25)
	assert.Len(t, sink.Agents(), 20)
	assert.True(t, sink.Closed())
	assert.Equal(t, -1, sink.Infections()[0].OriginID)
}

func TestSnapshot(t *testing.T) {
	k := newKernel(t, testConfig(5), infection.Params{}, nil)
	snap := k.Snapshot()
	require.NotNil(t, snap)
	assert.Len(t, snap.Positions, 5)
	_, ok := snap.Latest()
	assert.False(t, ok)

	k.Step(context.Background())
	snap = k.Snapshot()
	latest, ok := snap.Latest()
	require.True(t, ok)
	assert.Equal(t, 5, latest.Total())
	assert.Equal(t, int64(60), snap.Now.Step)
}

func TestNewErrors(t *testing.T) {
	city, err := maptest.City(maptest.Blocks(3, "house", "office"), 1)
	require.NoError(t, err)
	net := router.New(city)
	model, err := infection.NewContact(infection.Params{}, "", rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	cfg := testConfig(0)
	_, err = simulation.New(cfg, city, net, clerks(), model, nil)
	assert.ErrorIs(t, err, simulation.ErrBadConfig)

	cfg = testConfig(5)
	cfg.HomeTypes = []string{"castle"}
	_, err = simulation.New(cfg, city, net, clerks(), model, nil)
	assert.ErrorIs(t, err, simulation.ErrNoHome)

	classes := clerks()
	classes[0].BuildingType = "factory"
	_, err = simulation.New(testConfig(5), city, net, classes, model, nil)
	assert.ErrorIs(t, err, agent.ErrNoBuilding)

	classes = clerks()
	classes[0].PopulationProportion = 0
	_, err = simulation.New(testConfig(5), city, net, classes, model, nil)
	assert.ErrorIs(t, err, simulation.ErrNoPopulation)
}

func TestMalformedRouteFreezesAgent(t *testing.T) {
	k := newKernel(t, testConfig(30), infection.Params{}, nil)
	ctx := context.Background()
	k.Step(ctx)

	broken := k.Agents()[0]
	start := broken.Node
	var far *mapdata.Node
	for _, a := range k.Agents() {
		if n := a.Job.Building.Node; n != start && !start.IsAdjacent(n) {
			far = n
			break
		}
	}
	require.NotNil(t, far)
	broken.ApplyPlan(agent.Plan{
		AgentID:     broken.ID,
		Destination: broken.Job.Building,
		Route:       []*mapdata.Node{start, far},
	})
	require.True(t, broken.Moving())

	k.Step(ctx)
	assert.Equal(t, int64(1), k.Stats().Frozen)
	assert.False(t, broken.Moving())
	assert.Equal(t, start, broken.Node)
	assert.Equal(t, agent.LOCATION_TRANSIT, broken.Location())

	// the frozen agent is planned again at the next hour like everybody else
	require.NoError(t, k.Run(ctx, 11*60-1, nil))
	for _, a := range k.Agents() {
		assert.Equal(t, a.Job.Building, a.Building, "agent %d", a.ID)
	}
	assert.Equal(t, int64(1), k.Stats().Frozen)
}

func TestRefreshRoutesWorkerCrash(t *testing.T) {
	k := newKernel(t, testConfig(10), infection.Params{}, nil)
	chunks := k.Chunks()
	require.Len(t, chunks, 3)

	// a home-less agent makes the first worker panic
	crashing := chunks[0][0]
	home := crashing.Home
	crashing.Home = nil
	k.RefreshRoutes(context.Background(), 0, 9)
	crashing.Home = home

	assert.Equal(t, int64(len(chunks[0])), k.Stats().StaleRoutes)
	for _, a := range chunks[0] {
		assert.False(t, a.Moving(), "agent %d", a.ID)
	}
	for _, part := range chunks[1:] {
		for _, a := range part {
			assert.True(t, a.Moving(), "agent %d", a.ID)
		}
	}

	// the next refresh is unaffected
	k.RefreshRoutes(context.Background(), 0, 10)
	assert.Equal(t, int64(len(chunks[0])), k.Stats().StaleRoutes)
	for _, a := range chunks[0] {
		assert.True(t, a.Moving(), "agent %d", a.ID)
	}
}
