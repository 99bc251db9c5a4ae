package agent_test

import (
	"math/bits"
	"math/rand"
	"testing"

	"git.fiblab.net/sim/epidemic/agent"
	"git.fiblab.net/sim/epidemic/mapdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobWithoutWorkdaysNeverWorks(t *testing.T) {
	j := &agent.Job{Workhour: 23, StartHour: 0, Workdays: 0}
	for day := 0; day < 14; day++ {
		for hour := 0; hour < 24; hour++ {
			assert.False(t, j.IsWorking(day, hour), "day %d hour %d", day, hour)
		}
	}
	var none *agent.Job
	assert.False(t, none.IsWorking(0, 0))
}

func TestJobIsWorking(t *testing.T) {
	// wednesday only, 9 to 17
	j := &agent.Job{Workhour: 8, StartHour: 9, Workdays: 1 << 2}
	assert.True(t, j.IsWorking(2, 9))
	assert.True(t, j.IsWorking(2, 17))
	assert.False(t, j.IsWorking(2, 8))
	assert.False(t, j.IsWorking(2, 18))
	assert.False(t, j.IsWorking(3, 12))
	// next week
	assert.True(t, j.IsWorking(9, 12))
}

func TestNewJob(t *testing.T) {
	buildings := []*mapdata.Building{{ID: 1}, {ID: 2}, {ID: 3}}
	class := &agent.JobClass{
		Name:               "clerk",
		MinWorkhour:        4,
		MaxWorkhour:        8,
		MinStartHour:       7,
		MaxStartHour:       10,
		Workdays:           0b0011111,
		MinActivityPerWeek: 3,
		MaxActivityPerWeek: 3,
		Buildings:          buildings,
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, class.AvailableDays())
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		j, err := agent.NewJob(class, rng)
		require.NoError(t, err)
		assert.Equal(t, "clerk", j.Name())
		assert.GreaterOrEqual(t, j.Workhour, 4)
		assert.LessOrEqual(t, j.Workhour, 8)
		assert.GreaterOrEqual(t, j.StartHour, 7)
		assert.LessOrEqual(t, j.StartHour, 10)
		assert.Equal(t, 3, bits.OnesCount8(j.Workdays))
		assert.Zero(t, j.Workdays&^class.Workdays)
		assert.Contains(t, buildings, j.Building)
	}

	// more activity than available days falls back to the available ones
	class.MinActivityPerWeek, class.MaxActivityPerWeek = 6, 7
	j, err := agent.NewJob(class, rng)
	require.NoError(t, err)
	assert.Equal(t, class.Workdays, j.Workdays)

	class.MinActivityPerWeek, class.MaxActivityPerWeek = 0, 0
	j, err = agent.NewJob(class, rng)
	require.NoError(t, err)
	assert.Equal(t, class.Workdays, j.Workdays)

	class.Buildings = nil
	_, err = agent.NewJob(class, rng)
	assert.ErrorIs(t, err, agent.ErrNoBuilding)
}

func TestNewJobDeterministic(t *testing.T) {
	class := &agent.JobClass{
		MinWorkhour: 1, MaxWorkhour: 9, MinStartHour: 0, MaxStartHour: 12,
		Workdays: 0b1111111, MinActivityPerWeek: 1, MaxActivityPerWeek: 5,
		Buildings: []*mapdata.Building{{ID: 1}, {ID: 2}},
	}
	a, err := agent.NewJob(class, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	b, err := agent.NewJob(class, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
