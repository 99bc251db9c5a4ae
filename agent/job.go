package agent

import (
	"errors"
	"fmt"
	"math/rand"

	"git.fiblab.net/sim/epidemic/mapdata"
	"github.com/samber/lo"
)

const DAYS_PER_WEEK = 7

var ErrNoBuilding = errors.New("job class has no building to work in")

// JobClass is a population-level job template.
type JobClass struct {
	Name string
	// building type key the workplaces are drawn from
	BuildingType string

	MinWorkhour, MaxWorkhour   int
	MinStartHour, MaxStartHour int
	MinAge, MaxAge             int
	// bit i set: day i of the week is available
	Workdays uint8
	// both zero: work every available day
	MinActivityPerWeek, MaxActivityPerWeek int

	PopulationProportion float64

	Buildings []*mapdata.Building
}

// AvailableDays lists the weekday indices allowed by the class mask.
func (c *JobClass) AvailableDays() []int {
	return lo.Filter([]int{0, 1, 2, 3, 4, 5, 6}, func(day int, _ int) bool {
		return c.Workdays&(1<<day) != 0
	})
}

// Job is one agent's concrete job, immutable after creation.
type Job struct {
	Class     *JobClass
	Workhour  int
	StartHour int
	Workdays  uint8
	Building  *mapdata.Building
}

// NewJob samples a job from class.
func NewJob(class *JobClass, rng *rand.Rand) (*Job, error) {
	if len(class.Buildings) == 0 {
		return nil, fmt.Errorf("job class %q: %w", class.Name, ErrNoBuilding)
	}
	j := &Job{
		Class:     class,
		Workhour:  randInt(rng, class.MinWorkhour, class.MaxWorkhour),
		StartHour: randInt(rng, class.MinStartHour, class.MaxStartHour),
		Building:  class.Buildings[rng.Intn(len(class.Buildings))],
	}
	days := class.AvailableDays()
	activity := len(days)
	if class.MinActivityPerWeek > 0 || class.MaxActivityPerWeek > 0 {
		activity = lo.Clamp(randInt(rng, class.MinActivityPerWeek, class.MaxActivityPerWeek), 0, len(days))
	}
	rng.Shuffle(len(days), func(i, k int) { days[i], days[k] = days[k], days[i] })
	for _, day := range days[:activity] {
		j.Workdays |= 1 << day
	}
	return j, nil
}

func (j *Job) Name() string {
	if j == nil || j.Class == nil {
		return ""
	}
	return j.Class.Name
}

// IsWorking reports whether day (taken modulo a week) is a workday and hour
// falls in [StartHour, StartHour+Workhour].
func (j *Job) IsWorking(day, hour int) bool {
	if j == nil {
		return false
	}
	weekday := day % DAYS_PER_WEEK
	if weekday < 0 {
		weekday += DAYS_PER_WEEK
	}
	return j.Workdays&(1<<weekday) != 0 && hour >= j.StartHour && hour <= j.StartHour+j.Workhour
}

// randInt returns a uniform integer in [low, high].
func randInt(rng *rand.Rand, low, high int) int {
	if high < low {
		low, high = high, low
	}
	return low + rng.Intn(high-low+1)
}
