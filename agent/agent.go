package agent

import (
	"errors"
	"fmt"
	"math/rand"

	"git.fiblab.net/sim/epidemic/mapdata"
	"git.fiblab.net/sim/epidemic/report"
	"git.fiblab.net/sim/epidemic/router"
)

const (
	// walking speed in m/s
	DEFAULT_SPEED = 1.4
)

var (
	ErrMalformedRoute = errors.New("malformed route")
	ErrNotPlaced      = errors.New("agent is not placed on the road network")
)

// Router is the part of the road network an agent needs to plan a route.
type Router interface {
	ShortestPath(from, to *mapdata.Node) (router.Path, error)
}

// Agent is one member of the synthetic population.
//
// Route workers only read an agent through Plan; every other method is
// called from the single simulation flow.
type Agent struct {
	ID         int
	Age        int
	Risk       float64
	Home       *Home
	Job        *Job
	Speed      float64
	Vaccinated bool

	Status    InfectionStatus
	Symptom   SymptomStatus
	Infection *Infection

	// last node reached
	Node     *mapdata.Node
	Position mapdata.Coordinate
	// building the agent is inside, nil while moving
	Building *mapdata.Building

	route       []*mapdata.Node
	routeIdx    int
	progress    float64
	destination *mapdata.Building
}

func New(id, age int, risk float64, home *Home, job *Job) *Agent {
	return &Agent{
		ID:    id,
		Age:   age,
		Risk:  risk,
		Home:  home,
		Job:   job,
		Speed: DEFAULT_SPEED,
	}
}

// SampleRisk draws an individual risk factor, uniform in [0.5, 1.5) and
// raised by 10% for every decade of age.
func SampleRisk(age int, rng *rand.Rand) float64 {
	return (0.5 + rng.Float64()) * (1 + 0.1*float64(age/10))
}

// PlaceAtHome puts the agent inside its home building.
func (a *Agent) PlaceAtHome() {
	a.enter(a.Home.Building)
	a.moveTo(a.Home.Building.Node)
}

func (a *Agent) String() string {
	return fmt.Sprintf("Agent(id=%d, job=%q, status=%v)", a.ID, a.Job.Name(), a.Status)
}

// Destination is where the agent should be at the given hour: the workplace
// inside the work window, home otherwise.
func (a *Agent) Destination(day, hour int) *mapdata.Building {
	if a.Job.IsWorking(day, hour) {
		return a.Job.Building
	}
	return a.Home.Building
}

// Moving reports whether the agent holds a route it has not finished.
func (a *Agent) Moving() bool {
	return a.route != nil
}

func (a *Agent) Route() []*mapdata.Node {
	return a.route
}

// Plan is the result of a route computation, applied by the simulation flow.
type Plan struct {
	AgentID     int
	Destination *mapdata.Building
	Route       []*mapdata.Node
	Distance    float64
	// the agent is already heading to Destination, keep its route
	Keep bool
	// nothing to do this hour, the agent is already there or cannot get there
	Stationary  bool
	Unreachable bool
	Working     bool
}

// Plan computes the movement for the given hour without modifying the agent.
func (a *Agent) Plan(r Router, day, hour int) Plan {
	dest := a.Destination(day, hour)
	p := Plan{AgentID: a.ID, Destination: dest, Working: a.Job.IsWorking(day, hour)}
	if dest == a.destination && a.Moving() {
		p.Keep = true
		return p
	}
	if dest == a.Building || dest == nil || a.Node == nil {
		p.Stationary = true
		return p
	}
	path, err := r.ShortestPath(a.Node, dest.Node)
	if err != nil {
		log.Debugf("agent %d: route to %v: %v", a.ID, dest, err)
		p.Stationary, p.Unreachable = true, true
		return p
	}
	p.Route, p.Distance = path.Nodes, path.Distance
	return p
}

// ApplyPlan installs a plan computed by Plan. A new route starts at the last
// node reached: an agent caught between two nodes snaps back to the first of
// them and the progress along that edge is dropped.
func (a *Agent) ApplyPlan(p Plan) {
	if p.Stationary {
		if p.Unreachable {
			a.Freeze()
		}
		return
	}
	if p.Keep && p.Destination == a.destination {
		return
	}
	a.route = p.Route
	a.routeIdx = 1
	a.progress = 0
	a.destination = p.Destination
	a.Building = nil
}

// Freeze drops the current route, the agent stays where it is. Nothing moves
// it until the next hourly refresh plans it again from its current node.
func (a *Agent) Freeze() {
	a.route = nil
	a.routeIdx = 0
	a.progress = 0
	a.destination = nil
}

// Step advances the agent stepLength seconds along its route. An idle agent
// or one that already reached its destination does nothing.
func (a *Agent) Step(stepLength float64) error {
	if a.route == nil {
		return nil
	}
	if a.Node == nil {
		return ErrNotPlaced
	}
	if len(a.route) == 0 || a.route[0] == nil {
		return fmt.Errorf("agent %d: %w: empty route", a.ID, ErrMalformedRoute)
	}
	budget := a.Speed * stepLength
	for budget > 0 && a.routeIdx < len(a.route) {
		from, to := a.route[a.routeIdx-1], a.route[a.routeIdx]
		if to == nil || (from != to && !from.IsAdjacent(to)) {
			return fmt.Errorf("agent %d: %w: %v -> %v", a.ID, ErrMalformedRoute, from, to)
		}
		length := from.Distance(to.Coordinate)
		if remaining := length - a.progress; budget < remaining {
			a.progress += budget
			a.Position = from.Blend(to.Coordinate, a.progress/length)
			budget = 0
		} else {
			budget -= remaining
			a.moveTo(to)
			a.routeIdx++
			a.progress = 0
		}
	}
	if a.routeIdx >= len(a.route) {
		a.enter(a.destination)
		a.Freeze()
	}
	return nil
}

func (a *Agent) moveTo(n *mapdata.Node) {
	if a.Node == n {
		return
	}
	if a.Node != nil {
		a.Node.RemoveOccupant(a.ID)
	}
	n.AddOccupant(a.ID)
	a.Node = n
	a.Position = n.Coordinate
}

func (a *Agent) enter(b *mapdata.Building) {
	a.Building = b
	if b != nil {
		a.Position = b.Coordinate
	}
}

// Location tags where the agent currently is.
func (a *Agent) Location() string {
	switch {
	case a.Building == nil:
		return LOCATION_TRANSIT
	case a.Building == a.Home.Building:
		return LOCATION_HOME
	case a.Job != nil && a.Building == a.Job.Building:
		return LOCATION_WORK
	default:
		return LOCATION_OTHER
	}
}

func (a *Agent) Record() report.AgentRecord {
	r := report.AgentRecord{
		ID:           a.ID,
		Age:          a.Age,
		Risk:         a.Risk,
		Profession:   a.Job.Name(),
		HomeID:       a.Home.ID,
		HomeBuilding: a.Home.Building.ID,
		Vaccinated:   a.Vaccinated,
		Status:       a.Status.String(),
		Symptom:      a.Symptom.String(),
		Lat:          a.Position.Lat,
		Lon:          a.Position.Lon,
		Infected:     a.Infection != nil,
	}
	if a.Job != nil {
		r.WorkBuilding = a.Job.Building.ID
	}
	return r
}
