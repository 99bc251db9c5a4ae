package agent

import "git.fiblab.net/sim/epidemic/mapdata"

// Home is a dwelling. Occupants only grow during population generation.
type Home struct {
	ID        int
	Building  *mapdata.Building
	Occupants []int
}

func NewHome(id int, b *mapdata.Building) *Home {
	return &Home{ID: id, Building: b, Occupants: make([]int, 0)}
}

func (h *Home) AddOccupant(agentID int) {
	h.Occupants = append(h.Occupants, agentID)
	h.Building.AddResident(agentID)
}
