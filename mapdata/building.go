package mapdata

import (
	"errors"
	"fmt"
)

const (
	// tag key holding the semantic building type
	BUILDING_TAG = "building"
)

var (
	ErrEmptyOutline = errors.New("building outline has no nodes")

	// types that carry no semantic information and are open to retagging
	placeholderTypes = map[string]bool{"": true, "yes": true, "+": true}
)

// Building is a map building reduced to its centroid.
type Building struct {
	ID int64
	Coordinate
	Type string
	Tags map[string]string

	// filled by the building index
	Road       *Road
	EntryPoint Coordinate
	Node       *Node

	// content registry filled during agent generation
	Residents []int
	Workers   []int
}

// NewBuilding computes the centroid of the outline. A closed outline repeats
// its first node at the end; the repeated node is not counted twice.
func NewBuilding(id int64, outline []Coordinate, tags map[string]string) (*Building, error) {
	if len(outline) == 0 {
		return nil, fmt.Errorf("building %d: %w", id, ErrEmptyOutline)
	}
	points := outline
	if len(points) > 1 && points[0] == points[len(points)-1] {
		points = points[:len(points)-1]
	}
	lat, lon := .0, .0
	for _, p := range points {
		lat += p.Lat
		lon += p.Lon
	}
	count := float64(len(points))
	if tags == nil {
		tags = make(map[string]string)
	}
	return &Building{
		ID:         id,
		Coordinate: NewCoordinate(lat/count, lon/count),
		Type:       tags[BUILDING_TAG],
		Tags:       tags,
	}, nil
}

func (b *Building) SetType(t string) {
	b.Type = t
}

func (b *Building) IsPlaceholder() bool {
	return placeholderTypes[b.Type]
}

// Assigned reports whether the building has been attached to a road.
func (b *Building) Assigned() bool {
	return b.Road != nil && b.Node != nil
}

func (b *Building) AddResident(agentID int) {
	b.Residents = append(b.Residents, agentID)
}

func (b *Building) AddWorker(agentID int) {
	b.Workers = append(b.Workers, agentID)
}

func (b *Building) String() string {
	return fmt.Sprintf("Building(id=%d, type=%q, lat=%.6f, lon=%.6f)", b.ID, b.Type, b.Lat, b.Lon)
}
