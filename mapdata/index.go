package mapdata

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/samber/lo"
)

var ErrNoRoad = errors.New("no road in building cell or its neighbouring cells")

// UnassignedError lists the buildings that could not be attached to a road.
type UnassignedError struct {
	Buildings []int64
}

func (e *UnassignedError) Error() string {
	ids := lo.Map(e.Buildings, func(id int64, _ int) string { return fmt.Sprint(id) })
	if len(ids) > 10 {
		ids = append(ids[:10], "...")
	}
	return fmt.Sprintf("%d buildings unassigned [%s]: %v", len(e.Buildings), strings.Join(ids, ","), ErrNoRoad)
}

func (e *UnassignedError) Unwrap() error {
	return ErrNoRoad
}

// candidateRoads returns the roads of the cell, falling back to the
// neighbouring cells when the cell has none. Order is first-registered first.
func (g *Grid) candidateRoads(c Coordinate) []*Road {
	row, col, _ := g.Locate(c)
	if roads := g.Cell(row, col).Roads; len(roads) > 0 {
		return roads
	}
	roads := make([]*Road, 0)
	for _, cell := range g.Ring(row, col, 1) {
		roads = append(roads, cell.Roads...)
	}
	return lo.Uniq(roads)
}

// AssignNearestRoad attaches b to the road at minimum point-to-polyline
// distance among the candidate roads; ties go to the first candidate.
func (g *Grid) AssignNearestRoad(b *Building) error {
	var closest *Road
	closestDistance := math.Inf(1)
	for _, road := range g.candidateRoads(b.Coordinate) {
		if d := road.DistanceTo(b.Coordinate); d < closestDistance {
			closest, closestDistance = road, d
		}
	}
	if closest == nil {
		return fmt.Errorf("building %d: %w", b.ID, ErrNoRoad)
	}
	b.Road = closest
	b.EntryPoint, _ = closest.ClosestPoint(b.Coordinate)
	b.Node = closest.ClosestNode(b.EntryPoint)
	closest.AddBuilding(b)
	return nil
}

// AssignNearestRoads assigns every building and reports all failures at once.
func (g *Grid) AssignNearestRoads(buildings []*Building) error {
	unassigned := make([]int64, 0)
	for _, b := range buildings {
		if err := g.AssignNearestRoad(b); err != nil {
			log.Warn(err)
			unassigned = append(unassigned, b.ID)
		}
	}
	if len(unassigned) > 0 {
		return &UnassignedError{Buildings: unassigned}
	}
	return nil
}

// Quota asks for Number placeholder buildings to be stamped with Type.
type Quota struct {
	Type   string
	Number int
}

// RetagPolicy redistributes placeholder buildings. Quotas are filled in
// declaration order; the remainder gets Default (left untouched if empty).
type RetagPolicy struct {
	Quotas  []Quota
	Default string
}

// Retag applies the policy and returns how many buildings got each type.
func Retag(buildings []*Building, policy RetagPolicy) map[string]int {
	counts := make(map[string]int)
	pending := lo.Filter(buildings, func(b *Building, _ int) bool {
		return b.IsPlaceholder()
	})
	for _, quota := range policy.Quotas {
		n := lo.Clamp(quota.Number, 0, len(pending))
		for _, b := range pending[:n] {
			b.SetType(quota.Type)
		}
		counts[quota.Type] += n
		pending = pending[n:]
		if len(pending) == 0 {
			break
		}
	}
	if policy.Default != "" {
		for _, b := range pending {
			b.SetType(policy.Default)
		}
		counts[policy.Default] += len(pending)
	}
	return counts
}
