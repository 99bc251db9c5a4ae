package mapdata

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/samber/lo"
)

// Road is an ordered polyline of graph nodes.
type Road struct {
	ID    int64
	Nodes []*Node
	Tags  map[string]string
	// buildings whose nearest road is this one
	Buildings []*Building

	line orb.LineString
}

// NewRoad links consecutive nodes into the graph.
func NewRoad(id int64, nodes []*Node, tags map[string]string) *Road {
	for i := 0; i+1 < len(nodes); i++ {
		nodes[i].Connect(nodes[i+1])
	}
	return &Road{
		ID:        id,
		Nodes:     nodes,
		Tags:      tags,
		Buildings: make([]*Building, 0),
		line: lo.Map(nodes, func(n *Node, _ int) orb.Point {
			return n.Point()
		}),
	}
}

func (r *Road) Line() orb.LineString {
	return r.line
}

func (r *Road) Bound() orb.Bound {
	return r.line.Bound()
}

func (r *Road) AddBuilding(b *Building) {
	r.Buildings = append(r.Buildings, b)
}

// Length in meters along the polyline.
func (r *Road) Length() float64 {
	length := .0
	for i := 0; i+1 < len(r.Nodes); i++ {
		length += r.Nodes[i].Distance(r.Nodes[i+1].Coordinate)
	}
	return length
}

// ClosestPoint projects c onto the polyline in degree space and returns the
// projected point with its distance to c.
func (r *Road) ClosestPoint(c Coordinate) (Coordinate, float64) {
	p := c.Point()
	if len(r.line) == 0 {
		return Coordinate{}, math.Inf(1)
	}
	best := r.line[0]
	bestDistance := planar.Distance(p, best)
	for i := 0; i+1 < len(r.line); i++ {
		q := closestOnSegment(r.line[i], r.line[i+1], p)
		if d := planar.Distance(p, q); d < bestDistance {
			best, bestDistance = q, d
		}
	}
	return FromPoint(best), bestDistance
}

// DistanceTo is the point-to-polyline distance in degree space.
func (r *Road) DistanceTo(c Coordinate) float64 {
	_, d := r.ClosestPoint(c)
	return d
}

// ClosestNode returns the road node nearest to c, first one on ties.
func (r *Road) ClosestNode(c Coordinate) *Node {
	var best *Node
	bestDistance := math.Inf(1)
	for _, n := range r.Nodes {
		if d := n.PlanarDistance(c); d < bestDistance {
			best, bestDistance = n, d
		}
	}
	return best
}

func closestOnSegment(a, b, p orb.Point) orb.Point {
	dx, dy := b[0]-a[0], b[1]-a[1]
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return a
	}
	t := lo.Clamp(((p[0]-a[0])*dx+(p[1]-a[1])*dy)/l2, 0, 1)
	return orb.Point{a[0] + t*dx, a[1] + t*dy}
}
