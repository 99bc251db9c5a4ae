package mapdata

import (
	"errors"
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/samber/lo"
)

var ErrUnknownNode = errors.New("way references an unknown node")

// City bundles the spatial index with the road graph and the buildings.
type City struct {
	Grid            *Grid
	Nodes           []*Node
	NodesByID       map[int64]*Node
	Roads           []*Road
	Buildings       []*Building
	BuildingsByType map[string][]*Building
}

type BuildOptions struct {
	// grid shape, 1x1 when unset
	Rows, Cols int
	Retag      RetagPolicy
}

// Build turns raw map data into an indexed City. Buildings without any road in
// reach are fatal and reported together as *UnassignedError.
func Build(raw *Raw, opts BuildOptions) (*City, error) {
	c := &City{
		NodesByID:       make(map[int64]*Node, len(raw.Nodes)),
		BuildingsByType: make(map[string][]*Building),
	}
	bound := orb.Bound{}
	for i, rn := range raw.Nodes {
		n := NewNode(rn.ID, NewCoordinate(rn.Lat, rn.Lon))
		c.NodesByID[n.ID] = n
		if i == 0 {
			bound = n.Point().Bound()
		} else {
			bound = bound.Extend(n.Point())
		}
	}
	c.Nodes = lo.Values(c.NodesByID)
	sort.Slice(c.Nodes, func(i, j int) bool { return c.Nodes[i].ID < c.Nodes[j].ID })

	resolve := func(w RawWay) ([]*Node, error) {
		nodes := make([]*Node, 0, len(w.Nodes))
		for _, id := range w.Nodes {
			n, ok := c.NodesByID[id]
			if !ok {
				return nil, fmt.Errorf("way %d node %d: %w", w.ID, id, ErrUnknownNode)
			}
			nodes = append(nodes, n)
		}
		return nodes, nil
	}
	for _, w := range raw.Roads {
		nodes, err := resolve(w)
		if err != nil {
			return nil, err
		}
		if len(nodes) == 0 {
			log.Warnf("skip road %d without nodes", w.ID)
			continue
		}
		c.Roads = append(c.Roads, NewRoad(w.ID, nodes, w.Tags))
	}
	for _, w := range raw.Buildings {
		nodes, err := resolve(w)
		if err != nil {
			return nil, err
		}
		b, err := NewBuilding(w.ID, lo.Map(nodes, func(n *Node, _ int) Coordinate {
			return n.Coordinate
		}), w.Tags)
		if err != nil {
			return nil, err
		}
		c.Buildings = append(c.Buildings, b)
	}

	rows, cols := lo.Max([]int{opts.Rows, 1}), lo.Max([]int{opts.Cols, 1})
	grid, err := NewGridWithShape(bound, rows, cols)
	if err != nil {
		return nil, err
	}
	c.Grid = grid
	for _, n := range c.Nodes {
		grid.AddNode(n)
	}
	for _, r := range c.Roads {
		grid.AddRoad(r)
	}
	for _, b := range c.Buildings {
		grid.AddBuilding(b)
	}

	counts := Retag(c.Buildings, opts.Retag)
	for t, n := range counts {
		log.Debugf("retagged %d buildings as %q", n, t)
	}
	if err := grid.AssignNearestRoads(c.Buildings); err != nil {
		return nil, err
	}
	for _, b := range c.Buildings {
		c.BuildingsByType[b.Type] = append(c.BuildingsByType[b.Type], b)
	}
	log.Infof("city built: %d nodes, %d roads, %d buildings, grid %dx%d",
		len(c.Nodes), len(c.Roads), len(c.Buildings), grid.Rows, grid.Cols)
	return c, nil
}

// BuildingsOf concatenates the buildings of the given types, in argument order.
func (c *City) BuildingsOf(types ...string) []*Building {
	out := make([]*Building, 0)
	for _, t := range types {
		out = append(out, c.BuildingsByType[t]...)
	}
	return out
}
