package router

import (
	"errors"
	"fmt"
	"math"

	"git.fiblab.net/sim/epidemic/mapdata"
	"git.fiblab.net/sim/epidemic/router/algo"
	"github.com/samber/lo"
)

var (
	ErrNoPath      = errors.New("routing failed: no path")
	ErrUnknownNode = errors.New("node is not part of the road network")
	ErrRoadUnknown = errors.New("road not found")
)

// Path is an ordered node sequence, Distance in meters.
type Path struct {
	Nodes    []*mapdata.Node
	Distance float64
}

// Network is the navigable road graph of a City. Searches may run
// concurrently; cost updates take the graph write lock.
type Network struct {
	city  *mapdata.City
	roads map[int64]*mapdata.Road
	graph *algo.SearchGraph[*mapdata.Node, *mapdata.Road]
}

func New(city *mapdata.City) *Network {
	n := &Network{city: city}
	n.buildGraph()
	return n
}

func (n *Network) City() *mapdata.City {
	return n.city
}

func (n *Network) HasNode(node *mapdata.Node) bool {
	return node != nil && node.Index >= 0 && node.Index < n.graph.NodeCount() &&
		n.graph.NodeAttr(node.Index) == node
}

// NearestNode returns the connected road node closest to c, searching the
// grid ring by ring around the cell of c. Cells need not be square: rings are
// searched until the next one cannot hold anything closer than the best hit.
func (n *Network) NearestNode(c mapdata.Coordinate) *mapdata.Node {
	grid := n.city.Grid
	if grid == nil {
		return nearestIn(n.city.Nodes, c)
	}
	row, col, _ := grid.Locate(c)
	maxRadius := lo.Max([]int{grid.Rows, grid.Cols})
	cellSize := math.Min(grid.CellLat, grid.CellLon)
	var best *mapdata.Node
	bestDistance := math.Inf(1)
	for radius := 0; radius <= maxRadius; radius++ {
		for _, cell := range grid.Ring(row, col, radius) {
			if cand := nearestIn(cell.Nodes, c); cand != nil {
				if d := cand.PlanarDistance(c); d < bestDistance {
					best, bestDistance = cand, d
				}
			}
		}
		// 下一圈中的点与c的距离至少为radius个格子
		if best != nil && float64(radius)*cellSize >= bestDistance {
			break
		}
	}
	return best
}

func nearestIn(nodes []*mapdata.Node, c mapdata.Coordinate) *mapdata.Node {
	var best *mapdata.Node
	bestDistance := math.Inf(1)
	for _, node := range nodes {
		if len(node.Edges) == 0 {
			continue
		}
		if d := node.PlanarDistance(c); d < bestDistance {
			best, bestDistance = node, d
		}
	}
	return best
}

// ShortestPath runs Dijkstra between two road nodes. An unreachable target
// returns ErrNoPath with an infinite distance.
func (n *Network) ShortestPath(from, to *mapdata.Node) (path Path, err error) {
	// panic recover
	defer func() {
		if e := recover(); e != nil {
			path = Path{Distance: math.Inf(0)}
			err = fmt.Errorf("panic: ShortestPath %v with input from=%v, to=%v", e, from, to)
			log.Errorln(err)
		}
	}()
	if !n.HasNode(from) || !n.HasNode(to) {
		return Path{Distance: math.Inf(0)}, ErrUnknownNode
	}
	items, cost := n.graph.ShortestPathDijkstra(from.Index, to.Index)
	if math.IsInf(cost, 1) {
		log.Debugf("routing failed, no path between node %d and %d", from.ID, to.ID)
		return Path{Distance: cost}, ErrNoPath
	}
	return Path{
		Nodes: lo.Map(items, func(item algo.PathItem[*mapdata.Node, *mapdata.Road], _ int) *mapdata.Node {
			return item.NodeAttr
		}),
		Distance: cost,
	}, nil
}

// Reconstruct turns a predecessor trace over graph indices into nodes.
func (n *Network) Reconstruct(cameFrom map[int]int, target *mapdata.Node) []*mapdata.Node {
	return lo.Map(algo.Reconstruct(cameFrom, target.Index), func(i int, _ int) *mapdata.Node {
		return n.graph.NodeAttr(i)
	})
}

// GetRoadCost returns the current traversal cost of the whole road.
func (n *Network) GetRoadCost(roadID int64) (float64, error) {
	road, ok := n.roads[roadID]
	if !ok {
		return 0, fmt.Errorf("road(id=%d): %w", roadID, ErrRoadUnknown)
	}
	cost := .0
	for i := 0; i+1 < len(road.Nodes); i++ {
		c, err := n.graph.GetEdgeLength(road.Nodes[i].Index, road.Nodes[i+1].Index)
		if err != nil {
			return 0, err
		}
		cost += c
	}
	return cost, nil
}

// SetRoadFactor rescales every edge of the road to factor times its length.
// A factor of +Inf closes the road.
func (n *Network) SetRoadFactor(roadID int64, factor float64) error {
	road, ok := n.roads[roadID]
	if !ok {
		return fmt.Errorf("road(id=%d): %w", roadID, ErrRoadUnknown)
	}
	for i := 0; i+1 < len(road.Nodes); i++ {
		u, v := road.Nodes[i], road.Nodes[i+1]
		if u == v {
			continue
		}
		cost := u.Distance(v.Coordinate) * factor
		if err := n.graph.SetEdgeLength(u.Index, v.Index, cost); err != nil {
			return err
		}
		if err := n.graph.SetEdgeLength(v.Index, u.Index, cost); err != nil {
			return err
		}
	}
	return nil
}

// close
func (n *Network) Close() {}
