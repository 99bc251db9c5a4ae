package algo

import (
	"container/heap"

	"git.fiblab.net/general/common/v2/geometry"
	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/samber/lo"
)

type node[T any] struct {
	p     geometry.Point
	attr  T
	noOut bool // 是否没有出边 (no outgoing edge is ever followed unless it is the target)
}

type edge[T any] struct {
	to   int
	v    float64
	attr T
}

// SearchGraph is a weighted directed graph with per-node positions.
// Topology is fixed after init; edge lengths may change at runtime and are
// guarded by mu.
type SearchGraph[NT any, ET any] struct {
	// adjacency list in insertion order, keeps searches deterministic
	edges [][]edge[ET]
	// from -> to -> index in edges[from]
	lookup []map[int]int
	nodes  []node[NT]
	// A Star距离预估函数
	h IHeuristics

	mu *xsync.RBMutex
}

type IHeuristics interface {
	HeuristicEuclidean(geometry.Point, geometry.Point) float64
}

// ZeroHeuristics turns A* into Dijkstra.
type ZeroHeuristics struct{}

func (ZeroHeuristics) HeuristicEuclidean(geometry.Point, geometry.Point) float64 { return 0 }

func NewSearchGraph[NT any, ET any](h IHeuristics) *SearchGraph[NT, ET] {
	if h == nil {
		h = ZeroHeuristics{}
	}
	return &SearchGraph[NT, ET]{
		edges:  make([][]edge[ET], 0),
		lookup: make([]map[int]int, 0),
		nodes:  make([]node[NT], 0),
		h:      h,
		mu:     xsync.NewRBMutex(),
	}
}

func (g *SearchGraph[NT, ET]) InitNode(p geometry.Point, attr NT, noOut bool) int {
	g.nodes = append(g.nodes, node[NT]{p: p, attr: attr, noOut: noOut})
	g.edges = append(g.edges, make([]edge[ET], 0))
	g.lookup = append(g.lookup, make(map[int]int))
	return len(g.nodes) - 1
}

// InitEdge adds or overwrites the edge from->to.
func (g *SearchGraph[NT, ET]) InitEdge(from, to int, length float64, attr ET) {
	if from >= len(g.edges) || to >= len(g.edges) {
		log.Panicf("edge (%d,%d) out of range, len(g.edges)=%d", from, to, len(g.edges))
	}
	if length < 0 {
		log.Panicf("edge (%d,%d): %v", from, to, ErrNegativeWeight)
	}
	if i, ok := g.lookup[from][to]; ok {
		g.edges[from][i] = edge[ET]{to: to, v: length, attr: attr}
		return
	}
	g.lookup[from][to] = len(g.edges[from])
	g.edges[from] = append(g.edges[from], edge[ET]{to: to, v: length, attr: attr})
}

func (g *SearchGraph[NT, ET]) NodeCount() int {
	return len(g.nodes)
}

func (g *SearchGraph[NT, ET]) NodeAttr(i int) NT {
	return g.nodes[i].attr
}

func (g *SearchGraph[NT, ET]) HasEdge(from, to int) bool {
	if from < 0 || from >= len(g.lookup) {
		return false
	}
	_, ok := g.lookup[from][to]
	return ok
}

func (g *SearchGraph[NT, ET]) GetEdgeLengthAndAttr(from, to int) (float64, ET, error) {
	token := g.mu.RLock()
	defer g.mu.RUnlock(token)
	return g.getEdge(from, to)
}

func (g *SearchGraph[NT, ET]) getEdge(from, to int) (float64, ET, error) {
	if !g.HasEdge(from, to) {
		var zero ET
		return mathutil.INF, zero, ErrNoEdge
	}
	e := g.edges[from][g.lookup[from][to]]
	return e.v, e.attr, nil
}

func (g *SearchGraph[NT, ET]) GetEdgeLength(from, to int) (float64, error) {
	length, _, err := g.GetEdgeLengthAndAttr(from, to)
	return length, err
}

func (g *SearchGraph[NT, ET]) SetEdgeLength(from, to int, length float64) error {
	if length < 0 {
		return ErrNegativeWeight
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.HasEdge(from, to) {
		return ErrNoEdge
	}
	g.edges[from][g.lookup[from][to]].v = length
	return nil
}

type PathItem[NT any, ET any] struct {
	Node     int
	NodeAttr NT
	// edge from this item to the next one, zero value on the last item
	EdgeAttr ET
}

// Reconstruct rebuilds the node sequence ending at target by following the
// predecessor map back to the node that has no predecessor.
func Reconstruct(cameFrom map[int]int, target int) []int {
	seq := []int{target}
	for cur := target; ; {
		from, ok := cameFrom[cur]
		if !ok {
			break
		}
		seq = append(seq, from)
		cur = from
	}
	return lo.Reverse(seq)
}

func (g *SearchGraph[NT, ET]) reconstructPath(cameFrom map[int]int, target int) ([]PathItem[NT, ET], float64) {
	seq := Reconstruct(cameFrom, target)
	path := make([]PathItem[NT, ET], len(seq))
	cost := .0
	for i, n := range seq {
		path[i] = PathItem[NT, ET]{Node: n, NodeAttr: g.nodes[n].attr}
		if i+1 < len(seq) {
			length, attr, _ := g.getEdge(n, seq[i+1])
			path[i].EdgeAttr = attr
			cost += length
		}
	}
	return path, cost
}

func (g *SearchGraph[NT, ET]) ShortestPath(start, end int) ([]PathItem[NT, ET], float64) {
	return g.ShortestPathAStar(start, end)
}

// Dijkstra求最短路
func (g *SearchGraph[NT, ET]) ShortestPathDijkstra(start, end int) ([]PathItem[NT, ET], float64) {
	return g.search(start, end, ZeroHeuristics{})
}

// A Star算法求最短路
func (g *SearchGraph[NT, ET]) ShortestPathAStar(start, end int) ([]PathItem[NT, ET], float64) {
	return g.search(start, end, g.h)
}

func (g *SearchGraph[NT, ET]) search(start, end int, h IHeuristics) ([]PathItem[NT, ET], float64) {
	token := g.mu.RLock()
	defer g.mu.RUnlock(token)
	if start < 0 || end < 0 || start >= len(g.nodes) || end >= len(g.nodes) {
		return nil, mathutil.INF
	}
	if start == end {
		return []PathItem[NT, ET]{{Node: start, NodeAttr: g.nodes[start].attr}}, 0
	}
	openSet := make(PriorityQueue, 1)
	openSetMap := make(map[int]*Item, 1) // openSet value -> openSet item
	closed := make(map[int]bool)
	cameFrom := make(map[int]int, 0)
	gScore := make(map[int]float64, 0)
	gScore[start] = .0
	openSet[0] = &Item{Value: start, Priority: h.HeuristicEuclidean(g.nodes[start].p, g.nodes[end].p), Index: 0}
	openSetMap[start] = openSet[0]
	heap.Init(&openSet)
	for openSet.Len() > 0 {
		cur := heap.Pop(&openSet).(*Item).Value
		delete(openSetMap, cur)
		if cur == end {
			return g.reconstructPath(cameFrom, cur)
		}
		closed[cur] = true
		for _, e := range g.edges[cur] {
			neighbor := e.to
			if closed[neighbor] {
				continue
			}
			// 如果没有出边，跳过
			if g.nodes[neighbor].noOut && neighbor != end {
				continue
			}
			gScoreTentative := gScore[cur] + e.v
			gScoreNeighbor, seen := gScore[neighbor]
			if !seen {
				gScoreNeighbor = mathutil.INF
			}
			if gScoreTentative < gScoreNeighbor {
				cameFrom[neighbor] = cur
				gScore[neighbor] = gScoreTentative
				fScore := gScoreTentative + h.HeuristicEuclidean(g.nodes[neighbor].p, g.nodes[end].p)
				if item, ok := openSetMap[neighbor]; ok {
					// 已经访问过的节点，修改其在heap中的优先级
					item.Priority = fScore
					heap.Fix(&openSet, item.Index)
				} else {
					item := &Item{Value: neighbor, Priority: fScore}
					heap.Push(&openSet, item)
					openSetMap[neighbor] = item
				}
			}
		}
	}
	return nil, mathutil.INF
}
