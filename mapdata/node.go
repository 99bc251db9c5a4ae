package mapdata

// Edge is one adjacency of a Node, Distance in meters.
type Edge struct {
	To       *Node
	Distance float64
}

// Node is a vertex of the road graph.
//
// The occupant list is owned by the single-threaded simulation passes; it must
// not be touched from route workers.
type Node struct {
	ID int64
	Coordinate
	Edges []Edge
	// index in the search graph, -1 until the road network is built
	Index int

	occupants []int
}

func NewNode(id int64, c Coordinate) *Node {
	return &Node{ID: id, Coordinate: c, Edges: make([]Edge, 0), Index: -1}
}

// Connect links n and o in both directions. Self loops and duplicates are ignored.
func (n *Node) Connect(o *Node) {
	if n == o || n.IsAdjacent(o) {
		return
	}
	d := n.Distance(o.Coordinate)
	n.Edges = append(n.Edges, Edge{To: o, Distance: d})
	o.Edges = append(o.Edges, Edge{To: n, Distance: d})
}

func (n *Node) IsAdjacent(o *Node) bool {
	for _, e := range n.Edges {
		if e.To == o {
			return true
		}
	}
	return false
}

func (n *Node) AddOccupant(agentID int) {
	n.occupants = append(n.occupants, agentID)
}

func (n *Node) RemoveOccupant(agentID int) bool {
	for i, id := range n.occupants {
		if id == agentID {
			n.occupants = append(n.occupants[:i], n.occupants[i+1:]...)
			return true
		}
	}
	return false
}

// Occupants returns a copy of the agent ids currently located at n.
func (n *Node) Occupants() []int {
	out := make([]int, len(n.occupants))
	copy(out, n.occupants)
	return out
}
