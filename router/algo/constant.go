package algo

import "errors"

var (
	// edge does not exist
	ErrNoEdge = errors.New("no such edge in search graph")
	// negative edge weights break Dijkstra
	ErrNegativeWeight = errors.New("negative edge weight")
)
