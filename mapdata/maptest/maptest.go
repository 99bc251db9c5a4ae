// Package maptest builds small synthetic cities for tests.
package maptest

import (
	"git.fiblab.net/sim/epidemic/mapdata"
)

const Spacing = 0.01

// Blocks returns an n x n street lattice with Spacing degrees between
// intersections. Node (row, col) has id row*n+col+1. Every block gets one
// square building at its center, typed by cycling through types.
func Blocks(n int, types ...string) *mapdata.Raw {
	raw := &mapdata.Raw{}
	id := func(row, col int) int64 { return int64(row*n + col + 1) }
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			raw.Nodes = append(raw.Nodes, mapdata.RawNode{
				ID: id(row, col), Lat: float64(row) * Spacing, Lon: float64(col) * Spacing,
			})
		}
	}
	for row := 0; row < n; row++ {
		way := mapdata.RawWay{ID: int64(100 + row)}
		for col := 0; col < n; col++ {
			way.Nodes = append(way.Nodes, id(row, col))
		}
		raw.Roads = append(raw.Roads, way)
	}
	for col := 0; col < n; col++ {
		way := mapdata.RawWay{ID: int64(200 + col)}
		for row := 0; row < n; row++ {
			way.Nodes = append(way.Nodes, id(row, col))
		}
		raw.Roads = append(raw.Roads, way)
	}
	i := 0
	for row := 0; row+1 < n; row++ {
		for col := 0; col+1 < n; col++ {
			tags := map[string]string{}
			if len(types) > 0 {
				tags[mapdata.BUILDING_TAG] = types[i%len(types)]
			}
			square(raw, int64(1+i), (float64(row)+0.5)*Spacing, (float64(col)+0.5)*Spacing, tags)
			i++
		}
	}
	return raw
}

func square(raw *mapdata.Raw, bid int64, lat, lon float64, tags map[string]string) {
	base := 100000 + 10*bid
	d := Spacing / 20
	corners := [][2]float64{{lat - d, lon - d}, {lat - d, lon + d}, {lat + d, lon + d}, {lat + d, lon - d}}
	ids := make([]int64, 0, len(corners)+1)
	for i, c := range corners {
		raw.Nodes = append(raw.Nodes, mapdata.RawNode{ID: base + int64(i), Lat: c[0], Lon: c[1]})
		ids = append(ids, base+int64(i))
	}
	raw.Buildings = append(raw.Buildings, mapdata.RawWay{ID: bid, Nodes: append(ids, base), Tags: tags})
}

// WithIsland adds a two-node road next to the lattice that is not connected
// to it, and returns the ids of its nodes.
func WithIsland(raw *mapdata.Raw, n int) (int64, int64) {
	a, b := int64(900001), int64(900002)
	lat := float64(n) * Spacing
	raw.Nodes = append(raw.Nodes,
		mapdata.RawNode{ID: a, Lat: lat, Lon: 0},
		mapdata.RawNode{ID: b, Lat: lat, Lon: Spacing},
	)
	raw.Roads = append(raw.Roads, mapdata.RawWay{ID: 900, Nodes: []int64{a, b}})
	return a, b
}

// City builds raw on a grid of n x n cells.
func City(raw *mapdata.Raw, cells int) (*mapdata.City, error) {
	return mapdata.Build(raw, mapdata.BuildOptions{Rows: cells, Cols: cells})
}
