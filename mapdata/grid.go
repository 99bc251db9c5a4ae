package mapdata

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/samber/lo"
)

var ErrBadCellSize = errors.New("grid cell size must be positive")

// Cell owns the map items whose geometry falls inside its bound.
type Cell struct {
	Row, Col  int
	Bound     orb.Bound
	Roads     []*Road
	Buildings []*Building
	Nodes     []*Node
}

func (c *Cell) addRoad(r *Road) {
	// a road is added segment by segment, skip the repeat from the previous segment
	if len(c.Roads) > 0 && c.Roads[len(c.Roads)-1] == r {
		return
	}
	c.Roads = append(c.Roads, r)
}

// Grid partitions a bounding area into fixed-size cells. It is filled once
// during index construction and read-only afterwards.
type Grid struct {
	Bound            orb.Bound
	CellLat, CellLon float64
	Rows, Cols       int

	cells []*Cell
}

// NewGrid creates a grid of cellLat x cellLon degree cells covering bound.
func NewGrid(bound orb.Bound, cellLat, cellLon float64) (*Grid, error) {
	if !(cellLat > 0) || !(cellLon > 0) {
		return nil, fmt.Errorf("%w: lat=%v lon=%v", ErrBadCellSize, cellLat, cellLon)
	}
	rows := lo.Max([]int{1, int(math.Ceil((bound.Max.Lat() - bound.Min.Lat()) / cellLat))})
	cols := lo.Max([]int{1, int(math.Ceil((bound.Max.Lon() - bound.Min.Lon()) / cellLon))})
	return newGrid(bound, cellLat, cellLon, rows, cols), nil
}

func newGrid(bound orb.Bound, cellLat, cellLon float64, rows, cols int) *Grid {
	g := &Grid{
		Bound:   bound,
		CellLat: cellLat,
		CellLon: cellLon,
		Rows:    rows,
		Cols:    cols,
		cells:   make([]*Cell, rows*cols),
	}
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			min := orb.Point{
				bound.Min.Lon() + float64(col)*cellLon,
				bound.Min.Lat() + float64(row)*cellLat,
			}
			g.cells[row*cols+col] = &Cell{
				Row:   row,
				Col:   col,
				Bound: orb.Bound{Min: min, Max: orb.Point{min[0] + cellLon, min[1] + cellLat}},
			}
		}
	}
	return g
}

// NewGridWithShape splits bound into rows x cols cells.
func NewGridWithShape(bound orb.Bound, rows, cols int) (*Grid, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: rows=%d cols=%d", ErrBadCellSize, rows, cols)
	}
	cellLat := (bound.Max.Lat() - bound.Min.Lat()) / float64(rows)
	cellLon := (bound.Max.Lon() - bound.Min.Lon()) / float64(cols)
	// 退化的bound（单点或一条线）仍需要至少一个格子
	if cellLat <= 0 {
		cellLat = 1e-6
	}
	if cellLon <= 0 {
		cellLon = 1e-6
	}
	return newGrid(bound, cellLat, cellLon, rows, cols), nil
}

// Locate returns the cell containing c. Coordinates outside the bound are
// clamped to the border cells and reported with ok=false.
func (g *Grid) Locate(c Coordinate) (row, col int, ok bool) {
	row = int(math.Floor((c.Lat - g.Bound.Min.Lat()) / g.CellLat))
	col = int(math.Floor((c.Lon - g.Bound.Min.Lon()) / g.CellLon))
	ok = g.Bound.Contains(c.Point())
	return lo.Clamp(row, 0, g.Rows-1), lo.Clamp(col, 0, g.Cols-1), ok
}

func (g *Grid) Cell(row, col int) *Cell {
	if row < 0 || col < 0 || row >= g.Rows || col >= g.Cols {
		return nil
	}
	return g.cells[row*g.Cols+col]
}

func (g *Grid) CellAt(c Coordinate) *Cell {
	row, col, _ := g.Locate(c)
	return g.Cell(row, col)
}

func (g *Grid) Cells() []*Cell {
	return g.cells
}

// Ring returns the cells at chebyshev distance radius from (row, col), in
// row-major order. Radius 0 is the cell itself.
func (g *Grid) Ring(row, col, radius int) []*Cell {
	ring := make([]*Cell, 0, 8*lo.Max([]int{radius, 1}))
	for r := row - radius; r <= row+radius; r++ {
		for c := col - radius; c <= col+radius; c++ {
			if lo.Max([]int{abs(r - row), abs(c - col)}) != radius {
				continue
			}
			if cell := g.Cell(r, c); cell != nil {
				ring = append(ring, cell)
			}
		}
	}
	return ring
}

func (g *Grid) AddNode(n *Node) {
	g.CellAt(n.Coordinate).Nodes = append(g.CellAt(n.Coordinate).Nodes, n)
}

func (g *Grid) AddBuilding(b *Building) {
	cell := g.CellAt(b.Coordinate)
	cell.Buildings = append(cell.Buildings, b)
}

// AddRoad registers r in every cell overlapped by the bound of one of its segments.
func (g *Grid) AddRoad(r *Road) {
	line := r.Line()
	if len(line) == 1 {
		g.CellAt(FromPoint(line[0])).addRoad(r)
		return
	}
	for i := 0; i+1 < len(line); i++ {
		b := orb.MultiPoint{line[i], line[i+1]}.Bound()
		r0, c0, _ := g.Locate(FromPoint(b.Min))
		r1, c1, _ := g.Locate(FromPoint(b.Max))
		for row := r0; row <= r1; row++ {
			for col := c0; col <= c1; col++ {
				g.Cell(row, col).addRoad(r)
			}
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
