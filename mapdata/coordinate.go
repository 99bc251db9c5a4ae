package mapdata

import (
	"git.fiblab.net/general/common/v2/geometry"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

// Coordinate is an immutable latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lon float64 `json:"lon" bson:"lon"`
}

func NewCoordinate(lat, lon float64) Coordinate {
	return Coordinate{Lat: lat, Lon: lon}
}

func FromPoint(p orb.Point) Coordinate {
	return Coordinate{Lat: p.Lat(), Lon: p.Lon()}
}

// Point returns the orb representation (x=lon, y=lat).
func (c Coordinate) Point() orb.Point {
	return orb.Point{c.Lon, c.Lat}
}

// XY returns the planar point used for interpolation and search heuristics.
func (c Coordinate) XY() geometry.Point {
	return geometry.Point{X: c.Lon, Y: c.Lat}
}

func (c Coordinate) Translate(dLat, dLon float64) Coordinate {
	return Coordinate{Lat: c.Lat + dLat, Lon: c.Lon + dLon}
}

// Distance is the great-circle distance in meters.
func (c Coordinate) Distance(o Coordinate) float64 {
	return geo.Distance(c.Point(), o.Point())
}

// PlanarDistance is the euclidean distance in degree space.
func (c Coordinate) PlanarDistance(o Coordinate) float64 {
	return planar.Distance(c.Point(), o.Point())
}

// Blend interpolates between c and o, t in [0,1].
func (c Coordinate) Blend(o Coordinate, t float64) Coordinate {
	p := geometry.Blend(c.XY(), o.XY(), t)
	return Coordinate{Lat: p.Y, Lon: p.X}
}
