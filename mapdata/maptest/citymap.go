package maptest

import (
	geov2 "git.fiblab.net/sim/protos/v2/go/city/geo/v2"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
)

const (
	CityMapLat0 = 39.9
	CityMapLon0 = 116.4
)

func polyline(xy ...float64) *mapv2.Polyline {
	line := &mapv2.Polyline{}
	for i := 0; i+1 < len(xy); i += 2 {
		line.Nodes = append(line.Nodes, &geov2.XYPosition{X: xy[i], Y: xy[i+1]})
	}
	return line
}

func aoiSquare(x, y, half float64) []*geov2.XYPosition {
	return polyline(x-half, y-half, x+half, y-half, x+half, y+half, x-half, y+half).Nodes
}

// CityMap is a tiny city map pb projected around (CityMapLat0, CityMapLon0).
//
//	road 1 (0,0)->(100,0), junction lanes 4 and 5 both join it to
//	road 2 (110,0)->(200,0); road 3 has a walking lane only, road 4 no lane.
//	aoi 10 residential, 11 bus station, 12 without outline, 13 untyped.
func CityMap() *mapv2.Map {
	junction := int32(3_0000_0000)
	link := func(id int32) []*mapv2.LaneConnection {
		return []*mapv2.LaneConnection{{Id: id}}
	}
	return &mapv2.Map{
		Header: &mapv2.Header{
			Name:       "test",
			Projection: "+proj=tmerc +lat_0=39.9 +lon_0=116.4",
		},
		Lanes: []*mapv2.Lane{
			{Id: 1, Type: mapv2.LaneType_LANE_TYPE_DRIVING, ParentId: 1, CenterLine: polyline(0, 0, 100, 0)},
			{Id: 2, Type: mapv2.LaneType_LANE_TYPE_DRIVING, ParentId: 2, CenterLine: polyline(110, 0, 200, 0)},
			{Id: 3, Type: mapv2.LaneType_LANE_TYPE_WALKING, ParentId: 3, CenterLine: polyline(0, 50, 0, 150)},
			{
				Id: 4, Type: mapv2.LaneType_LANE_TYPE_DRIVING, ParentId: junction,
				CenterLine: polyline(100, 0, 110, 0), Predecessors: link(1), Successors: link(2),
			},
			{
				Id: 5, Type: mapv2.LaneType_LANE_TYPE_DRIVING, ParentId: junction,
				CenterLine: polyline(100, 1, 110, 1), Predecessors: link(1), Successors: link(2),
			},
			{
				Id: 6, Type: mapv2.LaneType_LANE_TYPE_WALKING, ParentId: junction,
				CenterLine: polyline(200, 0, 0, 50), Predecessors: link(2), Successors: link(3),
			},
		},
		Roads: []*mapv2.Road{
			{Id: 1, LaneIds: []int32{1}},
			{Id: 2, LaneIds: []int32{2}},
			{Id: 3, LaneIds: []int32{3}},
			{Id: 4},
		},
		Aois: []*mapv2.Aoi{
			{Id: 10, Positions: aoiSquare(50, 20, 5), LandUse: mapv2.LandUseType_LAND_USE_TYPE_RESIDENTIAL.Enum()},
			{Id: 11, Type: mapv2.AoiType_AOI_TYPE_BUS_STATION, Positions: aoiSquare(150, -20, 5)},
			{Id: 12},
			{Id: 13, Positions: aoiSquare(20, 100, 5)},
		},
	}
}
