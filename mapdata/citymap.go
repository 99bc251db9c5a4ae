package mapdata

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"git.fiblab.net/general/common/v2/geometry"
	"git.fiblab.net/general/common/v2/mongoutil"
	"git.fiblab.net/general/common/v2/protoutil"
	geov2 "git.fiblab.net/sim/protos/v2/go/city/geo/v2"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/paulmach/orb"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	// lane parent id at or above which the parent is a junction
	ROAD_JUNCTION_SPLIT = 3_0000_0000
)

var ErrBadProjection = errors.New("map header projection has no usable origin")

// building type per AOI land use, missing entries stay placeholders
var landUseTypes = map[mapv2.LandUseType]string{
	mapv2.LandUseType_LAND_USE_TYPE_RESIDENTIAL:    "residential",
	mapv2.LandUseType_LAND_USE_TYPE_COMMERCIAL:     "commercial",
	mapv2.LandUseType_LAND_USE_TYPE_INDUSTRIAL:     "industrial",
	mapv2.LandUseType_LAND_USE_TYPE_PUBLIC:         "public",
	mapv2.LandUseType_LAND_USE_TYPE_TRANSPORTATION: "transportation",
}

// Projection maps the planar xy meters of a city map back to lat/lon around
// the projection origin. Exact near the origin, good to city scale.
type Projection struct {
	Lat0, Lon0 float64
	// false easting/northing
	X0, Y0 float64
}

// ParseProjection reads the origin of a proj4 string such as
// "+proj=tmerc +lat_0=39.9 +lon_0=116.4".
func ParseProjection(proj4 string) (Projection, error) {
	p := Projection{}
	found := 0
	for _, field := range strings.Fields(proj4) {
		key, value, ok := strings.Cut(strings.TrimPrefix(field, "+"), "=")
		if !ok {
			continue
		}
		var dst *float64
		switch key {
		case "lat_0":
			dst = &p.Lat0
			found++
		case "lon_0":
			dst = &p.Lon0
			found++
		case "x_0":
			dst = &p.X0
		case "y_0":
			dst = &p.Y0
		default:
			continue
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return p, fmt.Errorf("%w: %s: %v", ErrBadProjection, field, err)
		}
		*dst = v
	}
	if found != 2 {
		return p, fmt.Errorf("%w: %q", ErrBadProjection, proj4)
	}
	return p, nil
}

func (p Projection) Inverse(xy geometry.Point) Coordinate {
	const deg = 180 / math.Pi
	lat := p.Lat0 + (xy.Y-p.Y0)/orb.EarthRadius*deg
	lon := p.Lon0 + (xy.X-p.X0)/(orb.EarthRadius*math.Cos(p.Lat0/deg))*deg
	return NewCoordinate(lat, lon)
}

func aoiType(aoi *mapv2.Aoi) string {
	if t, ok := landUseTypes[aoi.GetLandUse()]; ok {
		return t
	}
	if aoi.Type == mapv2.AoiType_AOI_TYPE_BUS_STATION {
		return "bus_station"
	}
	return "yes"
}

// FromMapPb converts a city map into Raw. Every road becomes one way along
// the center line of its first driving lane; junction driving lanes become
// short ways joining the tail of their predecessor road to the head of their
// successor road. AOI outlines become buildings typed by land use.
func FromMapPb(m *mapv2.Map) (*Raw, error) {
	proj, err := ParseProjection(m.GetHeader().GetProjection())
	if err != nil {
		return nil, err
	}
	raw := &Raw{}
	addNode := func(pb *geov2.XYPosition) int64 {
		c := proj.Inverse(geometry.NewPointFromPb(pb))
		id := int64(len(raw.Nodes) + 1)
		raw.Nodes = append(raw.Nodes, RawNode{ID: id, Lat: c.Lat, Lon: c.Lon})
		return id
	}

	lanes := lo.SliceToMap(m.Lanes, func(l *mapv2.Lane) (int32, *mapv2.Lane) {
		return l.Id, l
	})
	// 每条road的首尾节点
	heads, tails := make(map[int32]int64), make(map[int32]int64)
	for _, road := range m.Roads {
		candidates := lo.FilterMap(road.LaneIds, func(id int32, _ int) (*mapv2.Lane, bool) {
			l, ok := lanes[id]
			return l, ok && len(l.GetCenterLine().GetNodes()) > 0
		})
		if len(candidates) == 0 {
			log.Warnf("skip road %d without lanes", road.Id)
			continue
		}
		lane, ok := lo.Find(candidates, func(l *mapv2.Lane) bool {
			return l.Type == mapv2.LaneType_LANE_TYPE_DRIVING
		})
		if !ok {
			lane = candidates[0]
		}
		way := RawWay{ID: int64(road.Id), Nodes: lo.Map(lane.CenterLine.Nodes, func(pb *geov2.XYPosition, _ int) int64 {
			return addNode(pb)
		})}
		heads[road.Id], tails[road.Id] = way.Nodes[0], way.Nodes[len(way.Nodes)-1]
		raw.Roads = append(raw.Roads, way)
	}

	type link struct{ from, to int64 }
	linked := make(map[link]bool)
	for _, lane := range m.Lanes {
		if lane.ParentId < ROAD_JUNCTION_SPLIT || lane.Type != mapv2.LaneType_LANE_TYPE_DRIVING {
			continue
		}
		if len(lane.Predecessors) == 0 || len(lane.Successors) == 0 {
			continue
		}
		// junction中的车道只有一个前驱后继
		pre, okPre := lanes[lane.Predecessors[0].Id]
		suc, okSuc := lanes[lane.Successors[0].Id]
		if !okPre || !okSuc {
			continue
		}
		from, okFrom := tails[pre.ParentId]
		to, okTo := heads[suc.ParentId]
		l := link{from, to}
		if !okFrom || !okTo || from == to || linked[l] {
			continue
		}
		linked[l] = true
		raw.Roads = append(raw.Roads, RawWay{ID: int64(lane.Id), Nodes: []int64{from, to}})
	}

	for _, aoi := range m.Aois {
		if len(aoi.Positions) == 0 {
			continue
		}
		raw.Buildings = append(raw.Buildings, RawWay{
			ID:    int64(aoi.Id),
			Nodes: lo.Map(aoi.Positions, func(pb *geov2.XYPosition, _ int) int64 { return addNode(pb) }),
			Tags:  map[string]string{BUILDING_TAG: aoiType(aoi)},
		})
	}
	log.Infof("city map converted: %d roads, %d junction links, %d aois",
		len(heads), len(linked), len(raw.Buildings))
	return raw, nil
}

// LoadMapPbFile reads a city map stored as a binary protobuf file.
func LoadMapPbFile(path string) (*mapv2.Map, error) {
	m := &mapv2.Map{}
	if err := protoutil.UnmarshalFromFile(m, path); err != nil {
		return nil, fmt.Errorf("read map pb %s: %w", path, err)
	}
	return m, nil
}

// LoadMapPbFromMongo downloads a city map stored one item per document.
func LoadMapPbFromMongo(ctx context.Context, coll *mongo.Collection) (*mapv2.Map, error) {
	m, errs := mongoutil.DownloadPbFromMongo[mapv2.Map](ctx, coll, nil, nil)
	if len(errs) > 0 {
		return nil, fmt.Errorf("download map from %s: %w", coll.Name(), errors.Join(errs...))
	}
	return m, nil
}
