package mapdata

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// RawNode, RawWay and Raw are the output of the map ingestion step
// (OSM parsing happens upstream).
type RawNode struct {
	ID  int64   `json:"id" bson:"id"`
	Lat float64 `json:"lat" bson:"lat"`
	Lon float64 `json:"lon" bson:"lon"`
}

type RawWay struct {
	ID    int64             `json:"id" bson:"id"`
	Nodes []int64           `json:"nodes" bson:"nodes"`
	Tags  map[string]string `json:"tags,omitempty" bson:"tags,omitempty"`
}

type Raw struct {
	Nodes     []RawNode `json:"nodes" bson:"nodes"`
	Roads     []RawWay  `json:"roads" bson:"roads"`
	Buildings []RawWay  `json:"buildings" bson:"buildings"`
}

// LoadFile reads a JSON encoded Raw.
func LoadFile(path string) (*Raw, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open map file: %w", err)
	}
	defer f.Close()
	raw := &Raw{}
	if err := json.NewDecoder(f).Decode(raw); err != nil {
		return nil, fmt.Errorf("decode map file %s: %w", path, err)
	}
	return raw, nil
}

type rawDoc struct {
	Class string   `bson:"class"`
	Data  bson.Raw `bson:"data"`
}

// LoadFromMongo reads a map stored one item per document:
// {class: "node"|"road"|"building", data: {...}}.
func LoadFromMongo(ctx context.Context, coll *mongo.Collection) (*Raw, error) {
	cur, err := coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("find map documents: %w", err)
	}
	defer cur.Close(ctx)
	raw := &Raw{}
	for cur.Next(ctx) {
		var doc rawDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode map document: %w", err)
		}
		switch doc.Class {
		case "node":
			var n RawNode
			if err := bson.Unmarshal(doc.Data, &n); err != nil {
				return nil, fmt.Errorf("decode node: %w", err)
			}
			raw.Nodes = append(raw.Nodes, n)
		case "road", "building":
			var w RawWay
			if err := bson.Unmarshal(doc.Data, &w); err != nil {
				return nil, fmt.Errorf("decode %s: %w", doc.Class, err)
			}
			if doc.Class == "road" {
				raw.Roads = append(raw.Roads, w)
			} else {
				raw.Buildings = append(raw.Buildings, w)
			}
		default:
			log.Debugf("skip map document with class %q", doc.Class)
		}
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate map documents: %w", err)
	}
	log.Infof("loaded %d nodes, %d roads, %d buildings from %s",
		len(raw.Nodes), len(raw.Roads), len(raw.Buildings), coll.Name())
	return raw, nil
}
