package report

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoSink writes each record kind to its own collection, tagging every
// document with the run id.
type MongoSink struct {
	RunID      string
	summaries  *mongo.Collection
	infections *mongo.Collection
	agents     *mongo.Collection
}

// NewMongoSink uses the collections <prefix>_summary, <prefix>_infection and
// <prefix>_agent of db.
func NewMongoSink(db *mongo.Database, prefix, runID string) *MongoSink {
	return &MongoSink{
		RunID:      runID,
		summaries:  db.Collection(prefix + "_summary"),
		infections: db.Collection(prefix + "_infection"),
		agents:     db.Collection(prefix + "_agent"),
	}
}

func insert[T any](ctx context.Context, coll *mongo.Collection, records []T) error {
	if len(records) == 0 {
		return nil
	}
	docs := lo.Map(records, func(r T, _ int) any { return r })
	if _, err := coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert %d documents into %s: %w", len(docs), coll.Name(), err)
	}
	log.Debugf("inserted %d documents into %s", len(docs), coll.Name())
	return nil
}

func (s *MongoSink) WriteSummaries(ctx context.Context, summaries []Summary) error {
	return insert(ctx, s.summaries, lo.Map(summaries, func(r Summary, _ int) Summary {
		r.RunID = s.RunID
		return r
	}))
}

func (s *MongoSink) WriteInfections(ctx context.Context, infections []InfectionRecord) error {
	return insert(ctx, s.infections, lo.Map(infections, func(r InfectionRecord, _ int) InfectionRecord {
		r.RunID = s.RunID
		return r
	}))
}

func (s *MongoSink) WriteAgents(ctx context.Context, agents []AgentRecord) error {
	return insert(ctx, s.agents, lo.Map(agents, func(r AgentRecord, _ int) AgentRecord {
		r.RunID = s.RunID
		return r
	}))
}

// Close leaves the client to its owner.
func (s *MongoSink) Close(context.Context) error {
	return nil
}
