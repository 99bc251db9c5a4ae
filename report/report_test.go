package report_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"testing"

	"git.fiblab.net/sim/epidemic/report"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestTimestamp(t *testing.T) {
	ts := report.NewTimestamp(0)
	assert.Equal(t, report.Timestamp{}, ts)

	// day 8, 23:59:59
	ts = report.NewTimestamp(8*86400 + 23*3600 + 59*60 + 59)
	assert.Equal(t, 8, ts.Day)
	assert.Equal(t, 23, ts.Hour)
	assert.Equal(t, 59, ts.Minute)
	assert.Equal(t, 1, ts.Weekday())
}

func TestSummaryTotal(t *testing.T) {
	s := report.Summary{Susceptible: 3, Exposed: 2, Infectious: 1, Recovered: 4}
	assert.Equal(t, 10, s.Total())
}

func TestMemorySink(t *testing.T) {
	ctx := context.Background()
	s := report.NewMemorySink()
	require.NoError(t, s.WriteSummaries(ctx, []report.Summary{{Susceptible: 1}}))
	require.NoError(t, s.WriteSummaries(ctx, []report.Summary{{Susceptible: 2}, {Susceptible: 3}}))
	require.NoError(t, s.WriteInfections(ctx, []report.InfectionRecord{{TargetID: 4}}))
	require.NoError(t, s.WriteAgents(ctx, []report.AgentRecord{{ID: 5}}))
	require.NoError(t, s.Close(ctx))

	assert.Len(t, s.Summaries(), 3)
	assert.Equal(t, 2, s.Flushes())
	assert.Equal(t, 4, s.Infections()[0].TargetID)
	assert.Equal(t, 5, s.Agents()[0].ID)
	assert.True(t, s.Closed())
}

type failingSink struct {
	report.MemorySink
}

var errBroken = errors.New("broken")

func (*failingSink) WriteSummaries(context.Context, []report.Summary) error {
	return errBroken
}

func TestMultiSink(t *testing.T) {
	ctx := context.Background()
	a, b := report.NewMemorySink(), &failingSink{}
	m := report.MultiSink{a, b}
	err := m.WriteSummaries(ctx, []report.Summary{{Exposed: 1}})
	assert.ErrorIs(t, err, errBroken)
	// the healthy sink still got the batch
	assert.Len(t, a.Summaries(), 1)
	require.NoError(t, m.WriteAgents(ctx, []report.AgentRecord{{ID: 1}}))
	assert.Len(t, b.Agents(), 1)
}

type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = body
	return &s3.PutObjectOutput{}, nil
}

func TestS3Sink(t *testing.T) {
	ctx := context.Background()
	client := &fakeS3{objects: make(map[string][]byte)}
	s := report.NewS3Sink(client, "bucket", "runs", "r1")
	require.NoError(t, s.WriteSummaries(ctx, []report.Summary{{Susceptible: 9}}))
	require.NoError(t, s.WriteSummaries(ctx, []report.Summary{{Susceptible: 8}}))
	// empty batches are not uploaded
	require.NoError(t, s.WriteInfections(ctx, nil))
	require.NoError(t, s.Close(ctx))

	require.Len(t, client.objects, 2)
	body, ok := client.objects["bucket/runs/r1/summary-00001.json"]
	require.True(t, ok)
	var got []report.Summary
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, 8, got[0].Susceptible)
}

func TestMongoSink(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx := context.Background()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	defer client.Disconnect(ctx)

	runID := report.NewRunID()
	db := client.Database("epidemic_test")
	s := report.NewMongoSink(db, "test", runID)
	require.NoError(t, s.WriteSummaries(ctx, []report.Summary{{Timestamp: report.NewTimestamp(60), Susceptible: 1}}))
	defer db.Collection("test_summary").DeleteMany(ctx, bson.M{"run_id": runID})

	var got report.Summary
	require.NoError(t, db.Collection("test_summary").FindOne(ctx, bson.M{"run_id": runID}).Decode(&got))
	assert.Equal(t, int64(60), got.Step)
	assert.Equal(t, 1, got.Minute)
}
