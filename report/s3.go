package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectPutter is the part of the S3 client used by S3Sink.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads every batch as one JSON object under
// <prefix>/<run id>/<kind>-<seq>.json.
type S3Sink struct {
	RunID  string
	bucket string
	prefix string
	client ObjectPutter

	mu  sync.Mutex
	seq map[string]int
}

func NewS3Sink(client ObjectPutter, bucket, prefix, runID string) *S3Sink {
	return &S3Sink{
		RunID:  runID,
		bucket: bucket,
		prefix: prefix,
		client: client,
		seq:    make(map[string]int),
	}
}

// NewS3SinkFromEnv builds the client from the default AWS configuration chain.
func NewS3SinkFromEnv(ctx context.Context, region, bucket, prefix, runID string) (*S3Sink, error) {
	opts := make([]func(*config.LoadOptions) error, 0)
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3Sink(s3.NewFromConfig(cfg), bucket, prefix, runID), nil
}

func (s *S3Sink) key(kind string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.seq[kind]
	s.seq[kind]++
	return fmt.Sprintf("%s/%s/%s-%05d.json", s.prefix, s.RunID, kind, n)
}

func (s *S3Sink) put(ctx context.Context, kind string, v any, count int) error {
	if count == 0 {
		return nil
	}
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	key := s.key(kind)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", s.bucket, key, err)
	}
	log.Debugf("uploaded %d %s records to s3://%s/%s", count, kind, s.bucket, key)
	return nil
}

func (s *S3Sink) WriteSummaries(ctx context.Context, summaries []Summary) error {
	return s.put(ctx, "summary", summaries, len(summaries))
}

func (s *S3Sink) WriteInfections(ctx context.Context, infections []InfectionRecord) error {
	return s.put(ctx, "infection", infections, len(infections))
}

func (s *S3Sink) WriteAgents(ctx context.Context, agents []AgentRecord) error {
	return s.put(ctx, "agent", agents, len(agents))
}

func (s *S3Sink) Close(context.Context) error {
	return nil
}
