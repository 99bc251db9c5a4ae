package report

import (
	"context"
	"errors"
	"sync"
)

// Sink receives the reports of a run. Every batch is written once.
type Sink interface {
	WriteSummaries(ctx context.Context, summaries []Summary) error
	WriteInfections(ctx context.Context, infections []InfectionRecord) error
	WriteAgents(ctx context.Context, agents []AgentRecord) error
	Close(ctx context.Context) error
}

// MemorySink keeps everything in memory, for tests and the status server.
type MemorySink struct {
	mu         sync.Mutex
	summaries  []Summary
	infections []InfectionRecord
	agents     []AgentRecord
	flushes    int
	closed     bool
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) WriteSummaries(_ context.Context, summaries []Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = append(s.summaries, summaries...)
	s.flushes++
	return nil
}

func (s *MemorySink) WriteInfections(_ context.Context, infections []InfectionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.infections = append(s.infections, infections...)
	return nil
}

func (s *MemorySink) WriteAgents(_ context.Context, agents []AgentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents = append(s.agents, agents...)
	return nil
}

func (s *MemorySink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MemorySink) Summaries() []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Summary(nil), s.summaries...)
}

func (s *MemorySink) Infections() []InfectionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]InfectionRecord(nil), s.infections...)
}

func (s *MemorySink) Agents() []AgentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AgentRecord(nil), s.agents...)
}

// Flushes counts the summary batches received.
func (s *MemorySink) Flushes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

func (s *MemorySink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// MultiSink fans every batch out to all sinks and joins their errors.
type MultiSink []Sink

func (m MultiSink) each(f func(Sink) error) error {
	errs := make([]error, 0)
	for _, s := range m {
		if err := f(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) WriteSummaries(ctx context.Context, summaries []Summary) error {
	return m.each(func(s Sink) error { return s.WriteSummaries(ctx, summaries) })
}

func (m MultiSink) WriteInfections(ctx context.Context, infections []InfectionRecord) error {
	return m.each(func(s Sink) error { return s.WriteInfections(ctx, infections) })
}

func (m MultiSink) WriteAgents(ctx context.Context, agents []AgentRecord) error {
	return m.each(func(s Sink) error { return s.WriteAgents(ctx, agents) })
}

func (m MultiSink) Close(ctx context.Context) error {
	return m.each(func(s Sink) error { return s.Close(ctx) })
}
