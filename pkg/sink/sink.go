package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/flooanalytics/ingest/pkg/observability"
)

// Record is one admitted, enriched event
type Record struct {
	EventType string
	Payload   map[string]any
	Timestamp time.Time
}

type recordJSON struct {
	EventType string `json:"event_type"`
	Data      string `json:"data"`
	Timestamp string `json:"timestamp"`
}

// MarshalJSON encodes the record as a warehouse row. The payload is stored as
// a JSON-encoded string in the data column.
func (r Record) MarshalJSON() ([]byte, error) {
	payload := r.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload of %s: %w", r.EventType, err)
	}
	return json.Marshal(recordJSON{
		EventType: r.EventType,
		Data:      string(data),
		Timestamp: r.Timestamp.UTC().Format(time.RFC3339Nano),
	})
}

// Sink appends admitted records for a site
type Sink interface {
	Append(ctx context.Context, siteID string, records []Record) error
}

// Batch is one Append call captured by MemorySink
type Batch struct {
	SiteID  string
	Records []Record
}

// MemorySink stores every batch in memory
type MemorySink struct {
	mu      sync.Mutex
	batches []Batch
	err     error
}

// NewMemorySink creates an empty MemorySink
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Append implements Sink
func (s *MemorySink) Append(_ context.Context, siteID string, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, Batch{SiteID: siteID, Records: append([]Record(nil), records...)})
	return nil
}

// FailWith makes subsequent appends return err; nil restores normal behavior
func (s *MemorySink) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Batches returns a copy of the captured batches
func (s *MemorySink) Batches() []Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Batch(nil), s.batches...)
}

// Records returns every captured record in append order
func (s *MemorySink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, b := range s.batches {
		out = append(out, b.Records...)
	}
	return out
}

// Instrumented records latency and outcome of every write of next
type Instrumented struct {
	name    string
	next    Sink
	metrics *observability.Metrics
}

// NewInstrumented wraps next, labelling metrics with name
func NewInstrumented(name string, next Sink, metrics *observability.Metrics) *Instrumented {
	return &Instrumented{name: name, next: next, metrics: metrics}
}

// Append implements Sink
func (s *Instrumented) Append(ctx context.Context, siteID string, records []Record) error {
	start := time.Now()
	err := s.next.Append(ctx, siteID, records)
	s.metrics.RecordSinkWrite(s.name, time.Since(start), err)
	return err
}
