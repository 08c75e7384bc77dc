package sink

import (
	"context"
	"errors"
	"time"

	"github.com/flooanalytics/ingest/pkg/async"
	"github.com/flooanalytics/ingest/pkg/observability"
)

// AsyncConfig configures NewAsyncSink
type AsyncConfig struct {
	Workers      int
	QueueSize    int
	WriteTimeout time.Duration
	Logger       *observability.Logger
	Metrics      *observability.Metrics
}

// AsyncSink acknowledges batches once queued and writes them to the wrapped
// sink on a worker pool. When the queue is full the batch is written inline
// so no admitted event is dropped.
type AsyncSink struct {
	next    Sink
	pool    *async.WorkerPool
	timeout time.Duration
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewAsyncSink starts the worker pool. Call Close to drain it.
func NewAsyncSink(ctx context.Context, next Sink, cfg AsyncConfig) *AsyncSink {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.FromContext(ctx)
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	s := &AsyncSink{
		next:    next,
		timeout: timeout,
		logger:  logger,
		metrics: cfg.Metrics,
	}
	s.pool = async.NewWorkerPool(ctx, async.PoolConfig{
		Name:        "sink",
		Workers:     cfg.Workers,
		QueueSize:   cfg.QueueSize,
		TaskTimeout: timeout,
		Logger:      logger,
		OnError: func(err error) {
			logger.WithError(err).Error("Asynchronous sink write failed")
		},
	})
	return s
}

// Append implements Sink
func (s *AsyncSink) Append(ctx context.Context, siteID string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	batch := append([]Record(nil), records...)
	task := func(ctx context.Context) error {
		return s.next.Append(ctx, siteID, batch)
	}

	err := s.pool.TrySubmit(task)
	s.metrics.SetSinkQueueDepth(s.pool.Len())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, async.ErrQueueFull):
		s.logger.WithField("site_id", siteID).Warn("Sink queue full, writing inline")
		writeCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return s.next.Append(writeCtx, siteID, batch)
	default:
		return err
	}
}

// Close stops accepting batches and waits for queued ones to be written
func (s *AsyncSink) Close(ctx context.Context) error {
	err := s.pool.Shutdown(ctx)
	s.metrics.SetSinkQueueDepth(0)
	return err
}
