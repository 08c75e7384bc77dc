package async

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/flooanalytics/ingest/pkg/observability"
)

var (
	// ErrPoolClosed is returned when submitting to a pool that is shutting down
	ErrPoolClosed = errors.New("worker pool shut down")
	// ErrQueueFull is returned by TrySubmit when the queue has no free slot
	ErrQueueFull = errors.New("worker pool queue full")
)

// Task is a unit of work run by a WorkerPool
type Task func(context.Context) error

// SafeGo executes fn in a goroutine bounded by timeout. Panics and errors are
// logged and never propagate.
func SafeGo(parent context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn Task) {
	go func() {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		defer observability.RecoverPanic(logger, taskName)

		if err := fn(ctx); err != nil {
			logger.WithError(err).WithField("task", taskName).Warn("Background task failed")
		}
	}()
}

// PoolConfig configures a WorkerPool
type PoolConfig struct {
	Name      string
	Workers   int
	QueueSize int
	// TaskTimeout bounds each task. Zero means no per-task deadline.
	TaskTimeout time.Duration
	Logger      *observability.Logger
	// OnError is called with every task error, including recovered panics
	OnError func(error)
}

// WorkerPool runs submitted tasks on a fixed set of workers
type WorkerPool struct {
	cfg    PoolConfig
	logger *observability.Logger
	workCh chan Task
	doneCh chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// NewWorkerPool starts cfg.Workers workers. Workers and QueueSize default to 1
// and Workers*2.
func NewWorkerPool(ctx context.Context, cfg PoolConfig) *WorkerPool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers * 2
	}
	if cfg.Name == "" {
		cfg.Name = "worker pool"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.FromContext(ctx)
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p := &WorkerPool{
		cfg:    cfg,
		logger: logger.WithField("pool", cfg.Name),
		workCh: make(chan Task, cfg.QueueSize),
		doneCh: make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker()
		}()
	}
	go func() {
		wg.Wait()
		close(p.doneCh)
	}()

	return p
}

// Submit enqueues fn, blocking while the queue is full until ctx is done
func (p *WorkerPool) Submit(ctx context.Context, fn Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.workCh <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySubmit enqueues fn without blocking
func (p *WorkerPool) TrySubmit(fn Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.workCh <- fn:
		return nil
	default:
		return ErrQueueFull
	}
}

// Len reports the number of queued tasks not yet picked up by a worker
func (p *WorkerPool) Len() int {
	return len(p.workCh)
}

// Shutdown stops accepting tasks and waits for the queue to drain. When ctx
// expires first, running tasks are cancelled and the context error returned.
func (p *WorkerPool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.workCh)
	}
	p.mu.Unlock()

	select {
	case <-p.doneCh:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		return fmt.Errorf("%s shutdown: %w", p.cfg.Name, ctx.Err())
	}
}

func (p *WorkerPool) worker() {
	for fn := range p.workCh {
		p.run(fn)
	}
}

func (p *WorkerPool) run(fn Task) {
	ctx := p.ctx
	if p.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.TaskTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			p.report(observability.PanicError(r))
		}
	}()
	if err := fn(ctx); err != nil {
		p.report(err)
	}
}

func (p *WorkerPool) report(err error) {
	if p.cfg.OnError != nil {
		p.cfg.OnError(err)
		return
	}
	p.logger.WithError(err).Warn("Task failed")
}
