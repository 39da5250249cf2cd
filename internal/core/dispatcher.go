package core

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Job is a unit of delivery work executed on the dispatcher loop.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Dispatcher hands delivery work from the blocking watcher to a single
// delivery loop. Dispatch never blocks; the queue is unbounded.
type Dispatcher struct {
	mu     sync.Mutex
	queue  []Job
	wake   chan struct{}
	logger *zap.Logger
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		wake:   make(chan struct{}, 1),
		logger: logger,
	}
}

// Dispatch schedules job and returns immediately.
func (d *Dispatcher) Dispatch(job Job) {
	d.mu.Lock()
	d.queue = append(d.queue, job)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued jobs.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Run executes queued jobs in order until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			if n := d.Pending(); n > 0 {
				d.logger.Warn("Dispatcher stopping with undelivered jobs", zap.Int("pending", n))
			}
			return nil
		case <-d.wake:
			d.drain(ctx)
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		job := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()

		if err := job.Run(ctx); err != nil {
			d.logger.Error("Delivery job failed", zap.String("job", job.Name), zap.Error(err))
		}
		if ctx.Err() != nil {
			return
		}
	}
}
