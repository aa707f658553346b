// Package worker provides an asynchronous worker pool that publishes reply
// events through the provided eventstream.Publisher.
//
// The pool keeps event publishing off the request path so a slow or
// unreachable broker never delays a reply.
package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/neolink/pkg/eventstream"
	"github.com/papercomputeco/neolink/pkg/logger"
)

var (
	defaultNumWorkers     uint = 2
	defaultJobQueueSize   uint = 256
	defaultPublishTimeout      = 10 * time.Second
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Event *eventstream.ReplyEvent
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Publisher receives every event.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// PublishTimeout bounds each publish (defaults to 10s).
	PublishTimeout time.Duration

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Pool processes publish jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *zap.Logger

	closeOnce sync.Once
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Publisher == nil {
		return nil, errors.New("worker pool requires a publisher")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.PublishTimeout <= 0 {
		c.PublishTimeout = defaultPublishTimeout
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: logger.OrNop(c.Logger),
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	if job.Event == nil {
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			zap.String("event_id", job.Event.EventID),
			zap.String("session_id", job.Event.Exchange.SessionID),
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			zap.String("event_id", job.Event.EventID),
			zap.String("session_id", job.Event.Exchange.SessionID),
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the HTTP server has stopped.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.queue)
		p.wg.Wait()
	})
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", zap.Uint("worker_id", id))

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("worker stopped", zap.Uint("worker_id", id))
}

// processJob publishes one event. Failures are logged and the event is
// dropped.
func (p *Pool) processJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.PublishTimeout)
	defer cancel()

	if err := p.config.Publisher.PublishReply(ctx, job.Event); err != nil {
		p.logger.Error("publishing reply event failed",
			zap.String("event_id", job.Event.EventID),
			zap.Error(err),
		)
		return
	}

	p.logger.Debug("reply event published",
		zap.String("event_id", job.Event.EventID),
		zap.String("session_id", job.Event.Exchange.SessionID),
	)
}
