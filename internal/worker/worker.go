package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Config holds worker configuration
type Config struct {
	// WorkerID uniquely identifies this worker instance in logs
	WorkerID string

	// MaxConcurrency is the maximum number of jobs running at once
	MaxConcurrency int

	// JobTimeout bounds a single job run
	JobTimeout time.Duration
}

// Job is a unit of fire-and-forget work.
type Job struct {
	// Name identifies the job type in logs (e.g., "order_count.increment").
	Name string

	// Attrs are logged with every record about this job.
	Attrs []any

	// Run does the work. ctx carries the job timeout and is cancelled
	// if the worker is shut down before the job finishes.
	Run func(ctx context.Context) error
}

// ResultFunc observes every finished job.
type ResultFunc func(job Job, err error, elapsed time.Duration)

// Worker runs submitted jobs in the background with bounded concurrency.
// Callers never wait for a job and never see its error; failures are logged
// and handed to the optional ResultFunc.
type Worker struct {
	config   Config
	logger   *slog.Logger
	onResult ResultFunc

	sem    chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// NewWorker creates a background job worker. onResult may be nil.
func NewWorker(config Config, logger *slog.Logger, onResult ResultFunc) *Worker {
	// Set defaults
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 5
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		config:   config,
		logger:   logger.With("worker_id", config.WorkerID),
		onResult: onResult,
		sem:      make(chan struct{}, config.MaxConcurrency),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Submit schedules job and returns immediately.
// Returns false if the worker has been shut down and the job was dropped.
func (w *Worker) Submit(job Job) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.logger.Warn("job dropped, worker is shut down", append([]any{"job_type", job.Name}, job.Attrs...)...)
		return false
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		// Semaphore for concurrency control
		select {
		case w.sem <- struct{}{}:
		case <-w.ctx.Done():
			w.finish(job, w.ctx.Err(), 0)
			return
		}
		defer func() { <-w.sem }()

		w.process(job)
	}()

	return true
}

// process runs a single job under the job timeout
func (w *Worker) process(job Job) {
	jobCtx, cancel := context.WithTimeout(w.ctx, w.config.JobTimeout)
	defer cancel()

	start := time.Now()
	err := job.Run(jobCtx)
	w.finish(job, err, time.Since(start))
}

func (w *Worker) finish(job Job, err error, elapsed time.Duration) {
	attrs := append([]any{"job_type", job.Name, "elapsed", elapsed}, job.Attrs...)
	if err != nil {
		w.logger.Error("job failed", append(attrs, "error", err)...)
	} else {
		w.logger.Debug("job completed", attrs...)
	}

	if w.onResult != nil {
		w.onResult(job, err, elapsed)
	}
}

// Shutdown stops accepting jobs and waits for in-flight ones.
// If ctx expires first, running jobs are cancelled and ctx.Err() is returned.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	w.logger.Info("worker shutting down")

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.cancel()
		return nil
	case <-ctx.Done():
		w.cancel()
		<-done
		return ctx.Err()
	}
}
