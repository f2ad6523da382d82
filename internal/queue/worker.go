// Package queue runs pipeline jobs on a fixed pool of workers.
package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/memoant/internal/apperr"
	"github.com/codebuildervaibhav/memoant/internal/pipeline"
)

// DefaultQueueSize bounds the number of waiting jobs
const DefaultQueueSize = 64

// ErrInFlight is wrapped by EnqueueJob when the path is already queued or running
var ErrInFlight = errors.New("already in flight")

// Processor runs the pipeline on one file
type Processor interface {
	Process(ctx context.Context, path string, opts pipeline.Options) (*pipeline.Result, error)
}

// StableFunc blocks until a file is ready to be read
type StableFunc func(ctx context.Context, path string) error

// WorkerPool manages a pool of workers processing pipeline jobs.
// A path is never handled by two workers at once.
type WorkerPool struct {
	jobQueue    chan *Job
	workerCount int
	processor   Processor
	opts        pipeline.Options
	log         *logrus.Logger

	// Stable is consulted for jobs with WaitStable set
	Stable StableFunc
	// OnDone is called after every job, successful or not
	OnDone func(*Job)

	mu       sync.Mutex
	inFlight map[string]bool
	closed   bool
	wg       sync.WaitGroup
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(workerCount, queueSize int, processor Processor, opts pipeline.Options, log *logrus.Logger) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	return &WorkerPool{
		jobQueue:    make(chan *Job, queueSize),
		workerCount: workerCount,
		processor:   processor,
		opts:        opts,
		log:         log,
		inFlight:    make(map[string]bool),
	}
}

// Start launches the workers. They exit when Stop is called or ctx is done.
func (wp *WorkerPool) Start(ctx context.Context) {
	wp.log.WithField("workers", wp.workerCount).Info("starting worker pool")
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Stop closes the queue and waits for running jobs to finish
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if !wp.closed {
		wp.closed = true
		close(wp.jobQueue)
	}
	wp.mu.Unlock()
	wp.wg.Wait()
}

// EnqueueJob adds a job to the queue without blocking. A path that is
// already queued or running fails with ErrInFlight; a full queue fails
// with PRECONDITION.
func (wp *WorkerPool) EnqueueJob(job *Job) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.closed {
		return apperr.New(apperr.CodePrecondition, "enqueue", "queue is stopped")
	}
	if wp.inFlight[job.FilePath] {
		return apperr.Wrap(ErrInFlight, apperr.CodeConflict, "enqueue", job.FilePath)
	}

	job.Status = StatusQueued
	select {
	case wp.jobQueue <- job:
	default:
		return apperr.New(apperr.CodePrecondition, "enqueue", "queue is full")
	}
	wp.inFlight[job.FilePath] = true

	wp.log.WithFields(logrus.Fields{
		"job":    job.ID,
		"source": job.SourceType,
		"file":   job.FilePath,
	}).Debug("job enqueued")
	return nil
}

// InFlight reports whether path is queued or being processed
func (wp *WorkerPool) InFlight(path string) bool {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.inFlight[path]
}

// worker processes jobs from the queue
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()
	log := wp.log.WithField("worker", id)
	log.Debug("worker started")

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-wp.jobQueue:
			if !ok {
				return
			}
			wp.runJob(ctx, log, job)
		}
	}
}

func (wp *WorkerPool) runJob(ctx context.Context, log *logrus.Entry, job *Job) {
	log = log.WithField("job", job.ID)

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("PANIC processing %s: %v\n%s", job.FilePath, r, string(debug.Stack()))
			job.Status = StatusFailed
			job.Error = fmt.Sprintf("worker panic: %v", r)
		}
		job.FinishedAt = time.Now()

		wp.mu.Lock()
		delete(wp.inFlight, job.FilePath)
		wp.mu.Unlock()

		if wp.OnDone != nil {
			wp.OnDone(job)
		}
	}()

	wp.processJob(ctx, log, job)
}

// processJob waits for the file to settle if asked and runs the pipeline
func (wp *WorkerPool) processJob(ctx context.Context, log *logrus.Entry, job *Job) {
	job.Status = StatusProcessing

	if job.WaitStable && wp.Stable != nil {
		if err := wp.Stable(ctx, job.FilePath); err != nil {
			log.WithError(err).Warn("file did not settle")
			job.Status = StatusFailed
			job.Error = err.Error()
			return
		}
	}

	result, err := wp.processor.Process(ctx, job.FilePath, wp.opts)
	if err != nil {
		log.WithError(err).Error("processing failed")
		job.Status = StatusFailed
		job.Error = err.Error()
		return
	}

	job.Result = result
	job.Status = StatusCompleted
	log.WithFields(logrus.Fields{
		"status":  result.Status,
		"file_id": shortID(result.FileID),
	}).Info("job completed")
}

func shortID(id string) string {
	if len(id) > 16 {
		return id[:16]
	}
	return id
}
