package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Orchestrator runs book jobs on a fixed pool of workers.
type Orchestrator struct {
	jobs     *JobStore
	queue    chan *Job
	deps     Deps
	settings Settings
	log      *slog.Logger
	workers  int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Options size the orchestrator.
type Options struct {
	Workers   int
	QueueSize int
	JobTTL    time.Duration
}

// NewOrchestrator creates the pipeline; call Start to launch workers.
func NewOrchestrator(opts Options, deps Deps, settings Settings, log *slog.Logger) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1
	}
	if opts.JobTTL <= 0 {
		opts.JobTTL = time.Hour
	}
	return &Orchestrator{
		jobs:     NewJobStore(opts.JobTTL),
		queue:    make(chan *Job, opts.QueueSize),
		deps:     deps,
		settings: settings,
		log:      log,
		workers:  opts.Workers,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.workers {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.deps, o.settings, o.log)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					o.observeQueue()
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		o.observeQueue()
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		if o.deps.Metrics != nil {
			o.deps.Metrics.Jobs.WithLabelValues(string(StatusFailed)).Inc()
		}
		return fmt.Errorf("job queue is full (%d)", cap(o.queue))
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

func (o *Orchestrator) observeQueue() {
	if o.deps.Metrics != nil {
		o.deps.Metrics.QueueDepth.Set(float64(len(o.queue)))
	}
}
