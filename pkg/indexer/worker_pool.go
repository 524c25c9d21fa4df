package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bengsfort/providesmod/pkg/registry"
	"github.com/bengsfort/providesmod/pkg/util"
)

// reconcileJob is one file path queued for reconciliation.
type reconcileJob struct {
	Path  string
	JobID int
}

// ReconcileResult is the outcome of reconciling one file.
type ReconcileResult struct {
	Path    string
	Outcome registry.Outcome
	Err     error
}

// reconcileFunc performs the actual per-file work. Injected so the pool
// stays decoupled from the Indexer and trivial to test.
type reconcileFunc func(ctx context.Context, path string) (registry.Outcome, error)

// workerPool fans reconcile jobs out to a fixed set of goroutines.
//
// Lifecycle: Start → Submit×n → FinishSubmitting → drain Results → Stop.
// The results channel closes once every worker has exited, so a consumer
// can simply range over it after FinishSubmitting.
//
// Registry mutations stay serialized inside the registry itself; the pool
// only parallelizes the file reads around them.
type workerPool struct {
	numWorkers int
	jobs       chan reconcileJob
	results    chan ReconcileResult
	run        reconcileFunc
	logger     *slog.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	started    atomic.Bool
	jobsClosed atomic.Bool

	jobsSubmitted atomic.Int64
	jobsProcessed atomic.Int64
	jobsFailed    atomic.Int64
}

// newWorkerPool creates a pool. numWorkers <= 0 auto-detects.
func newWorkerPool(numWorkers int, run reconcileFunc, logger *slog.Logger) *workerPool {
	numWorkers = util.PoolSizeOr(numWorkers)
	ctx, cancel := context.WithCancel(context.Background())

	return &workerPool{
		numWorkers: numWorkers,
		jobs:       make(chan reconcileJob, numWorkers*2),
		results:    make(chan ReconcileResult, numWorkers*2),
		run:        run,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start spawns the workers. Safe to call once; later calls are no-ops.
func (wp *workerPool) Start() {
	if !wp.started.CompareAndSwap(false, true) {
		wp.logger.Warn("worker pool already started")
		return
	}

	wp.logger.Debug("starting worker pool", "workers", wp.numWorkers)

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}

	// Close the results channel once all workers are done so consumers
	// can range over it.
	go func() {
		wp.wg.Wait()
		close(wp.results)
	}()
}

func (wp *workerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.ctx.Done():
			return

		case job, ok := <-wp.jobs:
			if !ok {
				return
			}
			outcome, err := wp.run(wp.ctx, job.Path)
			if err != nil {
				wp.jobsFailed.Add(1)
			} else {
				wp.jobsProcessed.Add(1)
			}
			select {
			case wp.results <- ReconcileResult{Path: job.Path, Outcome: outcome, Err: err}:
			case <-wp.ctx.Done():
				return
			}
		}
	}
}

// Submit enqueues a job. Blocks while the job buffer is full.
func (wp *workerPool) Submit(job reconcileJob) error {
	if wp.jobsClosed.Load() {
		return fmt.Errorf("worker pool no longer accepts jobs")
	}

	wp.jobsSubmitted.Add(1)

	select {
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool cancelled: %w", wp.ctx.Err())
	case wp.jobs <- job:
		return nil
	}
}

// Results returns the consumption channel. It closes after
// FinishSubmitting once every outstanding job has been answered.
func (wp *workerPool) Results() <-chan ReconcileResult {
	return wp.results
}

// FinishSubmitting closes the job channel so workers drain and exit.
// Idempotent.
func (wp *workerPool) FinishSubmitting() {
	if wp.jobsClosed.CompareAndSwap(false, true) {
		close(wp.jobs)
	}
}

// Stop cancels outstanding work and waits for the workers to exit.
func (wp *workerPool) Stop() {
	wp.FinishSubmitting()
	wp.cancel()
	wp.wg.Wait()
}
