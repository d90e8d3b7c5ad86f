package batch

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/wataru-taketani/feelcycle-hub-sub000/config"
)

// Runner drives the coordinator on a fixed cadence. Each cycle chains
// ProcessNext calls, with a bounded fan-out of concurrent studios, until
// no work remains.
type Runner struct {
	cfg   *config.BatchConfig
	coord *Coordinator
}

// NewRunner creates a runner over the coordinator.
func NewRunner(cfg *config.BatchConfig, coord *Coordinator) *Runner {
	return &Runner{cfg: cfg, coord: coord}
}

// Run starts the recurring batch loop and blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	if !r.cfg.Enabled {
		log.Println("Batch runner is disabled. Not starting.")
		return
	}
	log.Println("Starting batch runner...")

	r.RunOnce(ctx)

	timer := time.NewTimer(r.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Batch runner shutting down.")
			return
		case <-timer.C:
			r.RunOnce(ctx)
			timer.Reset(r.cfg.Interval)
		}
	}
}

// RunOnce executes one full sweep: start (or resume) the run, then
// process studios until none remain. Distinct studios run concurrently up
// to the configured width; each gets its own browser session.
func (r *Runner) RunOnce(ctx context.Context) {
	log.Println("Executing batch sweep...")
	if err := r.coord.StartRun(ctx); err != nil {
		log.Printf("Error starting run: %v", err)
		return
	}

	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for {
				if ctx.Err() != nil {
					return
				}
				remaining, processed, err := r.coord.ProcessNext(ctx)
				if err != nil {
					log.Printf("Worker %d: store error, stopping: %v", worker, err)
					return
				}
				if remaining == 0 {
					return
				}
				if !processed {
					// Open studios are all claimed by other workers;
					// nothing left for this one.
					return
				}
			}
		}(i)
	}
	wg.Wait()

	if progress, err := r.coord.Progress(ctx); err == nil {
		log.Printf("Batch sweep finished: %d/%d completed, %d failed",
			progress.Completed, progress.Total, progress.Failed)
	}
}
