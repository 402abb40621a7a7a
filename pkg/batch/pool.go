package batch

import (
	"context"
	"sync"
	"time"

	"github.com/Sternrassler/footy-gateway/pkg/logging"
	"github.com/rs/zerolog"
)

// Config holds pool configuration.
type Config struct {
	// MaxConcurrency is the maximum number of jobs running at once.
	MaxConcurrency int
	// Timeout bounds a single job.
	Timeout time.Duration
}

// DefaultConfig returns the configuration used by predict.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        8 * time.Second,
	}
}

// JobFunc computes the value of job i.
type JobFunc[T any] func(ctx context.Context, i int) (T, error)

// Result is the outcome of one job.
type Result[T any] struct {
	Index int
	Value T
	Err   error
}

// Pool runs a JobFunc over a range of indexes.
type Pool[T any] struct {
	job    JobFunc[T]
	config Config
	logger zerolog.Logger
}

// NewPool creates a pool. Zero config values fall back to the defaults.
func NewPool[T any](config Config, job JobFunc[T]) *Pool[T] {
	defaults := DefaultConfig()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	return &Pool[T]{
		job:    job,
		config: config,
		logger: logging.NewLogger("batch"),
	}
}

// Run executes jobs 0..n-1 and returns their results indexed by job.
// Every index gets a result; jobs skipped because ctx ended carry ctx.Err().
func (p *Pool[T]) Run(ctx context.Context, n int) []Result[T] {
	results := make([]Result[T], n)
	if n == 0 {
		return results
	}

	start := time.Now()

	queue := make(chan int, n)
	for i := 0; i < n; i++ {
		queue <- i
	}
	close(queue)

	out := make(chan Result[T], n)

	workers := p.config.MaxConcurrency
	if workers > n {
		workers = n
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go p.worker(ctx, queue, out, &wg, w)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	failed := 0
	for r := range out {
		if r.Err != nil {
			failed++
		}
		results[r.Index] = r
	}

	p.logger.Debug().
		Int("jobs", n).
		Int("workers", workers).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Batch complete")

	return results
}

// worker drains the queue. Once ctx is done the remaining jobs are
// reported as skipped instead of run.
func (p *Pool[T]) worker(ctx context.Context, queue <-chan int, out chan<- Result[T], wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	processed := 0

	for i := range queue {
		if err := ctx.Err(); err != nil {
			out <- Result[T]{Index: i, Err: err}
			continue
		}

		jobCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
		value, err := p.job(jobCtx, i)
		cancel()

		if err != nil {
			p.logger.Warn().
				Err(err).
				Int("worker_id", workerID).
				Int("job", i).
				Msg("Job failed")
		}

		out <- Result[T]{Index: i, Value: value, Err: err}
		processed++
	}

	p.logger.Debug().
		Int("worker_id", workerID).
		Int("jobs_processed", processed).
		Msg("Worker completed")
}
