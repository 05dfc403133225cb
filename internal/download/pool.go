package download

import (
	"context"
	"log/slog"
	"sort"
	"sync"
)

// Job is one queued fetch.
type Job struct {
	Options FetchOptions
}

// Result pairs a Job with its outcome.
type Result struct {
	Job     Job
	Outcome Outcome
	Fetch   *FetchResult
	Err     error
	index   int // restores submit order in Execute's return
}

// Pool fans a batch of fetches out across a bounded set of workers. Callers
// must ensure the batch carries no duplicate destination paths; the runner
// dedupes before submitting so no two workers race one file.
type Pool struct {
	client  *Client
	workers int
	logger  *slog.Logger
}

// NewPool creates a pool with the given worker count (minimum 1).
func NewPool(client *Client, workers int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{client: client, workers: workers, logger: logger}
}

type indexedJob struct {
	job   Job
	index int
}

// Execute runs the batch and blocks until every job has a result. Results
// come back in submit order. Cancellation marks the remaining jobs failed
// with ctx.Err and stops the workers.
func (p *Pool) Execute(ctx context.Context, jobs []Job) []Result {
	if len(jobs) == 0 {
		return []Result{}
	}

	jobsChan := make(chan indexedJob, len(jobs))
	resultsChan := make(chan Result, len(jobs))

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go p.worker(ctx, jobsChan, resultsChan, &wg)
	}

	for i, job := range jobs {
		jobsChan <- indexedJob{job: job, index: i}
	}
	close(jobsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	results := make([]Result, 0, len(jobs))
	for r := range resultsChan {
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].index < results[j].index
	})
	return results
}

func (p *Pool) worker(ctx context.Context, jobs <-chan indexedJob, results chan<- Result, wg *sync.WaitGroup) {
	defer wg.Done()

	for ij := range jobs {
		select {
		case <-ctx.Done():
			results <- Result{
				Job:     ij.job,
				Outcome: OutcomeFailedHTTP,
				Err:     ctx.Err(),
				index:   ij.index,
			}
			continue
		default:
		}

		outcome, fetch, err := p.client.Fetch(ctx, ij.job.Options)
		if err != nil {
			p.logger.Error("fetch failed", "url", ij.job.Options.URL, "error", err)
		}
		results <- Result{
			Job:     ij.job,
			Outcome: outcome,
			Fetch:   fetch,
			Err:     err,
			index:   ij.index,
		}
	}
}
