// Package workers drives the catalog's job queue: claim loops for fetch
// and analysis jobs, each a bounded pool of goroutines polling
// ClaimFetchJob/ClaimAnalysisJob and reporting outcomes back via
// CompleteFetchJob/CompleteAnalysisJob (spec.md §4.2, §6).
package workers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/foiacquire/foiacquire/internal/catalog"
	"github.com/foiacquire/foiacquire/internal/fetchpipe"
	"github.com/foiacquire/foiacquire/internal/status"
	"github.com/foiacquire/foiacquire/internal/types"
)

// FetchPool runs n goroutines each polling the catalog for claimed fetch
// jobs and running them through a fetchpipe.Pipeline.
type FetchPool struct {
	Catalog   catalog.Catalog
	Pipeline  *fetchpipe.Pipeline
	Publisher *status.Publisher
	Logger    *slog.Logger
	Lease     time.Duration // default 2m
	PollIdle  time.Duration // default 2s when no job is claimable
}

// Run starts n workers and blocks until ctx is canceled.
func (p *FetchPool) Run(ctx context.Context, n int, claimedByPrefix string) {
	if n <= 0 {
		n = 1
	}
	lease := p.Lease
	if lease <= 0 {
		lease = 2 * time.Minute
	}
	idle := p.PollIdle
	if idle <= 0 {
		idle = 2 * time.Second
	}

	for i := 0; i < n; i++ {
		go func(id int) {
			claimedBy := claimerName(claimedByPrefix, id)
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}
				job, err := p.Catalog.ClaimFetchJob(ctx, claimedBy, lease)
				if err != nil {
					if errors.Is(ctx.Err(), context.Canceled) {
						return
					}
					p.Logger.Error("workers: claim fetch job", "error", err)
					sleepOrDone(ctx, idle)
					continue
				}
				if job == nil {
					sleepOrDone(ctx, idle)
					continue
				}
				p.runOne(ctx, job)
			}
		}(i)
	}
	<-ctx.Done()
}

func (p *FetchPool) runOne(ctx context.Context, job *types.FetchJob) {
	result, err := p.Pipeline.Run(ctx, job)
	outcome := types.ErrKindUnknown
	var pipeErr *types.PipelineError
	if err != nil {
		if errors.As(err, &pipeErr) {
			outcome = pipeErr.Kind
		}
		p.Logger.Warn("workers: fetch job failed", "job_id", job.ID, "url", job.URL, "error", err)
		if p.Publisher != nil {
			p.Publisher.RecordError(ctx, err)
			p.Publisher.Increment("fetches_failed", 1)
		}
	} else if p.Publisher != nil {
		if result.Inserted {
			p.Publisher.Increment("fetches_succeeded", 1)
		} else {
			p.Publisher.Increment("fetches_duplicate", 1)
		}
	}
	if completeErr := p.Catalog.CompleteFetchJob(ctx, job.ID, outcome); completeErr != nil {
		p.Logger.Error("workers: complete fetch job", "job_id", job.ID, "error", completeErr)
	}
}
