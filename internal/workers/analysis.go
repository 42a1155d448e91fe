package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/foiacquire/foiacquire/internal/analysis"
	"github.com/foiacquire/foiacquire/internal/catalog"
	"github.com/foiacquire/foiacquire/internal/status"
	"github.com/foiacquire/foiacquire/internal/types"
)

// backendKey identifies a registered Backend by the (analysis_type,
// backend) pair job rows carry.
func backendKey(analysisType types.AnalysisType, backend string) string {
	return string(analysisType) + ":" + backend
}

// AnalysisPool runs n goroutines each polling the catalog for claimed
// analysis jobs and dispatching them to a registered analysis.Backend.
// Jobs naming a (analysis_type, backend) with nothing registered fail
// immediately — spec.md §1 treats concrete OCR/LLM backends as peripheral
// vendor bindings the operator wires in, not something this repo ships.
type AnalysisPool struct {
	Catalog    catalog.Catalog
	Dispatcher *analysis.Dispatcher
	Backends   map[string]analysis.Backend
	Publisher  *status.Publisher
	Logger     *slog.Logger
	Lease      time.Duration
	PollIdle   time.Duration
}

func (p *AnalysisPool) Run(ctx context.Context, n int, claimedByPrefix string) {
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
				job, err := p.Catalog.ClaimAnalysisJob(ctx, claimedBy, lease)
				if err != nil {
					if errors.Is(ctx.Err(), context.Canceled) {
						return
					}
					p.Logger.Error("workers: claim analysis job", "error", err)
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

func (p *AnalysisPool) runOne(ctx context.Context, job *types.AnalysisJob) {
	backend, ok := p.Backends[backendKey(job.AnalysisType, job.Backend)]
	if !ok {
		p.Logger.Warn("workers: no backend registered for analysis job", "job_id", job.ID, "analysis_type", job.AnalysisType, "backend", job.Backend)
		if err := p.Catalog.CompleteAnalysisJob(ctx, job.ID, types.ErrKindBackendFailure); err != nil {
			p.Logger.Error("workers: complete analysis job", "job_id", job.ID, "error", err)
		}
		return
	}

	input := analysis.Input{
		PageID:     job.PageID,
		DocumentID: job.DocumentID,
		VersionID:  job.VersionID,
	}
	if job.PageID != nil {
		hash, err := p.imageHashForPage(ctx, job.VersionID, *job.PageID)
		if err != nil {
			p.Logger.Warn("workers: resolve page image hash", "job_id", job.ID, "error", err)
		}
		input.ImageHash = hash
	}

	_, err := p.Dispatcher.Dispatch(ctx, analysis.Request{Input: input, Backend: backend, Model: job.Model})
	outcome := types.ErrKindUnknown
	var pipeErr *types.PipelineError
	if err != nil {
		if errors.As(err, &pipeErr) {
			outcome = pipeErr.Kind
		} else {
			outcome = types.ErrKindBackendFailure
		}
		if p.Publisher != nil {
			p.Publisher.RecordError(ctx, err)
			p.Publisher.Increment("analysis_failed", 1)
		}
	} else if p.Publisher != nil {
		p.Publisher.Increment("analysis_succeeded", 1)
	}
	if completeErr := p.Catalog.CompleteAnalysisJob(ctx, job.ID, outcome); completeErr != nil {
		p.Logger.Error("workers: complete analysis job", "job_id", job.ID, "error", completeErr)
	}
}

func (p *AnalysisPool) imageHashForPage(ctx context.Context, versionID, pageID int64) (string, error) {
	pages, err := p.Catalog.ListPages(ctx, versionID)
	if err != nil {
		return "", err
	}
	for _, pg := range pages {
		if pg.ID == pageID {
			return pg.ImageHash, nil
		}
	}
	return "", fmt.Errorf("page %d not found in version %d", pageID, versionID)
}
