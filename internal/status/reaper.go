package status

import (
	"context"
	"time"

	"github.com/foiacquire/foiacquire/internal/catalog"
)

// LeaseReaper reclaims expired job leases on a ticker (spec.md §6: a
// worker that claims a job and dies before completing it must not hold
// the lease forever). Reclaimed jobs become claimable again by
// ClaimFetchJob/ClaimAnalysisJob.
type LeaseReaper struct {
	Catalog  catalog.Catalog
	Interval time.Duration // default 30s
}

// NewLeaseReaper builds a LeaseReaper with a 30s sweep interval.
func NewLeaseReaper(cat catalog.Catalog) *LeaseReaper {
	return &LeaseReaper{Catalog: cat, Interval: 30 * time.Second}
}

// Run sweeps expired leases every r.Interval until ctx is canceled.
func (r *LeaseReaper) Run(ctx context.Context) {
	interval := r.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.Catalog.ReapExpiredLeases(ctx)
			if err != nil {
				continue
			}
			if n > 0 {
				statusMetrics.leasesReaped.Add(ctx, int64(n))
			}
		}
	}
}
