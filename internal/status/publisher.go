// Package status publishes service heartbeats (spec.md §4.10): a ticker
// writes ServiceStatus rows so operators can see which workers are alive,
// what source they're working, and their error counts, while OTEL
// instruments mirror the same counters for metrics backends.
package status

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/foiacquire/foiacquire/internal/catalog"
	"github.com/foiacquire/foiacquire/internal/types"
)

// statusMetrics holds OTel instruments for the status package, registered
// against the global provider at init time so they forward to whatever
// real provider a caller wires in later (the teacher's dolt store does the
// same delegating-provider trick with its package-level metric vars).
var statusMetrics struct {
	heartbeats   metric.Int64Counter
	errors       metric.Int64Counter
	leasesReaped metric.Int64Counter
}

func init() {
	m := otel.Meter("github.com/foiacquire/foiacquire/status")
	statusMetrics.heartbeats, _ = m.Int64Counter("foiacquire.service.heartbeats",
		metric.WithDescription("heartbeat rows published"),
		metric.WithUnit("{heartbeat}"),
	)
	statusMetrics.errors, _ = m.Int64Counter("foiacquire.service.errors",
		metric.WithDescription("errors recorded against a service's heartbeat"),
		metric.WithUnit("{error}"),
	)
	statusMetrics.leasesReaped, _ = m.Int64Counter("foiacquire.jobs.leases_reaped",
		metric.WithDescription("expired job leases reclaimed"),
		metric.WithUnit("{lease}"),
	)
}

// Publisher owns one ServiceStatus row, updated in place and flushed to
// the catalog on a ticker.
type Publisher struct {
	Catalog  catalog.Catalog
	Interval time.Duration // default 5s

	mu     sync.Mutex
	status types.ServiceStatus
}

// NewPublisher starts a Publisher for (serviceType, host) in the starting
// state. Counters begin at zero.
func NewPublisher(cat catalog.Catalog, serviceType, host string) *Publisher {
	now := time.Now()
	return &Publisher{
		Catalog:  cat,
		Interval: 5 * time.Second,
		status: types.ServiceStatus{
			ServiceType:   serviceType,
			Host:          host,
			State:         types.ServiceStarting,
			StartedAt:     now,
			LastHeartbeat: now,
			Counters:      map[string]int64{},
		},
	}
}

// SetState updates the published lifecycle state.
func (p *Publisher) SetState(state types.ServiceState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.State = state
}

// SetCurrentSource records which source a discovery/fetch worker is
// currently processing, surfaced on the next heartbeat.
func (p *Publisher) SetCurrentSource(source string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.CurrentSource = source
}

// Increment bumps a named counter (e.g. "fetches_succeeded",
// "fetches_failed") by delta.
func (p *Publisher) Increment(name string, delta int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.Counters[name] += delta
}

// RecordError sets the last-error string and bumps the error count and
// OTEL error counter.
func (p *Publisher) RecordError(ctx context.Context, err error) {
	p.mu.Lock()
	p.status.LastError = err.Error()
	p.status.ErrorCount++
	p.mu.Unlock()
	statusMetrics.errors.Add(ctx, 1, metric.WithAttributes(serviceAttr(p.status.ServiceType)))
}

// snapshot copies the current status for writing, since UpsertServiceStatus
// must not race with Increment/SetState.
func (p *Publisher) snapshot() types.ServiceStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	counters := make(map[string]int64, len(p.status.Counters))
	for k, v := range p.status.Counters {
		counters[k] = v
	}
	s := p.status
	s.Counters = counters
	s.LastHeartbeat = time.Now()
	return s
}

// flush writes the current snapshot to the catalog.
func (p *Publisher) flush(ctx context.Context) error {
	s := p.snapshot()
	if err := p.Catalog.UpsertServiceStatus(ctx, &s); err != nil {
		return err
	}
	statusMetrics.heartbeats.Add(ctx, 1, metric.WithAttributes(serviceAttr(s.ServiceType)))
	return nil
}

// Run publishes heartbeats every p.Interval until ctx is canceled, then
// writes a final "stopped" row.
func (p *Publisher) Run(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.SetState(types.ServiceRunning)
	for {
		select {
		case <-ctx.Done():
			p.SetState(types.ServiceStopped)
			_ = p.flush(context.WithoutCancel(ctx))
			return
		case <-ticker.C:
			_ = p.flush(ctx)
		}
	}
}
