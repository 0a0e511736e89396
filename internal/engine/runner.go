package engine

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/decimal-labs/leakwatch/internal/model"
)

// Summary contains statistics about a pipeline run.
type Summary struct {
	FailuresByReason map[model.Reason]int
	DegradedByReason map[model.Reason]int
	RunID            string
	Processed        int
	Persisted        int
	DegradedPersist  int
	Failed           int
	Created          int
	Rediscovered     int
	ProcessingTime   time.Duration
}

// tally accumulates results from concurrent workers.
type tally struct {
	failures  map[model.Reason]int
	degraded  map[model.Reason]int
	processed atomic.Int64
	persisted atomic.Int64
	degradedP atomic.Int64
	failed    atomic.Int64
	created   atomic.Int64
	mu        sync.Mutex
}

func newTally() *tally {
	return &tally{
		failures: make(map[model.Reason]int),
		degraded: make(map[model.Reason]int),
	}
}

func (t *tally) add(res Result) {
	t.processed.Add(1)
	if res.Created {
		t.created.Add(1)
	}
	switch res.Outcome {
	case model.OutcomePersisted:
		t.persisted.Add(1)
	case model.OutcomeDegradedPersisted:
		t.degradedP.Add(1)
		t.mu.Lock()
		t.degraded[res.Reason]++
		t.mu.Unlock()
	default:
		t.failed.Add(1)
		t.mu.Lock()
		t.failures[res.Reason]++
		t.mu.Unlock()
	}
}

func (t *tally) summary(runID string, elapsed time.Duration) *Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	persisted := int(t.persisted.Load())
	degraded := int(t.degradedP.Load())
	created := int(t.created.Load())
	return &Summary{
		RunID:            runID,
		Processed:        int(t.processed.Load()),
		Persisted:        persisted,
		DegradedPersist:  degraded,
		Failed:           int(t.failed.Load()),
		Created:          created,
		Rediscovered:     persisted + degraded - created,
		FailuresByReason: maps.Clone(t.failures),
		DegradedByReason: maps.Clone(t.degraded),
		ProcessingTime:   elapsed,
	}
}

// Run processes documents from docs with a bounded pool of workers until docs
// is closed or ctx is done. Documents still queued when ctx ends are left
// unprocessed for upstream re-delivery. The returned error is ctx's error, if
// any; per-document failures are reported in the Summary.
func (p *Pipeline) Run(ctx context.Context, docs <-chan model.Document) (*Summary, error) {
	start := time.Now()
	t := newTally()

	var g errgroup.Group
	g.SetLimit(p.cfg.Workers)

	p.logger.Info("Starting pipeline run", "workers", p.cfg.Workers, "ai_enabled", p.cfg.AIEnabled && p.classifier != nil)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case doc, ok := <-docs:
			if !ok {
				break loop
			}
			g.Go(func() error {
				res := p.Process(ctx, doc)
				t.add(res)
				if p.cfg.OnResult != nil {
					p.cfg.OnResult(res)
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	summary := t.summary(p.cfg.RunID, time.Since(start))
	p.logger.Info("Pipeline run complete",
		"processed", summary.Processed,
		"persisted", summary.Persisted,
		"degraded", summary.DegradedPersist,
		"failed", summary.Failed,
		"created", summary.Created,
		"duration", summary.ProcessingTime)
	return summary, ctx.Err()
}

// ProcessAll is a convenience wrapper that runs docs through the pool.
func (p *Pipeline) ProcessAll(ctx context.Context, docs []model.Document) (*Summary, error) {
	ch := make(chan model.Document)
	go func() {
		defer close(ch)
		for _, d := range docs {
			select {
			case ch <- d:
			case <-ctx.Done():
				return
			}
		}
	}()
	return p.Run(ctx, ch)
}
