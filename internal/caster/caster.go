// Package caster implements the ingestion orchestrator (C9): it drives
// every vertex resource to completion, then every edge resource, batching
// bucket-map contributions into sink writes.
package caster

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/growgraph/graph-ingest/internal/ingesterr"
	"github.com/growgraph/graph-ingest/internal/logging"
	"github.com/growgraph/graph-ingest/internal/pipeline"
	"github.com/growgraph/graph-ingest/internal/sink"
	"github.com/growgraph/graph-ingest/internal/source"
)

// ResourceBinding ties a pipeline resource to the data source that feeds it.
type ResourceBinding struct {
	Resource *pipeline.Resource
	Source   source.DataSource
}

// Registry is the full set of resources the Caster drives: vertex resources
// run to completion before edge resources, matching the dependency order a
// graph sink needs (endpoints must exist before edges referencing them).
type Registry struct {
	VertexResources []ResourceBinding
	EdgeResources   []ResourceBinding
}

// IngestionParams controls batching and retry behavior.
type IngestionParams struct {
	BatchSize      int
	CleanStart     bool
	MaxRetries     int
	RetryBaseDelay time.Duration
}

func DefaultParams() IngestionParams {
	return IngestionParams{BatchSize: 500, MaxRetries: 3, RetryBaseDelay: 200 * time.Millisecond}
}

// Caster drives a Registry against a GraphSink.
type Caster struct {
	Sink   sink.GraphSink
	Params IngestionParams
}

func New(s sink.GraphSink, params IngestionParams) *Caster {
	return &Caster{Sink: s, Params: params}
}

// Run drives every vertex resource (concurrently, one goroutine per
// resource), then every edge resource, grounded on the spec's concurrency
// model: disjoint resources may run in parallel, but edges must wait for
// vertices to land first.
func (c *Caster) Run(ctx context.Context, reg *Registry) error {
	if c.Params.CleanStart {
		if cs, ok := c.Sink.(sink.CleanStarter); ok {
			if err := cs.CleanStart(ctx); err != nil {
				return ingesterr.New(ingesterr.Sink, "caster", "clean_start", err)
			}
		} else {
			logging.Logf(logging.Warning, "caster: clean start requested but sink does not support it")
		}
	}
	if err := c.runBindings(ctx, reg.VertexResources); err != nil {
		return fmt.Errorf("caster: vertex phase: %w", err)
	}
	if err := c.runBindings(ctx, reg.EdgeResources); err != nil {
		return fmt.Errorf("caster: edge phase: %w", err)
	}
	return nil
}

func (c *Caster) runBindings(ctx context.Context, bindings []ResourceBinding) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, b := range bindings {
		b := b
		g.Go(func() error {
			return c.runOne(ctx, b)
		})
	}
	return g.Wait()
}

func (c *Caster) runOne(ctx context.Context, binding ResourceBinding) error {
	out, errc := binding.Source.IterBatches(ctx, c.Params.BatchSize, nil)

	acc := newWriteAccumulator(c.Params.BatchSize)

	for batch := range out {
		for _, rec := range batch.Records {
			buckets := pipeline.BucketMap{}
			binding.Resource.Apply(rec, buckets)

			for key, recs := range buckets {
				acc.add(key, recs)
				if full, ready := acc.flushIfFull(key); ready {
					if err := c.writeWithRetry(ctx, key, full); err != nil {
						return err
					}
				}
			}
		}
	}
	if err := <-errc; err != nil {
		return fmt.Errorf("caster: resource %q: %w", binding.Resource.Name, err)
	}

	for key, recs := range acc.drainAll() {
		if len(recs) == 0 {
			continue
		}
		if err := c.writeWithRetry(ctx, key, recs); err != nil {
			return err
		}
	}
	return nil
}

func (c *Caster) writeWithRetry(ctx context.Context, key string, records []pipeline.Record) error {
	var lastErr error
	attempts := c.Params.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}
	delay := c.Params.RetryBaseDelay
	for attempt := 0; attempt < attempts; attempt++ {
		if err := c.writeBucket(ctx, key, records); err != nil {
			lastErr = err
			logging.Logf(logging.Warning, "caster: write to %q failed (attempt %d/%d): %v", key, attempt+1, attempts, err)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
			continue
		}
		return nil
	}
	return ingesterr.New(ingesterr.Sink, "caster", key, fmt.Errorf("exhausted %d retries: %w", attempts, lastErr))
}

// writeAccumulator buckets records per key until BatchSize is reached.
type writeAccumulator struct {
	batchSize int
	buckets   map[string][]pipeline.Record
}

func newWriteAccumulator(batchSize int) *writeAccumulator {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &writeAccumulator{batchSize: batchSize, buckets: make(map[string][]pipeline.Record)}
}

func (a *writeAccumulator) add(key string, recs []pipeline.Record) {
	a.buckets[key] = append(a.buckets[key], recs...)
}

func (a *writeAccumulator) flushIfFull(key string) ([]pipeline.Record, bool) {
	if len(a.buckets[key]) < a.batchSize {
		return nil, false
	}
	full := a.buckets[key]
	a.buckets[key] = nil
	return full, true
}

func (a *writeAccumulator) drainAll() map[string][]pipeline.Record {
	out := a.buckets
	a.buckets = make(map[string][]pipeline.Record)
	return out
}
