// Package transfer drains ready download links through a bounded worker
// pool: fetch to staging, classify and unpack the payload, upload kept
// rasters to object storage, and delete everything staged. Failed fetches
// re-enter the same pool in retry batches; nothing retries on a side-band
// goroutine and no staged file survives its own transfer attempt.
package transfer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/geoharvest/m2m-harvester/internal/storage"
	"github.com/geoharvest/m2m-harvester/pkg/logging"
	"github.com/geoharvest/m2m-harvester/pkg/order"
)

// Prometheus metrics for transfer operations.
var (
	transferFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transfer_fetches_total",
		Help: "Total download fetches by result",
	}, []string{"result"})

	transferArtifactsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transfer_artifacts_total",
		Help: "Total staged artifacts by disposition",
	}, []string{"disposition"})

	transferRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transfer_retries_total",
		Help: "Total links re-queued after a failed transfer attempt",
	})

	transferFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transfer_failures_total",
		Help: "Total links abandoned after exhausting transfer retries",
	})
)

// Default pipeline settings.
const (
	DefaultWorkers    = 4
	DefaultRetryMax   = 3
	DefaultRetryDelay = 5 * time.Second
)

// Config holds the pipeline configuration.
type Config struct {
	// Fetcher retrieves links into staging.
	Fetcher Fetcher

	// Store receives kept rasters.
	Store storage.ObjectStore

	// StagingDir is the transient local directory for fetched payloads.
	StagingDir string

	// Workers bounds concurrent fetches.
	Workers int

	// RetryMax is the number of retry batches after the initial pass.
	RetryMax int

	// RetryDelay is the fixed pause before each retry batch.
	RetryDelay time.Duration

	// KeepExts is the set of lowercase raster extensions to upload
	// (default: .jp2).
	KeepExts map[string]bool
}

// Outcome aggregates the terminal per-item states of one Run.
type Outcome struct {
	Fetched   int
	Uploaded  int
	Discarded int
	Skipped   int
	Retried   int
	Failed    int
}

// Pipeline is a bounded-concurrency transfer worker pool. One Pipeline
// serves one page's links at a time; Run blocks until every link has
// reached a terminal state.
type Pipeline struct {
	cfg    Config
	logger zerolog.Logger

	mu      sync.Mutex
	outcome Outcome
}

// New creates a pipeline, applying defaults for unset knobs.
func New(cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = DefaultRetryMax
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.KeepExts == nil {
		cfg.KeepExts = DefaultKeepExts()
	}
	return &Pipeline{
		cfg:    cfg,
		logger: logging.NewLogger("transfer"),
	}
}

// Run drains links fully: every link ends uploaded, discarded, or failed
// after retries. Fetch failures are collected and re-run through the same
// bounded pool after a fixed delay, up to RetryMax batches. Cancellation
// stops admitting new fetches, lets in-flight ones settle, and marks the
// remainder failed.
func (p *Pipeline) Run(ctx context.Context, links []order.ReadyLink) Outcome {
	p.mu.Lock()
	p.outcome = Outcome{}
	p.mu.Unlock()

	batch := links

	for round := 0; len(batch) > 0; round++ {
		failed := p.runBatch(ctx, batch)
		if len(failed) == 0 {
			break
		}

		if ctx.Err() != nil || round >= p.cfg.RetryMax {
			transferFailuresTotal.Add(float64(len(failed)))
			p.update(func(o *Outcome) { o.Failed += len(failed) })
			p.logger.Error().
				Int("links", len(failed)).
				Int("rounds", round+1).
				Msg("Abandoning links after exhausting retries")
			break
		}

		transferRetriesTotal.Add(float64(len(failed)))
		p.update(func(o *Outcome) { o.Retried += len(failed) })
		p.logger.Warn().
			Int("links", len(failed)).
			Int("round", round+1).
			Dur("delay", p.cfg.RetryDelay).
			Msg("Re-queueing failed links")

		select {
		case <-ctx.Done():
			transferFailuresTotal.Add(float64(len(failed)))
			p.update(func(o *Outcome) { o.Failed += len(failed) })
			return p.snapshot()
		case <-time.After(p.cfg.RetryDelay):
		}

		batch = failed
	}

	return p.snapshot()
}

// runBatch pushes one batch through the worker pool and returns the links
// whose transfer attempt failed.
func (p *Pipeline) runBatch(ctx context.Context, batch []order.ReadyLink) []order.ReadyLink {
	var mu sync.Mutex
	var failed []order.ReadyLink

	g := new(errgroup.Group)
	g.SetLimit(p.cfg.Workers)

	for _, link := range batch {
		if ctx.Err() != nil {
			mu.Lock()
			failed = append(failed, link)
			mu.Unlock()
			continue
		}

		g.Go(func() error {
			if err := p.handle(ctx, link); err != nil {
				p.logger.Warn().
					Err(err).
					Str("url", link.URL).
					Msg("Transfer attempt failed")
				mu.Lock()
				failed = append(failed, link)
				mu.Unlock()
			}
			return nil
		})
	}

	g.Wait()
	return failed
}

// handle runs one link through fetch and settlement.
func (p *Pipeline) handle(ctx context.Context, link order.ReadyLink) error {
	staged, err := p.cfg.Fetcher.Fetch(ctx, link.URL, p.cfg.StagingDir)
	if err != nil {
		transferFetchesTotal.WithLabelValues("error").Inc()
		return err
	}

	transferFetchesTotal.WithLabelValues("ok").Inc()
	p.update(func(o *Outcome) { o.Fetched++ })

	return p.settle(ctx, staged)
}

// settle drives one staged artifact to a terminal state. The staged file
// (and any extracted members) is gone by the time settle returns,
// whatever the outcome.
func (p *Pipeline) settle(ctx context.Context, staged string) error {
	name := filepath.Base(staged)

	if Classify(name, p.cfg.KeepExts) != KindArchive {
		return p.settleFile(ctx, staged)
	}

	members, err := extractZip(staged, p.cfg.StagingDir)
	os.Remove(staged)
	if err != nil {
		for _, m := range members {
			os.Remove(m)
		}
		return fmt.Errorf("extract %s: %w", name, err)
	}

	p.logger.Debug().
		Str("archive", name).
		Int("members", len(members)).
		Msg("Extracted archive")

	var firstErr error
	for _, m := range members {
		if err := p.settleFile(ctx, m); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// settleFile uploads or discards one flat staged file, deleting it in
// every path.
func (p *Pipeline) settleFile(ctx context.Context, staged string) error {
	name := filepath.Base(staged)
	defer os.Remove(staged)

	switch Classify(name, p.cfg.KeepExts) {
	case KindRaster:
		if err := p.cfg.Store.Put(ctx, name, staged); err != nil {
			transferArtifactsTotal.WithLabelValues("upload_error").Inc()
			return fmt.Errorf("upload %s: %w", name, err)
		}
		transferArtifactsTotal.WithLabelValues("uploaded").Inc()
		p.update(func(o *Outcome) { o.Uploaded++ })
		p.logger.Debug().Str("artifact", name).Msg("Uploaded artifact")

	case KindSidecar:
		transferArtifactsTotal.WithLabelValues("discarded").Inc()
		p.update(func(o *Outcome) { o.Discarded++ })

	default:
		// Nested archives and unrecognized formats are dropped.
		transferArtifactsTotal.WithLabelValues("skipped").Inc()
		p.update(func(o *Outcome) { o.Skipped++ })
		p.logger.Debug().Str("artifact", name).Msg("Skipping unrecognized artifact")
	}

	return nil
}

func (p *Pipeline) update(fn func(*Outcome)) {
	p.mu.Lock()
	fn(&p.outcome)
	p.mu.Unlock()
}

func (p *Pipeline) snapshot() Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outcome
}
