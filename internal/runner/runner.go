// Package runner sequences a harvest run: login, dataset match, then per
// page build order, poll fulfillment, drain the transfer pipeline, and
// only then ask for the next page. The runner owns the run counters and
// guarantees logout on every exit path.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/geoharvest/m2m-harvester/internal/config"
	"github.com/geoharvest/m2m-harvester/internal/storage"
	"github.com/geoharvest/m2m-harvester/internal/transfer"
	"github.com/geoharvest/m2m-harvester/pkg/logging"
	"github.com/geoharvest/m2m-harvester/pkg/m2m"
	"github.com/geoharvest/m2m-harvester/pkg/order"
	"github.com/geoharvest/m2m-harvester/pkg/pagination"
)

// logoutTimeout bounds the deferred logout so cancellation cannot skip it.
const logoutTimeout = 30 * time.Second

// CatalogClient is the full catalog API surface the runner drives.
type CatalogClient interface {
	Login(ctx context.Context, username, password string) (*m2m.Session, error)
	Logout(ctx context.Context, session *m2m.Session) error
	DatasetSearch(ctx context.Context, session *m2m.Session, req m2m.DatasetSearchRequest) ([]m2m.Dataset, error)
	pagination.Searcher
	order.OptionsClient
	order.Client
}

// Runner coordinates one harvest run.
type Runner struct {
	cfg      config.Config
	client   CatalogClient
	store    storage.ObjectStore
	fetcher  transfer.Fetcher
	counters Counters
	logger   zerolog.Logger

	orderSeq int
}

// New creates a runner. A nil fetcher gets the default HTTP fetcher.
func New(cfg config.Config, client CatalogClient, store storage.ObjectStore, fetcher transfer.Fetcher) *Runner {
	if fetcher == nil {
		fetcher = transfer.NewHTTPFetcher(0)
	}
	return &Runner{
		cfg:     cfg,
		client:  client,
		store:   store,
		fetcher: fetcher,
		logger:  logging.NewLogger("runner"),
	}
}

// Run executes the harvest. The returned summary is valid even when err is
// non-nil; a cancelled or partially failed run still reports what it did.
// Only authentication and search/order submission failures abort the run;
// per-item conditions degrade into counters.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	session, err := r.client.Login(ctx, r.cfg.Username, r.cfg.Password)
	if err != nil {
		return r.counters.Summary(), fmt.Errorf("login: %w", err)
	}

	defer func() {
		// Fresh context: logout must run even after cancellation.
		lctx, cancel := context.WithTimeout(context.Background(), logoutTimeout)
		defer cancel()
		if err := r.client.Logout(lctx, session); err != nil {
			r.logger.Warn().Err(err).Msg("Logout failed")
		}
	}()

	datasets, err := r.client.DatasetSearch(ctx, session, m2m.DatasetSearchRequest{
		DatasetName:    r.cfg.Dataset,
		SpatialFilter:  r.spatialFilter(),
		TemporalFilter: dateRange(r.cfg.Temporal),
	})
	if err != nil {
		return r.counters.Summary(), fmt.Errorf("dataset search: %w", err)
	}

	for _, dataset := range datasets {
		if dataset.DatasetAlias != r.cfg.Dataset {
			r.logger.Info().
				Str("dataset", dataset.DatasetAlias).
				Str("collection", dataset.CollectionName).
				Msg("Skipping non-matching dataset")
			continue
		}
		if err := r.harvestDataset(ctx, session, dataset); err != nil {
			return r.finish(), err
		}
	}

	return r.finish(), ctx.Err()
}

// harvestDataset walks all pages of one dataset, draining each page's
// order before requesting the next.
func (r *Runner) harvestDataset(ctx context.Context, session *m2m.Session, dataset m2m.Dataset) error {
	pager := pagination.NewPager(r.client, session, pagination.SceneQuery{
		Dataset:     dataset.DatasetAlias,
		Spatial:     r.spatialFilter(),
		Acquisition: dateRange(r.cfg.Acquisition),
		MaxResults:  r.cfg.MaxResults,
	})
	poller := order.NewPoller(r.client, session, r.cfg.PollInterval, r.cfg.PollMaxAttempts)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		page, err := pager.Next(ctx)
		if err != nil {
			return err
		}
		if page == nil {
			return nil
		}

		r.counters.Pages.Add(1)
		r.counters.Scenes.Add(int64(len(page.Records)))
		r.logger.Info().
			Str("dataset", dataset.DatasetAlias).
			Int("page", page.Number).
			Int("records", len(page.Records)).
			Int("total_hits", page.TotalHits).
			Msg("Processing page")

		if err := r.processPage(ctx, session, poller, dataset.DatasetAlias, page); err != nil {
			return err
		}
	}
}

// processPage orders, polls, and transfers one page's records. It returns
// only once every item has reached a terminal state.
func (r *Runner) processPage(ctx context.Context, session *m2m.Session, poller *order.Poller, dataset string, page *pagination.Page) error {
	for _, batch := range chunkRecords(page.Records, order.MaxBatchSize) {
		items, skipped, err := order.Build(ctx, r.client, session, dataset, batch)
		if err != nil {
			return fmt.Errorf("page %d: %w", page.Number, err)
		}
		r.counters.Skipped.Add(int64(skipped))

		if len(items) == 0 {
			continue
		}

		label := r.nextLabel()
		ord, err := poller.Submit(ctx, items, label)
		if err != nil {
			return fmt.Errorf("page %d: %w", page.Number, err)
		}
		r.counters.Ordered.Add(int64(len(items)))

		result, err := poller.Poll(ctx, ord)
		if err != nil {
			return err
		}
		r.counters.Shortfall.Add(int64(result.Shortfall))
		if result.State == order.StateGaveUp {
			r.logger.Warn().
				Str("label", label).
				Int("shortfall", result.Shortfall).
				Msg("Order only partially fulfilled, continuing with ready links")
		}

		pipeline := transfer.New(transfer.Config{
			Fetcher:    r.fetcher,
			Store:      r.store,
			StagingDir: r.cfg.StagingDir,
			Workers:    r.cfg.Workers,
			RetryMax:   r.cfg.RetryMax,
			RetryDelay: r.cfg.RetryDelay,
			KeepExts:   r.cfg.KeepExts(),
		})
		outcome := pipeline.Run(ctx, result.Links)

		r.counters.Fetched.Add(int64(outcome.Fetched))
		r.counters.Uploaded.Add(int64(outcome.Uploaded))
		r.counters.Discarded.Add(int64(outcome.Discarded))
		r.counters.Skipped.Add(int64(outcome.Skipped))
		r.counters.Retried.Add(int64(outcome.Retried))
		r.counters.Failed.Add(int64(outcome.Failed))
	}

	return nil
}

// nextLabel derives a per-order label under the run's label. Unique labels
// keep one order's retrieve polls from seeing another order's links.
func (r *Runner) nextLabel() string {
	r.orderSeq++
	return fmt.Sprintf("%s-%03d", r.cfg.Label, r.orderSeq)
}

// finish logs and returns the final summary.
func (r *Runner) finish() Summary {
	summary := r.counters.Summary()
	r.logger.Info().
		Int64("pages", summary.Pages).
		Int64("scenes", summary.Scenes).
		Int64("ordered", summary.Ordered).
		Int64("skipped", summary.Skipped).
		Int64("shortfall", summary.Shortfall).
		Int64("fetched", summary.Fetched).
		Int64("uploaded", summary.Uploaded).
		Int64("discarded", summary.Discarded).
		Int64("retried", summary.Retried).
		Int64("failed", summary.Failed).
		Msg("Run complete")
	return summary
}

func (r *Runner) spatialFilter() *m2m.SpatialFilter {
	return m2m.MBR(
		m2m.Coordinate{Latitude: r.cfg.Spatial.LowerLeft.Latitude, Longitude: r.cfg.Spatial.LowerLeft.Longitude},
		m2m.Coordinate{Latitude: r.cfg.Spatial.UpperRight.Latitude, Longitude: r.cfg.Spatial.UpperRight.Longitude},
	)
}

func dateRange(d config.DateRange) *m2m.DateRange {
	if d.Start == "" && d.End == "" {
		return nil
	}
	return &m2m.DateRange{Start: d.Start, End: d.End}
}

// chunkRecords splits records into provider-sized batches.
func chunkRecords(records []m2m.SceneRecord, size int) [][]m2m.SceneRecord {
	if len(records) == 0 {
		return nil
	}
	var chunks [][]m2m.SceneRecord
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		chunks = append(chunks, records[start:end])
	}
	return chunks
}
