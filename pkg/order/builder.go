// Package order converts catalog records into fulfillment orders and polls
// them to completion. Build filters records to orderable items, Submit
// places the order under a run-scoped label, and Poller tracks the order's
// grow-only set of ready links until it is fulfilled or the poller gives up.
package order

import (
	"context"
	"fmt"

	"github.com/geoharvest/m2m-harvester/pkg/m2m"
)

// MaxBatchSize is the provider's documented maximum number of records per
// download-options call. Callers chunk their record lists above this bound;
// Build rejects oversized batches instead of splitting them.
const MaxBatchSize = 50_000

// OptionsClient is the slice of the catalog client Build needs.
type OptionsClient interface {
	DownloadOptions(ctx context.Context, session *m2m.Session, req m2m.DownloadOptionsRequest) ([]m2m.ProductOption, error)
}

// Build looks up the orderable products for a batch of records and returns
// the eligible download items. Records whose products are not currently
// available are dropped and counted in skipped; that is an expected catalog
// condition, not an error.
func Build(ctx context.Context, client OptionsClient, session *m2m.Session, dataset string, records []m2m.SceneRecord) (items []m2m.DownloadEntry, skipped int, err error) {
	if len(records) == 0 {
		return nil, 0, nil
	}
	if len(records) > MaxBatchSize {
		return nil, 0, fmt.Errorf("batch of %d records exceeds provider maximum %d", len(records), MaxBatchSize)
	}

	entityIDs := make([]string, len(records))
	for i, r := range records {
		entityIDs[i] = string(r)
	}

	options, err := client.DownloadOptions(ctx, session, m2m.DownloadOptionsRequest{
		DatasetName: dataset,
		EntityIDs:   entityIDs,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("download options: %w", err)
	}

	for _, product := range options {
		if !product.Available {
			skipped++
			continue
		}
		items = append(items, m2m.DownloadEntry{
			EntityID:  product.EntityID,
			ProductID: product.ID,
		})
	}

	return items, skipped, nil
}
