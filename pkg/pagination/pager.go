package pagination

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/geoharvest/m2m-harvester/pkg/logging"
	"github.com/geoharvest/m2m-harvester/pkg/m2m"
)

// Searcher is the slice of the catalog client the pager needs.
type Searcher interface {
	SceneSearch(ctx context.Context, session *m2m.Session, req m2m.SceneSearchRequest) (*m2m.SceneSearchResponse, error)
}

// SceneQuery is one dataset's search criteria.
type SceneQuery struct {
	// Dataset is the dataset alias to search.
	Dataset string

	// Spatial restricts hits to a bounding box.
	Spatial *m2m.SpatialFilter

	// Acquisition restricts hits by acquisition date.
	Acquisition *m2m.DateRange

	// StartingNumber is the initial page cursor (default 1).
	StartingNumber int

	// MaxResults caps records per page (0 uses the provider default).
	MaxResults int
}

// Page is one bounded batch of search results.
type Page struct {
	// Number is the 1-based ordinal of this page within the search.
	Number int

	// Records are the catalog hits of this page.
	Records []m2m.SceneRecord

	// TotalHits is the provider's total match count for the query.
	TotalHits int

	// NextRecord is the cursor of the following page (0 on the last page).
	NextRecord int
}

// Pager produces the pages of one scene search, one at a time.
type Pager struct {
	client  Searcher
	session *m2m.Session
	query   SceneQuery

	cursor int
	page   int
	done   bool
	logger zerolog.Logger
}

// NewPager creates a pager for the query. No request is issued until Next.
func NewPager(client Searcher, session *m2m.Session, query SceneQuery) *Pager {
	cursor := query.StartingNumber
	if cursor <= 0 {
		cursor = 1
	}
	return &Pager{
		client:  client,
		session: session,
		query:   query,
		cursor:  cursor,
		logger:  logging.NewLogger("pagination").With().Str("dataset", query.Dataset).Logger(),
	}
}

// Next fetches the next page. It returns (nil, nil) once the search is
// exhausted: when the provider reports no further cursor or a page comes
// back empty. Cursor values advance strictly, so a provider echoing a stale
// nextRecord terminates the search instead of looping.
func (p *Pager) Next(ctx context.Context) (*Page, error) {
	if p.done {
		return nil, nil
	}

	req := m2m.SceneSearchRequest{
		DatasetName:    p.query.Dataset,
		StartingNumber: p.cursor,
		MaxResults:     p.query.MaxResults,
		SceneFilter: &m2m.SceneFilter{
			SpatialFilter:     p.query.Spatial,
			AcquisitionFilter: p.query.Acquisition,
		},
	}

	resp, err := p.client.SceneSearch(ctx, p.session, req)
	if err != nil {
		return nil, fmt.Errorf("scene search at cursor %d: %w", p.cursor, err)
	}

	if len(resp.Results) == 0 {
		p.done = true
		p.logger.Info().
			Int("cursor", p.cursor).
			Int("pages", p.page).
			Msg("Scene search exhausted")
		return nil, nil
	}

	p.page++
	page := &Page{
		Number:     p.page,
		Records:    make([]m2m.SceneRecord, 0, len(resp.Results)),
		TotalHits:  resp.TotalHits,
		NextRecord: resp.NextRecord,
	}
	for _, result := range resp.Results {
		page.Records = append(page.Records, m2m.SceneRecord(result.EntityID))
	}

	if resp.NextRecord <= p.cursor {
		p.done = true
	} else {
		p.cursor = resp.NextRecord
	}

	p.logger.Debug().
		Int("page", page.Number).
		Int("records", len(page.Records)).
		Int("total_hits", page.TotalHits).
		Int("next_record", resp.NextRecord).
		Msg("Fetched scene page")

	return page, nil
}

// Cursor returns the cursor of the next page to be requested.
func (p *Pager) Cursor() int {
	return p.cursor
}

// Done reports whether the search is exhausted.
func (p *Pager) Done() bool {
	return p.done
}
