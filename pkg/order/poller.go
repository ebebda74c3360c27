package order

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/geoharvest/m2m-harvester/pkg/logging"
	"github.com/geoharvest/m2m-harvester/pkg/m2m"
)

// State is the fulfillment state of an order.
type State string

const (
	// StateSubmitted means the order was accepted but not yet polled.
	StateSubmitted State = "SUBMITTED"

	// StatePolling means the poller is waiting for remaining items.
	StatePolling State = "POLLING"

	// StateFulfilled means every requested item has a ready link.
	StateFulfilled State = "FULFILLED"

	// StateGaveUp means the poll budget ran out before full readiness.
	// The links collected so far are still delivered to the caller.
	StateGaveUp State = "GAVE_UP"
)

// Default poll settings. The interval is deliberately coarse; the provider
// rate-limits aggressive polling.
const (
	DefaultInterval    = 10 * time.Second
	DefaultMaxAttempts = 60
)

// ReadyLink is a URL the provider has confirmed is immediately fetchable.
type ReadyLink struct {
	URL        string
	EntityID   string
	DownloadID int64
}

// Order is one submitted fulfillment request. Its link set only grows and
// never exceeds the requested item count.
type Order struct {
	Label     string
	Requested int
	State     State

	links []ReadyLink
	seen  map[string]struct{}
}

// Links returns the ready links collected so far.
func (o *Order) Links() []ReadyLink {
	return o.links
}

// add merges downloads into the link set, deduplicating by URL and
// capping at the requested count.
func (o *Order) add(downloads []m2m.Download) int {
	added := 0
	for _, d := range downloads {
		if d.URL == "" {
			continue
		}
		if _, dup := o.seen[d.URL]; dup {
			continue
		}
		if len(o.links) >= o.Requested {
			break
		}
		o.seen[d.URL] = struct{}{}
		o.links = append(o.links, ReadyLink{
			URL:        d.URL,
			EntityID:   d.EntityID,
			DownloadID: d.DownloadID,
		})
		added++
	}
	return added
}

// Result is the terminal outcome of polling one order.
type Result struct {
	// Links are all ready links collected, in discovery order.
	Links []ReadyLink

	// State is StateFulfilled or StateGaveUp.
	State State

	// Attempts is the number of retrieve polls issued.
	Attempts int

	// Shortfall is the number of requested items that never became ready.
	Shortfall int
}

// Client is the slice of the catalog client the poller needs.
type Client interface {
	DownloadRequest(ctx context.Context, session *m2m.Session, req m2m.DownloadRequestRequest) (*m2m.DownloadRequestResponse, error)
	DownloadRetrieve(ctx context.Context, session *m2m.Session, label string) (*m2m.DownloadRetrieveResponse, error)
}

// Poller submits orders and polls them to a terminal state.
type Poller struct {
	client  Client
	session *m2m.Session

	// Interval is the sleep between retrieve polls.
	Interval time.Duration

	// MaxAttempts bounds the number of retrieve polls per order. Without
	// a bound, a provider that never fulfills the remainder would be
	// polled forever.
	MaxAttempts int

	logger zerolog.Logger
}

// NewPoller creates a poller bound to one session.
func NewPoller(client Client, session *m2m.Session, interval time.Duration, maxAttempts int) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Poller{
		client:      client,
		session:     session,
		Interval:    interval,
		MaxAttempts: maxAttempts,
		logger:      logging.NewLogger("order"),
	}
}

// Submit places an order for items under the given label. If the provider
// reports nothing left preparing, the order is already fulfilled and its
// links come straight from the response.
func (p *Poller) Submit(ctx context.Context, items []m2m.DownloadEntry, label string) (*Order, error) {
	resp, err := p.client.DownloadRequest(ctx, p.session, m2m.DownloadRequestRequest{
		Downloads: items,
		Label:     label,
	})
	if err != nil {
		return nil, fmt.Errorf("download request: %w", err)
	}

	order := &Order{
		Label:     label,
		Requested: len(items),
		State:     StateSubmitted,
		seen:      make(map[string]struct{}),
	}
	order.add(resp.AvailableDownloads)

	if len(resp.PreparingDownloads) == 0 {
		order.State = StateFulfilled
	}

	p.logger.Info().
		Str("label", label).
		Int("requested", order.Requested).
		Int("available", len(order.links)).
		Int("preparing", len(resp.PreparingDownloads)).
		Msg("Order submitted")

	return order, nil
}

// Poll drives an order to a terminal state, retrieving by label until the
// link set reaches the requested count or the attempt budget runs out. A
// give-up is a normal result carrying whatever was collected; the only
// error returned is context cancellation.
func (p *Poller) Poll(ctx context.Context, order *Order) (*Result, error) {
	if order.State == StateFulfilled {
		return p.result(order, 0), nil
	}

	order.State = StatePolling

	attempt := 0
	for {
		attempt++

		retrieve, err := p.client.DownloadRetrieve(ctx, p.session, order.Label)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", m2m.ErrContextCancelled, ctx.Err())
			}
			// A failed retrieve consumes an attempt; the next poll may
			// still succeed.
			p.logger.Warn().
				Err(err).
				Str("label", order.Label).
				Int("attempt", attempt).
				Msg("Retrieve poll failed")
		} else if added := order.add(retrieve.Available); added > 0 {
			p.logger.Debug().
				Str("label", order.Label).
				Int("attempt", attempt).
				Int("new_links", added).
				Int("ready", len(order.links)).
				Int("requested", order.Requested).
				Msg("Collected ready links")
		}

		if len(order.links) >= order.Requested {
			order.State = StateFulfilled
			p.logger.Info().
				Str("label", order.Label).
				Int("attempts", attempt).
				Int("links", len(order.links)).
				Msg("Order fulfilled")
			return p.result(order, attempt), nil
		}

		if attempt >= p.MaxAttempts {
			order.State = StateGaveUp
			p.logger.Warn().
				Str("label", order.Label).
				Int("attempts", attempt).
				Int("ready", len(order.links)).
				Int("requested", order.Requested).
				Msg("Giving up on remaining items")
			return p.result(order, attempt), nil
		}

		p.logger.Info().
			Str("label", order.Label).
			Int("preparing", order.Requested-len(order.links)).
			Dur("interval", p.Interval).
			Msg("Items still preparing, waiting before next poll")

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", m2m.ErrContextCancelled, ctx.Err())
		case <-time.After(p.Interval):
		}
	}
}

func (p *Poller) result(order *Order, attempts int) *Result {
	return &Result{
		Links:     order.links,
		State:     order.State,
		Attempts:  attempts,
		Shortfall: order.Requested - len(order.links),
	}
}
