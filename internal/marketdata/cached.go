package marketdata

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/singleflight"

	"quantrisk/internal/engine"
)

// CachedSource layers the SQLite store in front of an upstream source:
//  1. Fresh store entry → instant return, no upstream call
//  2. Miss or stale → fetch upstream, repopulate the store
//
// A singleflight.Group coalesces concurrent fetches for the same
// symbol so one slow upstream call serves every waiter.
type CachedSource struct {
	upstream PriceSource
	store    *Store
	group    singleflight.Group
}

// NewCachedSource wraps upstream with the given store.
func NewCachedSource(upstream PriceSource, store *Store) *CachedSource {
	return &CachedSource{upstream: upstream, store: store}
}

// History implements PriceSource.
func (c *CachedSource) History(ctx context.Context, symbol string, lookbackDays int) (engine.PriceSeries, error) {
	sfKey := fmt.Sprintf("%s:%d", symbol, lookbackDays)

	result, err, _ := c.group.Do(sfKey, func() (interface{}, error) {
		return c.historyUncoalesced(ctx, symbol, lookbackDays)
	})
	if err != nil {
		return nil, err
	}
	return result.(engine.PriceSeries), nil
}

func (c *CachedSource) historyUncoalesced(ctx context.Context, symbol string, lookbackDays int) (engine.PriceSeries, error) {
	if series, hit := c.store.GetPrices(symbol, lookbackDays); hit {
		log.Printf("[PRICES] cache HIT %s (%d points)", symbol, len(series))
		return series, nil
	}

	series, err := c.upstream.History(ctx, symbol, lookbackDays)
	if err != nil {
		return nil, err
	}
	c.store.SetPrices(symbol, series)
	log.Printf("[PRICES] cache MISS %s (%d points fetched)", symbol, len(series))
	return series, nil
}
