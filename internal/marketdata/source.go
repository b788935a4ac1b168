package marketdata

import (
	"context"
	"sort"

	"quantrisk/internal/engine"
)

// PriceSource yields daily close history for one symbol. lookbackDays
// bounds how much history is returned; 0 means everything available.
type PriceSource interface {
	History(ctx context.Context, symbol string, lookbackDays int) (engine.PriceSeries, error)
}

// MemorySource serves preloaded price series, typically from a CSV
// import. It is safe for concurrent reads.
type MemorySource struct {
	prices map[string]engine.PriceSeries
}

// NewMemorySource builds a source over the given histories. Each series
// is sorted by date once at construction.
func NewMemorySource(prices map[string]engine.PriceSeries) *MemorySource {
	for _, series := range prices {
		sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	}
	return &MemorySource{prices: prices}
}

// Symbols lists the available symbols in sorted order.
func (s *MemorySource) Symbols() []string {
	out := make([]string, 0, len(s.prices))
	for sym := range s.prices {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// History returns up to the last lookbackDays+1 closes for the symbol,
// enough for lookbackDays daily returns.
func (s *MemorySource) History(ctx context.Context, symbol string, lookbackDays int) (engine.PriceSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	series, ok := s.prices[symbol]
	if !ok || len(series) == 0 {
		return nil, &engine.SymbolNotFoundError{Symbol: symbol}
	}
	if lookbackDays > 0 && len(series) > lookbackDays+1 {
		series = series[len(series)-lookbackDays-1:]
	}
	out := make(engine.PriceSeries, len(series))
	copy(out, series)
	return out, nil
}
