package engine

import (
	"sort"
	"time"
)

// DefaultMinObservations is the minimum number of aligned return
// observations required to build a usable matrix.
const DefaultMinObservations = 30

// BuildReturnMatrix converts per-symbol price histories into an aligned
// daily return matrix. Returns are simple daily percentage changes.
// Alignment uses the intersection of every symbol's trading calendar:
// a date is kept only when every requested symbol has a return for it.
//
// Column order follows the symbols argument. minObs <= 0 selects
// DefaultMinObservations.
func BuildReturnMatrix(prices map[string]PriceSeries, symbols []string, minObs int) (*ReturnMatrix, error) {
	if len(symbols) == 0 {
		return nil, &InvalidParameterError{Name: "symbols", Reason: "empty symbol list"}
	}
	if minObs <= 0 {
		minObs = DefaultMinObservations
	}

	// Per-symbol returns keyed by date.
	perSymbol := make([]map[time.Time]float64, len(symbols))
	for i, sym := range symbols {
		series := prices[sym]
		if len(series) == 0 {
			return nil, &SymbolNotFoundError{Symbol: sym}
		}
		rets, err := dailyReturns(sym, series)
		if err != nil {
			return nil, err
		}
		perSymbol[i] = rets
	}

	// Calendar intersection, seeded from the first symbol.
	var dates []time.Time
	for d := range perSymbol[0] {
		keep := true
		for _, rets := range perSymbol[1:] {
			if _, ok := rets[d]; !ok {
				keep = false
				break
			}
		}
		if keep {
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	if len(dates) < minObs {
		return nil, &InsufficientDataError{
			Symbols:      shortSymbols(symbols, perSymbol, minObs),
			Observations: len(dates),
			Required:     minObs,
		}
	}

	data := make([]float64, 0, len(dates)*len(symbols))
	for _, d := range dates {
		for _, rets := range perSymbol {
			data = append(data, rets[d])
		}
	}
	return &ReturnMatrix{Symbols: append([]string(nil), symbols...), Dates: dates, Data: data}, nil
}

// dailyReturns computes (p[t]-p[t-1])/p[t-1] keyed by the date of day t,
// verifying the series invariants on the way.
func dailyReturns(symbol string, series PriceSeries) (map[time.Time]float64, error) {
	rets := make(map[time.Time]float64, len(series))
	for t := 1; t < len(series); t++ {
		prev, cur := series[t-1], series[t]
		if !cur.Date.After(prev.Date) {
			return nil, &InvalidParameterError{
				Name:   "prices",
				Reason: "dates for " + symbol + " are not strictly increasing",
			}
		}
		if prev.Close == 0 {
			return nil, &InvalidParameterError{
				Name:   "prices",
				Reason: "zero close price for " + symbol + " on " + prev.Date.Format("2006-01-02"),
			}
		}
		rets[cur.Date] = (cur.Close - prev.Close) / prev.Close
	}
	return rets, nil
}

// shortSymbols names the symbols responsible for a thin intersection:
// those whose own return history is already below the threshold. When
// every symbol individually has enough data and the shortage comes from
// misaligned calendars, all symbols are named.
func shortSymbols(symbols []string, perSymbol []map[time.Time]float64, minObs int) []string {
	var short []string
	for i, rets := range perSymbol {
		if len(rets) < minObs {
			short = append(short, symbols[i])
		}
	}
	if short == nil {
		short = append([]string(nil), symbols...)
	}
	return short
}
