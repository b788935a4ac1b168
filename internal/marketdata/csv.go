package marketdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"quantrisk/internal/engine"
)

// LoadCSV reads daily close prices from a symbol,date,close file
// (dates as 2006-01-02). A header row is skipped when present. Series
// come back sorted by date per symbol.
func LoadCSV(path string) (map[string]engine.PriceSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open prices csv: %w", err)
	}
	defer f.Close()
	return parseCSV(f)
}

func parseCSV(r io.Reader) (map[string]engine.PriceSeries, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3
	reader.TrimLeadingSpace = true

	prices := make(map[string]engine.PriceSeries)
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read prices csv: %w", err)
		}
		line++
		if line == 1 && strings.EqualFold(record[0], "symbol") {
			continue
		}

		symbol := strings.TrimSpace(record[0])
		if symbol == "" {
			return nil, fmt.Errorf("prices csv line %d: empty symbol", line)
		}
		date, err := time.Parse("2006-01-02", strings.TrimSpace(record[1]))
		if err != nil {
			return nil, fmt.Errorf("prices csv line %d: bad date %q: %w", line, record[1], err)
		}
		close, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("prices csv line %d: bad close %q: %w", line, record[2], err)
		}
		if close <= 0 {
			return nil, fmt.Errorf("prices csv line %d: close must be positive, got %v", line, close)
		}
		prices[symbol] = append(prices[symbol], engine.PricePoint{Date: date, Close: close})
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("prices csv: no data rows")
	}
	for _, series := range prices {
		sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	}
	return prices, nil
}
