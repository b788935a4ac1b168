package engine

import (
	"errors"
	"math"
	"testing"
	"time"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

// seriesFromCloses builds a PriceSeries with one close per consecutive day.
func seriesFromCloses(startDay int, closes ...float64) PriceSeries {
	s := make(PriceSeries, len(closes))
	for i, c := range closes {
		s[i] = PricePoint{Date: day(startDay + i), Close: c}
	}
	return s
}

// flatSeries builds n+1 closes, producing n identical zero returns.
func flatSeries(n int) PriceSeries {
	closes := make([]float64, n+1)
	for i := range closes {
		closes[i] = 100
	}
	return seriesFromCloses(0, closes...)
}

func TestBuildReturnMatrix_SimpleReturns(t *testing.T) {
	prices := map[string]PriceSeries{
		"AAA": seriesFromCloses(0, 100, 110, 99),
		"BBB": seriesFromCloses(0, 50, 50, 60),
	}
	m, err := BuildReturnMatrix(prices, []string{"AAA", "BBB"}, 2)
	if err != nil {
		t.Fatalf("BuildReturnMatrix: %v", err)
	}
	if m.NumRows() != 2 || m.NumSymbols() != 2 {
		t.Fatalf("dims = %dx%d, want 2x2", m.NumRows(), m.NumSymbols())
	}
	want := [][]float64{
		{0.10, 0.0},
		{-0.10, 0.20},
	}
	for r := range want {
		for c := range want[r] {
			if math.Abs(m.At(r, c)-want[r][c]) > 1e-12 {
				t.Errorf("At(%d,%d) = %v, want %v", r, c, m.At(r, c), want[r][c])
			}
		}
	}
}

func TestBuildReturnMatrix_CalendarIntersection(t *testing.T) {
	// BBB is missing day 2, so the aligned matrix must drop that row
	// for both symbols.
	bbb := PriceSeries{
		{Date: day(0), Close: 50},
		{Date: day(1), Close: 55},
		{Date: day(3), Close: 66},
		{Date: day(4), Close: 33},
	}
	prices := map[string]PriceSeries{
		"AAA": seriesFromCloses(0, 100, 100, 100, 100, 100),
		"BBB": bbb,
	}
	m, err := BuildReturnMatrix(prices, []string{"AAA", "BBB"}, 2)
	if err != nil {
		t.Fatalf("BuildReturnMatrix: %v", err)
	}
	// Shared return dates: day1, day3, day4 (BBB has no return on day2,
	// and its day3 return spans day1→day3 which stays keyed to day3).
	if m.NumRows() != 3 {
		t.Fatalf("rows = %d, want 3", m.NumRows())
	}
	for r, wantDay := range []time.Time{day(1), day(3), day(4)} {
		if !m.Dates[r].Equal(wantDay) {
			t.Errorf("Dates[%d] = %v, want %v", r, m.Dates[r], wantDay)
		}
	}
}

func TestBuildReturnMatrix_Errors(t *testing.T) {
	tests := []struct {
		name    string
		prices  map[string]PriceSeries
		symbols []string
		minObs  int
		target  any
	}{
		{
			name:    "no symbols",
			prices:  map[string]PriceSeries{},
			symbols: nil,
			target:  &InvalidParameterError{},
		},
		{
			name:    "symbol missing entirely",
			prices:  map[string]PriceSeries{"AAA": flatSeries(40)},
			symbols: []string{"AAA", "ZZZ"},
			target:  &SymbolNotFoundError{},
		},
		{
			name:    "too few aligned observations",
			prices:  map[string]PriceSeries{"AAA": flatSeries(10)},
			symbols: []string{"AAA"},
			minObs:  30,
			target:  &InsufficientDataError{},
		},
		{
			name: "unsorted dates",
			prices: map[string]PriceSeries{"AAA": {
				{Date: day(1), Close: 100},
				{Date: day(0), Close: 101},
			}},
			symbols: []string{"AAA"},
			minObs:  1,
			target:  &InvalidParameterError{},
		},
		{
			name:    "zero close",
			prices:  map[string]PriceSeries{"AAA": seriesFromCloses(0, 0, 10)},
			symbols: []string{"AAA"},
			minObs:  1,
			target:  &InvalidParameterError{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildReturnMatrix(tt.prices, tt.symbols, tt.minObs)
			if err == nil {
				t.Fatal("expected error")
			}
			switch want := tt.target.(type) {
			case *InvalidParameterError:
				var e *InvalidParameterError
				if !errors.As(err, &e) {
					t.Errorf("error = %v, want %T", err, want)
				}
			case *SymbolNotFoundError:
				var e *SymbolNotFoundError
				if !errors.As(err, &e) {
					t.Fatalf("error = %v, want %T", err, want)
				}
				if e.Symbol != "ZZZ" {
					t.Errorf("Symbol = %q, want ZZZ", e.Symbol)
				}
			case *InsufficientDataError:
				var e *InsufficientDataError
				if !errors.As(err, &e) {
					t.Fatalf("error = %v, want %T", err, want)
				}
				if e.Required != 30 {
					t.Errorf("Required = %d, want 30", e.Required)
				}
			}
		})
	}
}

func TestBuildReturnMatrix_NamesShortSymbols(t *testing.T) {
	prices := map[string]PriceSeries{
		"LONG":  flatSeries(100),
		"SHORT": flatSeries(5),
	}
	_, err := BuildReturnMatrix(prices, []string{"LONG", "SHORT"}, 30)
	var e *InsufficientDataError
	if !errors.As(err, &e) {
		t.Fatalf("error = %v, want InsufficientDataError", err)
	}
	if len(e.Symbols) != 1 || e.Symbols[0] != "SHORT" {
		t.Errorf("Symbols = %v, want [SHORT]", e.Symbols)
	}
}

func TestPortfolioReturns(t *testing.T) {
	m := &ReturnMatrix{
		Symbols: []string{"A", "B"},
		Dates:   []time.Time{day(0), day(1)},
		Data:    []float64{0.01, 0.03, -0.02, 0.01},
	}
	got, err := m.PortfolioReturns([]float64{0.5, 0.5})
	if err != nil {
		t.Fatalf("PortfolioReturns: %v", err)
	}
	want := []float64{0.02, -0.005}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("port[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if _, err := m.PortfolioReturns([]float64{1}); err == nil {
		t.Error("expected DimensionMismatchError for short weight vector")
	}
}
