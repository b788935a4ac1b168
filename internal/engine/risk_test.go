package engine

import (
	"errors"
	"math"
	"testing"
	"time"
)

// matrixFromRows builds a ReturnMatrix directly from per-date rows.
func matrixFromRows(symbols []string, rows [][]float64) *ReturnMatrix {
	dates := make([]time.Time, len(rows))
	data := make([]float64, 0, len(rows)*len(symbols))
	for r, row := range rows {
		dates[r] = day(r + 1)
		data = append(data, row...)
	}
	return &ReturnMatrix{Symbols: symbols, Dates: dates, Data: data}
}

// repeatPattern tiles the given per-day returns for every symbol.
func repeatPattern(symbols int, pattern []float64, days int) [][]float64 {
	rows := make([][]float64, days)
	for r := range rows {
		row := make([]float64, symbols)
		for c := range row {
			row[c] = pattern[r%len(pattern)]
		}
		rows[r] = row
	}
	return rows
}

func equalWeightVec(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	return w
}

func TestComputeRisk_KnownPattern(t *testing.T) {
	// Three symbols, identical i.i.d. pattern over 250 days, equal
	// weights: the portfolio series equals the pattern, so the 95%
	// historical VaR must match the empirical 5th percentile (-0.02).
	m := matrixFromRows([]string{"A", "B", "C"}, repeatPattern(3, []float64{0.01, -0.02, 0.015}, 750))
	rm, err := ComputeRisk(m, equalWeightVec(3), 0.95, 1, 0)
	if err != nil {
		t.Fatalf("ComputeRisk: %v", err)
	}
	if math.Abs(rm.HistoricalVaR-0.02) > 1e-4 {
		t.Errorf("HistoricalVaR = %v, want 0.02", rm.HistoricalVaR)
	}
	if rm.Observations != 750 {
		t.Errorf("Observations = %d, want 750", rm.Observations)
	}
}

func TestComputeRisk_ParametricFormula(t *testing.T) {
	pattern := []float64{0.01, -0.02, 0.015, 0.005, -0.01}
	m := matrixFromRows([]string{"A"}, repeatPattern(1, pattern, 100))
	rm, err := ComputeRisk(m, []float64{1}, 0.95, 1, 0)
	if err != nil {
		t.Fatalf("ComputeRisk: %v", err)
	}

	port := m.Column(0)
	mean := mean(port)
	std := math.Sqrt(variance(port))
	z := stdNormal.Quantile(0.05)
	want := -(mean + z*std)
	if math.Abs(rm.ParametricVaR-want) > 1e-12 {
		t.Errorf("ParametricVaR = %v, want %v", rm.ParametricVaR, want)
	}
	if math.Abs(rm.Volatility-std*math.Sqrt(252)) > 1e-12 {
		t.Errorf("Volatility = %v, want %v", rm.Volatility, std*math.Sqrt(252))
	}
}

func TestComputeRisk_HorizonScaling(t *testing.T) {
	m := matrixFromRows([]string{"A"}, repeatPattern(1, []float64{0.01, -0.02, 0.015}, 90))
	oneDay, err := ComputeRisk(m, []float64{1}, 0.95, 1, 0)
	if err != nil {
		t.Fatalf("ComputeRisk h=1: %v", err)
	}
	tenDay, err := ComputeRisk(m, []float64{1}, 0.95, 10, 0)
	if err != nil {
		t.Fatalf("ComputeRisk h=10: %v", err)
	}
	scale := math.Sqrt(10)
	if math.Abs(tenDay.HistoricalVaR-oneDay.HistoricalVaR*scale) > 1e-12 {
		t.Errorf("10-day HistoricalVaR = %v, want %v", tenDay.HistoricalVaR, oneDay.HistoricalVaR*scale)
	}
	if math.Abs(tenDay.ParametricVaR-oneDay.ParametricVaR*scale) > 1e-12 {
		t.Errorf("10-day ParametricVaR = %v, want %v", tenDay.ParametricVaR, oneDay.ParametricVaR*scale)
	}
}

func TestComputeRisk_ShortfallDominatesVaR(t *testing.T) {
	// Mixed losses with a fat left tail: ES magnitude must be at least
	// the historical VaR magnitude.
	pattern := []float64{0.012, -0.03, 0.008, -0.055, 0.02, -0.01, 0.004, -0.09, 0.015, 0.001}
	m := matrixFromRows([]string{"A", "B"}, repeatPattern(2, pattern, 200))
	rm, err := ComputeRisk(m, []float64{0.6, 0.4}, 0.95, 1, 0)
	if err != nil {
		t.Fatalf("ComputeRisk: %v", err)
	}
	if rm.ExpectedShortfall < rm.HistoricalVaR {
		t.Errorf("ExpectedShortfall = %v < HistoricalVaR = %v", rm.ExpectedShortfall, rm.HistoricalVaR)
	}
	if rm.HistoricalVaR <= 0 {
		t.Errorf("HistoricalVaR = %v, want > 0 for lossy series", rm.HistoricalVaR)
	}
	if rm.ParametricVaR <= 0 {
		t.Errorf("ParametricVaR = %v, want > 0 for lossy series", rm.ParametricVaR)
	}
}

func TestComputeRisk_ZeroVolatility(t *testing.T) {
	// Constant returns: volatility 0 must give Sharpe 0, not an error.
	m := matrixFromRows([]string{"A"}, repeatPattern(1, []float64{0.01}, 40))
	rm, err := ComputeRisk(m, []float64{1}, 0.95, 1, 0)
	if err != nil {
		t.Fatalf("ComputeRisk: %v", err)
	}
	if rm.Volatility != 0 {
		t.Errorf("Volatility = %v, want 0", rm.Volatility)
	}
	if rm.SharpeRatio != 0 {
		t.Errorf("SharpeRatio = %v, want 0", rm.SharpeRatio)
	}
	if rm.MaxDrawdown != 0 {
		t.Errorf("MaxDrawdown = %v, want 0 for monotone gains", rm.MaxDrawdown)
	}
}

func TestComputeRisk_SharpeRiskFree(t *testing.T) {
	pattern := []float64{0.01, -0.005, 0.02, -0.01}
	m := matrixFromRows([]string{"A"}, repeatPattern(1, pattern, 80))
	noRf, err := ComputeRisk(m, []float64{1}, 0.95, 1, 0)
	if err != nil {
		t.Fatalf("ComputeRisk: %v", err)
	}
	withRf, err := ComputeRisk(m, []float64{1}, 0.95, 1, 0.02)
	if err != nil {
		t.Fatalf("ComputeRisk: %v", err)
	}
	want := noRf.SharpeRatio - 0.02/noRf.Volatility
	if math.Abs(withRf.SharpeRatio-want) > 1e-12 {
		t.Errorf("SharpeRatio with rf = %v, want %v", withRf.SharpeRatio, want)
	}
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name    string
		returns []float64
		want    float64
	}{
		{"no losses", []float64{0.01, 0.02, 0.005}, 0},
		{"single drop", []float64{0.10, -0.50, 0.10}, -0.50},
		{"recovering", []float64{-0.20, 0.25}, -0.20},
		{"empty", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := maxDrawdown(tt.returns)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("maxDrawdown(%v) = %v, want %v", tt.returns, got, tt.want)
			}
		})
	}
}

func TestComputeRisk_InputValidation(t *testing.T) {
	m := matrixFromRows([]string{"A", "B"}, repeatPattern(2, []float64{0.01, -0.01}, 50))
	half := []float64{0.5, 0.5}

	tests := []struct {
		name       string
		m          *ReturnMatrix
		weights    []float64
		confidence float64
		horizon    int
	}{
		{"confidence too low", m, half, 0, 1},
		{"confidence too high", m, half, 1, 1},
		{"bad horizon", m, half, 0.95, 0},
		{"nan weight", m, []float64{math.NaN(), 0.5}, 0.95, 1},
		{"wrong weight count", m, []float64{1}, 0.95, 1},
		{"too few rows", matrixFromRows([]string{"A"}, [][]float64{{0.01}}), []float64{1}, 0.95, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ComputeRisk(tt.m, tt.weights, tt.confidence, tt.horizon, 0); err == nil {
				t.Error("expected error")
			}
		})
	}

	_, err := ComputeRisk(m, []float64{1}, 0.95, 1, 0)
	var dim *DimensionMismatchError
	if !errors.As(err, &dim) {
		t.Errorf("error = %v, want DimensionMismatchError", err)
	}
}

// mean and variance are small local helpers so expected values in tests
// stay independent of the code under test.
func mean(x []float64) float64 {
	var s float64
	for _, v := range x {
		s += v
	}
	return s / float64(len(x))
}

func variance(x []float64) float64 {
	m := mean(x)
	var s float64
	for _, v := range x {
		s += (v - m) * (v - m)
	}
	return s / float64(len(x)-1)
}
