package engine

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

// TradingDaysPerYear is the annualization factor for daily return series.
const TradingDaysPerYear = 252

// PricePoint is one daily observation of an adjusted close price.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// PriceSeries is an ordered sequence of daily prices for one symbol.
// Dates must be strictly increasing with no duplicates; the external
// data collector is responsible for producing clean series.
type PriceSeries []PricePoint

// ReturnMatrix holds aligned daily simple returns: one row per date,
// one column per symbol. Every row has a value for every column;
// dates missing any symbol are dropped during alignment.
type ReturnMatrix struct {
	Symbols []string    `json:"symbols"`
	Dates   []time.Time `json:"dates"`
	// Data is row-major: Data[r*len(Symbols)+c] is the return of
	// Symbols[c] on Dates[r].
	Data []float64 `json:"data"`
}

// NumRows returns the number of aligned dates.
func (m *ReturnMatrix) NumRows() int { return len(m.Dates) }

// NumSymbols returns the number of columns.
func (m *ReturnMatrix) NumSymbols() int { return len(m.Symbols) }

// At returns the return of symbol column c on date row r.
func (m *ReturnMatrix) At(r, c int) float64 {
	return m.Data[r*len(m.Symbols)+c]
}

// Row returns the return vector for date row r. The slice aliases the
// underlying storage and must not be modified.
func (m *ReturnMatrix) Row(r int) []float64 {
	n := len(m.Symbols)
	return m.Data[r*n : (r+1)*n]
}

// Column returns a copy of the return series for symbol column c.
func (m *ReturnMatrix) Column(c int) []float64 {
	out := make([]float64, m.NumRows())
	for r := range out {
		out[r] = m.At(r, c)
	}
	return out
}

// PortfolioReturns collapses the matrix into a single portfolio return
// series using the given weights (dot product per row).
func (m *ReturnMatrix) PortfolioReturns(weights []float64) ([]float64, error) {
	if len(weights) != m.NumSymbols() {
		return nil, &DimensionMismatchError{Weights: len(weights), Symbols: m.NumSymbols()}
	}
	out := make([]float64, m.NumRows())
	for r := range out {
		out[r] = floats.Dot(m.Row(r), weights)
	}
	return out, nil
}

// RiskMetrics is the result bundle of a single risk computation. All VaR
// and shortfall figures are loss fractions (positive = loss), drawdown is
// a non-positive fraction.
type RiskMetrics struct {
	HistoricalVaR     float64 `json:"historical_var"`
	ParametricVaR     float64 `json:"parametric_var"`
	ExpectedShortfall float64 `json:"expected_shortfall"`
	// Volatility is the annualized standard deviation of daily portfolio returns.
	Volatility float64 `json:"volatility"`
	// AnnualizedReturn is the mean daily portfolio return scaled to a year.
	AnnualizedReturn float64 `json:"annualized_return"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`

	Confidence   float64 `json:"confidence"`
	HorizonDays  int     `json:"horizon_days"`
	Observations int     `json:"observations"`
}

// VaRPoint is an empirical VaR estimate at one confidence level.
type VaRPoint struct {
	Confidence float64 `json:"confidence"`
	VaR        float64 `json:"var"`
}

// SimPercentiles summarizes the simulated outcome distribution.
type SimPercentiles struct {
	P1  float64 `json:"p1"`
	P5  float64 `json:"p5"`
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// SimulationResult holds the simulated portfolio outcomes and derived
// statistics. Outcomes are cumulative portfolio returns over the horizon.
type SimulationResult struct {
	Outcomes []float64 `json:"outcomes"`

	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	// VaRByConfidence has one entry per requested confidence level,
	// sorted ascending by confidence.
	VaRByConfidence   []VaRPoint     `json:"var_by_confidence"`
	VaR95             float64        `json:"var_95"`
	VaR99             float64        `json:"var_99"`
	ProbabilityOfLoss float64        `json:"probability_of_loss"`
	Percentiles       SimPercentiles `json:"percentiles"`

	NumSimulations int   `json:"num_simulations"`
	HorizonDays    int   `json:"horizon_days"`
	Seed           int64 `json:"seed"`
}

// OptimizationMethod selects the allocation strategy.
type OptimizationMethod string

const (
	MethodMaxSharpe   OptimizationMethod = "max_sharpe"
	MethodMinVariance OptimizationMethod = "min_variance"
	MethodEqualWeight OptimizationMethod = "equal_weight"
)

// ParseMethod converts a string into a known OptimizationMethod.
func ParseMethod(s string) (OptimizationMethod, error) {
	switch OptimizationMethod(s) {
	case MethodMaxSharpe, MethodMinVariance, MethodEqualWeight:
		return OptimizationMethod(s), nil
	}
	return "", &InvalidParameterError{Name: "method", Reason: "unknown optimization method " + s}
}

// OptimizationResult bundles the optimized weights with the risk metrics
// of that weighting and the method that produced it. Converged is false
// when the solver exhausted its restart budget and fell back to equal
// weights.
type OptimizationResult struct {
	Weights   []float64          `json:"weights"`
	Method    OptimizationMethod `json:"method"`
	Converged bool               `json:"converged"`
	Metrics   *RiskMetrics       `json:"metrics"`
}

// StressScenario is a deterministic transform of a return matrix:
// an additive shift of each column's mean and a multiplicative factor
// on deviations from that mean.
type StressScenario struct {
	Name          string  `json:"name"`
	ReturnShift   float64 `json:"return_shift"`
	VolMultiplier float64 `json:"vol_multiplier"`
}

// Valid reports whether the scenario parameters are finite.
func (s StressScenario) Valid() bool {
	return !math.IsNaN(s.ReturnShift) && !math.IsInf(s.ReturnShift, 0) &&
		!math.IsNaN(s.VolMultiplier) && !math.IsInf(s.VolMultiplier, 0)
}

// Prediction is a forward-looking per-symbol estimate produced by a
// VolatilityPredictor.
type Prediction struct {
	Symbol string `json:"symbol"`
	// Volatility is the predicted daily volatility over the horizon.
	Volatility     float64 `json:"volatility"`
	ExpectedReturn float64 `json:"expected_return"`
	VaR95          float64 `json:"var_95"`
	VaR99          float64 `json:"var_99"`
}
