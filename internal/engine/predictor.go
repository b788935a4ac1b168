package engine

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// VolatilityPredictor produces a forward volatility and VaR estimate for
// one symbol. Implementations may wrap any model (statistical, ensemble,
// or a stub) as long as they honor this contract.
type VolatilityPredictor interface {
	Predict(symbol string, horizonDays int) (*Prediction, error)
}

// DefaultEWMALambda is the standard RiskMetrics decay factor for daily data.
const DefaultEWMALambda = 0.94

// EWMAPredictor is the reference VolatilityPredictor: an exponentially
// weighted moving average of squared returns, with VaR derived from the
// normal quantiles at 95% and 99%.
type EWMAPredictor struct {
	prices map[string]PriceSeries
	lambda float64
}

// NewEWMAPredictor builds a predictor over the given price histories.
// lambda outside (0, 1) selects DefaultEWMALambda.
func NewEWMAPredictor(prices map[string]PriceSeries, lambda float64) *EWMAPredictor {
	if lambda <= 0 || lambda >= 1 {
		lambda = DefaultEWMALambda
	}
	return &EWMAPredictor{prices: prices, lambda: lambda}
}

// Predict estimates the symbol's horizon volatility and the implied VaR
// levels. VaR figures are clamped at zero: a predicted gain is not a loss.
func (p *EWMAPredictor) Predict(symbol string, horizonDays int) (*Prediction, error) {
	if horizonDays < 1 {
		return nil, &InvalidParameterError{Name: "horizon_days", Reason: "must be >= 1"}
	}
	series, ok := p.prices[symbol]
	if !ok || len(series) == 0 {
		return nil, &SymbolNotFoundError{Symbol: symbol}
	}
	rets, err := dailyReturns(symbol, series)
	if err != nil {
		return nil, err
	}
	if len(rets) < 2 {
		return nil, &InsufficientDataError{Symbols: []string{symbol}, Observations: len(rets), Required: 2}
	}

	// EWMA recursion in date order: s² ← λs² + (1-λ)r².
	ordered := make([]float64, 0, len(rets))
	for t := 1; t < len(series); t++ {
		ordered = append(ordered, rets[series[t].Date])
	}
	s2 := ordered[0] * ordered[0]
	for _, r := range ordered[1:] {
		s2 = p.lambda*s2 + (1-p.lambda)*r*r
	}

	scale := math.Sqrt(float64(horizonDays))
	vol := math.Sqrt(s2) * scale
	mean := stat.Mean(ordered, nil) * float64(horizonDays)

	z95 := stdNormal.Quantile(0.05)
	z99 := stdNormal.Quantile(0.01)
	return &Prediction{
		Symbol:         symbol,
		Volatility:     vol,
		ExpectedReturn: mean,
		VaR95:          math.Max(0, -(mean + z95*vol)),
		VaR99:          math.Max(0, -(mean + z99*vol)),
	}, nil
}
