package engine

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// stdNormal is the unit normal used for parametric quantiles.
var stdNormal = distuv.Normal{Mu: 0, Sigma: 1}

// ComputeRisk calculates the full risk metric bundle for a weighted
// portfolio over an aligned return matrix.
//
// Historical VaR is the (1-confidence) empirical quantile of the daily
// portfolio returns (linear interpolation), parametric VaR assumes
// normality, and both are scaled by the square root of the horizon.
// The square-root-of-time rule assumes i.i.d. daily returns and is
// applied to both estimators uniformly.
//
// riskFreeRate is annualized and only affects the Sharpe ratio; pass 0
// when unspecified.
func ComputeRisk(m *ReturnMatrix, weights []float64, confidence float64, horizonDays int, riskFreeRate float64) (*RiskMetrics, error) {
	if confidence <= 0 || confidence >= 1 {
		return nil, &InvalidParameterError{Name: "confidence", Reason: "must be in (0, 1)"}
	}
	if horizonDays < 1 {
		return nil, &InvalidParameterError{Name: "horizon_days", Reason: "must be >= 1"}
	}
	for _, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, &InvalidParameterError{Name: "weights", Reason: "non-finite weight"}
		}
	}

	port, err := m.PortfolioReturns(weights)
	if err != nil {
		return nil, err
	}
	if len(port) < 2 {
		return nil, &InsufficientDataError{Observations: len(port), Required: 2}
	}

	scale := math.Sqrt(float64(horizonDays))
	mean := stat.Mean(port, nil)
	std := stat.StdDev(port, nil)

	histVaR, es := historicalVaRES(port, confidence, scale)

	z := stdNormal.Quantile(1 - confidence)
	paramVaR := -(mean + z*std) * scale

	vol := std * math.Sqrt(TradingDaysPerYear)
	annReturn := mean * TradingDaysPerYear

	sharpe := 0.0
	if vol > 0 {
		sharpe = (annReturn - riskFreeRate) / vol
	}

	return &RiskMetrics{
		HistoricalVaR:     histVaR,
		ParametricVaR:     paramVaR,
		ExpectedShortfall: es,
		Volatility:        vol,
		AnnualizedReturn:  annReturn,
		SharpeRatio:       sharpe,
		MaxDrawdown:       maxDrawdown(port),
		Confidence:        confidence,
		HorizonDays:       horizonDays,
		Observations:      len(port),
	}, nil
}

// historicalVaRES returns the empirical VaR and expected shortfall as
// positive loss fractions, both scaled by the horizon factor. The
// shortfall averages all returns at or below the quantile threshold, so
// its magnitude is never below the VaR's.
func historicalVaRES(port []float64, confidence, scale float64) (histVaR, es float64) {
	sorted := make([]float64, len(port))
	copy(sorted, port)
	sort.Float64s(sorted)

	q := stat.Quantile(1-confidence, stat.LinInterp, sorted, nil)
	histVaR = -q * scale

	var tailSum float64
	tailN := 0
	for _, r := range sorted {
		if r > q {
			break
		}
		tailSum += r
		tailN++
	}
	if tailN > 0 {
		es = -(tailSum / float64(tailN)) * scale
	} else {
		es = histVaR
	}
	return histVaR, es
}

// maxDrawdown returns the deepest peak-to-trough decline of the
// cumulative return path, as a fraction in [-1, 0].
func maxDrawdown(returns []float64) float64 {
	cum := 1.0
	peak := 1.0
	worst := 0.0
	for _, r := range returns {
		cum *= 1 + r
		if cum > peak {
			peak = cum
		}
		if dd := (cum - peak) / peak; dd < worst {
			worst = dd
		}
	}
	return worst
}
