package engine

import (
	"gonum.org/v1/gonum/stat"
)

// BuiltinScenarios returns the default stress scenario set. The named
// total return shifts are spread across the analysis horizon, so with
// the default one-day horizon market_crash applies the full -20% shock
// to a single day's mean.
func BuiltinScenarios(horizonDays int) []StressScenario {
	if horizonDays < 1 {
		horizonDays = 1
	}
	h := float64(horizonDays)
	return []StressScenario{
		{Name: "market_crash", ReturnShift: -0.20 / h, VolMultiplier: 2.0},
		{Name: "high_volatility", ReturnShift: 0, VolMultiplier: 3.0},
		{Name: "recession", ReturnShift: -0.15 / h, VolMultiplier: 1.5},
	}
}

// StressTest applies each scenario's transform to the return matrix and
// recomputes the risk metrics at the same weights. Scenarios are
// independent; a malformed scenario yields an InvalidScenarioError in
// the returned error list while the rest still compute, and its key is
// omitted from the result map.
//
// Errors that invalidate the whole batch (dimension mismatch, too little
// history, bad confidence/horizon) are returned as the final error.
func StressTest(m *ReturnMatrix, weights []float64, scenarios []StressScenario, confidence float64, horizonDays int, riskFreeRate float64) (map[string]*RiskMetrics, []error, error) {
	// Validate the shared inputs once, on the untransformed matrix.
	if _, err := ComputeRisk(m, weights, confidence, horizonDays, riskFreeRate); err != nil {
		return nil, nil, err
	}

	means := columnMeans(m)
	results := make(map[string]*RiskMetrics, len(scenarios))
	var scenarioErrs []error
	for _, sc := range scenarios {
		if !sc.Valid() {
			scenarioErrs = append(scenarioErrs, &InvalidScenarioError{Scenario: sc.Name, Reason: "non-finite shift or multiplier"})
			continue
		}
		stressed := applyScenario(m, means, sc)
		metrics, err := ComputeRisk(stressed, weights, confidence, horizonDays, riskFreeRate)
		if err != nil {
			scenarioErrs = append(scenarioErrs, &InvalidScenarioError{Scenario: sc.Name, Reason: err.Error()})
			continue
		}
		results[sc.Name] = metrics
	}
	return results, scenarioErrs, nil
}

func columnMeans(m *ReturnMatrix) []float64 {
	means := make([]float64, m.NumSymbols())
	for j := range means {
		means[j] = stat.Mean(m.Column(j), nil)
	}
	return means
}

// applyScenario builds the transformed matrix
// r' = mean + shift + (r - mean)·volMult per column.
func applyScenario(m *ReturnMatrix, means []float64, sc StressScenario) *ReturnMatrix {
	n := m.NumSymbols()
	data := make([]float64, len(m.Data))
	for r := 0; r < m.NumRows(); r++ {
		for c := 0; c < n; c++ {
			v := m.At(r, c)
			data[r*n+c] = means[c] + sc.ReturnShift + (v-means[c])*sc.VolMultiplier
		}
	}
	return &ReturnMatrix{Symbols: m.Symbols, Dates: m.Dates, Data: data}
}
