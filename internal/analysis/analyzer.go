package analysis

import (
	"context"
	"log"
	"math"
	"sort"
	"sync"

	"quantrisk/internal/config"
	"quantrisk/internal/engine"
	"quantrisk/internal/marketdata"
)

// maxConcurrentFetches bounds parallel history downloads per request.
const maxConcurrentFetches = 8

// Analyzer wires the data source, configuration and predictor into the
// portfolio-level operations exposed to callers.
type Analyzer struct {
	cfg       *config.Config
	source    marketdata.PriceSource
	predictor engine.VolatilityPredictor
}

// NewAnalyzer builds an Analyzer. predictor may be nil; predictions are
// then omitted from risk reports.
func NewAnalyzer(cfg *config.Config, source marketdata.PriceSource, predictor engine.VolatilityPredictor) *Analyzer {
	return &Analyzer{cfg: cfg, source: source, predictor: predictor}
}

// RiskReport is the full output of a risk analysis run.
type RiskReport struct {
	Symbols     []string                      `json:"symbols"`
	Weights     []float64                     `json:"weights"`
	Metrics     *engine.RiskMetrics           `json:"metrics"`
	Simulation  *engine.SimulationResult      `json:"simulation"`
	Predictions map[string]*engine.Prediction `json:"predictions,omitempty"`
}

// WeightChange describes one symbol's move from current to recommended
// allocation.
type WeightChange struct {
	Symbol      string  `json:"symbol"`
	Current     float64 `json:"current"`
	Recommended float64 `json:"recommended"`
	Delta       float64 `json:"delta"`
	// Action is "increase", "decrease" or "hold"; moves under 0.1
	// percentage points count as hold.
	Action string `json:"action"`
}

// OptimizationReport bundles the optimizer output with the current
// allocation's metrics and the per-symbol rebalancing moves.
type OptimizationReport struct {
	Symbols []string                   `json:"symbols"`
	Result  *engine.OptimizationResult `json:"result"`
	Current *engine.RiskMetrics        `json:"current"`
	Changes []WeightChange             `json:"changes"`

	// Improvement deltas, recommended minus current.
	ReturnDelta float64 `json:"return_delta"`
	RiskDelta   float64 `json:"risk_delta"`
	SharpeDelta float64 `json:"sharpe_delta"`
}

// StressReport holds the baseline metrics next to every scenario's
// stressed metrics. Errors lists scenarios that failed; the rest are
// still valid.
type StressReport struct {
	Symbols   []string                       `json:"symbols"`
	Weights   []float64                      `json:"weights"`
	Baseline  *engine.RiskMetrics            `json:"baseline"`
	Scenarios map[string]*engine.RiskMetrics `json:"scenarios"`
	Errors    []string                       `json:"errors,omitempty"`
}

// RiskAnalysis fetches history for the symbols, builds the aligned
// return matrix and computes metrics, a Monte Carlo simulation and
// per-symbol predictions. confidence and horizonDays of 0 select the
// configured defaults. weights nil selects equal weights; otherwise
// they are renormalized to sum to 1.
func (a *Analyzer) RiskAnalysis(ctx context.Context, symbols []string, weights []float64, confidence float64, horizonDays int) (*RiskReport, error) {
	confidence, horizonDays = a.defaults(confidence, horizonDays)

	prices, err := a.fetchHistories(ctx, symbols)
	if err != nil {
		return nil, err
	}
	matrix, err := engine.BuildReturnMatrix(prices, symbols, a.cfg.MinObservations)
	if err != nil {
		return nil, err
	}
	weights, err = normalizeInputWeights(weights, len(symbols))
	if err != nil {
		return nil, err
	}

	metrics, err := engine.ComputeRisk(matrix, weights, confidence, horizonDays, a.cfg.RiskFreeRate)
	if err != nil {
		return nil, err
	}
	sim, err := engine.Simulate(matrix, weights, engine.SimulationSpec{
		NumSimulations:   a.cfg.NumSimulations,
		HorizonDays:      horizonDays,
		ConfidenceLevels: []float64{confidence},
		Seed:             a.cfg.Seed,
	})
	if err != nil {
		return nil, err
	}

	report := &RiskReport{
		Symbols:    symbols,
		Weights:    weights,
		Metrics:    metrics,
		Simulation: sim,
	}
	if a.predictor != nil {
		report.Predictions = a.predictAll(symbols, horizonDays)
	}
	return report, nil
}

// OptimizePortfolio solves for the requested allocation and reports the
// per-symbol moves from currentWeights (nil means equal weights).
func (a *Analyzer) OptimizePortfolio(ctx context.Context, symbols []string, currentWeights []float64, method engine.OptimizationMethod) (*OptimizationReport, error) {
	prices, err := a.fetchHistories(ctx, symbols)
	if err != nil {
		return nil, err
	}
	matrix, err := engine.BuildReturnMatrix(prices, symbols, a.cfg.MinObservations)
	if err != nil {
		return nil, err
	}
	currentWeights, err = normalizeInputWeights(currentWeights, len(symbols))
	if err != nil {
		return nil, err
	}

	result, err := engine.Optimize(matrix, engine.OptimizeSpec{
		Method:       method,
		Lo:           a.cfg.WeightLo,
		Hi:           a.cfg.WeightHi,
		Confidence:   a.cfg.Confidence,
		HorizonDays:  a.cfg.HorizonDays,
		RiskFreeRate: a.cfg.RiskFreeRate,
		Restarts:     a.cfg.Restarts,
		Seed:         a.cfg.Seed,
	})
	if err != nil {
		return nil, err
	}
	current, err := engine.ComputeRisk(matrix, currentWeights, a.cfg.Confidence, a.cfg.HorizonDays, a.cfg.RiskFreeRate)
	if err != nil {
		return nil, err
	}

	report := &OptimizationReport{
		Symbols:     symbols,
		Result:      result,
		Current:     current,
		Changes:     weightChanges(symbols, currentWeights, result.Weights),
		ReturnDelta: result.Metrics.AnnualizedReturn - current.AnnualizedReturn,
		RiskDelta:   result.Metrics.Volatility - current.Volatility,
		SharpeDelta: result.Metrics.SharpeRatio - current.SharpeRatio,
	}
	return report, nil
}

// StressTest runs the named scenarios (all built-ins when names is
// empty) against the portfolio. Unknown names and malformed scenarios
// land in the report's error list without failing the batch.
func (a *Analyzer) StressTest(ctx context.Context, symbols []string, weights []float64, scenarioNames []string) (*StressReport, error) {
	prices, err := a.fetchHistories(ctx, symbols)
	if err != nil {
		return nil, err
	}
	matrix, err := engine.BuildReturnMatrix(prices, symbols, a.cfg.MinObservations)
	if err != nil {
		return nil, err
	}
	weights, err = normalizeInputWeights(weights, len(symbols))
	if err != nil {
		return nil, err
	}

	scenarios, unknown := selectScenarios(scenarioNames, a.cfg.HorizonDays)

	baseline, err := engine.ComputeRisk(matrix, weights, a.cfg.Confidence, a.cfg.HorizonDays, a.cfg.RiskFreeRate)
	if err != nil {
		return nil, err
	}
	results, scenarioErrs, err := engine.StressTest(matrix, weights, scenarios, a.cfg.Confidence, a.cfg.HorizonDays, a.cfg.RiskFreeRate)
	if err != nil {
		return nil, err
	}

	report := &StressReport{
		Symbols:   symbols,
		Weights:   weights,
		Baseline:  baseline,
		Scenarios: results,
	}
	for _, name := range unknown {
		report.Errors = append(report.Errors, (&engine.InvalidScenarioError{Scenario: name, Reason: "unknown scenario"}).Error())
	}
	for _, serr := range scenarioErrs {
		report.Errors = append(report.Errors, serr.Error())
	}
	return report, nil
}

func (a *Analyzer) defaults(confidence float64, horizonDays int) (float64, int) {
	if confidence == 0 {
		confidence = a.cfg.Confidence
	}
	if horizonDays == 0 {
		horizonDays = a.cfg.HorizonDays
	}
	return confidence, horizonDays
}

// fetchHistories pulls price series for every symbol concurrently. The
// first error aborts the batch.
func (a *Analyzer) fetchHistories(ctx context.Context, symbols []string) (map[string]engine.PriceSeries, error) {
	if len(symbols) == 0 {
		return nil, &engine.InvalidParameterError{Name: "symbols", Reason: "at least one symbol required"}
	}

	sem := make(chan struct{}, maxConcurrentFetches)
	var wg sync.WaitGroup
	var mu sync.Mutex
	prices := make(map[string]engine.PriceSeries, len(symbols))
	var firstErr error

	for _, symbol := range symbols {
		wg.Add(1)
		sem <- struct{}{}
		go func(sym string) {
			defer wg.Done()
			defer func() { <-sem }()

			series, err := a.source.History(ctx, sym, a.cfg.LookbackDays)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			prices[sym] = series
		}(symbol)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return prices, nil
}

// predictAll runs the predictor per symbol, logging and skipping
// failures so one bad symbol does not sink the report.
func (a *Analyzer) predictAll(symbols []string, horizonDays int) map[string]*engine.Prediction {
	predictions := make(map[string]*engine.Prediction, len(symbols))
	for _, sym := range symbols {
		p, err := a.predictor.Predict(sym, horizonDays)
		if err != nil {
			log.Printf("[ANALYSIS] predict %s: %v", sym, err)
			continue
		}
		predictions[sym] = p
	}
	if len(predictions) == 0 {
		return nil
	}
	return predictions
}

// normalizeInputWeights validates caller-supplied weights and rescales
// them to sum to 1. nil selects equal weights.
func normalizeInputWeights(weights []float64, n int) ([]float64, error) {
	if weights == nil {
		out := make([]float64, n)
		for i := range out {
			out[i] = 1 / float64(n)
		}
		return out, nil
	}
	if len(weights) != n {
		return nil, &engine.DimensionMismatchError{Weights: len(weights), Symbols: n}
	}
	var sum float64
	for _, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, &engine.InvalidParameterError{Name: "weights", Reason: "non-finite weight"}
		}
		if w < 0 {
			return nil, &engine.InvalidParameterError{Name: "weights", Reason: "negative weight"}
		}
		sum += w
	}
	if sum <= 0 {
		return nil, &engine.InvalidParameterError{Name: "weights", Reason: "weights must sum to a positive value"}
	}
	out := make([]float64, len(weights))
	for i, w := range weights {
		out[i] = w / sum
	}
	return out, nil
}

// holdThreshold is the rebalancing dead band in weight units.
const holdThreshold = 0.001

func weightChanges(symbols []string, current, recommended []float64) []WeightChange {
	changes := make([]WeightChange, len(symbols))
	for i, sym := range symbols {
		delta := recommended[i] - current[i]
		action := "hold"
		switch {
		case delta > holdThreshold:
			action = "increase"
		case delta < -holdThreshold:
			action = "decrease"
		}
		changes[i] = WeightChange{
			Symbol:      sym,
			Current:     current[i],
			Recommended: recommended[i],
			Delta:       delta,
			Action:      action,
		}
	}
	sort.Slice(changes, func(i, j int) bool {
		return math.Abs(changes[i].Delta) > math.Abs(changes[j].Delta)
	})
	return changes
}

// selectScenarios resolves scenario names against the built-in set.
// Empty names selects everything.
func selectScenarios(names []string, horizonDays int) ([]engine.StressScenario, []string) {
	builtins := engine.BuiltinScenarios(horizonDays)
	if len(names) == 0 {
		return builtins, nil
	}
	byName := make(map[string]engine.StressScenario, len(builtins))
	for _, sc := range builtins {
		byName[sc.Name] = sc
	}
	var selected []engine.StressScenario
	var unknown []string
	for _, name := range names {
		if sc, ok := byName[name]; ok {
			selected = append(selected, sc)
		} else {
			unknown = append(unknown, name)
		}
	}
	return selected, unknown
}
