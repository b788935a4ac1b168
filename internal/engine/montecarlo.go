package engine

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// zeroVarianceEps is the variance below which a symbol is treated as
// constant and receives zero-variance draws instead of entering the
// Cholesky factorization.
const zeroVarianceEps = 1e-18

// SimulationSpec parameterizes a Monte Carlo run.
type SimulationSpec struct {
	NumSimulations int
	HorizonDays    int
	// ConfidenceLevels selects the empirical VaR estimates to derive
	// from the simulated outcomes. 0.95 and 0.99 are always included.
	ConfidenceLevels []float64
	// Seed makes the run reproducible: the same seed with the same
	// inputs yields a bit-identical outcome array. Seed 0 draws a
	// time-based seed.
	Seed int64
}

// Simulate draws NumSimulations independent horizon-cumulative portfolio
// outcomes from a multivariate normal fitted to the historical returns
// (per-symbol means plus sample covariance, correlated via the
// covariance's Cholesky factor), compounding daily draws over the
// horizon and weighting the per-symbol cumulative returns.
func Simulate(m *ReturnMatrix, weights []float64, spec SimulationSpec) (*SimulationResult, error) {
	if spec.NumSimulations < 1 {
		return nil, &InvalidParameterError{Name: "num_simulations", Reason: "must be >= 1"}
	}
	if spec.HorizonDays < 1 {
		return nil, &InvalidParameterError{Name: "horizon_days", Reason: "must be >= 1"}
	}
	if len(weights) != m.NumSymbols() {
		return nil, &DimensionMismatchError{Weights: len(weights), Symbols: m.NumSymbols()}
	}
	if m.NumRows() < 2 {
		return nil, &InsufficientDataError{Observations: m.NumRows(), Required: 2}
	}
	levels, err := confidenceLevels(spec.ConfidenceLevels)
	if err != nil {
		return nil, err
	}

	model := fitReturnModel(m)

	seed := spec.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	n := m.NumSymbols()
	outcomes := make([]float64, spec.NumSimulations)
	growth := make([]float64, n)
	daily := make([]float64, n)
	for s := 0; s < spec.NumSimulations; s++ {
		for j := range growth {
			growth[j] = 1
		}
		for d := 0; d < spec.HorizonDays; d++ {
			model.sampleDaily(rng, daily)
			for j := 0; j < n; j++ {
				growth[j] *= 1 + daily[j]
			}
		}
		var out float64
		for j := 0; j < n; j++ {
			out += weights[j] * (growth[j] - 1)
		}
		outcomes[s] = out
	}

	return summarize(outcomes, levels, spec, seed), nil
}

// returnModel is a fitted multivariate normal over the active (nonzero
// variance) symbols. Constant symbols draw their mean exactly.
type returnModel struct {
	mu     []float64 // per-symbol mean, all symbols
	active []int     // columns with positive variance
	chol   *mat.TriDense
	// stds is the independent-draw fallback when the reduced
	// covariance is not positive definite.
	stds []float64
	z    []float64 // scratch, len(active)
}

// fitReturnModel estimates means and the sample covariance, drops
// zero-variance columns, and factors what remains. A reduced matrix
// that still fails Cholesky (e.g. perfectly correlated columns) falls
// back to independent draws with the per-symbol standard deviations.
func fitReturnModel(m *ReturnMatrix) *returnModel {
	n := m.NumSymbols()
	dense := mat.NewDense(m.NumRows(), n, m.Data)

	cov := &mat.SymDense{}
	stat.CovarianceMatrix(cov, dense, nil)

	model := &returnModel{mu: make([]float64, n)}
	for j := 0; j < n; j++ {
		model.mu[j] = stat.Mean(m.Column(j), nil)
		if cov.At(j, j) > zeroVarianceEps {
			model.active = append(model.active, j)
		}
	}
	if len(model.active) == 0 {
		return model
	}

	reduced := mat.NewSymDense(len(model.active), nil)
	for a, j := range model.active {
		for b, k := range model.active {
			if b > a {
				break
			}
			reduced.SetSym(a, b, cov.At(j, k))
		}
	}

	var chol mat.Cholesky
	if chol.Factorize(reduced) {
		var l mat.TriDense
		chol.LTo(&l)
		model.chol = &l
	} else {
		model.stds = make([]float64, len(model.active))
		for a, j := range model.active {
			model.stds[a] = math.Sqrt(cov.At(j, j))
		}
	}
	model.z = make([]float64, len(model.active))
	return model
}

// sampleDaily fills daily with one day of correlated returns.
func (rm *returnModel) sampleDaily(rng *rand.Rand, daily []float64) {
	copy(daily, rm.mu)
	if len(rm.active) == 0 {
		return
	}
	for i := range rm.z {
		rm.z[i] = rng.NormFloat64()
	}
	if rm.chol != nil {
		for a, j := range rm.active {
			var sum float64
			for b := 0; b <= a; b++ {
				sum += rm.chol.At(a, b) * rm.z[b]
			}
			daily[j] += sum
		}
		return
	}
	for a, j := range rm.active {
		daily[j] += rm.stds[a] * rm.z[a]
	}
}

func confidenceLevels(requested []float64) ([]float64, error) {
	levels := []float64{0.95, 0.99}
	for _, c := range requested {
		if c <= 0 || c >= 1 {
			return nil, &InvalidParameterError{Name: "confidence_levels", Reason: "levels must be in (0, 1)"}
		}
		dup := false
		for _, have := range levels {
			if have == c {
				dup = true
				break
			}
		}
		if !dup {
			levels = append(levels, c)
		}
	}
	sort.Float64s(levels)
	return levels, nil
}

func summarize(outcomes, levels []float64, spec SimulationSpec, seed int64) *SimulationResult {
	sorted := make([]float64, len(outcomes))
	copy(sorted, outcomes)
	sort.Float64s(sorted)

	res := &SimulationResult{
		Outcomes:       outcomes,
		Mean:           stat.Mean(outcomes, nil),
		NumSimulations: spec.NumSimulations,
		HorizonDays:    spec.HorizonDays,
		Seed:           seed,
	}
	if len(outcomes) > 1 {
		res.StdDev = stat.StdDev(outcomes, nil)
	}

	pct := func(p float64) float64 { return stat.Quantile(p, stat.LinInterp, sorted, nil) }
	for _, c := range levels {
		v := -pct(1 - c)
		res.VaRByConfidence = append(res.VaRByConfidence, VaRPoint{Confidence: c, VaR: v})
		switch c {
		case 0.95:
			res.VaR95 = v
		case 0.99:
			res.VaR99 = v
		}
	}

	losses := 0
	for _, o := range outcomes {
		if o < 0 {
			losses++
		}
	}
	res.ProbabilityOfLoss = float64(losses) / float64(len(outcomes))

	res.Percentiles = SimPercentiles{
		P1:  pct(0.01),
		P5:  pct(0.05),
		P25: pct(0.25),
		P50: pct(0.50),
		P75: pct(0.75),
		P95: pct(0.95),
		P99: pct(0.99),
	}
	return res
}
