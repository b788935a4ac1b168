package engine

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

const (
	// defaultRestarts is the retry budget for the max-Sharpe solver
	// before falling back to equal weights.
	defaultRestarts = 3
	// weightTolerance is the accepted drift of sum(weights) from 1
	// before clipping and renormalizing.
	weightTolerance = 1e-6

	pgdMaxIter = 1000
	pgdTol     = 1e-10
)

// OptimizeSpec parameterizes an optimization run. Zero values select the
// documented defaults.
type OptimizeSpec struct {
	Method OptimizationMethod
	// Lo and Hi bound each weight elementwise; both zero selects [0, 1].
	Lo, Hi float64
	// Confidence, HorizonDays and RiskFreeRate feed the risk metrics
	// bundled with the result (defaults 0.95, 1, 0).
	Confidence   float64
	HorizonDays  int
	RiskFreeRate float64
	// Restarts bounds the solver attempts for max_sharpe (default 3).
	Restarts int
	// Seed makes the randomized max_sharpe restarts reproducible.
	// Seed 0 keeps them randomized across runs.
	Seed int64
}

func (s *OptimizeSpec) withDefaults() OptimizeSpec {
	out := *s
	if out.Lo == 0 && out.Hi == 0 {
		out.Hi = 1
	}
	if out.Confidence == 0 {
		out.Confidence = 0.95
	}
	if out.HorizonDays == 0 {
		out.HorizonDays = 1
	}
	if out.Restarts <= 0 {
		out.Restarts = defaultRestarts
	}
	return out
}

// Optimize solves for portfolio weights under full-investment and
// elementwise bound constraints. The returned weights always satisfy
// |sum-1| <= 1e-6 and the bounds; minor numerical drift is clipped and
// renormalized before returning.
func Optimize(m *ReturnMatrix, spec OptimizeSpec) (*OptimizationResult, error) {
	spec = spec.withDefaults()
	n := m.NumSymbols()
	if n == 0 {
		return nil, &InvalidParameterError{Name: "returns", Reason: "no symbols"}
	}
	if m.NumRows() < 2 {
		return nil, &InsufficientDataError{Observations: m.NumRows(), Required: 2}
	}
	if spec.Lo > spec.Hi || spec.Lo*float64(n) > 1 || spec.Hi*float64(n) < 1 {
		return nil, &InvalidParameterError{Name: "bounds", Reason: "no feasible weights within bounds"}
	}

	var weights []float64
	converged := true
	switch spec.Method {
	case MethodEqualWeight:
		weights = equalWeights(n)
	case MethodMinVariance:
		weights = solveMinVariance(sampleCovariance(m), spec.Lo, spec.Hi)
	case MethodMaxSharpe:
		weights, converged = solveMaxSharpe(m, spec)
	default:
		return nil, &InvalidParameterError{Name: "method", Reason: "unknown optimization method " + string(spec.Method)}
	}

	normalizeWeights(weights, spec.Lo, spec.Hi)

	metrics, err := ComputeRisk(m, weights, spec.Confidence, spec.HorizonDays, spec.RiskFreeRate)
	if err != nil {
		return nil, err
	}
	return &OptimizationResult{
		Weights:   weights,
		Method:    spec.Method,
		Converged: converged,
		Metrics:   metrics,
	}, nil
}

func equalWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	return w
}

func sampleCovariance(m *ReturnMatrix) *mat.SymDense {
	cov := &mat.SymDense{}
	stat.CovarianceMatrix(cov, mat.NewDense(m.NumRows(), m.NumSymbols(), m.Data), nil)
	return cov
}

// solveMinVariance minimizes w'Σw over the bounded simplex via projected
// gradient descent. The problem is convex and the fixed step size
// 1/(2·trace(Σ)) stays below the inverse Lipschitz constant of the
// gradient, so the iteration converges to the global optimum.
func solveMinVariance(cov *mat.SymDense, lo, hi float64) []float64 {
	n := cov.SymmetricDim()
	w := equalWeights(n)

	trace := 0.0
	for i := 0; i < n; i++ {
		trace += cov.At(i, i)
	}
	if trace <= 0 {
		return w
	}
	step := 1 / (2 * trace)

	grad := make([]float64, n)
	prev := make([]float64, n)
	for iter := 0; iter < pgdMaxIter; iter++ {
		// Gradient of w'Σw is 2·Σ·w.
		for i := 0; i < n; i++ {
			var g float64
			for j := 0; j < n; j++ {
				g += cov.At(i, j) * w[j]
			}
			grad[i] = 2 * g
		}
		copy(prev, w)
		for i := range w {
			w[i] -= step * grad[i]
		}
		projectBoundedSimplex(w, lo, hi)

		maxDiff := 0.0
		for i := range w {
			if d := math.Abs(w[i] - prev[i]); d > maxDiff {
				maxDiff = d
			}
		}
		if maxDiff < pgdTol {
			break
		}
	}
	return w
}

// solveMaxSharpe maximizes (μ'w − r_f)/sqrt(w'Σw) with Nelder-Mead over
// the projected feasible set, retrying from randomized starting points.
// When no attempt converges within the restart budget it falls back to
// equal weights and reports converged=false.
func solveMaxSharpe(m *ReturnMatrix, spec OptimizeSpec) ([]float64, bool) {
	n := m.NumSymbols()
	cov := sampleCovariance(m)
	mu := make([]float64, n)
	for j := 0; j < n; j++ {
		mu[j] = stat.Mean(m.Column(j), nil)
	}
	rfDaily := spec.RiskFreeRate / TradingDaysPerYear

	objective := func(x []float64) float64 {
		w := append([]float64(nil), x...)
		projectBoundedSimplex(w, spec.Lo, spec.Hi)
		var ret, variance float64
		for i := 0; i < n; i++ {
			ret += mu[i] * w[i]
			for j := 0; j < n; j++ {
				variance += w[i] * w[j] * cov.At(i, j)
			}
		}
		return -(ret - rfDaily) / math.Sqrt(math.Max(variance, 1e-16))
	}
	problem := optimize.Problem{Func: objective}

	seed := spec.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	rng := rand.New(rand.NewSource(seed))

	bestObj := math.Inf(1)
	var best []float64
	for attempt := 0; attempt < spec.Restarts; attempt++ {
		x0 := equalWeights(n)
		if attempt > 0 {
			for i := range x0 {
				x0[i] = rng.Float64()
			}
			projectBoundedSimplex(x0, spec.Lo, spec.Hi)
		}

		result, err := optimize.Minimize(problem, x0, nil, &optimize.NelderMead{})
		if err != nil || !acceptableStatus(result.Status) {
			continue
		}
		if result.F < bestObj {
			bestObj = result.F
			best = append(best[:0], result.X...)
		}
	}
	if best == nil {
		return equalWeights(n), false
	}
	projectBoundedSimplex(best, spec.Lo, spec.Hi)
	return best, true
}

func acceptableStatus(s optimize.Status) bool {
	switch s {
	case optimize.Success, optimize.FunctionConvergence, optimize.GradientThreshold:
		return true
	}
	return false
}

// projectBoundedSimplex projects v in place onto
// {w : lo <= w_i <= hi, sum(w) = 1}. The projection clamps
// w_i = clamp(v_i − θ, lo, hi) and bisects on θ, whose induced sum is
// monotone decreasing.
func projectBoundedSimplex(v []float64, lo, hi float64) {
	n := len(v)
	if n == 0 {
		return
	}

	sumAt := func(theta float64) float64 {
		var s float64
		for _, x := range v {
			s += math.Min(hi, math.Max(lo, x-theta))
		}
		return s
	}

	// Bracket θ so the target sum 1 lies inside.
	left, right := 0.0, 0.0
	for _, x := range v {
		left = math.Min(left, x-hi)
		right = math.Max(right, x-lo)
	}
	left--
	right++

	for i := 0; i < 100; i++ {
		mid := (left + right) / 2
		if sumAt(mid) > 1 {
			left = mid
		} else {
			right = mid
		}
	}
	theta := (left + right) / 2
	for i, x := range v {
		v[i] = math.Min(hi, math.Max(lo, x-theta))
	}
}

// normalizeWeights clips to bounds and renormalizes when the sum has
// drifted beyond tolerance.
func normalizeWeights(w []float64, lo, hi float64) {
	for i := range w {
		w[i] = math.Min(hi, math.Max(lo, w[i]))
	}
	sum := floats.Sum(w)
	if math.Abs(sum-1) <= weightTolerance || sum == 0 {
		return
	}
	for i := range w {
		w[i] /= sum
	}
	// Rescaling can push a weight past its bound; the exact projection
	// restores feasibility.
	for i := range w {
		if w[i] < lo || w[i] > hi {
			projectBoundedSimplex(w, lo, hi)
			return
		}
	}
}
