package config

import (
	"quantrisk/internal/engine"
)

// Config holds analysis settings (in-memory representation).
// Persistence of price data is handled by internal/marketdata.
type Config struct {
	// Data window.
	LookbackDays    int `json:"lookback_days"`
	MinObservations int `json:"min_observations"`

	// Risk parameters.
	Confidence   float64 `json:"confidence"`
	HorizonDays  int     `json:"horizon_days"`
	RiskFreeRate float64 `json:"risk_free_rate"`

	// Monte Carlo.
	NumSimulations int   `json:"num_simulations"`
	MaxSimulations int   `json:"max_simulations"`
	Seed           int64 `json:"seed"`

	// Optimizer.
	WeightLo float64 `json:"weight_lo"`
	WeightHi float64 `json:"weight_hi"`
	Restarts int     `json:"restarts"`

	// Predictor.
	EWMALambda float64 `json:"ewma_lambda"`
}

// Default returns a Config with sensible defaults: two years of daily
// history, 95% one-day VaR, ten thousand Monte Carlo draws.
func Default() *Config {
	return &Config{
		LookbackDays:    504,
		MinObservations: engine.DefaultMinObservations,
		Confidence:      0.95,
		HorizonDays:     1,
		RiskFreeRate:    0,
		NumSimulations:  10000,
		MaxSimulations:  1_000_000,
		WeightLo:        0,
		WeightHi:        1,
		Restarts:        3,
		EWMALambda:      engine.DefaultEWMALambda,
	}
}

// Validate checks ranges and reports the first violation.
func (c *Config) Validate() error {
	if c.LookbackDays < 2 {
		return &engine.InvalidParameterError{Name: "lookback_days", Reason: "must be >= 2"}
	}
	if c.MinObservations < 2 {
		return &engine.InvalidParameterError{Name: "min_observations", Reason: "must be >= 2"}
	}
	if c.Confidence <= 0 || c.Confidence >= 1 {
		return &engine.InvalidParameterError{Name: "confidence", Reason: "must be in (0, 1)"}
	}
	if c.HorizonDays < 1 {
		return &engine.InvalidParameterError{Name: "horizon_days", Reason: "must be >= 1"}
	}
	if c.NumSimulations < 1 {
		return &engine.InvalidParameterError{Name: "num_simulations", Reason: "must be >= 1"}
	}
	if c.MaxSimulations > 0 && c.NumSimulations > c.MaxSimulations {
		return &engine.InvalidParameterError{Name: "num_simulations", Reason: "exceeds max_simulations"}
	}
	if c.WeightLo > c.WeightHi {
		return &engine.InvalidParameterError{Name: "weight_lo", Reason: "must not exceed weight_hi"}
	}
	return nil
}
