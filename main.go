package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"quantrisk/internal/analysis"
	"quantrisk/internal/config"
	"quantrisk/internal/engine"
	"quantrisk/internal/logger"
	"quantrisk/internal/marketdata"
)

var version = "dev"

func main() {
	var (
		dataPath    = flag.String("data", "prices.csv", "CSV price file (symbol,date,close)")
		dbPath      = flag.String("db", "", "SQLite price cache path (empty disables caching)")
		symbolList  = flag.String("symbols", "", "comma-separated symbols (default: every symbol in the data)")
		weightList  = flag.String("weights", "", "comma-separated portfolio weights (default: equal)")
		op          = flag.String("op", "risk", "operation: risk | optimize | stress")
		method      = flag.String("method", "max_sharpe", "optimizer method: max_sharpe | min_variance | equal_weight")
		confidence  = flag.Float64("confidence", 0.95, "VaR confidence level")
		horizonDays = flag.Int("horizon", 1, "risk horizon in trading days")
		sims        = flag.Int("sims", 10000, "Monte Carlo simulation count")
		seed        = flag.Int64("seed", 0, "simulation seed (0 = random)")
		riskFree    = flag.Float64("risk-free", 0, "annualized risk-free rate")
		lookback    = flag.Int("lookback", 504, "price history lookback in trading days")
		scenarioCSV = flag.String("scenarios", "", "comma-separated stress scenarios (default: all built-ins)")
	)
	flag.Parse()

	logger.Banner(version)

	cfg := config.Default()
	cfg.Confidence = *confidence
	cfg.HorizonDays = *horizonDays
	cfg.NumSimulations = *sims
	cfg.Seed = *seed
	cfg.RiskFreeRate = *riskFree
	cfg.LookbackDays = *lookback
	if err := cfg.Validate(); err != nil {
		fatal("CONFIG", err.Error())
	}

	prices, err := marketdata.LoadCSV(*dataPath)
	if err != nil {
		fatal("DATA", err.Error())
	}
	memory := marketdata.NewMemorySource(prices)
	logger.Info("DATA", fmt.Sprintf("Loaded %d symbols from %s", len(memory.Symbols()), *dataPath))

	var source marketdata.PriceSource = memory
	if *dbPath != "" {
		store, err := marketdata.OpenStore(*dbPath)
		if err != nil {
			fatal("STORE", err.Error())
		}
		defer store.Close()
		store.Cleanup(30 * 24 * time.Hour)
		source = marketdata.NewCachedSource(memory, store)
	}

	symbols := splitList(*symbolList)
	if len(symbols) == 0 {
		symbols = memory.Symbols()
	}
	weights, err := parseWeights(*weightList)
	if err != nil {
		fatal("WEIGHTS", err.Error())
	}

	predictor := engine.NewEWMAPredictor(prices, cfg.EWMALambda)
	analyzer := analysis.NewAnalyzer(cfg, source, predictor)
	ctx := context.Background()

	var report interface{}
	switch *op {
	case "risk":
		report, err = analyzer.RiskAnalysis(ctx, symbols, weights, cfg.Confidence, cfg.HorizonDays)
	case "optimize":
		var m engine.OptimizationMethod
		m, err = engine.ParseMethod(*method)
		if err == nil {
			report, err = analyzer.OptimizePortfolio(ctx, symbols, weights, m)
		}
	case "stress":
		report, err = analyzer.StressTest(ctx, symbols, weights, splitList(*scenarioCSV))
	default:
		fatal("OP", fmt.Sprintf("unknown operation %q (want risk, optimize or stress)", *op))
	}
	if err != nil {
		fatal("ANALYSIS", err.Error())
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		fatal("OUTPUT", err.Error())
	}
	logger.Success("DONE", fmt.Sprintf("%s analysis for %s", *op, strings.Join(symbols, ", ")))
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseWeights(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	parts := splitList(s)
	out := make([]float64, len(parts))
	for i, p := range parts {
		w, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("bad weight %q: %w", p, err)
		}
		out[i] = w
	}
	return out, nil
}

func fatal(tag, msg string) {
	logger.Error(tag, msg)
	os.Exit(1)
}
