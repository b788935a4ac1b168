package engine

import (
	"fmt"
	"strings"
)

// SymbolNotFoundError reports a symbol with no price data at all.
type SymbolNotFoundError struct {
	Symbol string
}

func (e *SymbolNotFoundError) Error() string {
	return fmt.Sprintf("symbol %q: no price data", e.Symbol)
}

// InsufficientDataError reports too few aligned observations for a
// meaningful computation. Symbols names the offender(s) when known.
type InsufficientDataError struct {
	Symbols      []string
	Observations int
	Required     int
}

func (e *InsufficientDataError) Error() string {
	if len(e.Symbols) > 0 {
		return fmt.Sprintf("insufficient data for %s: %d observations, need %d",
			strings.Join(e.Symbols, ", "), e.Observations, e.Required)
	}
	return fmt.Sprintf("insufficient data: %d observations, need %d", e.Observations, e.Required)
}

// DimensionMismatchError reports a weight vector whose length does not
// match the number of symbols in the return matrix.
type DimensionMismatchError struct {
	Weights int
	Symbols int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: %d weights for %d symbols", e.Weights, e.Symbols)
}

// InvalidParameterError reports an out-of-range or malformed input
// parameter.
type InvalidParameterError struct {
	Name   string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Name, e.Reason)
}

// InvalidScenarioError reports a malformed stress scenario. It affects
// only the named scenario; other scenarios in a batch still compute.
type InvalidScenarioError struct {
	Scenario string
	Reason   string
}

func (e *InvalidScenarioError) Error() string {
	return fmt.Sprintf("invalid scenario %q: %s", e.Scenario, e.Reason)
}
