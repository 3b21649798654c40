package data

import (
	"errors"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"github.com/contactkeval/option-pricer/internal/logger"
)

// TradingDays annualises daily volatility.
const TradingDays = 252

// ErrInsufficientHistory is returned when there are too few prices to
// estimate volatility.
var ErrInsufficientHistory = errors.New("insufficient price history")

// LogReturns returns ln(p[i]/p[i-1]) for i >= 1.
func LogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		out[i-1] = math.Log(prices[i] / prices[i-1])
	}
	return out
}

// RollingVolatility returns the annualised sample standard deviation of
// returns over a trailing window. Entries before the first full window are
// NaN, so the output is aligned with returns.
func RollingVolatility(returns []float64, window int) []float64 {
	out := make([]float64, len(returns))
	for i := range out {
		if window < 2 || i+1 < window {
			out[i] = math.NaN()
			continue
		}
		sd, err := stats.StandardDeviationSample(returns[i+1-window : i+1])
		if err != nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = sd * math.Sqrt(TradingDays)
	}
	return out
}

// LatestVolatility estimates the current annualised volatility from closing
// prices using the last window returns. With fewer returns than window it
// falls back to all available returns; at least two returns are required.
func LatestVolatility(closes []float64, window int) (float64, error) {
	returns := LogReturns(closes)
	if len(returns) < 2 {
		return 0, fmt.Errorf("%w: %d closes", ErrInsufficientHistory, len(closes))
	}
	if window > len(returns) || window < 2 {
		logger.Warnf("volatility window %d exceeds %d available returns, using all", window, len(returns))
		window = len(returns)
	}

	vols := RollingVolatility(returns, window)
	return vols[len(vols)-1], nil
}
