// Package evaluation measures how closely model prices track market prices.
package evaluation

import (
	"errors"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"github.com/contactkeval/option-pricer/internal/observe"
)

var (
	// ErrEmptyInput is returned when a price sequence has no elements.
	ErrEmptyInput = errors.New("empty input")
	// ErrShapeMismatch is returned when paired sequences differ in length.
	ErrShapeMismatch = errors.New("shape mismatch")
)

// Metrics are the accuracy statistics of one (market, model) pairing.
type Metrics struct {
	MAE  float64 `json:"MAE"`
	MSE  float64 `json:"MSE"`
	RMSE float64 `json:"RMSE"`
	R2   float64 `json:"R2"`
}

// Evaluator computes accuracy metrics and residuals.
type Evaluator struct {
	obs observe.Observer
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithObserver injects the diagnostic sink.
func WithObserver(o observe.Observer) Option {
	return func(e *Evaluator) { e.obs = observe.OrNop(o) }
}

// NewEvaluator returns an Evaluator.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{obs: observe.Nop}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CalculateMetrics compares market and model prices paired by index.
//
// Returns ErrEmptyInput if either sequence is empty and ErrShapeMismatch if
// their lengths differ. R2 = 1 − SS_res/SS_tot; when all market prices are
// equal (SS_tot == 0) R2 is 1 if every residual is zero and NaN otherwise.
func (e *Evaluator) CalculateMetrics(market, model []float64) (Metrics, error) {
	if len(market) == 0 || len(model) == 0 {
		return Metrics{}, fmt.Errorf("%w: market=%d model=%d", ErrEmptyInput, len(market), len(model))
	}
	if len(market) != len(model) {
		return Metrics{}, fmt.Errorf("%w: market=%d model=%d", ErrShapeMismatch, len(market), len(model))
	}

	absErr := make([]float64, len(market))
	sqErr := make([]float64, len(market))
	for i := range market {
		diff := market[i] - model[i]
		absErr[i] = math.Abs(diff)
		sqErr[i] = diff * diff
	}

	mae, err := stats.Mean(absErr)
	if err != nil {
		return Metrics{}, fmt.Errorf("mean absolute error: %w", err)
	}
	mse, err := stats.Mean(sqErr)
	if err != nil {
		return Metrics{}, fmt.Errorf("mean squared error: %w", err)
	}
	variance, err := stats.PopulationVariance(market)
	if err != nil {
		return Metrics{}, fmt.Errorf("market variance: %w", err)
	}
	lo, _ := stats.Min(market)
	hi, _ := stats.Max(market)
	if lo == hi {
		// the mean of a constant series can be off by an ulp, leaving a
		// spurious positive variance
		variance = 0
	}

	n := float64(len(market))
	m := Metrics{
		MAE:  mae,
		MSE:  mse,
		RMSE: math.Sqrt(mse),
		R2:   rSquared(mse*n, variance*n),
	}

	e.obs.Observe(observe.Event{
		Component: "evaluation",
		Op:        "calculate_metrics",
		Fields:    observe.Fields{"n": len(market), "MAE": m.MAE, "MSE": m.MSE, "RMSE": m.RMSE, "R2": m.R2},
	})
	return m, nil
}

// rSquared is 1 − ssRes/ssTot with a deterministic value for ssTot == 0.
func rSquared(ssRes, ssTot float64) float64 {
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return math.NaN()
	}
	return 1 - ssRes/ssTot
}
