// Package analysis runs the end-to-end model check: fetch history and an
// option chain, price the chain with Black-Scholes, score it against market
// prices and sweep the first few contracts.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/contactkeval/option-pricer/internal/config"
	"github.com/contactkeval/option-pricer/internal/data"
	"github.com/contactkeval/option-pricer/internal/evaluation"
	"github.com/contactkeval/option-pricer/internal/logger"
	"github.com/contactkeval/option-pricer/internal/observe"
	"github.com/contactkeval/option-pricer/internal/pricing"
	"github.com/contactkeval/option-pricer/internal/sensitivity"
)

var (
	// ErrNoData is returned when the provider has no bars for the window.
	ErrNoData = errors.New("no market data")
	// ErrNoOptions is returned when nothing survives filtering and pricing.
	ErrNoOptions = errors.New("no options to evaluate")
)

// Caveats are logged with every run and carried in the result.
var Caveats = []string{
	"Black-Scholes assumes efficient, frictionless markets and constant volatility.",
	"Transaction costs and dividends are not modelled.",
	"Historical volatility is a proxy; it is not the market's implied volatility.",
	"Results are diagnostics, not a basis for trading decisions.",
}

// OptionAnalysis is the per-contract sensitivity output.
type OptionAnalysis struct {
	Contract  string              `json:"contract"`
	Type      pricing.OptionType  `json:"type"`
	Params    pricing.Params      `json:"params"`
	Greeks    pricing.Greeks      `json:"greeks"`
	SpotSweep sensitivity.Sweep   `json:"spot_sweep"`
	Profile   sensitivity.Profile `json:"profile"`
}

// Result is everything one run produces.
type Result struct {
	Ticker       string    `json:"ticker"`
	AsOf         time.Time `json:"as_of"`
	Spot         float64   `json:"spot"`
	Volatility   float64   `json:"volatility"`
	RiskFreeRate float64   `json:"risk_free_rate"`

	Quoted   int `json:"quoted"`   // chain size
	Filtered int `json:"filtered"` // after the moneyness band
	Dropped  int `json:"dropped"`  // sentinel model prices and unknown types

	Records    []evaluation.OptionRecord `json:"records"`
	Metrics    evaluation.Metrics        `json:"metrics"`
	Residuals  []evaluation.Residual     `json:"residuals"`
	ByStrike   []evaluation.Bucket       `json:"by_strike"`
	ByExpiry   []evaluation.Bucket       `json:"by_expiry"`
	Comparison evaluation.Comparison     `json:"comparison"`
	Options    []OptionAnalysis          `json:"options"`
	Caveats    []string                  `json:"caveats"`
}

// Runner wires a data provider to the pricing, evaluation and sensitivity
// components.
type Runner struct {
	cfg       *config.Config
	prov      data.Provider
	engine    *pricing.Engine
	evaluator *evaluation.Evaluator
	analyzer  *sensitivity.Analyzer
	log       *logrus.Entry
}

// Option configures a Runner.
type Option func(*runnerOptions)

type runnerOptions struct {
	obs observe.Observer
}

// WithObserver passes o to every component the runner builds.
func WithObserver(o observe.Observer) Option {
	return func(ro *runnerOptions) { ro.obs = observe.OrNop(o) }
}

// NewRunner returns a Runner for cfg reading from prov.
func NewRunner(cfg *config.Config, prov data.Provider, opts ...Option) *Runner {
	ro := runnerOptions{obs: observe.Nop}
	for _, opt := range opts {
		opt(&ro)
	}

	engine := pricing.NewEngine(pricing.WithObserver(ro.obs))
	return &Runner{
		cfg:       cfg,
		prov:      prov,
		engine:    engine,
		evaluator: evaluation.NewEvaluator(evaluation.WithObserver(ro.obs)),
		analyzer:  sensitivity.NewAnalyzer(engine, sensitivity.WithObserver(ro.obs)),
		log:       logger.WithComponent("analysis"),
	}
}

// Run executes one analysis.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	cfg := r.cfg
	start, end, err := cfg.Dates()
	if err != nil {
		return nil, err
	}

	r.log.Infof("starting analysis for %s from %s to %s", cfg.Ticker, cfg.StartDate, cfg.EndDate)

	bars, err := r.prov.GetBars(ctx, cfg.Ticker, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetching bars: %w", err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s %s..%s", ErrNoData, cfg.Ticker, cfg.StartDate, cfg.EndDate)
	}

	closes := data.Closes(bars)
	spot := closes[len(closes)-1]
	asOf := bars[len(bars)-1].Date
	sigma, err := data.LatestVolatility(closes, cfg.VolWindow)
	if err != nil {
		return nil, err
	}
	r.log.Infof("stock price: %.2f, risk-free rate: %.2f, volatility: %.2f", spot, cfg.RiskFreeRate, sigma)

	chain, err := r.prov.GetOptionChain(ctx, cfg.Ticker, asOf)
	if err != nil {
		return nil, fmt.Errorf("fetching option chain: %w", err)
	}
	filtered := data.FilterByMoneyness(chain, spot, cfg.Filter.MinMoneyness, cfg.Filter.MaxMoneyness)
	r.log.Infof("options before filtering: %d, after: %d", len(chain), len(filtered))

	res := &Result{
		Ticker:       cfg.Ticker,
		AsOf:         asOf,
		Spot:         spot,
		Volatility:   sigma,
		RiskFreeRate: cfg.RiskFreeRate,
		Quoted:       len(chain),
		Filtered:     len(filtered),
		Caveats:      Caveats,
	}

	records, quotes, err := r.price(ctx, filtered, spot, sigma, asOf)
	if err != nil {
		return nil, err
	}
	res.Dropped = len(filtered) - len(records)
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %d quoted, %d after filtering", ErrNoOptions, len(chain), len(filtered))
	}
	r.log.Infof("options with valid model prices: %d", len(records))
	res.Records = records

	market := make([]float64, len(records))
	model := make([]float64, len(records))
	for i, rec := range records {
		market[i], model[i] = rec.MarketPrice, rec.ModelPrice
	}
	if res.Metrics, err = r.evaluator.CalculateMetrics(market, model); err != nil {
		return nil, err
	}
	r.log.WithFields(logrus.Fields{
		"MAE": res.Metrics.MAE, "MSE": res.Metrics.MSE, "RMSE": res.Metrics.RMSE, "R2": res.Metrics.R2,
	}).Info("model evaluation metrics")

	if res.Comparison, err = evaluation.PredictedVsActual(market, model); err != nil {
		return nil, err
	}
	res.Residuals = r.evaluator.ResidualBreakdown(records)
	res.ByStrike = evaluation.ByStrike(res.Residuals)
	res.ByExpiry = evaluation.ByExpiry(res.Residuals, cfg.ExpiryBucket)

	n := min(cfg.Sensitivity.MaxOptions, len(quotes))
	if res.Options, err = r.sensitivities(ctx, records[:n], quotes[:n], spot); err != nil {
		return nil, err
	}

	for _, c := range Caveats {
		r.log.Infof("caveat: %s", c)
	}
	r.log.Infof("analysis for %s completed", cfg.Ticker)
	return res, nil
}

// price builds one record per quote the engine can price and drops the
// rest. quotes is index-aligned with records.
func (r *Runner) price(ctx context.Context, chain []data.OptionQuote, spot, sigma float64, asOf time.Time) ([]evaluation.OptionRecord, []pricing.Quote, error) {
	quotes := make([]pricing.Quote, 0, len(chain))
	kept := make([]data.OptionQuote, 0, len(chain))
	for _, q := range chain {
		t, err := pricing.ParseOptionType(q.Type)
		if err != nil {
			r.log.Warnf("skipping %s: %v", q.Contract, err)
			continue
		}
		quotes = append(quotes, pricing.Quote{
			Params: pricing.Params{S: spot, K: q.Strike, T: data.TimeToExpiry(q.Expiry, asOf), R: r.cfg.RiskFreeRate, Sigma: sigma},
			Type:   t,
		})
		kept = append(kept, q)
	}

	prices, err := r.engine.PriceBatch(ctx, quotes, r.cfg.Workers)
	if err != nil {
		return nil, nil, fmt.Errorf("pricing chain: %w", err)
	}

	records := make([]evaluation.OptionRecord, 0, len(prices))
	valid := quotes[:0]
	for i, p := range prices {
		if math.IsNaN(p) {
			continue
		}
		records = append(records, evaluation.OptionRecord{
			Contract:     kept[i].Contract,
			Type:         string(quotes[i].Type),
			Strike:       kept[i].Strike,
			TimeToExpiry: quotes[i].T,
			MarketPrice:  kept[i].LastPrice,
			ModelPrice:   p,
		})
		valid = append(valid, quotes[i])
	}
	if dropped := len(prices) - len(records); dropped > 0 {
		r.log.Warnf("dropped %d options with undefined model prices", dropped)
	}
	return records, valid, nil
}

// sensitivities computes Greeks, a spot sweep and a Greek profile for each
// record, in parallel, keeping input order.
func (r *Runner) sensitivities(ctx context.Context, records []evaluation.OptionRecord, quotes []pricing.Quote, spot float64) ([]OptionAnalysis, error) {
	workers := r.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	out := make([]OptionAnalysis, len(records))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range records {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			q := quotes[i]
			greeks, err := r.engine.AllGreeks(q.Params, q.Type)
			if err != nil {
				return err
			}
			sweep, err := r.analyzer.ParameterSensitivity(sensitivity.ParamS, spot,
				r.cfg.Sensitivity.RangePct, r.cfg.Sensitivity.Steps, q.Params)
			if err != nil {
				return fmt.Errorf("%s: %w", records[i].Contract, err)
			}
			prof, err := r.analyzer.GreekProfile(q.Params, q.Type)
			if err != nil {
				return fmt.Errorf("%s: %w", records[i].Contract, err)
			}
			out[i] = OptionAnalysis{
				Contract:  records[i].Contract,
				Type:      q.Type,
				Params:    q.Params,
				Greeks:    greeks,
				SpotSweep: sweep,
				Profile:   prof,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
