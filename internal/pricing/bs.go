package pricing

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/contactkeval/option-pricer/internal/observe"
)

// ErrInvalidArgument is returned when a caller passes a value that can
// never be valid, such as an unknown option type. Market degeneracies
// (bad volatility, negative expiry) are not errors; they yield NaN.
var ErrInvalidArgument = errors.New("invalid argument")

// OptionType is the payoff side of a European option.
type OptionType string

const (
	Call OptionType = "call"
	Put  OptionType = "put"
)

// ParseOptionType accepts "call"/"put" in any case, plus the "c"/"p"
// shorthands used in OCC symbols.
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c":
		return Call, nil
	case "put", "p":
		return Put, nil
	}
	return "", fmt.Errorf("%w: option_type must be 'call' or 'put', got %q", ErrInvalidArgument, s)
}

func (t OptionType) validate() error {
	if t != Call && t != Put {
		return fmt.Errorf("%w: option_type must be 'call' or 'put', got %q", ErrInvalidArgument, string(t))
	}
	return nil
}

// Params are the Black-Scholes inputs for a single option.
type Params struct {
	S     float64 `json:"S"`     // spot
	K     float64 `json:"K"`     // strike
	T     float64 `json:"T"`     // time to expiry in years
	R     float64 `json:"r"`     // risk-free rate
	Sigma float64 `json:"sigma"` // annualized volatility
}

// Greeks holds the five first-order sensitivities of one option.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Vega  float64 `json:"vega"`
	Theta float64 `json:"theta"`
	Rho   float64 `json:"rho"`
}

// Engine evaluates Black-Scholes prices and Greeks. It holds no state
// besides the diagnostic observer and is safe for concurrent use.
type Engine struct {
	obs observe.Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver injects the diagnostic sink. Degenerate inputs (sentinel
// results, expiry boundary) are reported through it.
func WithObserver(o observe.Observer) Option {
	return func(e *Engine) { e.obs = observe.OrNop(o) }
}

// NewEngine returns a pricing engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{obs: observe.Nop}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// invalid reports inputs for which the model is undefined: non-finite or
// non-positive volatility, or a negative time to expiry.
func invalid(p Params) bool {
	return math.IsNaN(p.Sigma) || math.IsInf(p.Sigma, 0) || p.Sigma <= 0 || p.T < 0
}

func (e *Engine) emit(op string, p Params, outcome string) {
	e.obs.Observe(observe.Event{
		Component: "pricing",
		Op:        op,
		Fields: observe.Fields{
			"S": p.S, "K": p.K, "T": p.T, "r": p.R, "sigma": p.Sigma,
			"outcome": outcome,
		},
	})
}

// boundary returns (value, true) when p is degenerate: NaN for invalid
// inputs, atExpiry when T == 0.
func (e *Engine) boundary(op string, p Params, atExpiry float64) (float64, bool) {
	if invalid(p) {
		e.emit(op, p, "sentinel")
		return math.NaN(), true
	}
	if p.T == 0 {
		e.emit(op, p, "expiry")
		return atExpiry, true
	}
	return 0, false
}

// CallPrice calculates the price of a European call option.
//
// Parameters:
//   - p.S: spot price of the underlying asset
//   - p.K: strike price of the option
//   - p.T: time to expiry in years
//   - p.R: risk-free interest rate (annual)
//   - p.Sigma: volatility of the underlying asset (annual, as a decimal)
//
// Returns:
//
//	S·Φ(d1) − K·e^(−rT)·Φ(d2). NaN when volatility is non-finite or
//	non-positive, or T is negative. At T == 0 the intrinsic value max(S−K, 0).
func (e *Engine) CallPrice(p Params) float64 {
	if v, ok := e.boundary("call_price", p, math.Max(p.S-p.K, 0)); ok {
		return v
	}
	d1 := d1(p)
	d2 := d2(p)
	return p.S*normCDF(d1) - p.K*math.Exp(-p.R*p.T)*normCDF(d2)
}

// PutPrice calculates the price of a European put option:
// K·e^(−rT)·Φ(−d2) − S·Φ(−d1), with the same degenerate-input policy as
// CallPrice and intrinsic value max(K−S, 0) at expiry.
func (e *Engine) PutPrice(p Params) float64 {
	if v, ok := e.boundary("put_price", p, math.Max(p.K-p.S, 0)); ok {
		return v
	}
	d1 := d1(p)
	d2 := d2(p)
	return p.K*math.Exp(-p.R*p.T)*normCDF(-d2) - p.S*normCDF(-d1)
}

// Price dispatches to CallPrice or PutPrice.
func (e *Engine) Price(p Params, t OptionType) (float64, error) {
	if err := t.validate(); err != nil {
		return 0, err
	}
	if t == Call {
		return e.CallPrice(p), nil
	}
	return e.PutPrice(p), nil
}

// Delta measures the rate of change in the option price with respect to
// the underlying price: Φ(d1) for calls, Φ(d1) − 1 for puts.
//
// At expiry delta is a step in S: 1 above the strike, 0 below, and 0.5
// exactly at the money (puts are shifted by −1).
func (e *Engine) Delta(p Params, t OptionType) (float64, error) {
	if err := t.validate(); err != nil {
		return 0, err
	}

	step := 0.5
	switch {
	case p.S > p.K:
		step = 1
	case p.S < p.K:
		step = 0
	}
	if t == Put {
		step -= 1
	}

	if v, ok := e.boundary("delta", p, step); ok {
		return v, nil
	}
	if t == Call {
		return normCDF(d1(p)), nil
	}
	return normCDF(d1(p)) - 1, nil
}

// Gamma measures the rate of change in delta with respect to the
// underlying price. Defined as 0 at expiry.
func (e *Engine) Gamma(p Params) float64 {
	if v, ok := e.boundary("gamma", p, 0); ok {
		return v
	}
	return normPDF(d1(p)) / (p.S * p.Sigma * math.Sqrt(p.T))
}

// Vega measures sensitivity to volatility, per unit of sigma.
// Defined as 0 at expiry.
func (e *Engine) Vega(p Params) float64 {
	if v, ok := e.boundary("vega", p, 0); ok {
		return v
	}
	return p.S * normPDF(d1(p)) * math.Sqrt(p.T)
}

// Theta measures the sensitivity of the option price to the passage of
// time, per year. Defined as 0 at expiry.
func (e *Engine) Theta(p Params, t OptionType) (float64, error) {
	if err := t.validate(); err != nil {
		return 0, err
	}
	if v, ok := e.boundary("theta", p, 0); ok {
		return v, nil
	}

	d1 := d1(p)
	d2 := d2(p)
	common := -(p.S * normPDF(d1) * p.Sigma) / (2 * math.Sqrt(p.T))

	if t == Call {
		return common - p.R*p.K*math.Exp(-p.R*p.T)*normCDF(d2), nil
	}
	return common + p.R*p.K*math.Exp(-p.R*p.T)*normCDF(-d2), nil
}

// Rho measures sensitivity to the interest rate. Defined as 0 at expiry.
func (e *Engine) Rho(p Params, t OptionType) (float64, error) {
	if err := t.validate(); err != nil {
		return 0, err
	}
	if v, ok := e.boundary("rho", p, 0); ok {
		return v, nil
	}

	d2 := d2(p)
	if t == Call {
		return p.K * p.T * math.Exp(-p.R*p.T) * normCDF(d2), nil
	}
	return -p.K * p.T * math.Exp(-p.R*p.T) * normCDF(-d2), nil
}

// AllGreeks evaluates the five Greeks for one option.
func (e *Engine) AllGreeks(p Params, t OptionType) (Greeks, error) {
	var g Greeks
	var err error

	if g.Delta, err = e.Delta(p, t); err != nil {
		return Greeks{}, err
	}
	g.Gamma = e.Gamma(p)
	g.Vega = e.Vega(p)
	if g.Theta, err = e.Theta(p, t); err != nil {
		return Greeks{}, err
	}
	if g.Rho, err = e.Rho(p, t); err != nil {
		return Greeks{}, err
	}
	return g, nil
}

// d1 = (ln(S/K) + (r + σ²/2)·T) / (σ·√T)
func d1(p Params) float64 {
	return (math.Log(p.S/p.K) + (p.R+0.5*p.Sigma*p.Sigma)*p.T) / (p.Sigma * math.Sqrt(p.T))
}

// d2 = d1 − σ·√T
func d2(p Params) float64 {
	return d1(p) - p.Sigma*math.Sqrt(p.T)
}

// normCDF is the standard normal cumulative distribution function Φ.
func normCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// normPDF is the standard normal density φ.
func normPDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}
