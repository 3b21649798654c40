// Package sensitivity sweeps Black-Scholes inputs to show how price and
// Greeks respond to one parameter at a time.
package sensitivity

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/contactkeval/option-pricer/internal/observe"
	"github.com/contactkeval/option-pricer/internal/pricing"
)

// ErrInvalidSweep is returned for sweep requests that cannot describe a
// valid grid (too few steps, range outside (0, 1), non-positive base of a
// multiplicative parameter).
var ErrInvalidSweep = errors.New("invalid sweep")

// ProfilePoints is the fixed size of a Greek profile grid.
const ProfilePoints = 100

// Param names a sweepable pricing input.
type Param string

const (
	ParamS     Param = "S"
	ParamK     Param = "K"
	ParamT     Param = "T"
	ParamR     Param = "r"
	ParamSigma Param = "sigma"
)

// ParseParam resolves a parameter name, case-insensitively.
func ParseParam(s string) (Param, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "s", "spot":
		return ParamS, nil
	case "k", "strike":
		return ParamK, nil
	case "t", "expiry":
		return ParamT, nil
	case "r", "rate":
		return ParamR, nil
	case "sigma", "vol":
		return ParamSigma, nil
	}
	return "", fmt.Errorf("%w: unknown parameter %q", pricing.ErrInvalidArgument, s)
}

// multiplicative params must have a positive base; r may be zero or negative.
func (p Param) multiplicative() bool { return p != ParamR }

func (p Param) set(params pricing.Params, v float64) pricing.Params {
	switch p {
	case ParamS:
		params.S = v
	case ParamK:
		params.K = v
	case ParamT:
		params.T = v
	case ParamR:
		params.R = v
	case ParamSigma:
		params.Sigma = v
	}
	return params
}

// Point is one (parameter value, output) pair of a sweep.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sweep is the ordered curve produced by varying one parameter.
type Sweep struct {
	Param  Param   `json:"param"`
	Output string  `json:"output"` // "call_price" or a Greek name
	Points []Point `json:"points"`
}

// Xs returns the parameter values of the sweep.
func (s Sweep) Xs() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.X
	}
	return out
}

// Ys returns the output values of the sweep.
func (s Sweep) Ys() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Y
	}
	return out
}

// Profile holds all five Greeks evaluated over a grid of spot prices.
type Profile struct {
	Strike float64                     `json:"strike"`
	Type   pricing.OptionType          `json:"type"`
	Spots  []float64                   `json:"spots"`
	Curves map[pricing.Greek][]float64 `json:"curves"`
}

// Analyzer runs sweeps against a pricing engine.
type Analyzer struct {
	engine *pricing.Engine
	obs    observe.Observer
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithObserver injects the diagnostic sink.
func WithObserver(o observe.Observer) Option {
	return func(a *Analyzer) { a.obs = observe.OrNop(o) }
}

// NewAnalyzer returns an Analyzer over engine.
func NewAnalyzer(engine *pricing.Engine, opts ...Option) *Analyzer {
	a := &Analyzer{engine: engine, obs: observe.Nop}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// grid builds steps evenly spaced values over
// [base·(1−rangePct), base·(1+rangePct)], both ends included, in
// increasing order. A zero base (legal for r only) collapses to zeros.
func grid(param Param, base, rangePct float64, steps int) ([]float64, error) {
	if steps < 2 {
		return nil, fmt.Errorf("%w: steps must be >= 2, got %d", ErrInvalidSweep, steps)
	}
	if !(rangePct > 0 && rangePct < 1) {
		return nil, fmt.Errorf("%w: range_pct must be in (0, 1), got %v", ErrInvalidSweep, rangePct)
	}
	if math.IsNaN(base) || math.IsInf(base, 0) {
		return nil, fmt.Errorf("%w: base value of %s must be finite, got %v", ErrInvalidSweep, param, base)
	}
	if param.multiplicative() && !(base > 0) {
		return nil, fmt.Errorf("%w: base value of %s must be > 0, got %v", ErrInvalidSweep, param, base)
	}

	lo, hi := base*(1-rangePct), base*(1+rangePct)
	if lo > hi {
		lo, hi = hi, lo // negative rate
	}
	return floats.Span(make([]float64, steps), lo, hi), nil
}

// ParameterSensitivity varies param over a linear grid of steps points
// spanning ±rangePct around base, holding the rest of fixed constant, and
// records the call price at each point.
//
// Parameters:
//   - param: which input to vary (S, K, T, r, sigma)
//   - base: centre of the sweep
//   - rangePct: half-width of the sweep as a fraction of base, in (0, 1)
//   - steps: number of grid points, >= 2
//   - fixed: values for the other inputs; the swept field is overwritten
//
// Engine sentinels (NaN) for bad fixed inputs are recorded as-is.
func (a *Analyzer) ParameterSensitivity(param Param, base, rangePct float64, steps int, fixed pricing.Params) (Sweep, error) {
	param, err := ParseParam(string(param))
	if err != nil {
		return Sweep{}, err
	}
	xs, err := grid(param, base, rangePct, steps)
	if err != nil {
		return Sweep{}, err
	}

	sweep := Sweep{Param: param, Output: "call_price", Points: make([]Point, len(xs))}
	for i, x := range xs {
		sweep.Points[i] = Point{X: x, Y: a.engine.CallPrice(param.set(fixed, x))}
	}

	a.obs.Observe(observe.Event{
		Component: "sensitivity",
		Op:        "parameter_sensitivity",
		Fields:    observe.Fields{"param": string(param), "base": base, "range_pct": rangePct, "steps": steps},
	})
	return sweep, nil
}

// GreekSweep is ParameterSensitivity for a Greek of the given option type
// instead of the call price.
func (a *Analyzer) GreekSweep(g pricing.Greek, t pricing.OptionType, param Param, base, rangePct float64, steps int, fixed pricing.Params) (Sweep, error) {
	param, err := ParseParam(string(param))
	if err != nil {
		return Sweep{}, err
	}
	xs, err := grid(param, base, rangePct, steps)
	if err != nil {
		return Sweep{}, err
	}

	sweep := Sweep{Param: param, Output: string(g), Points: make([]Point, len(xs))}
	for i, x := range xs {
		y, err := a.engine.Greek(g, param.set(fixed, x), t)
		if err != nil {
			return Sweep{}, err
		}
		sweep.Points[i] = Point{X: x, Y: y}
	}

	a.obs.Observe(observe.Event{
		Component: "sensitivity",
		Op:        "greek_sweep",
		Fields:    observe.Fields{"greek": string(g), "param": string(param), "steps": steps},
	})
	return sweep, nil
}

// GreekProfile evaluates all five Greeks on ProfilePoints spot prices
// spanning [0.5·K, 1.5·K]. p.S is ignored; the grid is anchored on the
// strike. Always performs 5 × ProfilePoints engine evaluations.
func (a *Analyzer) GreekProfile(p pricing.Params, t pricing.OptionType) (Profile, error) {
	spots := floats.Span(make([]float64, ProfilePoints), 0.5*p.K, 1.5*p.K)

	prof := Profile{
		Strike: p.K,
		Type:   t,
		Spots:  spots,
		Curves: make(map[pricing.Greek][]float64, len(pricing.AllGreekNames)),
	}

	for _, g := range pricing.AllGreekNames {
		curve := make([]float64, len(spots))
		for i, s := range spots {
			at := p
			at.S = s
			v, err := a.engine.Greek(g, at, t)
			if err != nil {
				return Profile{}, err
			}
			curve[i] = v
		}
		prof.Curves[g] = curve
	}

	a.obs.Observe(observe.Event{
		Component: "sensitivity",
		Op:        "greek_profile",
		Fields:    observe.Fields{"K": p.K, "T": p.T, "r": p.R, "sigma": p.Sigma, "type": string(t)},
	})
	return prof, nil
}
