package pricing

import (
	"fmt"
	"strings"
)

// Greek names one sensitivity of the option price.
type Greek string

const (
	GreekDelta Greek = "delta"
	GreekGamma Greek = "gamma"
	GreekVega  Greek = "vega"
	GreekTheta Greek = "theta"
	GreekRho   Greek = "rho"
)

// AllGreekNames lists the Greeks in display order.
var AllGreekNames = []Greek{GreekDelta, GreekGamma, GreekVega, GreekTheta, GreekRho}

// ParseGreek resolves a Greek by name, case-insensitively.
func ParseGreek(s string) (Greek, error) {
	g := Greek(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllGreekNames {
		if g == known {
			return g, nil
		}
	}
	return "", fmt.Errorf("%w: unknown greek %q", ErrInvalidArgument, s)
}

// Greek evaluates a single named Greek. Gamma and vega do not depend on
// the option type, but t is still validated so that every call with a bad
// type fails the same way.
func (e *Engine) Greek(g Greek, p Params, t OptionType) (float64, error) {
	if err := t.validate(); err != nil {
		return 0, err
	}
	switch g {
	case GreekDelta:
		return e.Delta(p, t)
	case GreekGamma:
		return e.Gamma(p), nil
	case GreekVega:
		return e.Vega(p), nil
	case GreekTheta:
		return e.Theta(p, t)
	case GreekRho:
		return e.Rho(p, t)
	}
	return 0, fmt.Errorf("%w: unknown greek %q", ErrInvalidArgument, string(g))
}

// Get returns the value of the named Greek.
func (g Greeks) Get(name Greek) float64 {
	switch name {
	case GreekDelta:
		return g.Delta
	case GreekGamma:
		return g.Gamma
	case GreekVega:
		return g.Vega
	case GreekTheta:
		return g.Theta
	case GreekRho:
		return g.Rho
	}
	return 0
}
