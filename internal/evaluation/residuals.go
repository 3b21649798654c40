package evaluation

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/contactkeval/option-pricer/internal/observe"
)

// OptionRecord is one priced option paired with its observed market price.
type OptionRecord struct {
	Contract     string  `json:"contract" csv:"contract"`
	Type         string  `json:"type" csv:"type"`
	Strike       float64 `json:"strike" csv:"strike"`
	TimeToExpiry float64 `json:"time_to_expiry" csv:"time_to_expiry"`
	MarketPrice  float64 `json:"market_price" csv:"market_price"`
	ModelPrice   float64 `json:"model_price" csv:"model_price"`
}

// Residual is an OptionRecord augmented with its pricing error.
type Residual struct {
	OptionRecord
	PriceDiff    float64 `json:"price_diff" csv:"price_diff"`         // model − market
	PriceDiffPct float64 `json:"price_diff_pct" csv:"price_diff_pct"` // NaN when market is 0
}

// ResidualBreakdown returns a new residual per record; records is not
// modified.
func (e *Evaluator) ResidualBreakdown(records []OptionRecord) []Residual {
	out := make([]Residual, len(records))
	undefined := 0
	for i, rec := range records {
		diff := rec.ModelPrice - rec.MarketPrice
		pct := math.NaN()
		if rec.MarketPrice != 0 {
			pct = diff / rec.MarketPrice
		} else {
			undefined++
		}
		out[i] = Residual{OptionRecord: rec, PriceDiff: diff, PriceDiffPct: pct}
	}

	e.obs.Observe(observe.Event{
		Component: "evaluation",
		Op:        "residual_breakdown",
		Fields:    observe.Fields{"n": len(records), "undefined_pct": undefined},
	})
	return out
}

// Bucket summarises the residuals sharing one key (a strike, or an expiry
// bucket start).
type Bucket struct {
	Key              float64 `json:"key" csv:"key"`
	Count            int     `json:"count" csv:"count"`
	MeanPriceDiff    float64 `json:"mean_price_diff" csv:"mean_price_diff"`
	MeanPriceDiffPct float64 `json:"mean_price_diff_pct" csv:"mean_price_diff_pct"` // NaN entries skipped
}

// ByStrike groups residuals by exact strike, ordered by strike.
func ByStrike(residuals []Residual) []Bucket {
	return group(residuals, func(r Residual) float64 { return r.Strike })
}

// ByExpiry groups residuals into time-to-expiry buckets of width years
// ([0, w), [w, 2w), ...), ordered by bucket start. A non-positive width
// groups by exact time to expiry.
func ByExpiry(residuals []Residual, width float64) []Bucket {
	return group(residuals, func(r Residual) float64 {
		if width <= 0 {
			return r.TimeToExpiry
		}
		return math.Floor(r.TimeToExpiry/width) * width
	})
}

func group(residuals []Residual, key func(Residual) float64) []Bucket {
	diffs := map[float64][]float64{}
	pcts := map[float64][]float64{}
	for _, r := range residuals {
		k := key(r)
		diffs[k] = append(diffs[k], r.PriceDiff)
		if !math.IsNaN(r.PriceDiffPct) {
			pcts[k] = append(pcts[k], r.PriceDiffPct)
		}
	}

	out := make([]Bucket, 0, len(diffs))
	for k, d := range diffs {
		b := Bucket{Key: k, Count: len(d), MeanPriceDiff: meanOrNaN(d), MeanPriceDiffPct: meanOrNaN(pcts[k])}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func meanOrNaN(xs []float64) float64 {
	m, err := stats.Mean(xs)
	if err != nil {
		return math.NaN()
	}
	return m
}

// Pair is one point of a predicted-vs-actual comparison.
type Pair struct {
	Market float64 `json:"market"`
	Model  float64 `json:"model"`
}

// Comparison is the data behind a predicted-vs-actual scatter: the pairs
// and the [Min, Max] extent of market prices for the identity line.
type Comparison struct {
	Pairs []Pair  `json:"pairs"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// PredictedVsActual pairs market and model prices by index under the same
// shape rules as CalculateMetrics.
func PredictedVsActual(market, model []float64) (Comparison, error) {
	if len(market) == 0 || len(model) == 0 {
		return Comparison{}, fmt.Errorf("%w: market=%d model=%d", ErrEmptyInput, len(market), len(model))
	}
	if len(market) != len(model) {
		return Comparison{}, fmt.Errorf("%w: market=%d model=%d", ErrShapeMismatch, len(market), len(model))
	}

	c := Comparison{Pairs: make([]Pair, len(market))}
	for i := range market {
		c.Pairs[i] = Pair{Market: market[i], Model: model[i]}
	}
	c.Min, _ = stats.Min(market)
	c.Max, _ = stats.Max(market)
	return c, nil
}
