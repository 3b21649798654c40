package data

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/contactkeval/option-pricer/internal/pricing"
)

// synthDataProvider implements Provider generating synthetic data: a
// geometric random walk for bars and a Black-Scholes priced chain with
// multiplicative noise standing in for market prices.
type synthDataProvider struct {
	mu     sync.Mutex
	rng    *rand.Rand
	engine *pricing.Engine

	// Vol is the volatility used both for the walk and the chain.
	Vol float64
	// Rate is the risk-free rate used to price the chain.
	Rate float64
	// Noise is the relative standard deviation applied to chain prices.
	Noise float64

	lastClose map[string]float64
}

// NewSyntheticProvider returns a deterministic provider for a given seed.
func NewSyntheticProvider(seed int64) *synthDataProvider {
	return &synthDataProvider{
		rng:       rand.New(rand.NewSource(seed)),
		engine:    pricing.NewEngine(),
		Vol:       0.25,
		Rate:      0.05,
		Noise:     0.05,
		lastClose: map[string]float64{},
	}
}

func (synthDataProv *synthDataProvider) GetBars(ctx context.Context, ticker string, fromDate, toDate time.Time) ([]Bar, error) {
	if toDate.Before(fromDate) {
		return nil, fmt.Errorf("invalid range %s > %s", fromDate.Format("2006-01-02"), toDate.Format("2006-01-02"))
	}

	synthDataProv.mu.Lock()
	defer synthDataProv.mu.Unlock()

	dailyVol := synthDataProv.Vol / math.Sqrt(TradingDays)
	cur := fromDate
	price := 100.0 + float64(synthDataProv.rng.Intn(200))
	var out []Bar
	for !cur.After(toDate) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if cur.Weekday() != time.Saturday && cur.Weekday() != time.Sunday {
			open := price
			close := price * math.Exp(synthDataProv.rng.NormFloat64()*dailyVol)
			high := math.Max(open, close) + math.Abs(synthDataProv.rng.NormFloat64()*0.3)
			low := math.Min(open, close) - math.Abs(synthDataProv.rng.NormFloat64()*0.3)
			out = append(out, Bar{Date: cur, Open: open, High: high, Low: low, Close: close, Vol: float64(1000 + synthDataProv.rng.Intn(5000))})
			price = close
		}
		cur = cur.AddDate(0, 0, 1)
	}

	if len(out) > 0 {
		synthDataProv.lastClose[ticker] = out[len(out)-1].Close
	}
	return out, nil
}

// GetOptionChain prices strikes within ±30% of the last generated close
// (or 100 when no bars were generated) for three monthly expiries.
func (synthDataProv *synthDataProvider) GetOptionChain(ctx context.Context, ticker string, asOf time.Time) ([]OptionQuote, error) {
	synthDataProv.mu.Lock()
	defer synthDataProv.mu.Unlock()

	spot, ok := synthDataProv.lastClose[ticker]
	if !ok {
		spot = 100
	}
	step := strikeStep(spot)
	lo := math.Ceil(spot*0.7/step) * step

	var out []OptionQuote
	for _, days := range []int{30, 60, 90} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		expiry := asOf.AddDate(0, 0, days)
		T := TimeToExpiry(expiry, asOf)
		for k := lo; k <= spot*1.3; k += step {
			for _, typ := range []pricing.OptionType{pricing.Call, pricing.Put} {
				p := pricing.Params{S: spot, K: k, T: T, R: synthDataProv.Rate, Sigma: synthDataProv.Vol}
				fair, _ := synthDataProv.engine.Price(p, typ)
				last := math.Max(fair*(1+synthDataProv.rng.NormFloat64()*synthDataProv.Noise), 0.01)
				out = append(out, OptionQuote{
					Contract:   OptionSymbolFromParts(ticker, expiry, string(typ), k),
					Type:       string(typ),
					Strike:     k,
					LastPrice:  math.Round(last*100) / 100,
					ImpliedVol: synthDataProv.Vol,
					Expiry:     expiry,
				})
			}
		}
	}
	return out, nil
}

// strikeStep picks a listing interval proportional to the price level.
func strikeStep(spot float64) float64 {
	switch {
	case spot < 25:
		return 1
	case spot < 200:
		return 5
	case spot < 1000:
		return 10
	}
	return 50
}
