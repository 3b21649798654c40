// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"time"

	"github.com/contactkeval/option-pricer/internal/data"
)

// Day0 is the date of the first bar built by Bars.
var Day0 = time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

// StubProvider serves fixed bars and an option chain. Err, when set, is
// returned by GetBars.
type StubProvider struct {
	BarList []data.Bar
	Chain   []data.OptionQuote
	Err     error
}

func (s StubProvider) GetBars(ctx context.Context, ticker string, from, to time.Time) ([]data.Bar, error) {
	return s.BarList, s.Err
}

func (s StubProvider) GetOptionChain(ctx context.Context, ticker string, asOf time.Time) ([]data.OptionQuote, error) {
	return s.Chain, nil
}

// Bars returns one bar per close on consecutive days from Day0.
func Bars(closes ...float64) []data.Bar {
	out := make([]data.Bar, len(closes))
	for i, c := range closes {
		out[i] = data.Bar{Date: Day0.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c}
	}
	return out
}

// Chain returns a call and a put for each strike, all expiring on expiry
// and quoted at price.
func Chain(expiry time.Time, price float64, strikes ...float64) []data.OptionQuote {
	out := make([]data.OptionQuote, 0, 2*len(strikes))
	for _, k := range strikes {
		for _, typ := range []string{"call", "put"} {
			out = append(out, data.OptionQuote{
				Contract:  data.OptionSymbolFromParts("TEST", expiry, typ, k),
				Type:      typ,
				Strike:    k,
				LastPrice: price,
				Expiry:    expiry,
			})
		}
	}
	return out
}
