package data

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

// Provider supplies market data
type Provider interface {
	// GetBars returns daily bars for ticker in [fromDate, toDate], oldest first.
	GetBars(ctx context.Context, ticker string, fromDate, toDate time.Time) ([]Bar, error)
	// GetOptionChain returns the option quotes for ticker that have not
	// expired as of asOf.
	GetOptionChain(ctx context.Context, ticker string, asOf time.Time) ([]OptionQuote, error)
}

// Bar simplified OHLC
type Bar struct {
	Date  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
	Vol   float64
}

// OptionQuote is one row of an option chain.
type OptionQuote struct {
	Contract   string    `json:"contract"`
	Type       string    `json:"type"` // "call" or "put"
	Strike     float64   `json:"strike"`
	LastPrice  float64   `json:"last_price"`
	ImpliedVol float64   `json:"implied_vol"`
	Expiry     time.Time `json:"expiry"`
}

// Provider kinds accepted by New.
const (
	KindSynthetic = "synthetic"
	KindCSV       = "csv"
	KindMassive   = "massive"
)

// New builds the provider named by kind.
func New(kind, dir, apiKey, baseURL string) (Provider, error) {
	switch strings.ToLower(kind) {
	case KindSynthetic, "":
		return NewSyntheticProvider(time.Now().UnixNano()), nil
	case KindCSV:
		if dir == "" {
			return nil, fmt.Errorf("csv provider needs a data dir")
		}
		return NewLocalCSVProvider(dir), nil
	case KindMassive:
		if apiKey == "" {
			return nil, fmt.Errorf("massive provider needs an API key")
		}
		p := NewMassiveDataProvider(apiKey)
		if baseURL != "" {
			p.BaseURL = strings.TrimRight(baseURL, "/")
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown data provider %q", kind)
}

// --------------------------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------------------------

// OptionSymbolFromParts: OCC-like formatter (best-effort)
func OptionSymbolFromParts(underlying string, expiryDate time.Time, optionType string, strike float64) string {
	// OCC: <root><YYMMDD><C|P><strike*1000 padded to 8 digits>
	expDt := expiryDate.UTC().Format("060102")
	optType := "C"
	if strings.ToLower(optionType) == "put" || strings.ToLower(optionType) == "p" {
		optType = "P"
	}
	strikeInt := int(math.Round(strike * 1000))
	strFmt := fmt.Sprintf("%08d", strikeInt)
	return fmt.Sprintf("O:%s%s%s%s", strings.ToUpper(underlying), expDt, optType, strFmt)
}

// TimeToExpiry is the year fraction (365-day year) from asOf to expiry.
// It is negative for expired contracts; the pricing engine turns that
// into a NaN price.
func TimeToExpiry(expiry, asOf time.Time) float64 {
	return expiry.Sub(asOf).Hours() / 24 / 365
}

// Closes extracts the closing prices of bars.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
