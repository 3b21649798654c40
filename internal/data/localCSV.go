package data

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/contactkeval/option-pricer/internal/logger"
)

const dateLayout = "2006-01-02"

// localCSVProvider implements Provider from CSV files in dir:
//
//	<TICKER>_bars.csv   date,open,high,low,close,volume
//	<TICKER>_chain.csv  contract,type,strike,last_price,implied_vol,expiry
type localCSVProvider struct {
	dir string
}

// NewLocalCSVProvider convenience constructor.
func NewLocalCSVProvider(dir string) *localCSVProvider {
	return &localCSVProvider{dir: dir}
}

type barRow struct {
	Date   string  `csv:"date"`
	Open   float64 `csv:"open"`
	High   float64 `csv:"high"`
	Low    float64 `csv:"low"`
	Close  float64 `csv:"close"`
	Volume float64 `csv:"volume"`
}

type chainRow struct {
	Contract   string  `csv:"contract"`
	Type       string  `csv:"type"`
	Strike     float64 `csv:"strike"`
	LastPrice  float64 `csv:"last_price"`
	ImpliedVol float64 `csv:"implied_vol"`
	Expiry     string  `csv:"expiry"`
}

func (localCSVProv *localCSVProvider) path(ticker, kind string) string {
	return filepath.Join(localCSVProv.dir, fmt.Sprintf("%s_%s.csv", strings.ToUpper(ticker), kind))
}

func (localCSVProv *localCSVProvider) GetBars(ctx context.Context, ticker string, fromDate, toDate time.Time) ([]Bar, error) {
	f, err := os.Open(localCSVProv.path(ticker, "bars"))
	if err != nil {
		return nil, fmt.Errorf("open bars file: %w", err)
	}
	defer f.Close()

	var rows []barRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("read bars csv: %w", err)
	}

	out := make([]Bar, 0, len(rows))
	for _, r := range rows {
		d, err := time.Parse(dateLayout, strings.TrimSpace(r.Date))
		if err != nil {
			logger.Debugf("skipping bar with bad date %q", r.Date)
			continue
		}
		if d.Before(fromDate) || d.After(toDate) {
			continue
		}
		out = append(out, Bar{Date: d, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Vol: r.Volume})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	logger.Tracef("loaded %d bars for %s from %s", len(out), ticker, localCSVProv.dir)
	return out, nil
}

func (localCSVProv *localCSVProvider) GetOptionChain(ctx context.Context, ticker string, asOf time.Time) ([]OptionQuote, error) {
	f, err := os.Open(localCSVProv.path(ticker, "chain"))
	if err != nil {
		return nil, fmt.Errorf("open chain file: %w", err)
	}
	defer f.Close()

	var rows []chainRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("read chain csv: %w", err)
	}

	out := make([]OptionQuote, 0, len(rows))
	for _, r := range rows {
		exp, err := time.Parse(dateLayout, strings.TrimSpace(r.Expiry))
		if err != nil {
			logger.Debugf("skipping %s with bad expiry %q", r.Contract, r.Expiry)
			continue
		}
		if exp.Before(asOf) {
			continue
		}
		out = append(out, OptionQuote{
			Contract:   r.Contract,
			Type:       strings.ToLower(strings.TrimSpace(r.Type)),
			Strike:     r.Strike,
			LastPrice:  r.LastPrice,
			ImpliedVol: r.ImpliedVol,
			Expiry:     exp,
		})
	}
	return out, nil
}
