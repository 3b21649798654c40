package data

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDateRange() (time.Time, time.Time) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	return start, end
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
}

func TestDataProviderContract_GetBars(t *testing.T) {
	start, end := testDateRange()

	dir := t.TempDir()
	writeFile(t, dir, "AAPL_bars.csv", `date,open,high,low,close,volume
2025-01-03,101,102,100,101.5,900
2024-12-31,99,100,98,99.5,800
2025-01-02,100,101,99,100.5,1000
bad-date,1,1,1,1,1
`)

	providers := []struct {
		name     string
		provider Provider
	}{
		{name: "synthetic", provider: NewSyntheticProvider(7)},
		{name: "csv", provider: NewLocalCSVProvider(dir)},
	}

	for _, prov := range providers {
		t.Run(prov.name, func(t *testing.T) {
			bars, err := prov.provider.GetBars(context.Background(), "AAPL", start, end)
			require.NoError(t, err)
			require.NotEmpty(t, bars)

			for i, b := range bars {
				if b.Date.Before(start) || b.Date.After(end) {
					t.Fatalf("bar date out of range: %v", b.Date)
				}
				if i > 0 {
					assert.True(t, b.Date.After(bars[i-1].Date))
				}
			}
		})
	}
}

func TestLocalCSVProvider_Chain(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "SPY_chain.csv", `contract,type,strike,last_price,implied_vol,expiry
O:SPY250221C00580000,CALL,580,12.5,0.18,2025-02-21
O:SPY250221P00580000,put,580,9.75,0.19,2025-02-21
O:SPY241220C00580000,call,580,1.0,0.2,2024-12-20
`)

	asOf := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	chain, err := NewLocalCSVProvider(dir).GetOptionChain(context.Background(), "spy", asOf)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, "call", chain[0].Type)
	assert.Equal(t, 9.75, chain[1].LastPrice)

	_, err = NewLocalCSVProvider(dir).GetOptionChain(context.Background(), "QQQ", asOf)
	assert.Error(t, err)
}

func TestSyntheticProvider_ChainAroundLastClose(t *testing.T) {
	p := NewSyntheticProvider(42)
	start, end := testDateRange()

	bars, err := p.GetBars(context.Background(), "XYZ", start, end)
	require.NoError(t, err)
	spot := bars[len(bars)-1].Close

	chain, err := p.GetOptionChain(context.Background(), "XYZ", end)
	require.NoError(t, err)
	require.NotEmpty(t, chain)
	for _, q := range chain {
		assert.GreaterOrEqual(t, q.Strike, spot*0.7)
		assert.LessOrEqual(t, q.Strike, spot*1.3)
		assert.Greater(t, q.LastPrice, 0.0)
		assert.True(t, q.Expiry.After(end))
	}
}

func TestNewProvider(t *testing.T) {
	p, err := New("synthetic", "", "", "")
	require.NoError(t, err)
	assert.NotNil(t, p)

	_, err = New("csv", "", "", "")
	assert.Error(t, err)

	_, err = New("massive", "", "", "")
	assert.Error(t, err)

	m, err := New("massive", "", "key", "http://localhost:1234/")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:1234", m.(*massiveDataProvider).BaseURL)

	_, err = New("yahoo", "", "", "")
	assert.Error(t, err)
}

func TestOptionSymbolFromParts(t *testing.T) {
	exp := time.Date(2025, 1, 17, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "O:SPY250117C00580000", OptionSymbolFromParts("spy", exp, "call", 580))
	assert.Equal(t, "O:SPY250117P00580500", OptionSymbolFromParts("SPY", exp, "P", 580.5))
}

func TestTimeToExpiry(t *testing.T) {
	asOf := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.InDelta(t, 1.0, TimeToExpiry(asOf.AddDate(0, 0, 365), asOf), 1e-12)
	assert.Less(t, TimeToExpiry(asOf.AddDate(0, 0, -1), asOf), 0.0)
}

func TestVolatility(t *testing.T) {
	closes := []float64{100, 101, 99, 102, 103, 101}
	returns := LogReturns(closes)
	require.Len(t, returns, 5)
	assert.InDelta(t, math.Log(1.01), returns[0], 1e-15)

	vols := RollingVolatility(returns, 3)
	assert.True(t, math.IsNaN(vols[0]))
	assert.True(t, math.IsNaN(vols[1]))
	assert.False(t, math.IsNaN(vols[2]))

	latest, err := LatestVolatility(closes, 3)
	require.NoError(t, err)
	assert.Equal(t, vols[4], latest)

	all, err := LatestVolatility(closes, 252)
	require.NoError(t, err)
	assert.Greater(t, all, 0.0)

	_, err = LatestVolatility([]float64{100, 101}, 252)
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestFilterByMoneyness(t *testing.T) {
	quotes := []OptionQuote{
		{Strike: 100, LastPrice: 5},
		{Strike: 150, LastPrice: 1},
		{Strike: 95, LastPrice: 0},
		{Strike: 110, LastPrice: 2},
	}
	got := FilterByMoneyness(quotes, 100, 0.8, 1.2)
	require.Len(t, got, 2)
	assert.Equal(t, 100.0, got[0].Strike)
	assert.Equal(t, 110.0, got[1].Strike)
	assert.Len(t, quotes, 4)
}

func TestCloses(t *testing.T) {
	assert.Equal(t, []float64{1, 2}, Closes([]Bar{{Close: 1}, {Close: 2}}))
}
