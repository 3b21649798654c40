package data

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMassive(srv *httptest.Server) *massiveDataProvider {
	return &massiveDataProvider{
		APIKey:      "test",
		Client:      srv.Client(),
		BaseURL:     srv.URL, // IMPORTANT
		MaxAttempts: 3,
		RetryDelay:  time.Millisecond,
	}
}

func TestMassiveProvider_GetBars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/aggs/ticker/AAPL/range/1/day/2025-01-01/2025-01-05", r.URL.Path)
		assert.Equal(t, "Bearer test", r.Header.Get("Authorization"))
		w.Write([]byte(`{
			"ticker": "AAPL",
			"results": [
				{"t": 1735689600000, "o":1,"h":2,"l":0.5,"c":1.5,"v":100},
				{"t": 1735776000000, "o":1.5,"h":2,"l":1,"c":1.8,"v":120}
			],
			"status": "OK"
		}`))
	}))
	defer srv.Close()

	fromDate := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	toDate := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)

	bars, err := newTestMassive(srv).GetBars(context.Background(), "aapl", fromDate, toDate)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 1.8, bars[1].Close)
	assert.True(t, fromDate.Equal(bars[0].Date))
}

func TestMassiveProvider_GetBars_HTTPErrorRetriesThenFails(t *testing.T) {
	var calls int32
	// fake server returning 500
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"internal error"}`))
	}))
	defer srv.Close()

	_, err := newTestMassive(srv).GetBars(context.Background(), "AAPL", time.Now().AddDate(0, 0, -5), time.Now())
	require.Error(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestMassiveProvider_RecoversAfterRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"results":[{"t": 1735689600000, "c": 10}]}`))
	}))
	defer srv.Close()

	bars, err := newTestMassive(srv).GetBars(context.Background(), "AAPL", time.Now(), time.Now())
	require.NoError(t, err)
	assert.Len(t, bars, 1)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestMassiveProvider_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"not entitled"}`))
	}))
	defer srv.Close()

	_, err := newTestMassive(srv).GetOptionChain(context.Background(), "AAPL", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not entitled")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestMassiveProvider_ChainPagination(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/page2" {
			w.Write([]byte(`{
				"results": [
					{"details":{"contract_type":"put","expiration_date":"2025-02-21","strike_price":95,"ticker":"O:AAPL250221P00095000"},
					 "implied_volatility":0.3,"day":{"close":2.5},"last_trade":{"price":0}},
					{"details":{"contract_type":"call","expiration_date":"2024-12-20","strike_price":95,"ticker":"O:AAPL241220C00095000"},
					 "day":{"close":1}}
				]
			}`))
			return
		}
		assert.Equal(t, "/v3/snapshot/options/AAPL", r.URL.Path)
		w.Write([]byte(`{
			"results": [
				{"details":{"contract_type":"call","expiration_date":"2025-02-21","strike_price":100,"ticker":"O:AAPL250221C00100000"},
				 "implied_volatility":0.25,"day":{"close":4.9},"last_trade":{"price":5.1}}
			],
			"next_url": "` + srv.URL + `/page2"
		}`))
	}))
	defer srv.Close()

	asOf := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	chain, err := newTestMassive(srv).GetOptionChain(context.Background(), "AAPL", asOf)
	require.NoError(t, err)
	require.Len(t, chain, 2)

	assert.Equal(t, "call", chain[0].Type)
	assert.Equal(t, 5.1, chain[0].LastPrice)
	assert.Equal(t, "put", chain[1].Type)
	assert.Equal(t, 2.5, chain[1].LastPrice)
	assert.Equal(t, 0.3, chain[1].ImpliedVol)
}

func TestMassiveProvider_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestMassive(srv).GetBars(ctx, "AAPL", time.Now(), time.Now())
	assert.Error(t, err)
}
