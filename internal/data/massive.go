// Package data provides market data provider implementations.
//
// This file contains a Massive-backed Provider implementation that retrieves
// daily bars and option chain snapshots via Massive HTTP APIs.
//
// Design notes:
//   - Uses raw HTTP calls instead of the official Massive SDK
//   - Supports pagination and bounded retries on rate limits and 5xx
//   - Logging is verbose at Debug/Trace levels for diagnostics
package data

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/contactkeval/option-pricer/internal/logger"
)

// massiveDataProvider implements the Provider interface using Massive APIs.
type massiveDataProvider struct {
	// APIKey used for authenticating requests with Massive.
	APIKey string

	// Client is the HTTP client used to make API requests.
	Client *http.Client

	// BaseURL is the root endpoint for Massive APIs
	// (e.g., https://api.massive.com).
	BaseURL string

	// MaxAttempts bounds how many times one request is tried.
	MaxAttempts int

	// RetryDelay is the constant wait between attempts.
	RetryDelay time.Duration
}

// massiveSnapshot is one contract of the option chain snapshot endpoint.
type massiveSnapshot struct {
	Details struct {
		ContractType   string  `json:"contract_type"`
		ExpirationDate string  `json:"expiration_date"`
		StrikePrice    float64 `json:"strike_price"`
		Ticker         string  `json:"ticker"`
	} `json:"details"`
	ImpliedVolatility float64 `json:"implied_volatility"`
	Day               struct {
		Close float64 `json:"close"`
	} `json:"day"`
	LastTrade struct {
		Price float64 `json:"price"`
	} `json:"last_trade"`
}

// massiveSnapshotResp models the paginated chain snapshot response.
type massiveSnapshotResp struct {
	Results []massiveSnapshot `json:"results"`
	Status  string            `json:"status"`
	NextURL string            `json:"next_url"`
}

// NewMassiveDataProvider constructs a Massive-backed data provider.
//
// It initializes an HTTP client with sensible defaults for:
//   - timeouts
//   - connection pooling
//   - HTTP/2 support
//   - gzip decompression
//
// Requests are attempted up to three times, one second apart.
func NewMassiveDataProvider(apiKey string) *massiveDataProvider {
	logger.Infof("initializing Massive data provider")

	return &massiveDataProvider{
		APIKey: apiKey,
		Client: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				DisableCompression:    false, // must be false to enable gzip auto-decompression
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
			},
		},
		BaseURL:     "https://api.massive.com",
		MaxAttempts: 3,
		RetryDelay:  time.Second,
	}
}

// GetBars retrieves daily OHLCV bars for the given symbol and date range.
//
// Parameters:
//   - ticker: ticker symbol
//   - fromDate: start date
//   - toDate: end date
//
// Returns:
//   - []Bar: time-ordered bars
//   - error: if retrieval or decoding fails
func (massiveDataProv *massiveDataProvider) GetBars(
	ctx context.Context,
	ticker string,
	fromDate, toDate time.Time,
) ([]Bar, error) {

	logger.Debugf(
		"fetching bars: %s from=%s to=%s",
		ticker,
		fromDate.Format(dateLayout),
		toDate.Format(dateLayout),
	)

	reqURL := fmt.Sprintf(
		"%s/v2/aggs/ticker/%s/range/1/day/%s/%s?adjusted=true&sort=asc&limit=50000",
		massiveDataProv.BaseURL,
		url.PathEscape(strings.ToUpper(ticker)),
		fromDate.Format(dateLayout),
		toDate.Format(dateLayout),
	)

	body, err := massiveDataProv.processGetRequest(ctx, reqURL)
	if err != nil {
		return nil, fmt.Errorf("massive bars request failed: %w", err)
	}

	// Massive/POLYGON style response model
	var resp struct {
		Ticker  string `json:"ticker"`
		Results []struct {
			Open      float64 `json:"o"`
			Close     float64 `json:"c"`
			High      float64 `json:"h"`
			Low       float64 `json:"l"`
			Volume    float64 `json:"v"`
			Timestamp int64   `json:"t"` // epoch millis
		} `json:"results"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing massive response: %w", err)
	}

	logger.Tracef("bars received: %d records", len(resp.Results))

	out := make([]Bar, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, Bar{
			Date:  time.UnixMilli(r.Timestamp).UTC(),
			Open:  r.Open,
			High:  r.High,
			Low:   r.Low,
			Close: r.Close,
			Vol:   r.Volume,
		})
	}
	return out, nil
}

// GetOptionChain retrieves the option chain snapshot for the underlying,
// following next_url pagination. The quote price is the last trade, or the
// day close when no trade is reported. Contracts expiring before asOf or
// with malformed expiries are skipped.
func (massiveDataProv *massiveDataProvider) GetOptionChain(
	ctx context.Context,
	ticker string,
	asOf time.Time,
) ([]OptionQuote, error) {

	logger.Debugf("fetching option chain: %s as of %s", ticker, asOf.Format(dateLayout))

	reqURL := fmt.Sprintf(
		"%s/v3/snapshot/options/%s?limit=250",
		massiveDataProv.BaseURL,
		url.PathEscape(strings.ToUpper(ticker)),
	)

	out := []OptionQuote{}
	for reqURL != "" {
		body, err := massiveDataProv.processGetRequest(ctx, reqURL)
		if err != nil {
			return nil, fmt.Errorf("massive chain request failed: %w", err)
		}

		var page massiveSnapshotResp
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		logger.Tracef("received %d contracts", len(page.Results))

		for _, r := range page.Results {
			exp, err := time.Parse(dateLayout, r.Details.ExpirationDate)
			if err != nil || exp.Before(asOf) {
				continue
			}
			price := r.LastTrade.Price
			if price <= 0 {
				price = r.Day.Close
			}
			out = append(out, OptionQuote{
				Contract:   r.Details.Ticker,
				Type:       strings.ToLower(r.Details.ContractType),
				Strike:     r.Details.StrikePrice,
				LastPrice:  price,
				ImpliedVol: r.ImpliedVolatility,
				Expiry:     exp,
			})
		}
		reqURL = page.NextURL
	}

	return out, nil
}

// processGetRequest executes an HTTP GET and returns the response body.
//
// Behavior:
//   - Retries network errors, HTTP 429 and 5xx up to MaxAttempts times
//   - Fails immediately on other 4xx, with the API message if present
//   - Stops early when ctx is cancelled
func (massiveDataProv *massiveDataProvider) processGetRequest(
	ctx context.Context,
	reqURL string,
) ([]byte, error) {

	var body []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+massiveDataProv.APIKey)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "massive-client/1.0")

		resp, err := massiveDataProv.Client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("massive returned status %d", resp.StatusCode)
		case resp.StatusCode >= 400:
			var dbg struct {
				Message string `json:"message"`
			}
			_ = json.Unmarshal(b, &dbg)
			logger.Errorf("massive API error status=%d message=%s", resp.StatusCode, dbg.Message)
			return backoff.Permanent(fmt.Errorf("massive returned status %d: %s", resp.StatusCode, dbg.Message))
		}

		if len(b) == 0 {
			return backoff.Permanent(fmt.Errorf("empty response body"))
		}
		body = b
		return nil
	}

	attempts := massiveDataProv.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(massiveDataProv.RetryDelay), uint64(attempts-1)),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		logger.Warnf("massive request failed, retrying in %s: %v", wait, err)
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, err
	}
	return body, nil
}
