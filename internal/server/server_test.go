package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/option-pricer/internal/evaluation"
	"github.com/contactkeval/option-pricer/internal/pricing"
	"github.com/contactkeval/option-pricer/internal/sensitivity"
)

const atm = "S=100&K=100&T=1&r=0.05&sigma=0.2"

func newTestServer() *httptest.Server {
	engine := pricing.NewEngine()
	s := New(engine, sensitivity.NewAnalyzer(engine), evaluation.NewEvaluator())
	return httptest.NewServer(s.Handler())
}

func get(t *testing.T, srv *httptest.Server, path string, out any) int {
	t.Helper()
	resp, err := srv.Client().Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	assert.Equal(t, http.StatusOK, get(t, srv, "/health", nil))
}

func TestPrice(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	var body struct {
		Type  string   `json:"type"`
		Price *float64 `json:"price"`
	}
	require.Equal(t, http.StatusOK, get(t, srv, "/price?"+atm, &body))
	require.NotNil(t, body.Price)
	assert.Equal(t, "call", body.Type)
	assert.InDelta(t, 10.450583572185565, *body.Price, 1e-9)

	require.Equal(t, http.StatusOK, get(t, srv, "/price?type=PUT&"+atm, &body))
	assert.InDelta(t, 5.573526022256971, *body.Price, 1e-9)
}

func TestPrice_SentinelIsNull(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	var body map[string]any
	require.Equal(t, http.StatusOK, get(t, srv, "/price?S=100&K=100&T=1&r=0.05&sigma=0", &body))
	assert.Contains(t, body, "price")
	assert.Nil(t, body["price"])

	require.Equal(t, http.StatusOK, get(t, srv, "/price?S=100&K=100&T=1&r=0.05&sigma=NaN", &body))
	assert.Nil(t, body["price"])
	assert.Nil(t, body["params"].(map[string]any)["sigma"])
}

func TestPrice_BadRequests(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	for _, path := range []string{
		"/price?type=straddle&" + atm,
		"/price?S=100&K=100&T=1&r=0.05",
		"/price?S=abc&K=100&T=1&r=0.05&sigma=0.2",
	} {
		var body errorResponse
		assert.Equal(t, http.StatusBadRequest, get(t, srv, path, &body), path)
		assert.NotEmpty(t, body.Error, path)
	}
}

func TestGreeks(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	var all struct {
		Greeks map[string]*float64 `json:"greeks"`
	}
	require.Equal(t, http.StatusOK, get(t, srv, "/greeks?"+atm, &all))
	require.Len(t, all.Greeks, 5)
	assert.InDelta(t, 0.6368306511756191, *all.Greeks["delta"], 1e-12)
	assert.InDelta(t, 37.52403469169379, *all.Greeks["vega"], 1e-9)

	var one struct {
		Greek string   `json:"greek"`
		Value *float64 `json:"value"`
	}
	require.Equal(t, http.StatusOK, get(t, srv, "/greeks?greek=Gamma&"+atm, &one))
	assert.Equal(t, "gamma", one.Greek)
	assert.InDelta(t, 0.018762017345846895, *one.Value, 1e-12)

	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/greeks?greek=vanna&"+atm, nil))

	var expired struct {
		Greeks map[string]*float64 `json:"greeks"`
	}
	require.Equal(t, http.StatusOK, get(t, srv, "/greeks?type=put&S=100&K=100&T=-1&r=0.05&sigma=0.2", &expired))
	for name, v := range expired.Greeks {
		assert.Nil(t, v, name)
	}
}

func TestSweep(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	var sw struct {
		Param  string `json:"param"`
		Output string `json:"output"`
		Points []struct {
			X float64  `json:"x"`
			Y *float64 `json:"y"`
		} `json:"points"`
	}
	require.Equal(t, http.StatusOK, get(t, srv, "/sweep?param=spot&steps=5&"+atm, &sw))
	assert.Equal(t, "S", sw.Param)
	assert.Equal(t, "call_price", sw.Output)
	require.Len(t, sw.Points, 5)
	assert.InDelta(t, 80, sw.Points[0].X, 1e-9)
	assert.InDelta(t, 120, sw.Points[4].X, 1e-9)
	for i := 1; i < len(sw.Points); i++ {
		assert.Greater(t, *sw.Points[i].Y, *sw.Points[i-1].Y)
	}

	// base overrides the parameter's own value, which may be omitted
	require.Equal(t, http.StatusOK, get(t, srv, "/sweep?param=sigma&base=0.3&range=0.5&steps=3&greek=vega&S=100&K=100&T=1&r=0.05", &sw))
	assert.Equal(t, "sigma", sw.Param)
	assert.Equal(t, "vega", sw.Output)
	require.Len(t, sw.Points, 3)
	assert.InDelta(t, 0.15, sw.Points[0].X, 1e-12)

	require.Equal(t, http.StatusOK, get(t, srv, "/sweep?param=r&"+atm, &sw))
	assert.Len(t, sw.Points, DefaultSteps)
}

func TestSweep_BadRequests(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	for _, path := range []string{
		"/sweep?param=dividend&" + atm,
		"/sweep?param=S&steps=1&" + atm,
		"/sweep?param=S&steps=two&" + atm,
		"/sweep?param=S&steps=2000000000&" + atm,
		"/sweep?param=r&base=NaN&" + atm,
		"/sweep?param=S&range=1.5&" + atm,
		"/sweep?param=K&base=-5&" + atm,
		"/sweep?param=sigma&S=100&K=100&T=1&r=0.05",
		"/sweep?param=S&greek=delta&type=straddle&" + atm,
	} {
		assert.Equal(t, http.StatusBadRequest, get(t, srv, path, nil), path)
	}
}

func TestProfile(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	var prof struct {
		Strike float64               `json:"strike"`
		Type   string                `json:"type"`
		Spots  []float64             `json:"spots"`
		Curves map[string][]*float64 `json:"curves"`
	}
	require.Equal(t, http.StatusOK, get(t, srv, "/profile?type=put&K=100&T=0.5&r=0.05&sigma=0.2", &prof))
	assert.Equal(t, "put", prof.Type)
	require.Len(t, prof.Spots, sensitivity.ProfilePoints)
	assert.InDelta(t, 50, prof.Spots[0], 1e-12)
	assert.InDelta(t, 150, prof.Spots[len(prof.Spots)-1], 1e-12)
	assert.Len(t, prof.Curves, 5)
	for _, d := range prof.Curves["delta"] {
		require.NotNil(t, d)
		assert.True(t, *d <= 0 && *d >= -1)
	}
}

func TestMetrics(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	post := func(body string) (*http.Response, map[string]any) {
		resp, err := srv.Client().Post(srv.URL+"/metrics", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		var out map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return resp, out
	}

	resp, out := post(`{"market":[1,2,3],"model":[1,2,3]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0.0, out["MAE"])
	assert.Equal(t, 1.0, out["R2"])

	resp, out = post(`{"market":[5,5],"model":[4,6]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, out["R2"])

	resp, out = post(`{"market":[1,2],"model":[1]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, out["error"], "shape mismatch")

	resp, out = post(`{"market":[],"model":[]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, out["error"], "empty input")

	resp, _ = post(`{"market":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetrics_BodyTooLarge(t *testing.T) {
	engine := pricing.NewEngine()
	h := New(engine, sensitivity.NewAnalyzer(engine), evaluation.NewEvaluator()).Handler()

	huge := `{"market":[` + strings.Repeat("1,", MaxBodyBytes) + `1],"model":[1]}`
	req := httptest.NewRequest(http.MethodPost, "/metrics", strings.NewReader(huge))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "too large")
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, get(t, srv, "/metrics", nil))
}

func TestListenAndServe_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	engine := pricing.NewEngine()
	s := New(engine, sensitivity.NewAnalyzer(engine), evaluation.NewEvaluator())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, addr) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
