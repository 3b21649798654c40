package report

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/option-pricer/internal/analysis"
	"github.com/contactkeval/option-pricer/internal/config"
	"github.com/contactkeval/option-pricer/internal/evaluation"
	"github.com/contactkeval/option-pricer/internal/pricing"
	"github.com/contactkeval/option-pricer/internal/sensitivity"
	"github.com/contactkeval/option-pricer/internal/testutil"
)

func runAnalysis(t *testing.T) *analysis.Result {
	t.Helper()
	cfg := config.Default()
	cfg.StartDate, cfg.EndDate = "2024-06-01", "2024-06-30"
	cfg.VolWindow = 5
	cfg.Sensitivity.Steps = 10
	cfg.Sensitivity.MaxOptions = 2

	expiry := time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC)
	prov := testutil.StubProvider{
		BarList: testutil.Bars(100, 101, 99, 102, 100, 101, 100),
		Chain:   testutil.Chain(expiry, 5, 95, 100, 105),
	}
	res, err := analysis.NewRunner(cfg, prov).Run(context.Background())
	require.NoError(t, err)
	return res
}

func lines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	require.NoError(t, sc.Err())
	return out
}

func TestWriteAll(t *testing.T) {
	res := runAnalysis(t)
	dir := filepath.Join(t.TempDir(), "out")

	require.NoError(t, WriteAll(res, dir))

	residuals := lines(t, filepath.Join(dir, ResidualsFile))
	assert.Equal(t, "contract,type,strike,time_to_expiry,market_price,model_price,price_diff,price_diff_pct", residuals[0])
	assert.Len(t, residuals, 1+len(res.Residuals))

	byStrike := lines(t, filepath.Join(dir, ByStrikeFile))
	assert.Equal(t, "key,count,mean_price_diff,mean_price_diff_pct", byStrike[0])
	assert.Len(t, byStrike, 1+3)

	sweeps := lines(t, filepath.Join(dir, SweepsFile))
	assert.Equal(t, "contract,param,output,x,y", sweeps[0])
	assert.Len(t, sweeps, 1+2*10)
	assert.True(t, strings.HasPrefix(sweeps[1], res.Options[0].Contract+",S,call_price,"))

	profiles := lines(t, filepath.Join(dir, ProfilesFile))
	assert.Equal(t, "contract,type,greek,spot,value", profiles[0])
	assert.Len(t, profiles, 1+2*5*sensitivity.ProfilePoints)

	raw, err := os.ReadFile(filepath.Join(dir, AnalysisFile))
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "AAPL", decoded["ticker"])
	assert.Contains(t, decoded, "metrics")
	assert.Len(t, decoded["options"], 2)
}

func TestWriteJSON_UndefinedValuesAreNull(t *testing.T) {
	res := &analysis.Result{
		Ticker:  "X",
		Metrics: evaluation.Metrics{MAE: 1, MSE: 1, RMSE: 1, R2: math.NaN()},
	}
	dir := t.TempDir()
	require.NoError(t, WriteJSON(res, dir))

	raw, err := os.ReadFile(filepath.Join(dir, AnalysisFile))
	require.NoError(t, err)
	var decoded struct {
		Metrics map[string]*float64 `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Nil(t, decoded.Metrics["R2"])
	require.NotNil(t, decoded.Metrics["MAE"])
	assert.Equal(t, 1.0, *decoded.Metrics["MAE"])
}

func TestWriteAll_BadDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	assert.Error(t, WriteAll(&analysis.Result{}, filepath.Join(file, "sub")))
}

func TestWriteSweepCSV_LabelsByIndex(t *testing.T) {
	sweeps := []sensitivity.Sweep{
		{Param: sensitivity.ParamK, Output: "call_price", Points: []sensitivity.Point{{X: 1, Y: 2}}},
		{Param: sensitivity.ParamK, Output: "call_price", Points: []sensitivity.Point{{X: 3, Y: 4}}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteSweepCSV(&buf, []string{"first"}, sweeps))
	assert.Equal(t, "contract,param,output,x,y\nfirst,K,call_price,1,2\n#2,K,call_price,3,4\n", buf.String())
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	RenderMetrics(&buf, evaluation.Metrics{MAE: 0.5, MSE: 0.25, RMSE: 0.5, R2: math.NaN()})
	out := buf.String()
	assert.Contains(t, out, "RMSE")
	assert.Contains(t, out, "0.2500")
	assert.Contains(t, out, "n/a")

	buf.Reset()
	RenderGreeks(&buf, []GreekRow{{Label: "ATM call", Greeks: pricing.Greeks{Delta: 0.6368, Gamma: 0.0188}}})
	assert.Contains(t, buf.String(), "ATM call")
	assert.Contains(t, buf.String(), "0.6368")

	buf.Reset()
	RenderSweep(&buf, sensitivity.Sweep{Param: sensitivity.ParamS, Output: "call_price", Points: []sensitivity.Point{{X: 90, Y: math.NaN()}}})
	assert.Contains(t, buf.String(), "90.0000")

	buf.Reset()
	RenderSummary(&buf, runAnalysis(t))
	assert.Contains(t, buf.String(), "AAPL as of 2024-06-09")
	assert.Contains(t, buf.String(), "6 quoted, 6 in band, 6 priced")
}
