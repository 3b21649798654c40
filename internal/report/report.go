// Package report writes analysis results to disk and renders them as
// terminal tables.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/olekukonko/tablewriter"

	"github.com/contactkeval/option-pricer/internal/analysis"
	"github.com/contactkeval/option-pricer/internal/evaluation"
	"github.com/contactkeval/option-pricer/internal/pricing"
	"github.com/contactkeval/option-pricer/internal/sensitivity"
)

// File names written by WriteAll.
const (
	AnalysisFile  = "analysis.json"
	ResidualsFile = "residuals.csv"
	ByStrikeFile  = "by_strike.csv"
	ByExpiryFile  = "by_expiry.csv"
	SweepsFile    = "sweeps.csv"
	ProfilesFile  = "profiles.csv"
)

type sweepRow struct {
	Contract string  `csv:"contract"`
	Param    string  `csv:"param"`
	Output   string  `csv:"output"`
	X        float64 `csv:"x"`
	Y        float64 `csv:"y"`
}

type profileRow struct {
	Contract string  `csv:"contract"`
	Type     string  `csv:"type"`
	Greek    string  `csv:"greek"`
	Spot     float64 `csv:"spot"`
	Value    float64 `csv:"value"`
}

// WriteAll creates outdir and writes the JSON result plus every CSV table.
func WriteAll(res *analysis.Result, outdir string) error {
	if err := os.MkdirAll(outdir, 0755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := WriteJSON(res, outdir); err != nil {
		return err
	}

	sweeps := make([]sensitivity.Sweep, 0, len(res.Options))
	profiles := make([]sensitivity.Profile, 0, len(res.Options))
	contracts := make([]string, 0, len(res.Options))
	for _, o := range res.Options {
		sweeps = append(sweeps, o.SpotSweep)
		profiles = append(profiles, o.Profile)
		contracts = append(contracts, o.Contract)
	}

	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{ResidualsFile, func(w io.Writer) error { return WriteResidualsCSV(w, res.Residuals) }},
		{ByStrikeFile, func(w io.Writer) error { return WriteBucketsCSV(w, res.ByStrike) }},
		{ByExpiryFile, func(w io.Writer) error { return WriteBucketsCSV(w, res.ByExpiry) }},
		{SweepsFile, func(w io.Writer) error { return WriteSweepCSV(w, contracts, sweeps) }},
		{ProfilesFile, func(w io.Writer) error { return WriteProfileCSV(w, contracts, profiles) }},
	}
	for _, f := range files {
		if err := writeFile(filepath.Join(outdir, f.name), f.write); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// WriteJSON writes res as indented JSON to outdir/analysis.json. Undefined
// values are written as null.
func WriteJSON(res *analysis.Result, outdir string) error {
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outdir, AnalysisFile), b, 0644)
}

// WriteResidualsCSV writes one row per residual.
func WriteResidualsCSV(w io.Writer, residuals []evaluation.Residual) error {
	return gocsv.Marshal(&residuals, w)
}

// WriteBucketsCSV writes a by-strike or by-expiry breakdown.
func WriteBucketsCSV(w io.Writer, buckets []evaluation.Bucket) error {
	return gocsv.Marshal(&buckets, w)
}

// WriteSweepCSV writes sweeps in long format, one row per point. contracts
// labels the sweeps by index and may be shorter than sweeps.
func WriteSweepCSV(w io.Writer, contracts []string, sweeps []sensitivity.Sweep) error {
	rows := []*sweepRow{}
	for i, s := range sweeps {
		for _, p := range s.Points {
			rows = append(rows, &sweepRow{Contract: label(contracts, i), Param: string(s.Param), Output: s.Output, X: p.X, Y: p.Y})
		}
	}
	return gocsv.Marshal(&rows, w)
}

// WriteProfileCSV writes Greek profiles in long format, one row per
// (greek, spot), Greeks in canonical order.
func WriteProfileCSV(w io.Writer, contracts []string, profiles []sensitivity.Profile) error {
	rows := []*profileRow{}
	for i, p := range profiles {
		for _, g := range pricing.AllGreekNames {
			for j, s := range p.Spots {
				rows = append(rows, &profileRow{
					Contract: label(contracts, i),
					Type:     string(p.Type),
					Greek:    string(g),
					Spot:     s,
					Value:    p.Curves[g][j],
				})
			}
		}
	}
	return gocsv.Marshal(&rows, w)
}

func label(contracts []string, i int) string {
	if i < len(contracts) {
		return contracts[i]
	}
	return fmt.Sprintf("#%d", i+1)
}

// RenderMetrics prints the accuracy metrics as a table.
func RenderMetrics(w io.Writer, m evaluation.Metrics) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"MAE", "MSE", "RMSE", "R2"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.Append([]string{num(m.MAE), num(m.MSE), num(m.RMSE), num(m.R2)})
	table.Render()
}

// GreekRow is one labelled line of a Greeks table.
type GreekRow struct {
	Label  string
	Greeks pricing.Greeks
}

// RenderGreeks prints one row of Greeks per option.
func RenderGreeks(w io.Writer, rows []GreekRow) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Option", "Delta", "Gamma", "Vega", "Theta", "Rho"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, r := range rows {
		g := r.Greeks
		table.Append([]string{r.Label, num(g.Delta), num(g.Gamma), num(g.Vega), num(g.Theta), num(g.Rho)})
	}
	table.Render()
}

// RenderSweep prints a sweep as two columns.
func RenderSweep(w io.Writer, s sensitivity.Sweep) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{string(s.Param), s.Output})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, p := range s.Points {
		table.Append([]string{num(p.X), num(p.Y)})
	}
	table.Render()
}

// RenderSummary prints the headline figures of an analysis run.
func RenderSummary(w io.Writer, res *analysis.Result) {
	fmt.Fprintf(w, "%s as of %s: spot %.2f, volatility %.4f, rate %.4f\n",
		res.Ticker, res.AsOf.Format("2006-01-02"), res.Spot, res.Volatility, res.RiskFreeRate)
	fmt.Fprintf(w, "options: %d quoted, %d in band, %d priced\n", res.Quoted, res.Filtered, len(res.Records))
	RenderMetrics(w, res.Metrics)

	if len(res.Options) > 0 {
		rows := make([]GreekRow, len(res.Options))
		for i, o := range res.Options {
			rows[i] = GreekRow{Label: o.Contract, Greeks: o.Greeks}
		}
		RenderGreeks(w, rows)
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Strike", "Count", "Mean diff", "Mean diff %"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, b := range res.ByStrike {
		table.Append([]string{num(b.Key), fmt.Sprintf("%d", b.Count), num(b.MeanPriceDiff), pct(b.MeanPriceDiffPct)})
	}
	table.Render()
}

func num(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", v)
}

func pct(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", v*100)
}
