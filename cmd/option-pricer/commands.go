package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	"github.com/contactkeval/option-pricer/internal/analysis"
	"github.com/contactkeval/option-pricer/internal/data"
	"github.com/contactkeval/option-pricer/internal/logger"
	"github.com/contactkeval/option-pricer/internal/nullfloat"
	"github.com/contactkeval/option-pricer/internal/pricing"
	"github.com/contactkeval/option-pricer/internal/report"
	"github.com/contactkeval/option-pricer/internal/sensitivity"
	"github.com/contactkeval/option-pricer/internal/server"
)

// optionFlags are the Black-Scholes inputs shared by the pricing commands.
type optionFlags struct {
	params  pricing.Params
	optType string
	asJSON  bool
}

func (f *optionFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.Float64Var(&f.params.S, "spot", 100, "spot price S")
	fs.Float64Var(&f.params.K, "strike", 100, "strike K")
	fs.Float64Var(&f.params.T, "expiry", 1, "time to expiry T in years")
	fs.Float64Var(&f.params.R, "rate", 0.05, "risk-free rate r")
	fs.Float64Var(&f.params.Sigma, "sigma", 0.2, "annualized volatility")
	fs.StringVar(&f.optType, "type", "call", "option type (call or put)")
	fs.BoolVar(&f.asJSON, "json", false, "print JSON instead of a table")
}

func (f *optionFlags) parse() (pricing.Params, pricing.OptionType, error) {
	t, err := pricing.ParseOptionType(f.optType)
	return f.params, t, err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newPriceCmd(a *app) *cobra.Command {
	f := &optionFlags{}
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Price a European option",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, t, err := f.parse()
			if err != nil {
				return err
			}
			v, err := a.engine().Price(p, t)
			if err != nil {
				return err
			}
			if f.asJSON {
				return printJSON(cmd.OutOrStdout(), map[string]any{"params": p, "type": t, "price": nullable(v)})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s price: %s\n", t, formatFloat(v))
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newGreeksCmd(a *app) *cobra.Command {
	f := &optionFlags{}
	var greek string
	cmd := &cobra.Command{
		Use:   "greeks",
		Short: "Compute option Greeks",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, t, err := f.parse()
			if err != nil {
				return err
			}
			e := a.engine()
			if greek != "" {
				g, err := pricing.ParseGreek(greek)
				if err != nil {
					return err
				}
				v, err := e.Greek(g, p, t)
				if err != nil {
					return err
				}
				if f.asJSON {
					return printJSON(cmd.OutOrStdout(), map[string]any{"greek": g, "value": nullable(v)})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", g, formatFloat(v))
				return nil
			}

			all, err := e.AllGreeks(p, t)
			if err != nil {
				return err
			}
			if f.asJSON {
				return printJSON(cmd.OutOrStdout(), all)
			}
			report.RenderGreeks(cmd.OutOrStdout(), []report.GreekRow{{Label: string(t), Greeks: all}})
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&greek, "greek", "", "single Greek to compute (delta, gamma, vega, theta, rho)")
	return cmd
}

func newSweepCmd(a *app) *cobra.Command {
	f := &optionFlags{}
	var (
		param    string
		greek    string
		base     float64
		rangePct float64
		steps    int
		asCSV    bool
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Vary one input and record the call price or a Greek",
		RunE: func(cmd *cobra.Command, args []string) error {
			prm, err := sensitivity.ParseParam(param)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("range") {
				rangePct = a.cfg.Sensitivity.RangePct
			}
			if !cmd.Flags().Changed("steps") {
				steps = a.cfg.Sensitivity.Steps
			}
			if !cmd.Flags().Changed("base") {
				base = baseValue(prm, f.params)
			}

			e := a.engine()
			an := a.analyzer(e)
			var sw sensitivity.Sweep
			if greek != "" {
				g, err := pricing.ParseGreek(greek)
				if err != nil {
					return err
				}
				_, t, err := f.parse()
				if err != nil {
					return err
				}
				sw, err = an.GreekSweep(g, t, prm, base, rangePct, steps, f.params)
				if err != nil {
					return err
				}
			} else if sw, err = an.ParameterSensitivity(prm, base, rangePct, steps, f.params); err != nil {
				return err
			}

			switch {
			case f.asJSON:
				return printJSON(cmd.OutOrStdout(), sw)
			case asCSV:
				return report.WriteSweepCSV(cmd.OutOrStdout(), nil, []sensitivity.Sweep{sw})
			}
			report.RenderSweep(cmd.OutOrStdout(), sw)
			return nil
		},
	}
	f.register(cmd)
	fs := cmd.Flags()
	fs.StringVar(&param, "param", "S", "parameter to vary (S, K, T, r, sigma)")
	fs.StringVar(&greek, "greek", "", "sweep this Greek instead of the call price")
	fs.Float64Var(&base, "base", 0, "centre of the sweep (defaults to the parameter's flag value)")
	fs.Float64Var(&rangePct, "range", 0.2, "half-width of the sweep as a fraction of base")
	fs.IntVar(&steps, "steps", 100, "number of grid points")
	fs.BoolVar(&asCSV, "csv", false, "print CSV instead of a table")
	return cmd
}

func baseValue(prm sensitivity.Param, p pricing.Params) float64 {
	switch prm {
	case sensitivity.ParamS:
		return p.S
	case sensitivity.ParamK:
		return p.K
	case sensitivity.ParamT:
		return p.T
	case sensitivity.ParamR:
		return p.R
	}
	return p.Sigma
}

func newProfileCmd(a *app) *cobra.Command {
	f := &optionFlags{}
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Evaluate all Greeks over spot prices from 0.5K to 1.5K",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, t, err := f.parse()
			if err != nil {
				return err
			}
			e := a.engine()
			prof, err := a.analyzer(e).GreekProfile(p, t)
			if err != nil {
				return err
			}
			if f.asJSON {
				return printJSON(cmd.OutOrStdout(), prof)
			}
			return report.WriteProfileCSV(cmd.OutOrStdout(), nil, []sensitivity.Profile{prof})
		},
	}
	f.register(cmd)
	return cmd
}

// priceRow is one line of the evaluate command's input file.
type priceRow struct {
	Market float64 `csv:"market"`
	Model  float64 `csv:"model"`
}

func newEvaluateCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "evaluate FILE",
		Short: "Score model prices against market prices from a CSV with market,model columns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			var rows []priceRow
			if err := gocsv.UnmarshalFile(file, &rows); err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			market := make([]float64, len(rows))
			model := make([]float64, len(rows))
			for i, r := range rows {
				market[i], model[i] = r.Market, r.Model
			}

			m, err := a.evaluator().CalculateMetrics(market, model)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), m)
			}
			report.RenderMetrics(cmd.OutOrStdout(), m)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var noReport bool
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the full model check against market data and write reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			prov, err := data.New(cfg.Data.Provider, cfg.Data.Dir, cfg.Data.APIKey, cfg.Data.BaseURL)
			if err != nil {
				return err
			}

			res, err := analysis.NewRunner(cfg, prov, analysis.WithObserver(logger.Observer())).Run(cmd.Context())
			if err != nil {
				return err
			}

			report.RenderSummary(cmd.OutOrStdout(), res)
			if noReport {
				return nil
			}
			if err := report.WriteAll(res, cfg.Report.Dir); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reports written to %s\n", cfg.Report.Dir)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noReport, "no-report", false, "skip writing report files")
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve pricing, sensitivity and evaluation over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e := a.engine()
			srv := server.New(e, a.analyzer(e), a.evaluator())
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to server.addr from config)")
	return cmd
}

func nullable(v float64) nullfloat.Float { return nullfloat.Float(v) }

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "undefined (NaN)"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
