package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/contactkeval/option-pricer/internal/config"
	"github.com/contactkeval/option-pricer/internal/evaluation"
	"github.com/contactkeval/option-pricer/internal/logger"
	"github.com/contactkeval/option-pricer/internal/pricing"
	"github.com/contactkeval/option-pricer/internal/sensitivity"
)

// app carries state shared by subcommands once the config is loaded.
type app struct {
	configPath string
	logLevel   string

	cfg     *config.Config
	logFile io.Closer
}

func (a *app) engine() *pricing.Engine {
	return pricing.NewEngine(pricing.WithObserver(logger.Observer()))
}

func (a *app) analyzer(e *pricing.Engine) *sensitivity.Analyzer {
	return sensitivity.NewAnalyzer(e, sensitivity.WithObserver(logger.Observer()))
}

func (a *app) evaluator() *evaluation.Evaluator {
	return evaluation.NewEvaluator(evaluation.WithObserver(logger.Observer()))
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "option-pricer",
		Short:         "Black-Scholes pricing, sensitivity analysis and model evaluation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg

			level := cfg.Logging.Level
			if a.logLevel != "" {
				level = a.logLevel
			}
			if err := logger.SetLevel(level); err != nil {
				return err
			}
			if cfg.Logging.File != "" {
				if a.logFile, err = logger.SetFile(cfg.Logging.File); err != nil {
					return err
				}
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.logFile != nil {
				return a.logFile.Close()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to YAML config")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (error, info, debug, trace)")

	root.AddCommand(
		newPriceCmd(a),
		newGreeksCmd(a),
		newSweepCmd(a),
		newProfileCmd(a),
		newEvaluateCmd(a),
		newAnalyzeCmd(a),
		newServeCmd(a),
	)
	return root
}
