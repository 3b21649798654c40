package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02"

// DataConfig selects and configures the market data provider.
type DataConfig struct {
	Provider string `yaml:"provider"` // synthetic, csv, massive
	Dir      string `yaml:"dir"`      // csv provider directory
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
}

// SensitivityConfig controls the per-option sweeps of an analysis run.
type SensitivityConfig struct {
	RangePct   float64 `yaml:"range_pct"`
	Steps      int     `yaml:"steps"`
	MaxOptions int     `yaml:"max_options"` // options that get sweeps and profiles
}

// FilterConfig is the moneyness band (S/K) of options kept for evaluation.
type FilterConfig struct {
	MinMoneyness float64 `yaml:"min_moneyness"`
	MaxMoneyness float64 `yaml:"max_moneyness"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ReportConfig controls report output.
type ReportConfig struct {
	Dir string `yaml:"dir"`
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the full application configuration.
type Config struct {
	Ticker       string  `yaml:"ticker"`
	StartDate    string  `yaml:"start_date"`
	EndDate      string  `yaml:"end_date"`
	RiskFreeRate float64 `yaml:"risk_free_rate"`
	VolWindow    int     `yaml:"vol_window"`
	Workers      int     `yaml:"workers"` // batch pricing goroutines, 0 = GOMAXPROCS
	ExpiryBucket float64 `yaml:"expiry_bucket"`

	Data        DataConfig        `yaml:"data"`
	Sensitivity SensitivityConfig `yaml:"sensitivity"`
	Filter      FilterConfig      `yaml:"filter"`
	Logging     LoggingConfig     `yaml:"logging"`
	Report      ReportConfig      `yaml:"report"`
	Server      ServerConfig      `yaml:"server"`
}

// Default returns the built-in configuration: one year of history for
// AAPL ending today, synthetic data, 5% risk-free rate.
func Default() *Config {
	end := time.Now().UTC()
	return &Config{
		Ticker:       "AAPL",
		StartDate:    end.AddDate(-1, 0, -14).Format(dateLayout),
		EndDate:      end.Format(dateLayout),
		RiskFreeRate: 0.05,
		VolWindow:    252,
		ExpiryBucket: 30.0 / 365.0,
		Data:         DataConfig{Provider: "synthetic", Dir: "data"},
		Sensitivity:  SensitivityConfig{RangePct: 0.2, Steps: 100, MaxOptions: 5},
		Filter:       FilterConfig{MinMoneyness: 0.8, MaxMoneyness: 1.2},
		Logging:      LoggingConfig{Level: "info"},
		Report:       ReportConfig{Dir: "reports"},
		Server:       ServerConfig{Addr: ":8080"},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// non-empty), a .env file in the working directory (if present) and
// environment variables, in increasing order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Ticker = getEnv("TICKER", c.Ticker)
	c.StartDate = getEnv("START_DATE", c.StartDate)
	c.EndDate = getEnv("END_DATE", c.EndDate)
	c.RiskFreeRate = getEnvFloat("RISK_FREE_RATE", c.RiskFreeRate)
	c.Workers = getEnvInt("WORKERS", c.Workers)
	c.Data.Provider = getEnv("DATA_PROVIDER", c.Data.Provider)
	c.Data.Dir = getEnv("DATA_DIR", c.Data.Dir)
	c.Data.APIKey = getEnv("MASSIVE_API_KEY", getEnv("POLYGON_API_KEY", c.Data.APIKey))
	c.Data.BaseURL = getEnv("MASSIVE_BASE_URL", c.Data.BaseURL)
	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.File = getEnv("LOG_FILE", c.Logging.File)
	c.Report.Dir = getEnv("REPORT_DIR", c.Report.Dir)
	c.Server.Addr = getEnv("SERVER_ADDR", c.Server.Addr)
}

// Validate checks ranges and date formats.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Ticker) == "" {
		return fmt.Errorf("ticker is required")
	}
	start, end, err := c.Dates()
	if err != nil {
		return err
	}
	if !start.Before(end) {
		return fmt.Errorf("start_date %s must be before end_date %s", c.StartDate, c.EndDate)
	}
	if c.VolWindow < 2 {
		return fmt.Errorf("vol_window must be >= 2, got %d", c.VolWindow)
	}
	if c.Sensitivity.Steps < 2 {
		return fmt.Errorf("sensitivity.steps must be >= 2, got %d", c.Sensitivity.Steps)
	}
	if !(c.Sensitivity.RangePct > 0 && c.Sensitivity.RangePct < 1) {
		return fmt.Errorf("sensitivity.range_pct must be in (0, 1), got %v", c.Sensitivity.RangePct)
	}
	if c.Sensitivity.MaxOptions < 0 {
		return fmt.Errorf("sensitivity.max_options must be >= 0, got %d", c.Sensitivity.MaxOptions)
	}
	if c.Filter.MinMoneyness <= 0 || c.Filter.MaxMoneyness < c.Filter.MinMoneyness {
		return fmt.Errorf("invalid moneyness band [%v, %v]", c.Filter.MinMoneyness, c.Filter.MaxMoneyness)
	}
	return nil
}

// Dates parses StartDate and EndDate.
func (c *Config) Dates() (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, c.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date: %w", err)
	}
	end, err := time.Parse(dateLayout, c.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date: %w", err)
	}
	return start, end, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
