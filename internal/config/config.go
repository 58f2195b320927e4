// Package config handles configuration loading for EpiCurve.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Analysis AnalysisConfig `mapstructure:"analysis" yaml:"analysis"`
	Data     DataConfig     `mapstructure:"data"     yaml:"data"`
	API      APIConfig      `mapstructure:"api"      yaml:"api"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
}

// AnalysisConfig holds the pipeline tuning knobs. All values have defaults
// and are overridable per run.
type AnalysisConfig struct {
	// SmoothWindow is the centered moving-average width in days. Must be
	// odd; typical values are 5-11.
	SmoothWindow int `mapstructure:"smooth_window" yaml:"smooth_window"`

	// CaseThreshold / DeathThreshold are the cumulative counts that define
	// the outbreak start date and day zero.
	CaseThreshold  int `mapstructure:"case_threshold"  yaml:"case_threshold"`
	DeathThreshold int `mapstructure:"death_threshold" yaml:"death_threshold"`

	// GrowthDays is the minimum expected days between start and peak cases,
	// used to suppress spurious early peaks. Typical values are 30-40.
	GrowthDays int `mapstructure:"growth_days" yaml:"growth_days"`

	// LagDays is the minimum expected lag between peak cases and peak
	// deaths. Typical values are 0-12.
	LagDays int `mapstructure:"lag_days" yaml:"lag_days"`

	// SpreadDays is the look-back used for the infection-rate ratio.
	SpreadDays int `mapstructure:"spread_days" yaml:"spread_days"`

	// Dilation stretches the post-peak decay of the fitted curve; 1 is
	// symmetric. When FitDilation is true this is only the initial guess.
	Dilation    float64 `mapstructure:"dilation"     yaml:"dilation"`
	FitDilation bool    `mapstructure:"fit_dilation" yaml:"fit_dilation"`

	// EndPercentile is the fraction of the asymptotic total that defines
	// the projected end date (0.95-0.99).
	EndPercentile float64 `mapstructure:"end_percentile" yaml:"end_percentile"`

	// HorizonDays is how far ahead the extrapolator projects.
	HorizonDays int `mapstructure:"horizon_days" yaml:"horizon_days"`
}

// DataConfig holds data acquisition settings.
type DataConfig struct {
	FeedURL       string `mapstructure:"feed_url"        yaml:"feed_url"`
	LocalFile     string `mapstructure:"local_file"      yaml:"local_file"`
	CacheTTLSec   int    `mapstructure:"cache_ttl"       yaml:"cache_ttl"` // seconds
	RefreshSec    int    `mapstructure:"refresh_sec"     yaml:"refresh_sec"`
	NewsFeedURL   string `mapstructure:"news_feed_url"   yaml:"news_feed_url"`
	PopulationURL string `mapstructure:"population_url"  yaml:"population_url"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.epicurve/config.yaml (home directory)
//  3. /etc/epicurve/config.yaml (system)
//
// Environment variables override config file values.
// Format: EPICURVE_<SECTION>_<KEY>, e.g., EPICURVE_ANALYSIS_SMOOTH_WINDOW
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".epicurve"))
	v.AddConfigPath("/etc/epicurve")

	v.SetEnvPrefix("EPICURVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found — that's fine, use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("EPICURVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	a := c.Analysis
	if a.SmoothWindow < 1 || a.SmoothWindow%2 == 0 {
		return fmt.Errorf("analysis.smooth_window must be a positive odd integer, got %d", a.SmoothWindow)
	}
	if a.CaseThreshold < 1 || a.DeathThreshold < 1 {
		return fmt.Errorf("thresholds must be positive, got cases=%d deaths=%d", a.CaseThreshold, a.DeathThreshold)
	}
	if a.Dilation <= 0 {
		return fmt.Errorf("analysis.dilation must be > 0, got %f", a.Dilation)
	}
	if a.EndPercentile <= 0.5 || a.EndPercentile >= 1 {
		return fmt.Errorf("analysis.end_percentile must be in (0.5, 1), got %f", a.EndPercentile)
	}
	if a.HorizonDays < 0 {
		return fmt.Errorf("analysis.horizon_days must be >= 0, got %d", a.HorizonDays)
	}
	return nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Analysis defaults
	v.SetDefault("analysis.smooth_window", 9)
	v.SetDefault("analysis.case_threshold", 50)
	v.SetDefault("analysis.death_threshold", 50)
	v.SetDefault("analysis.growth_days", 38)
	v.SetDefault("analysis.lag_days", 4)
	v.SetDefault("analysis.spread_days", 7)
	v.SetDefault("analysis.dilation", 1.0)
	v.SetDefault("analysis.fit_dilation", true)
	v.SetDefault("analysis.end_percentile", 0.97)
	v.SetDefault("analysis.horizon_days", 30)

	// Data defaults
	v.SetDefault("data.feed_url", "https://opendata.ecdc.europa.eu/covid19/casedistribution/json/")
	v.SetDefault("data.cache_ttl", 3600) // 1 hour
	v.SetDefault("data.refresh_sec", 6*3600)
	v.SetDefault("data.news_feed_url", "https://www.who.int/feeds/entity/csr/don/en/rss.xml")
	v.SetDefault("data.population_url", "")

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
