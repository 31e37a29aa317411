package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/newthinker/stonks/internal/core"
	"github.com/spf13/viper"
)

// Environment variables holding provider credentials.
const (
	EnvAlphaVantageKey     = "ALPHA_VANTAGE_KEY"
	EnvAlphaVantageKeyVite = "VITE_ALPHA_VANTAGE_KEY"
	EnvFinnhubKey          = "FINNHUB_API_KEY"
	EnvPolygonKey          = "POLYGON_API_KEY"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Sources    SourcesConfig    `mapstructure:"sources"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Backtest   BacktestConfig   `mapstructure:"backtest"`
	Watchlist  WatchlistConfig  `mapstructure:"watchlist"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	Mode         string   `mapstructure:"mode"`
	APIKey       string   `mapstructure:"api_key"`
	AllowOrigins []string `mapstructure:"allow_origins"`
	JobTTLHours  int      `mapstructure:"job_ttl_hours"`
	MaxJobs      int      `mapstructure:"max_jobs"`
}

// SourcesConfig configures the data providers and the fallback chain.
type SourcesConfig struct {
	// Premium is the keyed provider tried first when a key is available.
	Premium      string         `mapstructure:"premium"`
	Timeout      time.Duration  `mapstructure:"timeout"`
	AlphaVantage ProviderConfig `mapstructure:"alpha_vantage"`
	Finnhub      ProviderConfig `mapstructure:"finnhub"`
	Polygon      ProviderConfig `mapstructure:"polygon"`
	YahooChart   ProviderConfig `mapstructure:"yahoo_chart"`
	Mock         MockConfig     `mapstructure:"mock"`
}

type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// MockConfig seeds the synthetic generator. Zero means time-seeded.
type MockConfig struct {
	Seed int64 `mapstructure:"seed"`
}

type CacheConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	MaxEntries    int           `mapstructure:"max_entries"`
	TTL           time.Duration `mapstructure:"ttl"`
	PurgeSchedule string        `mapstructure:"purge_schedule"`
}

type StorageConfig struct {
	Archive ArchiveConfig `mapstructure:"archive"`
}

type ArchiveConfig struct {
	Type string   `mapstructure:"type"` // "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// SimulationConfig bounds Monte Carlo requests.
type SimulationConfig struct {
	Days          int `mapstructure:"days"`
	Iterations    int `mapstructure:"iterations"`
	MaxIterations int `mapstructure:"max_iterations"`
	MaxDays       int `mapstructure:"max_days"`
	VisualPaths   int `mapstructure:"visual_paths"`
	Bins          int `mapstructure:"bins"`
	Workers       int `mapstructure:"workers"`
	HistoryRows   int `mapstructure:"history_rows"`
}

type BacktestConfig struct {
	InitialCapital float64 `mapstructure:"initial_capital"`
	Commission     float64 `mapstructure:"commission"`
	Threshold      float64 `mapstructure:"threshold"`
	Period         string  `mapstructure:"period"`
}

// WatchlistConfig lists symbols whose history is fetched ahead of requests.
type WatchlistConfig struct {
	Symbols  []string `mapstructure:"symbols"`
	Periods  []string `mapstructure:"periods"`
	Schedule string   `mapstructure:"schedule"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file on top of Defaults. An empty path
// yields the defaults. Provider keys missing from the file are taken from
// the environment, after loading any .env file in the working directory.
func Load(path string) (*Config, error) {
	LoadDotEnv()

	cfg := Defaults()
	if path != "" {
		v := viper.New()
		v.SetConfigFile(path)

		// Support environment variable overrides
		v.AutomaticEnv()
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}

		// Expand environment variables in string values
		for _, key := range v.AllKeys() {
			val := v.GetString(key)
			if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
				envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
				v.Set(key, os.Getenv(envKey))
			}
		}

		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("unmarshaling config: %w", err)
		}
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// LoadDotEnv loads variables from .env files without overriding ones
// already set. Missing files are ignored.
func LoadDotEnv(files ...string) {
	_ = godotenv.Load(files...)
}

// ApplyEnv fills provider keys that are still empty from the environment.
func (c *Config) ApplyEnv() {
	if c.Sources.AlphaVantage.APIKey == "" {
		c.Sources.AlphaVantage.APIKey = firstEnv(EnvAlphaVantageKey, EnvAlphaVantageKeyVite)
	}
	if c.Sources.Finnhub.APIKey == "" {
		c.Sources.Finnhub.APIKey = os.Getenv(EnvFinnhubKey)
	}
	if c.Sources.Polygon.APIKey == "" {
		c.Sources.Polygon.APIKey = os.Getenv(EnvPolygonKey)
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8000,
			Mode:         "release",
			AllowOrigins: []string{"*"},
			JobTTLHours:  1,
			MaxJobs:      100,
		},
		Sources: SourcesConfig{
			Premium: "alpha_vantage",
			Timeout: 10 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:       true,
			MaxEntries:    100,
			TTL:           5 * time.Minute,
			PurgeSchedule: "@every 1m",
		},
		Storage: StorageConfig{
			Archive: ArchiveConfig{
				Type: "localfs",
				Path: "./data/archive",
			},
		},
		Simulation: SimulationConfig{
			Days:          30,
			Iterations:    5000,
			MaxIterations: 50000,
			MaxDays:       365,
			VisualPaths:   100,
			Bins:          20,
			HistoryRows:   45,
		},
		Backtest: BacktestConfig{
			InitialCapital: 10000,
			Commission:     0.001,
			Threshold:      0.002,
			Period:         string(core.DefaultPeriod),
		},
		Watchlist: WatchlistConfig{
			Periods:  []string{string(core.DefaultPeriod)},
			Schedule: "@every 4m",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	switch c.Sources.Premium {
	case "", "alpha_vantage", "finnhub", "polygon":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("premium source must be alpha_vantage, finnhub or polygon, got %q", c.Sources.Premium))
	}
	if c.Sources.Timeout <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("sources timeout must be positive, got %s", c.Sources.Timeout))
	}

	if c.Cache.Enabled {
		if c.Cache.MaxEntries < 1 {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("cache max_entries must be positive, got %d", c.Cache.MaxEntries))
		}
		if c.Cache.TTL <= 0 {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("cache ttl must be positive, got %s", c.Cache.TTL))
		}
	}

	// Storage validation
	switch c.Storage.Archive.Type {
	case "", "localfs":
	case "s3":
		if c.Storage.Archive.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("s3 bucket required when archive type is s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown archive type %q", c.Storage.Archive.Type))
	}

	// Simulation validation
	if c.Simulation.Iterations < 1 || c.Simulation.Iterations > c.Simulation.MaxIterations {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("simulation iterations must be between 1 and %d, got %d",
				c.Simulation.MaxIterations, c.Simulation.Iterations))
	}
	if c.Simulation.Bins < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("simulation bins must be positive, got %d", c.Simulation.Bins))
	}

	// Backtest validation
	if c.Backtest.InitialCapital <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("initial_capital must be positive, got %f", c.Backtest.InitialCapital))
	}
	if c.Backtest.Commission < 0 || c.Backtest.Commission >= 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("commission must be in [0, 1), got %f", c.Backtest.Commission))
	}
	if _, err := core.ParsePeriod(c.Backtest.Period); err != nil {
		return core.WrapError(core.ErrConfigInvalid, err)
	}

	for _, p := range c.Watchlist.Periods {
		if _, err := core.ParsePeriod(p); err != nil {
			return core.WrapError(core.ErrConfigInvalid, err)
		}
	}
	for _, s := range c.Watchlist.Symbols {
		if err := core.ValidateSymbol(s); err != nil {
			return core.WrapError(core.ErrConfigInvalid, err)
		}
	}

	return nil
}
