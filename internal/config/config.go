package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Data     DataConfig     `yaml:"data" mapstructure:"data"`
	Workflow WorkflowConfig `yaml:"workflow" mapstructure:"workflow"`
	Raster   RasterConfig   `yaml:"raster" mapstructure:"raster"`
	Boundary BoundaryConfig `yaml:"boundary" mapstructure:"boundary"`
	DEM      DEMConfig      `yaml:"dem" mapstructure:"dem"`
	Retry    RetryConfig    `yaml:"retry" mapstructure:"retry"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// DataConfig configures where cached inputs and outputs live.
type DataConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// WorkflowConfig holds the router defaults applied when a query does not
// state a parameter explicitly.
type WorkflowConfig struct {
	DefaultRegion         string  `yaml:"default_region" mapstructure:"default_region"`
	DefaultThreshold      float64 `yaml:"default_threshold" mapstructure:"default_threshold"`
	DefaultComparison     string  `yaml:"default_comparison" mapstructure:"default_comparison"`
	DefaultBufferDistance float64 `yaml:"default_buffer_distance" mapstructure:"default_buffer_distance"`
	DefaultTopN           int     `yaml:"default_top_n" mapstructure:"default_top_n"`
	ChainSuitability      bool    `yaml:"chain_suitability" mapstructure:"chain_suitability"`
	DEMWeight             float64 `yaml:"dem_weight" mapstructure:"dem_weight"`
}

// RasterConfig bounds in-memory raster processing.
type RasterConfig struct {
	MaxCells int `yaml:"max_cells" mapstructure:"max_cells"`
}

// BoundaryConfig configures region boundary resolution.
type BoundaryConfig struct {
	ShapefileDir string  `yaml:"shapefile_dir" mapstructure:"shapefile_dir"`
	NominatimURL string  `yaml:"nominatim_url" mapstructure:"nominatim_url"`
	UserAgent    string  `yaml:"user_agent" mapstructure:"user_agent"`
	RateLimit    float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// DEMConfig holds OpenTopography global DEM API settings.
type DEMConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	DEMType     string `yaml:"dem_type" mapstructure:"dem_type"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// RetryConfig configures retries of remote boundary and DEM fetches.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GEOQUERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.dir", "data")
	v.SetDefault("workflow.default_region", "India")
	v.SetDefault("workflow.default_threshold", 50.0)
	v.SetDefault("workflow.default_comparison", "below")
	v.SetDefault("workflow.default_buffer_distance", 1000.0)
	v.SetDefault("workflow.default_top_n", 5)
	v.SetDefault("workflow.chain_suitability", true)
	v.SetDefault("workflow.dem_weight", 1.0)
	v.SetDefault("raster.max_cells", 100_000_000)
	v.SetDefault("boundary.shapefile_dir", "")
	v.SetDefault("boundary.nominatim_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("boundary.user_agent", "geoquery/1.0")
	v.SetDefault("boundary.rate_limit", 1.0)
	v.SetDefault("boundary.timeout_secs", 30)
	v.SetDefault("dem.base_url", "https://portal.opentopography.org")
	v.SetDefault("dem.api_key", "")
	v.SetDefault("dem.dem_type", "SRTMGL1")
	v.SetDefault("dem.timeout_secs", 300)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields required by the given run mode ("query",
// "region" or "serve") and returns every problem found in one error.
func (c *Config) Validate(mode string) error {
	var errs []string

	if c.Data.Dir == "" {
		errs = append(errs, "data.dir is required")
	}

	switch mode {
	case "query", "serve":
		switch c.Workflow.DefaultComparison {
		case "below", "above":
		default:
			errs = append(errs, fmt.Sprintf("workflow.default_comparison must be below or above, got %q", c.Workflow.DefaultComparison))
		}
		if c.Workflow.DefaultTopN <= 0 {
			errs = append(errs, "workflow.default_top_n must be > 0")
		}
		if c.Workflow.DefaultBufferDistance <= 0 {
			errs = append(errs, "workflow.default_buffer_distance must be > 0")
		}
		if c.Raster.MaxCells <= 0 {
			errs = append(errs, "raster.max_cells must be > 0")
		}
		if mode == "serve" && c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "region":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
