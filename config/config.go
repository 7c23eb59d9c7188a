// Package config reads tengml settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/tengml/tengml/linear"
	"github.com/tengml/tengml/materials"
	"github.com/tengml/tengml/pkg/errors"
	"github.com/tengml/tengml/pkg/log"
)

// Environment variable names.
const (
	EnvDataJSON     = "TENG_DATA_JSON"
	EnvDataXLSX     = "TENG_DATA_XLSX"
	EnvAddr         = "TENG_ADDR"
	EnvLogLevel     = "TENG_LOG_LEVEL"
	EnvLogFormat    = "TENG_LOG_FORMAT"
	EnvPageSize     = "TENG_PAGE_SIZE"
	EnvMaxIter      = "TENG_MAX_ITER"
	EnvLearningRate = "TENG_LEARNING_RATE"
)

// DefaultEnvFile is read by Load when it exists.
const DefaultEnvFile = ".env"

// Config is the complete application configuration.
type Config struct {
	Data     DataConfig
	Server   ServerConfig
	Log      LogConfig
	Training TrainingConfig
}

// DataConfig locates the materials database.
type DataConfig struct {
	JSONPath string
	XLSXPath string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr     string
	PageSize int
}

// LogConfig selects the global logger.
type LogConfig struct {
	Level  string
	Format string
}

// TrainingConfig holds regressor hyperparameters.
type TrainingConfig struct {
	MaxIter      int
	LearningRate float64
}

// Default returns the configuration used when no variable is set.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			JSONPath: materials.DefaultJSONPath,
			XLSXPath: materials.DefaultXLSXPath,
		},
		Server: ServerConfig{
			Addr:     ":8080",
			PageSize: materials.DefaultPerPage,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Training: TrainingConfig{
			MaxIter:      linear.DefaultMaxIter,
			LearningRate: linear.DefaultLearningRate,
		},
	}
}

// Load reads envFile into the environment, without overriding variables
// that are already set, and then builds a Config from the environment.
// A missing envFile is ignored.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "read %s", envFile)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup, starting from Default.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	env := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := env(EnvDataJSON); ok {
		cfg.Data.JSONPath = v
	}
	if v, ok := env(EnvDataXLSX); ok {
		cfg.Data.XLSXPath = v
	}
	if v, ok := env(EnvAddr); ok {
		cfg.Server.Addr = v
	}
	if v, ok := env(EnvLogLevel); ok {
		cfg.Log.Level = v
	}
	if v, ok := env(EnvLogFormat); ok {
		cfg.Log.Format = v
	}
	if v, ok := env(EnvPageSize); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.NewValidationError(EnvPageSize, "must be an integer", v)
		}
		cfg.Server.PageSize = n
	}
	if v, ok := env(EnvMaxIter); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.NewValidationError(EnvMaxIter, "must be an integer", v)
		}
		cfg.Training.MaxIter = n
	}
	if v, ok := env(EnvLearningRate); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, errors.NewValidationError(EnvLearningRate, "must be a number", v)
		}
		cfg.Training.LearningRate = f
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

// Validate checks every field.
func (c *Config) Validate() error {
	if _, err := log.ToLogLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		return errors.NewValidationError(EnvLogFormat, "must be json or console", c.Log.Format)
	}
	if c.Server.Addr == "" {
		return errors.NewValidationError(EnvAddr, "is required", c.Server.Addr)
	}
	if c.Server.PageSize < 1 {
		return errors.NewValidationError(EnvPageSize, "must be at least 1", c.Server.PageSize)
	}
	if c.Training.MaxIter < 0 {
		return errors.NewValidationError(EnvMaxIter, "must be non-negative", c.Training.MaxIter)
	}
	lr := c.Training.LearningRate
	if lr <= 0 || math.IsNaN(lr) || math.IsInf(lr, 0) {
		return errors.NewValidationError(EnvLearningRate, "must be a positive finite number", lr)
	}
	return nil
}

// Sources returns the database files to load.
func (c *Config) Sources() materials.Sources {
	return materials.Sources{JSONPath: c.Data.JSONPath, XLSXPath: c.Data.XLSXPath}
}

// RegressorOptions returns the training hyperparameters as regressor options.
func (c *Config) RegressorOptions() []linear.Option {
	return []linear.Option{
		linear.WithMaxIter(c.Training.MaxIter),
		linear.WithLearningRate(c.Training.LearningRate),
	}
}

// SetupLogger installs the configured global logger.
func (c *Config) SetupLogger() error {
	return log.SetupLogger(c.Log.Level, c.Log.Format)
}
