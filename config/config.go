package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"shapeCluster/internal/adapters/logger" // Import the logger package for LogLevel
	"shapeCluster/internal/clustering"
	"shapeCluster/internal/domain"
)

// Data sources for the price and ratio tables.
const (
	SourceCSV    = "csv"
	SourceSQLite = "sqlite"
)

// Config holds all application configuration.
// Values come from struct defaults, then the optional YAML file, then the environment.
type Config struct {
	// Tables
	DataSource     string `yaml:"data_source" default:"csv"`
	PriceTablePath string `yaml:"price_table_path" default:"./data/prices.csv"`
	RatioTablePath string `yaml:"ratio_table_path"` // Empty derives ratios from prices
	DBPath         string `yaml:"db_path" default:"./data/shape_cluster.db"`

	// Request defaults
	DefaultClasses   []string  `yaml:"default_classes" default:"[\"11\"]"`
	DefaultStartDate string    `yaml:"default_start_date" default:"2024-07-26"`
	StartDate        time.Time `yaml:"-"` // Parsed DefaultStartDate
	DefaultK         int       `yaml:"default_k" default:"2"`
	MaxK             int       `yaml:"max_k" default:"9"`

	// Clustering
	ClusterMetric        string  `yaml:"cluster_metric" default:"dtw"`
	ClusterNInit         int     `yaml:"cluster_n_init" default:"2"`
	ClusterMaxIter       int     `yaml:"cluster_max_iter" default:"50"`
	ClusterTol           float64 `yaml:"cluster_tol" default:"1e-6"`
	BarycenterIterations int     `yaml:"barycenter_iter" default:"10"`
	DTWWindow            int     `yaml:"dtw_window" default:"-1"` // Negative leaves warping unconstrained

	// Logging
	LogLevelName string          `yaml:"log_level" default:"INFO"`
	LogLevel     logger.LogLevel `yaml:"-"`
	LogFormat    string          `yaml:"log_format" default:"console"`

	// HTTP
	HTTPAddr string `yaml:"http_addr" default:":8080"`

	// Binance API, used by cmd/fetch_history only
	APIKey    string `yaml:"binance_api_key"`
	SecretKey string `yaml:"binance_api_secret"`
	IsTestnet bool   `yaml:"is_testnet"`
}

// LoadConfig loads configuration from defaults, CONFIG_FILE and environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("applying configuration defaults: %w", err)
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	var err error
	var errs []string // Collect validation errors

	// Tables
	cfg.DataSource = strings.ToLower(getEnv("DATA_SOURCE", cfg.DataSource))
	cfg.PriceTablePath = getEnv("PRICE_TABLE_PATH", cfg.PriceTablePath)
	cfg.RatioTablePath = getEnv("RATIO_TABLE_PATH", cfg.RatioTablePath)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	switch cfg.DataSource {
	case SourceCSV:
		if cfg.PriceTablePath == "" {
			errs = append(errs, "PRICE_TABLE_PATH must be set when DATA_SOURCE is csv")
		}
	case SourceSQLite:
		if cfg.DBPath == "" {
			errs = append(errs, "DB_PATH must be set when DATA_SOURCE is sqlite")
		}
	default:
		errs = append(errs, fmt.Sprintf("DATA_SOURCE must be %q or %q, got %q", SourceCSV, SourceSQLite, cfg.DataSource))
	}

	// Request defaults
	cfg.DefaultClasses = getEnvAsList("DEFAULT_CLASSES", cfg.DefaultClasses)
	cfg.DefaultStartDate = getEnv("DEFAULT_START_DATE", cfg.DefaultStartDate)
	cfg.StartDate, err = domain.ParseDate(cfg.DefaultStartDate)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DEFAULT_START_DATE: %v", err))
	}

	cfg.MaxK, err = getEnvAsIntRequired("MAX_K", cfg.MaxK)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_K: %v", err))
	} else if cfg.MaxK < clustering.MinK {
		errs = append(errs, fmt.Sprintf("MAX_K must be at least %d", clustering.MinK))
	}
	cfg.DefaultK, err = getEnvAsIntRequired("DEFAULT_K", cfg.DefaultK)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DEFAULT_K: %v", err))
	} else if cfg.DefaultK < clustering.MinK || cfg.DefaultK > cfg.MaxK {
		errs = append(errs, fmt.Sprintf("DEFAULT_K must be between %d and MAX_K (%d)", clustering.MinK, cfg.MaxK))
	}

	// Clustering
	cfg.ClusterMetric = strings.ToLower(getEnv("CLUSTER_METRIC", cfg.ClusterMetric))
	if _, err := clustering.MetricByName(cfg.ClusterMetric, clustering.MetricOptions{}); err != nil {
		errs = append(errs, fmt.Sprintf("invalid CLUSTER_METRIC: %v", err))
	}

	cfg.ClusterNInit, err = getEnvAsIntRequired("CLUSTER_N_INIT", cfg.ClusterNInit)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid CLUSTER_N_INIT: %v", err))
	} else if cfg.ClusterNInit <= 0 {
		errs = append(errs, "CLUSTER_N_INIT must be positive")
	}

	cfg.ClusterMaxIter, err = getEnvAsIntRequired("CLUSTER_MAX_ITER", cfg.ClusterMaxIter)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid CLUSTER_MAX_ITER: %v", err))
	} else if cfg.ClusterMaxIter <= 0 {
		errs = append(errs, "CLUSTER_MAX_ITER must be positive")
	}

	cfg.ClusterTol, err = getEnvAsFloatRequired("CLUSTER_TOL", cfg.ClusterTol)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid CLUSTER_TOL: %v", err))
	} else if cfg.ClusterTol <= 0 {
		errs = append(errs, "CLUSTER_TOL must be positive")
	}

	cfg.BarycenterIterations, err = getEnvAsIntRequired("BARYCENTER_ITER", cfg.BarycenterIterations)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid BARYCENTER_ITER: %v", err))
	} else if cfg.BarycenterIterations <= 0 {
		errs = append(errs, "BARYCENTER_ITER must be positive")
	}

	cfg.DTWWindow, err = getEnvAsIntRequired("DTW_WINDOW", cfg.DTWWindow)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DTW_WINDOW: %v", err))
	}

	// Logging
	cfg.LogLevelName = getEnv("LOG_LEVEL", cfg.LogLevelName)
	cfg.LogLevel = logger.ParseLevel(cfg.LogLevelName) // Use the parser from the logger package
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", cfg.LogFormat))
	if cfg.LogFormat != string(logger.FormatJSON) && cfg.LogFormat != string(logger.FormatConsole) {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT must be %q or %q", logger.FormatJSON, logger.FormatConsole))
	}

	// HTTP
	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)
	if cfg.HTTPAddr == "" {
		errs = append(errs, "HTTP_ADDR must be set")
	}

	// Binance API: klines are public, so empty keys are allowed
	cfg.APIKey = getEnv("BINANCE_API_KEY", cfg.APIKey)
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", cfg.SecretKey)
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", cfg.IsTestnet)

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// ClusterConfig returns the k-means parameters for k clusters under the named metric.
// An empty metric uses ClusterMetric.
func (c *Config) ClusterConfig(k int, metric string) (clustering.Config, error) {
	if metric == "" {
		metric = c.ClusterMetric
	}
	m, err := clustering.MetricByName(metric, clustering.MetricOptions{
		Window:               c.DTWWindow,
		BarycenterIterations: c.BarycenterIterations,
	})
	if err != nil {
		return clustering.Config{}, err
	}
	return clustering.Config{
		K:             k,
		Metric:        m,
		NInit:         c.ClusterNInit,
		MaxIterations: c.ClusterMaxIter,
		Tol:           c.ClusterTol,
	}, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	out := make([]string, 0)
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
