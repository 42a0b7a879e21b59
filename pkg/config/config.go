package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides, e.g. FINFORECAST_PROVIDER.
const EnvPrefix = "FINFORECAST"

type Config struct {
	Environment string `yaml:"environment" default:"development"`

	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
		Digest struct {
			Enabled   bool          `yaml:"enabled"`
			Interval  time.Duration `yaml:"interval" default:"30s"`
			MaxUnique int           `yaml:"max_unique" default:"100"`
		} `yaml:"digest"`
	} `yaml:"log"`

	Server struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		RateLimit       struct {
			Capacity     float64 `yaml:"capacity" default:"20"`
			RefillPerSec float64 `yaml:"refill_per_sec" default:"2"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`

	Provider struct {
		Type  string `yaml:"type" default:"yahoo"`
		Yahoo struct {
			BaseURL   string        `yaml:"base_url" default:"https://query1.finance.yahoo.com"`
			Timeout   time.Duration `yaml:"timeout" default:"30s"`
			UserAgent string        `yaml:"user_agent" default:"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15"`
		} `yaml:"yahoo"`
	} `yaml:"provider"`

	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"finforecast"`
		Table            string        `yaml:"table" default:"daily_prices"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`

	Kafka struct {
		Enabled bool     `yaml:"enabled"`
		Brokers []string `yaml:"brokers"`
		Topics  struct {
			Requests  string `yaml:"requests" default:"finforecast.analysis.requests"`
			Reports   string `yaml:"reports" default:"finforecast.analysis.reports"`
			DLQ       string `yaml:"dlq" default:"finforecast.analysis.dlq"`
			LogDigest string `yaml:"log_digest" default:"finforecast.logs"`
		} `yaml:"topics"`
		Compression string `yaml:"compression" default:"gzip"`
		Producer    struct {
			RequiredAcks int           `yaml:"required_acks" default:"-1"`
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			BatchTimeout time.Duration `yaml:"batch_timeout" default:"100ms"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"finforecast"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"16"`
			RetryMax   int           `yaml:"retry_max" default:"2"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`

	Cache struct {
		TTL        time.Duration `yaml:"ttl" default:"15m"`
		MemorySize int           `yaml:"memory_size" default:"256"`
		Redis      struct {
			Enabled  bool   `yaml:"enabled"`
			Host     string `yaml:"host" default:"localhost"`
			Port     int    `yaml:"port" default:"6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"finforecast"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Analysis struct {
		RiskFreeRate float64 `yaml:"risk_free_rate" default:"0.02"`
		Significance float64 `yaml:"significance" default:"0.05"`
		WindowSize   int     `yaml:"window_size" default:"60"`
		TrainRatio   float64 `yaml:"train_ratio" default:"0.8"`
	} `yaml:"analysis"`

	Forecast struct {
		Backend         string        `yaml:"backend" default:"local"`
		WeightsPath     string        `yaml:"weights_path"`
		ModelServiceURL string        `yaml:"model_service_url"`
		Timeout         time.Duration `yaml:"timeout" default:"30s"`
	} `yaml:"forecast"`

	Report struct {
		OutputDir string `yaml:"output_dir" default:"reports"`
	} `yaml:"report"`

	Schedule struct {
		Enabled   bool     `yaml:"enabled"`
		Cron      string   `yaml:"cron" default:"0 30 22 * * 1-5"`
		Watchlist []string `yaml:"watchlist"`
		Lookback  int      `yaml:"lookback_days" default:"365"`
	} `yaml:"schedule"`
}

// envOverrides lists the settings that deployments commonly override.
type envOverrides struct {
	Environment     string   `envconfig:"ENVIRONMENT"`
	LogLevel        string   `envconfig:"LOG_LEVEL"`
	Port            int      `envconfig:"PORT"`
	Provider        string   `envconfig:"PROVIDER"`
	KafkaBrokers    []string `envconfig:"KAFKA_BROKERS"`
	ClickHouseHost  string   `envconfig:"CLICKHOUSE_HOST"`
	ClickHousePass  string   `envconfig:"CLICKHOUSE_PASSWORD"`
	RedisHost       string   `envconfig:"REDIS_HOST"`
	RedisPassword   string   `envconfig:"REDIS_PASSWORD"`
	ModelServiceURL string   `envconfig:"MODEL_SERVICE_URL"`
	WeightsPath     string   `envconfig:"WEIGHTS_PATH"`
	Watchlist       []string `envconfig:"WATCHLIST"`
}

// Default returns a configuration with every default applied and no file loaded.
func Default() *Config {
	var c Config
	// only fails on malformed default tags
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	c := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads the YAML file, applies FINFORECAST_* overrides and validates again.
// A missing file is tolerated so the binary can run from environment alone.
func LoadWithEnv(path string) (*Config, error) {
	var c *Config
	if _, err := os.Stat(path); err == nil {
		if c, err = Load(path); err != nil {
			return nil, err
		}
	} else {
		c = Default()
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("env config: %w", err)
	}

	if env.Environment != "" {
		c.Environment = env.Environment
	}
	if env.LogLevel != "" {
		c.Log.Level = env.LogLevel
	}
	if env.Port != 0 {
		c.Server.Port = env.Port
	}
	if env.Provider != "" {
		c.Provider.Type = env.Provider
	}
	if len(env.KafkaBrokers) > 0 {
		c.Kafka.Brokers = env.KafkaBrokers
		c.Kafka.Enabled = true
	}
	if env.ClickHouseHost != "" {
		c.ClickHouse.Host = env.ClickHouseHost
	}
	if env.ClickHousePass != "" {
		c.ClickHouse.Password = env.ClickHousePass
	}
	if env.RedisHost != "" {
		c.Cache.Redis.Host = env.RedisHost
		c.Cache.Redis.Enabled = true
	}
	if env.RedisPassword != "" {
		c.Cache.Redis.Password = env.RedisPassword
	}
	if env.ModelServiceURL != "" {
		c.Forecast.ModelServiceURL = env.ModelServiceURL
	}
	if env.WeightsPath != "" {
		c.Forecast.WeightsPath = env.WeightsPath
	}
	if len(env.Watchlist) > 0 {
		c.Schedule.Watchlist = env.Watchlist
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Provider.Type {
	case "yahoo", "clickhouse":
	default:
		return fmt.Errorf("provider.type must be 'yahoo' or 'clickhouse', got '%s'", c.Provider.Type)
	}
	if c.Provider.Type == "yahoo" && !strings.HasPrefix(c.Provider.Yahoo.BaseURL, "http") {
		return fmt.Errorf("provider.yahoo.base_url must be an http(s) url")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Analysis.WindowSize < 1 {
		return fmt.Errorf("analysis.window_size must be positive, got %d", c.Analysis.WindowSize)
	}
	if c.Analysis.Significance <= 0 || c.Analysis.Significance >= 1 {
		return fmt.Errorf("analysis.significance must be in (0,1), got %v", c.Analysis.Significance)
	}
	if c.Analysis.TrainRatio <= 0 || c.Analysis.TrainRatio >= 1 {
		return fmt.Errorf("analysis.train_ratio must be in (0,1), got %v", c.Analysis.TrainRatio)
	}
	switch c.Forecast.Backend {
	case "local":
	case "http":
		if c.Forecast.ModelServiceURL == "" {
			return fmt.Errorf("forecast.model_service_url is required for the http backend")
		}
	default:
		return fmt.Errorf("forecast.backend must be 'local' or 'http', got '%s'", c.Forecast.Backend)
	}
	if c.Schedule.Enabled && len(c.Schedule.Watchlist) == 0 {
		return fmt.Errorf("schedule.watchlist cannot be empty when the schedule is enabled")
	}
	return nil
}
