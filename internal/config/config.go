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
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	API        APIConfig        `yaml:"api" mapstructure:"api"`
	Queue      QueueConfig      `yaml:"queue" mapstructure:"queue"`
	Network    NetworkConfig    `yaml:"network" mapstructure:"network"`
	Resilience ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
	Aggregate  AggregateConfig  `yaml:"aggregate" mapstructure:"aggregate"`
	TheirStack TheirStackConfig `yaml:"theirstack" mapstructure:"theirstack"`
	Firecrawl  FirecrawlConfig  `yaml:"firecrawl" mapstructure:"firecrawl"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the durable key-value backend used by the offline queue.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite, postgres, file, memory
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"`
	Dir         string `yaml:"dir" mapstructure:"dir"`
}

// APIConfig configures the resilient API client.
type APIConfig struct {
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	Token        string  `yaml:"token" mapstructure:"token"`
	TimeoutMs    int     `yaml:"timeout_ms" mapstructure:"timeout_ms"`
	Retries      int     `yaml:"retries" mapstructure:"retries"`
	RetryDelayMs int     `yaml:"retry_delay_ms" mapstructure:"retry_delay_ms"`
	RateLimitRPS float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
}

// QueueConfig configures the offline request queue.
type QueueConfig struct {
	Key               string `yaml:"key" mapstructure:"key"`
	MaxRetries        int    `yaml:"max_retries" mapstructure:"max_retries"`
	FlushIntervalSecs int    `yaml:"flush_interval_secs" mapstructure:"flush_interval_secs"`
}

// NetworkConfig configures connectivity probing.
type NetworkConfig struct {
	ProbeURL         string `yaml:"probe_url" mapstructure:"probe_url"`
	ProbeIntervalSec int    `yaml:"probe_interval_secs" mapstructure:"probe_interval_secs"`
	ProbeTimeoutMs   int    `yaml:"probe_timeout_ms" mapstructure:"probe_timeout_ms"`
}

// ResilienceConfig holds circuit breaker tuning for upstream job sources.
type ResilienceConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// AggregateConfig configures the job aggregation function.
type AggregateConfig struct {
	Sources           []string `yaml:"sources" mapstructure:"sources"`
	SourceTimeoutSecs int      `yaml:"source_timeout_secs" mapstructure:"source_timeout_secs"`
	PageSize          int      `yaml:"page_size" mapstructure:"page_size"`
}

// TheirStackConfig holds TheirStack job search API settings.
type TheirStackConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Limit   int    `yaml:"limit" mapstructure:"limit"`
}

// FirecrawlConfig holds Firecrawl API settings.
type FirecrawlConfig struct {
	Key       string   `yaml:"key" mapstructure:"key"`
	BaseURL   string   `yaml:"base_url" mapstructure:"base_url"`
	BoardURLs []string `yaml:"board_urls" mapstructure:"board_urls"`
}

// MonitoringConfig holds alert thresholds and delivery settings.
type MonitoringConfig struct {
	QueueDepthThreshold  int    `yaml:"queue_depth_threshold" mapstructure:"queue_depth_threshold"`
	QueueMaxAgeMins      int    `yaml:"queue_max_age_mins" mapstructure:"queue_max_age_mins"`
	OfflineAlertAfterSec int    `yaml:"offline_alert_after_secs" mapstructure:"offline_alert_after_secs"`
	CheckIntervalSecs    int    `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	WebhookURL           string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("HIRELY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "hirely.db")
	v.SetDefault("store.dir", ".hirely")
	v.SetDefault("api.timeout_ms", 30000)
	v.SetDefault("api.retries", 3)
	v.SetDefault("api.retry_delay_ms", 1000)
	v.SetDefault("queue.key", "hirely_offline_queue")
	v.SetDefault("queue.max_retries", 3)
	v.SetDefault("queue.flush_interval_secs", 60)
	v.SetDefault("network.probe_interval_secs", 5)
	v.SetDefault("network.probe_timeout_ms", 3000)
	v.SetDefault("resilience.failure_threshold", 5)
	v.SetDefault("resilience.reset_timeout_secs", 30)
	v.SetDefault("aggregate.sources", []string{"theirstack", "firecrawl"})
	v.SetDefault("aggregate.source_timeout_secs", 10)
	v.SetDefault("aggregate.page_size", 10)
	v.SetDefault("theirstack.base_url", "https://api.theirstack.com/v1")
	v.SetDefault("theirstack.limit", 10)
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v1")
	v.SetDefault("monitoring.queue_depth_threshold", 50)
	v.SetDefault("monitoring.queue_max_age_mins", 60)
	v.SetDefault("monitoring.offline_alert_after_secs", 300)
	v.SetDefault("monitoring.check_interval_secs", 60)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks the fields required by the given mode ("serve" or "client").
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Aggregate.PageSize <= 0 {
			problems = append(problems, "aggregate.page_size must be > 0")
		}
		if c.Aggregate.SourceTimeoutSecs <= 0 {
			problems = append(problems, "aggregate.source_timeout_secs must be > 0")
		}
	case "client":
		switch c.Store.Driver {
		case "sqlite", "file", "memory":
		case "postgres":
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required for postgres")
			}
		default:
			problems = append(problems, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
		}
		if c.API.Retries < 0 {
			problems = append(problems, "api.retries must be >= 0")
		}
		if c.API.TimeoutMs <= 0 {
			problems = append(problems, "api.timeout_ms must be > 0")
		}
		if c.Queue.Key == "" {
			problems = append(problems, "queue.key is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
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
