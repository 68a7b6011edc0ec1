package config

import (
	"log/slog"
	"net"
	"net/url"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const (
	DiscoveryStatic = "static"
	DiscoveryFile   = "file"
)

const (
	StrategyRoundRobin    = "round-robin"
	StrategyLeastResponse = "least-response-time"
	StrategyRandom        = "random"
)

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	Environment string `mapstructure:"environment"`
}

type DiscoveryConfig struct {
	Strategy      string   `mapstructure:"strategy"`
	StaticServers []string `mapstructure:"static_servers"`
	FilePath      string   `mapstructure:"file_path"`
}

type HealthCheckConfig struct {
	IntervalMs     int64 `mapstructure:"interval_ms"`
	TimeoutSeconds int64 `mapstructure:"timeout_seconds"`
}

type ForwardConfig struct {
	RequestTimeoutSeconds int64 `mapstructure:"request_timeout_seconds"`
}

type SlownessConfig struct {
	SlowThresholdMs int64   `mapstructure:"slow_threshold_ms"`
	WindowSize      int     `mapstructure:"window_size"`
	WindowTimeMs    int64   `mapstructure:"window_time_ms"`
	ThresholdRatio  float64 `mapstructure:"threshold_ratio"`
	CooldownSeconds int64   `mapstructure:"cooldown_seconds"`
}

type RecordConfig struct {
	InitialLatencyMs int64 `mapstructure:"initial_latency_ms"`
}

type StrategyConfig struct {
	Type string `mapstructure:"type"`
}

type CircuitBreakerConfig struct {
	FailureThreshold    int   `mapstructure:"failure_threshold"`
	ResetTimeoutSeconds int64 `mapstructure:"reset_timeout_seconds"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Discovery      DiscoveryConfig      `mapstructure:"discovery"`
	HealthCheck    HealthCheckConfig    `mapstructure:"health_check"`
	Forward        ForwardConfig        `mapstructure:"forward"`
	Slowness       SlownessConfig       `mapstructure:"slowness"`
	Record         RecordConfig         `mapstructure:"record"`
	Strategy       StrategyConfig       `mapstructure:"strategy"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Logging        LoggingConfig        `mapstructure:"logging"`
}

// Load reads config.yaml (searched under ./config then .), merges in
// AutomaticEnv overrides, validates the result, and returns it. Startup
// configuration errors are the caller's responsibility to treat as fatal.
func Load() (*Config, error) {
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("server.environment", EnvDev)

	viper.SetDefault("discovery.strategy", DiscoveryStatic)
	viper.SetDefault("discovery.static_servers", []string{})
	viper.SetDefault("discovery.file_path", "servers.txt")

	viper.SetDefault("health_check.interval_ms", 10000)
	viper.SetDefault("health_check.timeout_seconds", 3)

	viper.SetDefault("forward.request_timeout_seconds", 5)

	viper.SetDefault("slowness.slow_threshold_ms", 1000)
	viper.SetDefault("slowness.window_size", 5)
	viper.SetDefault("slowness.window_time_ms", 30000)
	viper.SetDefault("slowness.threshold_ratio", 0.6)
	viper.SetDefault("slowness.cooldown_seconds", 60)

	viper.SetDefault("record.initial_latency_ms", 200)

	viper.SetDefault("strategy.type", StrategyRoundRobin)

	viper.SetDefault("circuit_breaker.failure_threshold", 5)
	viper.SetDefault("circuit_breaker.reset_timeout_seconds", 30)

	viper.SetDefault("logging.level", LogLevelInfo)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Warn("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", viper.ConfigFileUsed()))
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if cfg.Discovery.Strategy != DiscoveryStatic && cfg.Discovery.Strategy != DiscoveryFile {
		slog.Warn("unknown discovery strategy, falling back to static", slog.String("requested", cfg.Discovery.Strategy))
		cfg.Discovery.Strategy = DiscoveryStatic
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
				)
			}),
		),
		validation.Field(&c.Discovery,
			validation.Required,
			validation.By(func(value interface{}) error {
				dc, ok := value.(DiscoveryConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a DiscoveryConfig")
				}
				if dc.Strategy == DiscoveryStatic {
					return validation.ValidateStruct(&dc,
						validation.Field(&dc.StaticServers,
							validation.Each(validation.By(validateServerURL)),
						),
					)
				}
				return validation.ValidateStruct(&dc,
					validation.Field(&dc.FilePath, validation.Required),
				)
			}),
		),
		validation.Field(&c.HealthCheck,
			validation.Required,
			validation.By(func(value interface{}) error {
				hc, ok := value.(HealthCheckConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a HealthCheckConfig")
				}
				return validation.ValidateStruct(&hc,
					validation.Field(&hc.IntervalMs, validation.Required, validation.Min(int64(1))),
					validation.Field(&hc.TimeoutSeconds, validation.Required, validation.Min(int64(1))),
				)
			}),
		),
		validation.Field(&c.Slowness,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(SlownessConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a SlownessConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.WindowSize, validation.Required, validation.Min(1)),
					validation.Field(&sc.ThresholdRatio, validation.Min(0.0), validation.Max(1.0)),
				)
			}),
		),
		validation.Field(&c.Strategy,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(StrategyConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a StrategyConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Type,
						validation.Required,
						validation.In(StrategyRoundRobin, StrategyLeastResponse, StrategyRandom),
					),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
	)
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateServerURL(value interface{}) error {
	serverURL, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if serverURL == "" {
		return validation.NewError("validation_empty_url", "server URL cannot be empty")
	}

	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}
