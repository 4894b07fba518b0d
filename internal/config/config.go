package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Manus     ManusConfig     `yaml:"manus" mapstructure:"manus"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini    GeminiConfig    `yaml:"gemini" mapstructure:"gemini"`
	Fallback  FallbackConfig  `yaml:"fallback" mapstructure:"fallback"`
	Redis     RedisConfig     `yaml:"redis" mapstructure:"redis"`
	Poll      PollConfig      `yaml:"poll" mapstructure:"poll"`
	Sweep     SweepConfig     `yaml:"sweep" mapstructure:"sweep"`
	Monitor   MonitorConfig   `yaml:"monitor" mapstructure:"monitor"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
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

// ManusConfig holds the external research agent settings. Key may be empty
// here and resolved later from the settings table.
type ManusConfig struct {
	Key            string  `yaml:"key" mapstructure:"key"`
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	AgentProfile   string  `yaml:"agent_profile" mapstructure:"agent_profile"`
	TaskMode       string  `yaml:"task_mode" mapstructure:"task_mode"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	SubmitAttempts int     `yaml:"submit_attempts" mapstructure:"submit_attempts"`
	TaskTTLHours   int     `yaml:"task_ttl_hours" mapstructure:"task_ttl_hours"`
}

// TaskTTL returns how long a task handle stays eligible for forced resync.
func (c ManusConfig) TaskTTL() time.Duration {
	return time.Duration(c.TaskTTLHours) * time.Hour
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// FallbackConfig orders the synchronous fallback backends and sets when a
// failing provider is skipped.
type FallbackConfig struct {
	Order               []string `yaml:"order" mapstructure:"order"`
	BreakerThreshold    int      `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int      `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// RedisConfig enables the per-signal request lock when Addr is set.
type RedisConfig struct {
	Addr        string `yaml:"addr" mapstructure:"addr"`
	Password    string `yaml:"password" mapstructure:"password"`
	DB          int    `yaml:"db" mapstructure:"db"`
	LockTTLSecs int    `yaml:"lock_ttl_secs" mapstructure:"lock_ttl_secs"`
}

// PollConfig configures the status polling loop.
type PollConfig struct {
	IntervalSecs int `yaml:"interval_secs" mapstructure:"interval_secs"`
	MaxChecks    int `yaml:"max_checks" mapstructure:"max_checks"`
}

// SweepConfig configures the background sweep over in-flight tasks.
type SweepConfig struct {
	IntervalSecs int `yaml:"interval_secs" mapstructure:"interval_secs"`
	Concurrency  int `yaml:"concurrency" mapstructure:"concurrency"`
}

// MonitorConfig configures the workflow health checks. Checks are off when
// CheckIntervalSecs is zero; alerts are only logged when WebhookURL is empty.
type MonitorConfig struct {
	CheckIntervalSecs int    `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	StaleTaskHours    int    `yaml:"stale_task_hours" mapstructure:"stale_task_hours"`
	WebhookURL        string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GOURMET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Every key needs one, even if empty, or AutomaticEnv
	// cannot see it during Unmarshal.
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 0)
	v.SetDefault("store.min_conns", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173", "http://localhost:8080"})
	v.SetDefault("manus.key", "")
	v.SetDefault("manus.base_url", "https://api.manus.ai/v1")
	v.SetDefault("manus.agent_profile", "manus-1.6")
	v.SetDefault("manus.task_mode", "agent")
	v.SetDefault("manus.rate_limit_rps", 2.0)
	v.SetDefault("manus.submit_attempts", 2)
	v.SetDefault("manus.task_ttl_hours", 720)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("gemini.key", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.base_url", "")
	v.SetDefault("fallback.order", []string{"anthropic", "gemini"})
	v.SetDefault("fallback.breaker_threshold", 5)
	v.SetDefault("fallback.breaker_cooldown_secs", 60)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl_secs", 120)
	v.SetDefault("poll.interval_secs", 30)
	v.SetDefault("poll.max_checks", 0)
	v.SetDefault("sweep.interval_secs", 0)
	v.SetDefault("sweep.concurrency", 4)
	v.SetDefault("monitor.check_interval_secs", 0)
	v.SetDefault("monitor.stale_task_hours", 6)
	v.SetDefault("monitor.webhook_url", "")

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

// Validate checks the settings required by a command mode: "enrichment"
// (request/status/watch/mcp), "serve", or "sweep".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	case "sqlite":
	default:
		errs = append(errs, "store.driver must be postgres or sqlite")
	}

	for _, name := range c.Fallback.Order {
		if name != "anthropic" && name != "gemini" {
			errs = append(errs, "fallback.order entries must be anthropic or gemini, got "+name)
		}
	}

	switch mode {
	case "enrichment":
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Sweep.IntervalSecs < 0 {
			errs = append(errs, "sweep.interval_secs must be >= 0")
		}
		if c.Monitor.CheckIntervalSecs > 0 && c.Monitor.StaleTaskHours <= 0 {
			errs = append(errs, "monitor.stale_task_hours must be > 0 when checks are enabled")
		}
	case "sweep":
		if c.Sweep.Concurrency <= 0 {
			errs = append(errs, "sweep.concurrency must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Poll.IntervalSecs <= 0 {
		errs = append(errs, "poll.interval_secs must be > 0")
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
