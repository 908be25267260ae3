package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Webhooks  WebhooksConfig  `mapstructure:"webhooks"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type JWTConfig struct {
	Secret         string        `mapstructure:"secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type RateLimitConfig struct {
	// Backend is "sql" (request-log ledger, exact and auditable) or
	// "redis" (counter with TTL, for high request volumes).
	Backend      string        `mapstructure:"backend"`
	Window       time.Duration `mapstructure:"window"`
	DefaultLimit int           `mapstructure:"default_limit"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type WebhooksConfig struct {
	DeliveryTimeout     time.Duration `mapstructure:"delivery_timeout"`
	MaxAttempts         int           `mapstructure:"max_attempts"`
	RetryBaseDelay      time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay       time.Duration `mapstructure:"retry_max_delay"`
	RetryJitterFraction float64       `mapstructure:"retry_jitter_fraction"`
	SchedulerInterval   time.Duration `mapstructure:"scheduler_interval"`
	SchedulerBatchSize  int           `mapstructure:"scheduler_batch_size"`
	StuckAfter          time.Duration `mapstructure:"stuck_after"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("rate_limit.backend", "sql")
	viper.SetDefault("rate_limit.window", time.Hour)
	viper.SetDefault("rate_limit.default_limit", 1000)
	viper.SetDefault("webhooks.delivery_timeout", 10*time.Second)
	viper.SetDefault("webhooks.max_attempts", 5)
	viper.SetDefault("webhooks.retry_base_delay", 30*time.Second)
	viper.SetDefault("webhooks.retry_max_delay", 30*time.Minute)
	viper.SetDefault("webhooks.retry_jitter_fraction", 0.2)
	viper.SetDefault("webhooks.scheduler_interval", 15*time.Second)
	viper.SetDefault("webhooks.scheduler_batch_size", 50)
	viper.SetDefault("webhooks.stuck_after", 5*time.Minute)
	viper.SetDefault("logging.level", "info")
}
