// Package config binds the process configuration surface: env vars
// prefixed NICE_, an optional config.yaml, and defaults, layered with
// viper so env vars always win over the config file.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Client      ClientConfig      `yaml:"client" mapstructure:"client"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Redis       RedisConfig       `yaml:"redis" mapstructure:"redis"`
	Aggregation AggregationConfig `yaml:"aggregation" mapstructure:"aggregation"`
	Seed        SeedConfig        `yaml:"seed" mapstructure:"seed"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "postgres" or "sqlite"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ClientConfig configures the `nice client` search pipeline, bound to
// explicitly named NICE_* env vars.
type ClientConfig struct {
	Mode          string `yaml:"mode" mapstructure:"mode"` // "detailed" or "niceonly"
	Username      string `yaml:"username" mapstructure:"username"`
	APIBase       string `yaml:"api_base" mapstructure:"api_base"`
	Repeat        bool   `yaml:"repeat" mapstructure:"repeat"`
	Threads       int    `yaml:"threads" mapstructure:"threads"`
	Benchmark     string `yaml:"benchmark" mapstructure:"benchmark"` // "", "default", "large", "extra-large", "hi-base"
	GPU           bool   `yaml:"gpu" mapstructure:"gpu"`
	GPUDevice     int    `yaml:"gpu_device" mapstructure:"gpu_device"`
	Validate      bool   `yaml:"validate" mapstructure:"validate"`
	NoProgress    bool   `yaml:"no_progress" mapstructure:"no_progress"`
	APIMaxRetries int    `yaml:"api_max_retries" mapstructure:"api_max_retries"`
}

// ServerConfig configures the coordination service's HTTP listener.
type ServerConfig struct {
	Port            int `yaml:"port" mapstructure:"port"`
	RateLimitPerSec int `yaml:"rate_limit_per_sec" mapstructure:"rate_limit_per_sec"`
	RateLimitBurst  int `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
}

// RedisConfig configures the notable-number pub/sub fanout backing
// GET /ws/stats. The niceonly claim queue is held in memory and does
// not use Redis.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// AggregationConfig configures the periodic rollup job.
type AggregationConfig struct {
	CronSchedule string `yaml:"cron_schedule" mapstructure:"cron_schedule"`
}

// SeedConfig configures default chunk/field sizing for `nice seed`.
type SeedConfig struct {
	ChunkSize string `yaml:"chunk_size" mapstructure:"chunk_size"` // decimal string, arbitrary precision
	FieldSize string `yaml:"field_size" mapstructure:"field_size"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment, with env vars
// under the NICE_ prefix always taking precedence over config.yaml.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("NICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)

	v.SetDefault("client.mode", "niceonly")
	v.SetDefault("client.api_base", "https://nicenumbers.net/api")
	v.SetDefault("client.repeat", false)
	v.SetDefault("client.threads", 0) // 0 = runtime.NumCPU()
	v.SetDefault("client.gpu", false)
	v.SetDefault("client.gpu_device", 0)
	v.SetDefault("client.validate", false)
	v.SetDefault("client.no_progress", false)
	v.SetDefault("client.api_max_retries", 10)
	// Client settings are also read from the short names NICE_MODE,
	// NICE_THREADS, ... alongside the automatic NICE_CLIENT_* names.
	for _, key := range []string{"mode", "username", "api_base", "repeat", "threads", "benchmark", "gpu", "gpu_device", "validate", "no_progress", "api_max_retries"} {
		if err := v.BindEnv("client."+key, "NICE_"+strings.ToUpper(key)); err != nil {
			return nil, eris.Wrap(err, "config: bind env")
		}
	}

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit_per_sec", 20)
	v.SetDefault("server.rate_limit_burst", 40)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("aggregation.cron_schedule", "*/5 * * * *")

	v.SetDefault("seed.chunk_size", "1000000000000")
	v.SetDefault("seed.field_size", "1000000000")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
