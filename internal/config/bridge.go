// Package config loads the replicator's configuration from environment
// variables and an optional config file, and validates it before the
// replication engine starts.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Bridge is the full configuration for the replication engine: where Redis
// lives, which environment name salts shared row ids, and how much
// parallelism the work queue and full dump use.
type Bridge struct {
	RedisURL      string
	Environment   string
	Concurrency   int
	QueueCapacity int
	DumpChunkSize int
	FlushEvery    int
	LogLevel      string
	LogFormat     string
}

// Default returns the configuration used when neither a config file nor
// environment overrides are present.
func Default() Bridge {
	return Bridge{
		RedisURL:      "redis://localhost:6379/0",
		Environment:   "icinga2",
		Concurrency:   4,
		QueueCapacity: 25000,
		DumpChunkSize: 500,
		FlushEvery:    100,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

// Load reads configuration from an optional file (YAML/JSON/TOML, resolved
// by viper) layered under environment variables prefixed REDISBRIDGE_, and
// falls back to Default() for anything unset.
func Load(configFile string) (Bridge, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("REDISBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("redis_url", cfg.RedisURL)
	v.SetDefault("environment", cfg.Environment)
	v.SetDefault("concurrency", cfg.Concurrency)
	v.SetDefault("queue_capacity", cfg.QueueCapacity)
	v.SetDefault("dump_chunk_size", cfg.DumpChunkSize)
	v.SetDefault("flush_every", cfg.FlushEvery)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return cfg, err
		}
	}

	cfg.RedisURL = v.GetString("redis_url")
	cfg.Environment = v.GetString("environment")
	cfg.Concurrency = v.GetInt("concurrency")
	cfg.QueueCapacity = v.GetInt("queue_capacity")
	cfg.DumpChunkSize = v.GetInt("dump_chunk_size")
	cfg.FlushEvery = v.GetInt("flush_every")
	cfg.LogLevel = v.GetString("log_level")
	cfg.LogFormat = v.GetString("log_format")

	return cfg, cfg.Validate()
}

// Validate rejects configurations the replication engine cannot run with.
func (b Bridge) Validate() error {
	validator := NewValidator()
	validator.RequireString("redis_url", b.RedisURL)
	validator.RequireString("environment", b.Environment)
	validator.RequirePositiveInt("concurrency", b.Concurrency)
	validator.RequirePositiveInt("queue_capacity", b.QueueCapacity)
	validator.RequirePositiveInt("dump_chunk_size", b.DumpChunkSize)
	validator.RequirePositiveInt("flush_every", b.FlushEvery)
	validator.RequireOneOf("log_format", b.LogFormat, []string{"text", "json"})
	return validator.Validate()
}

// RedisDialTimeout bounds the initial connection attempt made at startup.
const RedisDialTimeout = 5 * time.Second
