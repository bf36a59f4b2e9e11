// Package config loads application configuration from config.yaml and the
// environment and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/equity-snapshot/internal/pipeline"
	"github.com/sells-group/equity-snapshot/internal/provider"
	"github.com/sells-group/equity-snapshot/internal/queue"
	"github.com/sells-group/equity-snapshot/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Queue     QueueConfig     `yaml:"queue" mapstructure:"queue"`
	Providers provider.Config `yaml:"providers" mapstructure:"providers"`
	Pipeline  pipeline.Config `yaml:"pipeline" mapstructure:"pipeline"`
	Resolver  ResolverConfig  `yaml:"resolver" mapstructure:"resolver"`
	Watch     WatchConfig     `yaml:"watch" mapstructure:"watch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the persistence backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	Path        string           `yaml:"path" mapstructure:"path"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// QueueConfig configures the job queue backend and worker pools.
type QueueConfig struct {
	Driver  string            `yaml:"driver" mapstructure:"driver"`
	Redis   queue.RedisConfig `yaml:"redis" mapstructure:"redis"`
	Workers WorkersConfig     `yaml:"workers" mapstructure:"workers"`
}

// WorkersConfig sets the per-stage worker pool sizes.
type WorkersConfig struct {
	Ingest     int `yaml:"ingest" mapstructure:"ingest"`
	Normalize  int `yaml:"normalize" mapstructure:"normalize"`
	Embed      int `yaml:"embed" mapstructure:"embed"`
	Synthesize int `yaml:"synthesize" mapstructure:"synthesize"`
}

// ResolverConfig configures symbol resolution.
type ResolverConfig struct {
	AliasesPath string `yaml:"aliases_path" mapstructure:"aliases_path"`
}

// WatchConfig configures the scheduled refresh loop.
type WatchConfig struct {
	Schedule string   `yaml:"schedule" mapstructure:"schedule"`
	Symbols  []string `yaml:"symbols" mapstructure:"symbols"`
}

// ServerConfig configures the read-only HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("EQUITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "equity-snapshot.db")
	v.SetDefault("queue.driver", "memory")
	v.SetDefault("queue.workers.ingest", 2)
	v.SetDefault("queue.workers.normalize", 2)
	v.SetDefault("queue.workers.embed", 2)
	v.SetDefault("queue.workers.synthesize", 1)
	v.SetDefault("providers.anthropic_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("providers.embedding_model", "text-embedding-3-small")
	v.SetDefault("pipeline.news_window_days", 7)
	v.SetDefault("pipeline.filings_window_days", 90)
	v.SetDefault("pipeline.doc_limit", 25)
	v.SetDefault("pipeline.filings_limit", 10)
	v.SetDefault("pipeline.summary_docs", 3)
	v.SetDefault("pipeline.embed_docs", 16)
	v.SetDefault("pipeline.metrics_cap", 8)
	v.SetDefault("pipeline.horizon", "3m")
	v.SetDefault("watch.schedule", "0 7 * * 1-5")
	v.SetDefault("server.port", 8080)
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

// InitLogger configures the global zap logger from LogConfig.
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
