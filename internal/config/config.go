package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "SHOPASSIST"

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `mapstructure:"basic_config"`
	ChatAPI     ChatAPIConfig             `mapstructure:"chat_api"`
	Redis       RedisConfig               `mapstructure:"redis"`
	Databases   map[string]DatabaseConfig `mapstructure:"databases"`
}

type BasicConfig struct {
	ServerAddress string `mapstructure:"server_address"`
	// ImageBaseURL prefixes relative image paths in user image messages.
	ImageBaseURL string `mapstructure:"image_base_url"`

	MinWorkers        int `mapstructure:"min_workers"`
	MaxWorkers        int `mapstructure:"max_workers"`
	QueueSize         int `mapstructure:"queue_size"`
	WorkerIdleTimeout int `mapstructure:"worker_idle_timeout"` // minutes

	SessionIdleTTL int `mapstructure:"session_idle_ttl"` // minutes

	PreviewDir        string `mapstructure:"preview_dir"`
	PreviewTTL        int    `mapstructure:"preview_ttl"`         // minutes
	PreviewCleanEvery int    `mapstructure:"preview_clean_every"` // minutes
	Database          string `mapstructure:"database"`

	RateLimitQPS int `mapstructure:"rate_limit_qps"`
}

type ChatAPIConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RatePerSecond  float64 `mapstructure:"rate_per_second"`
	Burst          int     `mapstructure:"burst"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"db_name"`
	Params   string `mapstructure:"params"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		BasicConfig: BasicConfig{
			ServerAddress:     ":8090",
			MinWorkers:        2,
			MaxWorkers:        16,
			QueueSize:         64,
			WorkerIdleTimeout: 1,
			SessionIdleTTL:    120,
			PreviewDir:        "./data/previews",
			PreviewTTL:        60,
			PreviewCleanEvery: 10,
			Database:          "sqlite3",
			RateLimitQPS:      5,
		},
		ChatAPI: ChatAPIConfig{
			BaseURL:        "https://d11n1w3ly1tcs5.cloudfront.net",
			TimeoutSeconds: 60,
			RatePerSecond:  10,
			Burst:          20,
		},
		Databases: map[string]DatabaseConfig{
			"sqlite3": {DSN: "file:previews.db?cache=shared"},
		},
	}
}

// Load reads configuration from the provided path (defaults to config.json).
// A missing default file is not an error; defaults and SHOPASSIST_* env vars apply.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	v := viper.New()
	setDefaults(v, Default())
	v.SetConfigFile(absPath)
	v.SetConfigType("json")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if explicit {
			return nil, fmt.Errorf("read config %s: %w", absPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if len(cfg.Databases) == 0 {
		cfg.Databases = Default().Databases
	}

	if strings.TrimSpace(cfg.ChatAPI.BaseURL) == "" {
		return nil, fmt.Errorf("chat_api.base_url must be configured")
	}
	cfg.ChatAPI.BaseURL = strings.TrimRight(cfg.ChatAPI.BaseURL, "/")

	if cfg.BasicConfig.PreviewDir != "" && !filepath.IsAbs(cfg.BasicConfig.PreviewDir) {
		cfg.BasicConfig.PreviewDir = filepath.Join(filepath.Dir(absPath), cfg.BasicConfig.PreviewDir)
	}

	return &cfg, nil
}

// setDefaults registers every scalar key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *Config) {
	b := d.BasicConfig
	v.SetDefault("basic_config.server_address", b.ServerAddress)
	v.SetDefault("basic_config.image_base_url", b.ImageBaseURL)
	v.SetDefault("basic_config.min_workers", b.MinWorkers)
	v.SetDefault("basic_config.max_workers", b.MaxWorkers)
	v.SetDefault("basic_config.queue_size", b.QueueSize)
	v.SetDefault("basic_config.worker_idle_timeout", b.WorkerIdleTimeout)
	v.SetDefault("basic_config.session_idle_ttl", b.SessionIdleTTL)
	v.SetDefault("basic_config.preview_dir", b.PreviewDir)
	v.SetDefault("basic_config.preview_ttl", b.PreviewTTL)
	v.SetDefault("basic_config.preview_clean_every", b.PreviewCleanEvery)
	v.SetDefault("basic_config.database", b.Database)
	v.SetDefault("basic_config.rate_limit_qps", b.RateLimitQPS)

	c := d.ChatAPI
	v.SetDefault("chat_api.base_url", c.BaseURL)
	v.SetDefault("chat_api.timeout_seconds", c.TimeoutSeconds)
	v.SetDefault("chat_api.rate_per_second", c.RatePerSecond)
	v.SetDefault("chat_api.burst", c.Burst)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
}
