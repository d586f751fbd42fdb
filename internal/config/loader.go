package config

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load loads configuration from .env, config file, environment and defaults
// using the global viper instance, so that bound CLI flags take effect
func Load() (*Config, error) {
	return LoadWithViper(viper.GetViper())
}

// LoadWithViper loads configuration into the given viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	// A missing .env is fine; the environment may already be populated
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	setDefaults(v)

	if v.ConfigFileUsed() == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	// Environment variables (CRAWLER_*)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("http.proxy_url", EnvPrefix+"_HTTP_PROXY_URL", "PROXY_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	v.SetDefault("site.base_url", DefaultBaseURL)
	v.SetDefault("site.page_pattern", DefaultPagePattern)
	v.SetDefault("site.layout", DefaultLayout)
	v.SetDefault("site.rows_selector", "")
	v.SetDefault("site.header_rows", 0)

	v.SetDefault("crawl.start_page", DefaultStartPage)
	v.SetDefault("crawl.end_page", DefaultEndPage)
	v.SetDefault("crawl.skip_stride", DefaultSkipStride)
	v.SetDefault("crawl.recent_window", DefaultRecentWindow)
	v.SetDefault("crawl.delay", DefaultDelay)
	v.SetDefault("crawl.jitter", DefaultJitter)

	v.SetDefault("http.proxy_url", "")
	v.SetDefault("http.user_agent", "")
	v.SetDefault("http.timeout", DefaultTimeout)
	v.SetDefault("http.max_retries", DefaultMaxRetries)
	v.SetDefault("http.retry_delay", DefaultRetryDelay)

	v.SetDefault("database.driver", DefaultDriver)
	v.SetDefault("database.dsn", DefaultDSN)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.set_key", DefaultRedisSetKey)

	v.SetDefault("schedule.spec", DefaultScheduleSpec)
	v.SetDefault("schedule.timezone", DefaultScheduleTimezone)

	v.SetDefault("metrics.addr", "")

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.pretty", true)

	v.SetDefault("transmission.url", "")

	v.SetDefault("export.dir", DefaultExportDir)
}
