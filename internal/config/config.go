package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is the complete crawler configuration
type Config struct {
	Site         SiteConfig         `mapstructure:"site"`
	Crawl        CrawlConfig        `mapstructure:"crawl"`
	HTTP         HTTPConfig         `mapstructure:"http"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Schedule     ScheduleConfig     `mapstructure:"schedule"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Transmission TransmissionConfig `mapstructure:"transmission"`
	Export       ExportConfig       `mapstructure:"export"`
}

// SiteConfig describes the listing site
type SiteConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	PagePattern string `mapstructure:"page_pattern"`
	// Layout is "table" (torrent index) or "forum" (thread list). An empty
	// RowsSelector selects the layout's own selector and header rows.
	Layout       string `mapstructure:"layout"`
	RowsSelector string `mapstructure:"rows_selector"`
	HeaderRows   int    `mapstructure:"header_rows"`
}

// CrawlConfig holds the page range and schedule heuristics
type CrawlConfig struct {
	StartPage    int           `mapstructure:"start_page"`
	EndPage      int           `mapstructure:"end_page"`
	SkipStride   int           `mapstructure:"skip_stride"`
	RecentWindow int           `mapstructure:"recent_window"`
	Delay        time.Duration `mapstructure:"delay"`
	Jitter       time.Duration `mapstructure:"jitter"`
}

// HTTPConfig holds request settings
type HTTPConfig struct {
	ProxyURL   string        `mapstructure:"proxy_url"`
	UserAgent  string        `mapstructure:"user_agent"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// DatabaseConfig selects the storage backend
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// RedisConfig enables the seen-key cache when Addr is set
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	SetKey   string `mapstructure:"set_key"`
}

// ScheduleConfig holds the cron trigger of the schedule command
type ScheduleConfig struct {
	Spec     string `mapstructure:"spec"`
	Timezone string `mapstructure:"timezone"`
}

// MetricsConfig exposes Prometheus metrics when Addr is set
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// TransmissionConfig points at a Transmission RPC endpoint
type TransmissionConfig struct {
	URL string `mapstructure:"url"`
}

// ExportConfig holds spreadsheet export settings
type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

// Validate checks the configuration for values the crawler cannot work with
func (c *Config) Validate() error {
	var errs []error

	if c.Site.BaseURL == "" {
		errs = append(errs, errors.New("site.base_url is required"))
	}
	switch c.Site.Layout {
	case "table", "forum":
	default:
		errs = append(errs, fmt.Errorf("site.layout must be table or forum, got %q", c.Site.Layout))
	}
	if c.Site.HeaderRows < 0 {
		errs = append(errs, fmt.Errorf("site.header_rows must be >= 0, got %d", c.Site.HeaderRows))
	}
	if c.Crawl.StartPage < 1 || c.Crawl.EndPage < c.Crawl.StartPage {
		errs = append(errs, fmt.Errorf("invalid page range %d..%d: need 1 <= start <= end", c.Crawl.StartPage, c.Crawl.EndPage))
	}
	if c.Crawl.SkipStride < 0 || c.Crawl.RecentWindow < 0 {
		errs = append(errs, errors.New("crawl.skip_stride and crawl.recent_window must be >= 0"))
	}
	if c.Crawl.Delay < 0 || c.Crawl.Jitter < 0 {
		errs = append(errs, errors.New("crawl.delay and crawl.jitter must be >= 0"))
	}
	if c.HTTP.MaxRetries < 0 || c.HTTP.RetryDelay < 0 {
		errs = append(errs, errors.New("http.max_retries and http.retry_delay must be >= 0"))
	}
	switch c.Database.Driver {
	case "sqlite3", "mysql":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be sqlite3 or mysql, got %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}

	return errors.Join(errs...)
}
