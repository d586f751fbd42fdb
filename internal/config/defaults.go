package config

import "time"

// Default values
const (
	// Site defaults
	DefaultBaseURL     = "https://u3c3.u3c3u3c3u3c3.com"
	DefaultPagePattern = "/?p={page}"
	DefaultLayout      = "table"

	// Crawl defaults
	DefaultStartPage    = 1
	DefaultEndPage      = 100
	DefaultSkipStride   = 9
	DefaultRecentWindow = 9
	DefaultDelay        = 4 * time.Second
	DefaultJitter       = 1 * time.Second

	// HTTP defaults
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 4 * time.Second

	// Database defaults
	DefaultDriver = "sqlite3"
	DefaultDSN    = "./listings.db"

	// Redis defaults
	DefaultRedisSetKey = "crawler:listing-keys"

	// Schedule defaults: every day at 18:00 China time
	DefaultScheduleSpec     = "0 18 * * *"
	DefaultScheduleTimezone = "Asia/Shanghai"

	// Logging defaults
	DefaultLogLevel = "info"

	// Export defaults
	DefaultExportDir = "."

	EnvPrefix = "CRAWLER"
)
