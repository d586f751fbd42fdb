// Package app wires storage, fetching and the pagination controller into one
// crawl execution.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"listing-crawler/internal/config"
	"listing-crawler/internal/crawler"
	"listing-crawler/internal/db"
	"listing-crawler/internal/dedup"
	"listing-crawler/internal/logging"
	"listing-crawler/internal/pagination"
	"listing-crawler/pkg/models"
)

// Task runs one crawl per Execute call. Each call opens and closes its own
// storage, so executions share no state.
type Task struct {
	cfg    *config.Config
	logger zerolog.Logger
}

// NewTask creates a task for the given configuration
func NewTask(cfg *config.Config) *Task {
	return &Task{cfg: cfg, logger: logging.NewLogger("task")}
}

// Execute crawls the configured page range. A storage or fetcher setup
// failure fails the run before any page is visited.
func (t *Task) Execute(ctx context.Context) (*pagination.Summary, error) {
	cfg := t.cfg
	start, end := cfg.Crawl.StartPage, cfg.Crawl.EndPage

	store, err := db.NewDBService(ctx, db.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
	if err != nil {
		return t.failed(start, end, fmt.Errorf("open storage: %w", err))
	}
	defer func() {
		store.Close()
		t.logger.Debug().Msg("Database connection closed")
	}()

	var (
		oracle pagination.DuplicateOracle = store
		sink   pagination.PersistenceSink = store
	)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		setKey := dedup.ScopedSetKey(cfg.Redis.SetKey, cfg.Database.Driver+":"+cfg.Database.DSN)
		cache := dedup.NewRedisCache(client, setKey, store)
		if total, _, err := store.GetListingCount(ctx); err == nil && total == 0 {
			if err := cache.Reset(ctx); err != nil {
				t.logger.Warn().Err(err).Msg("Failed to reset Redis seen-key cache")
			}
		}
		oracle, sink = cache, cache
		t.logger.Info().Str("addr", cfg.Redis.Addr).Str("set", setKey).Msg("Using Redis seen-key cache")
	}

	fetcher, err := crawler.NewFetcher(crawler.Config{
		BaseURL:      cfg.Site.BaseURL,
		PagePattern:  cfg.Site.PagePattern,
		Layout:       cfg.Site.Layout,
		RowsSelector: cfg.Site.RowsSelector,
		HeaderRows:   cfg.Site.HeaderRows,
		ProxyURL:     cfg.HTTP.ProxyURL,
		UserAgent:    cfg.HTTP.UserAgent,
		Timeout:      cfg.HTTP.Timeout,
		MaxRetries:   cfg.HTTP.MaxRetries,
		RetryDelay:   cfg.HTTP.RetryDelay,
	})
	if err != nil {
		return t.failed(start, end, fmt.Errorf("create fetcher: %w", err))
	}

	controller := pagination.NewController(fetcher, oracle, sink, RunLog{Store: store}, pagination.Options{
		SkipStride:   cfg.Crawl.SkipStride,
		RecentWindow: cfg.Crawl.RecentWindow,
		Delay:        cfg.Crawl.Delay,
		Jitter:       cfg.Crawl.Jitter,
	})
	return controller.Run(ctx, start, end)
}

func (t *Task) failed(start, end int, err error) (*pagination.Summary, error) {
	summary := pagination.NewSummary(start, end, time.Now())
	summary.Finalize(models.StatusFailed, err, time.Now())
	t.logger.Error().Err(err).Str("run_id", summary.RunID).Msg("Crawl could not start")
	return summary, err
}

// RunLog stores controller summaries as execution log rows
type RunLog struct {
	Store *db.DBService
}

func (r RunLog) RecordRunLog(ctx context.Context, s *pagination.Summary) (int64, error) {
	return r.Store.RecordRunLog(ctx, ToRunLog(s))
}

func (r RunLog) UpdateRunLog(ctx context.Context, id int64, s *pagination.Summary) error {
	return r.Store.UpdateRunLog(ctx, id, ToRunLog(s))
}

// ToRunLog converts a summary to its persisted form. End time and duration
// are only set once the summary is finalized.
func ToRunLog(s *pagination.Summary) models.RunLog {
	rl := models.RunLog{
		StartTime:      s.StartedAt,
		TotalPages:     s.PagesVisited,
		TotalItems:     s.ItemsSeen,
		NewItems:       s.Inserted,
		DuplicateItems: s.Duplicates,
		Status:         s.Status,
		ErrorMessage:   s.ErrorMessage(),
	}
	if !s.FinishedAt.IsZero() {
		end := s.FinishedAt
		rl.EndTime = &end
		rl.DurationMs = s.Duration.Milliseconds()
	}
	return rl
}
