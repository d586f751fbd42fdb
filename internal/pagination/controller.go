// Package pagination walks a closed range of listing pages, deferring pages
// that are unlikely to hold new rows and sweeping back over them once fresh
// rows reappear.
package pagination

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"listing-crawler/internal/logging"
	"listing-crawler/pkg/models"
)

const (
	DefaultDelay  = 4 * time.Second
	DefaultJitter = time.Second
)

// PageFetcher returns the listings of one page, retrying internally.
// Implemented by crawler.Fetcher.
type PageFetcher interface {
	FetchPage(ctx context.Context, page int) (models.PageResult, error)
}

// DuplicateOracle reports whether a key is already stored.
type DuplicateOracle interface {
	Exists(ctx context.Context, key string) (bool, error)
}

// PersistenceSink stores one listing. Inserting an existing key must report
// models.OutcomeDuplicate rather than fail.
type PersistenceSink interface {
	Insert(ctx context.Context, l models.Listing) (models.InsertOutcome, error)
}

// RunLogger keeps the audit trail of runs. Failures are logged and ignored.
type RunLogger interface {
	RecordRunLog(ctx context.Context, s *Summary) (int64, error)
	UpdateRunLog(ctx context.Context, id int64, s *Summary) error
}

// Options tune the schedule and throttling.
type Options struct {
	SkipStride   int
	RecentWindow int
	Delay        time.Duration
	Jitter       time.Duration
}

// DefaultOptions returns the stride, window and delay used in production.
func DefaultOptions() Options {
	return Options{
		SkipStride:   DefaultSkipStride,
		RecentWindow: DefaultRecentWindow,
		Delay:        DefaultDelay,
		Jitter:       DefaultJitter,
	}
}

// Controller runs one crawl at a time over a PageFetcher.
type Controller struct {
	fetcher PageFetcher
	oracle  DuplicateOracle
	sink    PersistenceSink
	runLog  RunLogger
	opts    Options
	logger  zerolog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewController creates a controller. runLog may be nil.
func NewController(fetcher PageFetcher, oracle DuplicateOracle, sink PersistenceSink, runLog RunLogger, opts Options) *Controller {
	return &Controller{
		fetcher: fetcher,
		oracle:  oracle,
		sink:    sink,
		runLog:  runLog,
		opts:    opts,
		logger:  logging.NewLogger("pagination"),
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// Run crawls pages start..end and returns the finalized summary. The error
// is non-nil only for an invalid range or a cancelled context.
func (c *Controller) Run(ctx context.Context, start, end int) (*Summary, error) {
	summary := NewSummary(start, end, c.now())
	logger := c.logger.With().Str("run_id", summary.RunID).Logger()

	params := Params{
		Start:        start,
		End:          end,
		SkipStride:   c.opts.SkipStride,
		RecentWindow: c.opts.RecentWindow,
	}
	if err := params.Validate(); err != nil {
		summary.Finalize(models.StatusFailed, err, c.now())
		return summary, err
	}

	logID := c.recordRunLog(ctx, summary, logger)

	logger.Info().Int("start", start).Int("end", end).Msg("Crawl started")

	state := NewState(params)
	for !state.Done(params) {
		page := state.Cursor
		obs := c.visit(ctx, page, state.Backtracking, summary, logger)

		if err := ctx.Err(); err != nil {
			return c.finish(ctx, logID, summary, models.StatusFailed, err, logger)
		}

		var d Decision
		state, d = Transition(params, state, obs)
		summary.ObserveDecision(d)
		decisionsTotal.WithLabelValues(string(d.Action)).Inc()
		c.logDecision(logger, obs, d, state)

		c.updateRunLog(ctx, logID, summary, logger)

		if state.Done(params) {
			break
		}
		delay := jitteredDelay(c.opts.Delay, c.opts.Jitter)
		logger.Debug().Dur("delay", delay).Msg("Waiting before next page")
		if err := c.sleep(ctx, delay); err != nil {
			return c.finish(ctx, logID, summary, models.StatusFailed, err, logger)
		}
	}

	return c.finish(ctx, logID, summary, models.StatusCompleted, nil, logger)
}

// visit fetches, classifies and persists one page.
func (c *Controller) visit(ctx context.Context, page int, backtracking bool, summary *Summary, logger zerolog.Logger) Observation {
	logger = logger.With().Int("page", page).Logger()
	logger.Info().Bool("backtracking", backtracking).Msg("Fetching page")

	result, err := c.fetcher.FetchPage(ctx, page)
	if err != nil {
		logger.Error().Err(err).Msg("Page fetch failed, moving on")
		summary.ObserveFailedPage()
		pageFailuresTotal.Inc()
		return Observation{Page: page, Failed: true}
	}

	class := Classify(ctx, result.Listings, c.oracle, logger)
	stats := c.persist(ctx, result.Listings, logger)
	summary.ObservePage(stats)
	pagesVisitedTotal.Inc()
	patternsTotal.WithLabelValues(string(class.Pattern)).Inc()

	logger.Info().
		Int("items", stats.Items).
		Int("inserted", stats.Inserted).
		Int("duplicates", stats.Duplicates).
		Str("pattern", string(class.Pattern)).
		Ints("duplicate_indexes", class.DuplicateIndexes).
		Msg("Page saved")

	return Observation{Page: page, Pattern: class.Pattern, Duplicates: stats.Duplicates}
}

func (c *Controller) persist(ctx context.Context, listings []models.Listing, logger zerolog.Logger) PageStats {
	stats := PageStats{Items: len(listings)}
	for _, l := range listings {
		outcome, err := c.sink.Insert(ctx, l)
		if err != nil {
			logger.Error().Err(err).Str("title", l.Title).Msg("Insert failed")
			stats.Failed++
			itemsTotal.WithLabelValues("failed").Inc()
			continue
		}
		switch outcome {
		case models.OutcomeInserted:
			stats.Inserted++
		case models.OutcomeDuplicate:
			stats.Duplicates++
		}
		itemsTotal.WithLabelValues(string(outcome)).Inc()
	}
	return stats
}

func (c *Controller) logDecision(logger zerolog.Logger, obs Observation, d Decision, s State) {
	event := logger.Info()
	if d.Action == ActionAdvance || d.Action == ActionDrain {
		event = logger.Debug()
	}
	event.
		Int("page", obs.Page).
		Str("action", string(d.Action)).
		Int("next", d.Next).
		Str("phase", string(s.Phase())).
		Int("pending", len(s.Skipped))
	if len(d.Queued) > 0 {
		event.Ints("queued", d.Queued)
	}
	event.Msg("Schedule updated")
}

func (c *Controller) finish(ctx context.Context, logID int64, summary *Summary, status models.RunStatus, err error, logger zerolog.Logger) (*Summary, error) {
	summary.Finalize(status, err, c.now())
	runDuration.WithLabelValues(string(status)).Observe(summary.Duration.Seconds())

	// The run log must still be closed when ctx is what ended the run.
	c.updateRunLog(context.WithoutCancel(ctx), logID, summary, logger)

	event := logger.Info()
	if err != nil {
		event = logger.Error().Err(err)
	}
	event.
		Str("status", string(status)).
		Int("pages", summary.PagesVisited).
		Int("failed_pages", summary.FailedPages).
		Int("items", summary.ItemsSeen).
		Int("inserted", summary.Inserted).
		Int("duplicates", summary.Duplicates).
		Int("skips", summary.Skips).
		Int("backtracks", summary.Backtracks).
		Dur("duration", summary.Duration).
		Msg("Crawl finished")

	return summary, err
}

func (c *Controller) recordRunLog(ctx context.Context, summary *Summary, logger zerolog.Logger) int64 {
	if c.runLog == nil {
		return 0
	}
	id, err := c.runLog.RecordRunLog(ctx, summary)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to record run log")
		return 0
	}
	return id
}

func (c *Controller) updateRunLog(ctx context.Context, id int64, summary *Summary, logger zerolog.Logger) {
	if c.runLog == nil || id == 0 {
		return
	}
	if err := c.runLog.UpdateRunLog(ctx, id, summary); err != nil {
		logger.Warn().Err(err).Int64("log_id", id).Msg("Failed to update run log")
	}
}

// jitteredDelay returns base shifted by a uniform offset in [-jitter, jitter],
// never negative.
func jitteredDelay(base, jitter time.Duration) time.Duration {
	d := base
	if jitter > 0 {
		d += time.Duration(rand.Int64N(int64(2*jitter)+1)) - jitter
	}
	return max(d, 0)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
