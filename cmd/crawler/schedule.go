package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"listing-crawler/internal/app"
)

var runNow bool

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Crawl on a cron schedule until interrupted",
	RunE:  runSchedule,
}

func init() {
	scheduleCmd.Flags().String("spec", "", "Cron expression (default from config, 0 18 * * *)")
	scheduleCmd.Flags().String("timezone", "", "Time zone of the cron expression (default from config, Asia/Shanghai)")
	scheduleCmd.Flags().BoolVar(&runNow, "now", false, "Also run once immediately")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	spec := cfg.Schedule.Spec
	if s, _ := cmd.Flags().GetString("spec"); s != "" {
		spec = s
	}
	timezone := cfg.Schedule.Timezone
	if tz, _ := cmd.Flags().GetString("timezone"); tz != "" {
		timezone = tz
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}

	ctx, stop := signalContext()
	defer stop()

	if cfg.Metrics.Addr != "" {
		shutdown := serveMetrics(cfg.Metrics.Addr)
		defer shutdown()
	}

	task := app.NewTask(cfg)
	job := func() {
		log.Info().Msg("Scheduled crawl triggered")
		if _, err := task.Execute(ctx); err != nil {
			log.Error().Err(err).Msg("Scheduled crawl failed")
		}
	}

	cronLog := log.With().Str("component", "cron").Logger()
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cron.PrintfLogger(&cronLog)), cron.SkipIfStillRunning(cron.PrintfLogger(&cronLog))),
	)
	entryID, err := c.AddFunc(spec, job)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}

	c.Start()
	log.Info().
		Str("spec", spec).
		Str("timezone", loc.String()).
		Time("next_run", c.Entry(entryID).Next).
		Msg("Scheduler started, press Ctrl+C to stop")

	if runNow {
		go c.Entry(entryID).WrappedJob.Run()
	}

	<-ctx.Done()
	log.Info().Msg("Shutting down scheduler, waiting for a running crawl to stop")
	<-c.Stop().Done()
	log.Info().Msg("Scheduler stopped")
	return nil
}

// serveMetrics exposes Prometheus metrics on addr and returns a shutdown func
func serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info().Str("addr", addr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
