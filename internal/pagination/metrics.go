package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesVisitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawler_pages_visited_total",
		Help: "Pages fetched and processed",
	})
	pageFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawler_page_failures_total",
		Help: "Pages abandoned after the fetcher exhausted its retries",
	})
	itemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crawler_items_total",
		Help: "Listings processed by insert outcome",
	}, []string{"outcome"})
	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crawler_decisions_total",
		Help: "Schedule transitions by action",
	}, []string{"action"})
	patternsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crawler_page_patterns_total",
		Help: "Duplicate patterns observed per page",
	}, []string{"pattern"})
	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crawler_run_duration_seconds",
		Help:    "Duration of crawl runs by terminal status",
		Buckets: prometheus.ExponentialBuckets(30, 2, 10),
	}, []string{"status"})
)
