package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"listing-crawler/internal/app"
	"listing-crawler/internal/pagination"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Crawl the configured page range once",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		summary, err := app.NewTask(cfg).Execute(ctx)
		printSummary(summary)
		return err
	},
}

func printSummary(s *pagination.Summary) {
	if s == nil {
		return
	}
	fmt.Printf("\nRun %s: %s\n", s.RunID, s.Status)
	fmt.Printf("Pages %d..%d: %d visited, %d failed, %d skips, %d backtracks\n",
		s.Start, s.End, s.PagesVisited, s.FailedPages, s.Skips, s.Backtracks)
	fmt.Printf("Items: %d seen, %d new, %d duplicate, %d failed\n",
		s.ItemsSeen, s.Inserted, s.Duplicates, s.FailedItems)
	fmt.Printf("Duration: %s\n", s.Duration.Round(time.Millisecond))
	if msg := s.ErrorMessage(); msg != "" {
		fmt.Printf("Error: %s\n", msg)
	}
}
