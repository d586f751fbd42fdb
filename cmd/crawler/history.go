package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent crawl runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		ctx := context.Background()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		logs, err := store.GetRecentRunLogs(ctx, limit)
		if err != nil {
			return fmt.Errorf("failed to read run logs: %w", err)
		}
		if len(logs) == 0 {
			fmt.Println("No runs recorded yet")
			return nil
		}

		fmt.Printf("%-6s %-20s %-10s %-10s %6s %7s %6s %6s  %s\n", "ID", "Started", "Status", "Duration", "Pages", "Items", "New", "Dups", "Error")
		fmt.Println(strings.Repeat("-", 100))
		for _, rl := range logs {
			fmt.Printf("%-6d %-20s %-10s %-10s %6d %7d %6d %6d  %s\n",
				rl.ID,
				rl.StartTime.Local().Format(time.DateTime),
				rl.Status,
				(time.Duration(rl.DurationMs) * time.Millisecond).Round(time.Second),
				rl.TotalPages, rl.TotalItems, rl.NewItems, rl.DuplicateItems,
				rl.ErrorMessage,
			)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 10, "Number of runs to show")
}
