package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"listing-crawler/internal/transmission"
	"listing-crawler/pkg/models"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "List stored listings and optionally send their magnet links to Transmission",
	RunE:  runQuery,
}

func init() {
	f := queryCmd.Flags()
	f.String("pattern", "", "Text pattern to match in titles (using LIKE operator)")
	f.Int("limit", 10, "Number of results to show")
	f.String("transmission", "", "Transmission RPC URL (e.g., user:pass@http://localhost:9091/transmission/rpc)")
	f.Bool("send", false, "Send magnet links to Transmission")
	f.Bool("dry-run", false, "Show what would be sent to Transmission without actually sending")
}

func runQuery(cmd *cobra.Command, args []string) error {
	pattern, _ := cmd.Flags().GetString("pattern")
	limit, _ := cmd.Flags().GetInt("limit")
	send, _ := cmd.Flags().GetBool("send")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	rpcURL, _ := cmd.Flags().GetString("transmission")
	if rpcURL == "" {
		rpcURL = cfg.Transmission.URL
	}

	ctx := context.Background()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	var listings []models.Listing
	if pattern != "" {
		listings, err = store.GetListingsByPattern(ctx, pattern, limit)
		fmt.Printf("Listings matching pattern '%s' (limit %d):\n", pattern, limit)
	} else {
		listings, err = store.GetLatestListings(ctx, limit)
		fmt.Printf("Latest %d listings:\n", limit)
	}
	if err != nil {
		return fmt.Errorf("failed to query database: %w", err)
	}

	fmt.Printf("%-10s %-50s %-20s %-10s %-16s %s\n", "ID", "Title", "Category", "Size", "Date", "Pushed")
	fmt.Println(strings.Repeat("-", 120))
	for _, l := range listings {
		pushed := ""
		if l.PushedToTransmission {
			pushed = "yes"
		}
		fmt.Printf("%-10d %-50s %-20s %-10s %-16s %s\n", l.ID, truncate(l.Title, 49), truncate(l.Category, 19), l.Size, l.Date, pushed)
	}

	if pattern != "" {
		count, err := store.GetMatchCount(ctx, pattern)
		if err != nil {
			return fmt.Errorf("failed to get match count: %w", err)
		}
		fmt.Printf("\nFound %d matching listings\n", count)
	}

	total, withMagnet, err := store.GetListingCount(ctx)
	if err != nil {
		return fmt.Errorf("failed to get statistics: %w", err)
	}
	fmt.Printf("Total listings in database: %d\n", total)
	fmt.Printf("Listings with magnet links: %d\n", withMagnet)

	if !send {
		return nil
	}

	var pending []models.Listing
	for _, l := range listings {
		if l.MagnetHref != "" {
			pending = append(pending, l)
		}
	}
	if len(pending) == 0 {
		fmt.Println("\nNo magnet links found to send to Transmission.")
		return nil
	}

	if dryRun {
		fmt.Printf("\nDry run mode - would send %d magnet links to Transmission:\n", len(pending))
		for i, l := range pending {
			fmt.Printf("%d. %s\n", i+1, l.MagnetHref)
		}
		return nil
	}

	if rpcURL == "" {
		return errors.New("transmission URL is required when using --send")
	}

	fmt.Printf("\nSending %d magnet links to Transmission...\n", len(pending))
	client := transmission.NewClient(rpcURL)
	sent := 0
	for i, l := range pending {
		if err := client.AddMagnet(ctx, l.MagnetHref); err != nil {
			fmt.Printf("Failed to send magnet link %d: %v\n", i+1, err)
			continue
		}
		if err := store.MarkPushed(ctx, l.ID); err != nil {
			log.Warn().Err(err).Int64("id", l.ID).Msg("Failed to mark listing as pushed")
		}
		fmt.Printf("Successfully sent magnet link %d to Transmission\n", i+1)
		sent++
	}
	fmt.Printf("Successfully sent %d out of %d magnet links to Transmission\n", sent, len(pending))
	return nil
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen])
}
