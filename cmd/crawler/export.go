package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"listing-crawler/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write all stored listings to an Excel workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := cfg.Export.Dir
		if d, _ := cmd.Flags().GetString("dir"); d != "" {
			dir = d
		}

		ctx := context.Background()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		start := time.Now()
		path, n, err := export.Export(ctx, store, dir, start)
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		if n == 0 {
			fmt.Println("No listings in the database, nothing exported")
			return nil
		}
		fmt.Printf("Exported %d listings to %s in %s\n", n, path, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	exportCmd.Flags().String("dir", "", "Output directory (default from config)")
}
