package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"listing-crawler/internal/crawler"
	"listing-crawler/internal/probe"
)

var probeCmd = &cobra.Command{
	Use:   "probe [url...]",
	Short: "Check whether listing sites are reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		urls := args
		if len(urls) == 0 {
			urls = []string{cfg.Site.BaseURL}
		}

		client, err := crawler.NewHTTPClient(cfg.HTTP.ProxyURL, cfg.HTTP.Timeout, log)
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		checker := probe.NewChecker(client, cfg.HTTP.MaxRetries, cfg.HTTP.RetryDelay)
		results := checker.CheckAll(ctx, urls)

		fmt.Println()
		for i, r := range results {
			mark := "FAIL"
			if r.Accessible {
				mark = "OK"
			}
			line := fmt.Sprintf("%d. [%s] %s", i+1, mark, r.URL)
			if r.StatusCode != 0 {
				line += fmt.Sprintf(" (%d)", r.StatusCode)
			}
			line += fmt.Sprintf(" %s", r.ResponseTime.Round(time.Millisecond))
			if r.Err != nil {
				line += " - " + r.Err.Error()
			}
			fmt.Println(line)
		}

		accessible := probe.CountAccessible(results)
		fmt.Printf("\n%d/%d sites accessible\n", accessible, len(urls))
		if accessible == 0 {
			return errors.New("no site reachable")
		}
		return nil
	},
}
