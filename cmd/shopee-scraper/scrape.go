package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/use-agent/shopee-scraper/models"
)

// errScrapeFailed makes the process exit non-zero after the failure body
// has been printed.
var errScrapeFailed = errors.New("scrape failed")

var scrapeCmd = &cobra.Command{
	Use:   "scrape <url>",
	Short: "Scrape one product page and print the response JSON.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		sc, cleanup, err := buildScraper(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		parent := cmd.Context()
		if parent == nil {
			parent = context.Background()
		}
		ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		resp := sc.Scrape(ctx, &models.ScrapeRequest{URL: args[0]})

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(resp); err != nil {
			return err
		}
		if !resp.Success {
			return errScrapeFailed
		}
		return nil
	},
}
