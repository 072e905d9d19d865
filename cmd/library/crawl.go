package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-library/config"
	"github.com/aluiziolira/go-scrape-library/models"
	"github.com/aluiziolira/go-scrape-library/parser"
	"github.com/aluiziolira/go-scrape-library/pipeline"
	"github.com/aluiziolira/go-scrape-library/scraper"
)

func newCrawlCmd() *cobra.Command {
	defaults := config.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Download books, covers and the catalog",
		Long: "Walk the listing pages (or an ID range with --start-id), download each book's\n" +
			"text and cover and write the catalog JSON.",
		Args: cobra.NoArgs,
		RunE: runCrawl,
	}

	f := cmd.Flags()
	f.Int("start-page", defaults.StartPage, "First listing page")
	f.Int("end-page", defaults.EndPage, "Last listing page, 0 reads it from the pager")
	f.Int("start-id", 0, "First book ID, switches to ID mode")
	f.Int("end-id", 0, "Last book ID in ID mode")
	f.Bool("skip-txt", false, "Do not download book texts")
	f.Bool("skip-imgs", false, "Do not download cover images")
	f.Bool("merge", false, "Merge into an existing catalog instead of replacing it")
	f.String("listing-url", defaults.ListingURL, "Listing base URL")
	f.String("document-url", defaults.DocumentURL, "Text download endpoint")
	f.String("item-url-format", defaults.ItemURLFormat, "Detail page URL format for ID mode")
	f.Duration("timeout", defaults.Timeout, "Per request timeout")
	f.Int("max-retries", defaults.MaxRetries, "Retries per request, negative retries until success")
	f.Duration("retry-backoff", defaults.RetryBackoff, "Initial retry backoff")
	f.Duration("retry-backoff-max", defaults.RetryBackoffMax, "Maximum retry backoff")
	f.Duration("retry-max-elapsed", 0, "Give up retrying a request after this long, 0 disables")
	f.String("metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	return cmd
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	artifacts, err := pipeline.NewArtifacts(cfg.BooksPath(), cfg.ImagesPath(), cfg.ImageCacheSize)
	if err != nil {
		return err
	}
	s, err := scraper.NewScraper(cfg, parser.NewHTMLParser(parser.DefaultSelectors()), artifacts)
	if err != nil {
		return fmt.Errorf("initialising scraper: %w", err)
	}

	var previous *models.Catalog
	if cfg.Merge {
		previous, err = pipeline.LoadCatalog(cfg.CatalogPath())
		switch {
		case errors.Is(err, os.ErrNotExist):
			previous = nil
		case err != nil:
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, saving what was collected")
	}()

	metricsServer := startMetricsServer(cfg.MetricsAddr, s.Metrics)
	defer shutdownMetricsServer(metricsServer)

	slog.Info("starting crawl",
		slog.String("listing_url", cfg.ListingURL),
		slog.Int("start_page", cfg.StartPage),
		slog.Int("end_page", cfg.EndPage),
		slog.Bool("id_mode", cfg.IDMode()),
		slog.String("dest_folder", cfg.DestFolder),
	)

	var result *models.CrawlResult
	var runErr error
	if cfg.IDMode() {
		result, runErr = s.RunIDs(ctx)
	} else {
		result, runErr = s.Run(ctx)
	}
	if result == nil {
		return fmt.Errorf("crawl failed: %w", runErr)
	}
	if runErr != nil {
		slog.Warn("crawl interrupted", slog.Any("error", runErr))
	}

	catalog := result.Catalog
	if previous != nil {
		catalog = pipeline.MergeCatalogs(previous, catalog)
	}
	if err := pipeline.SaveCatalog(catalog, cfg.CatalogPath()); err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}

	printSummary(result, catalog.Len(), cfg.CatalogPath())
	return runErr
}

func startMetricsServer(addr string, metrics *scraper.Metrics) *http.Server {
	if addr == "" || metrics == nil {
		return nil
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))
	return server
}

func shutdownMetricsServer(server *http.Server) {
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("metrics server shutdown failed", slog.Any("error", err))
	}
}

func printSummary(result *models.CrawlResult, catalogSize int, catalogPath string) {
	separator := "--------------------------------------------------"
	duration := result.EndTime.Sub(result.StartTime)

	fmt.Println("\n" + separator)
	fmt.Println("Crawl complete")
	fmt.Printf("  Books saved:   %d\n", result.RecordedCount)
	fmt.Printf("  Missing IDs:   %d\n", result.AbsentCount)
	fmt.Printf("  Pages parsed:  %d\n", result.PageCount)
	successRate := 0.0
	if result.RequestCount > 0 {
		successRate = float64(result.RequestCount-result.ErrorCount) / float64(result.RequestCount) * 100
	}
	fmt.Printf("  Success rate:  %.2f%%\n", successRate)
	fmt.Printf("  Errors:        %d\n", result.ErrorCount)
	fmt.Printf("  Retries:       %d\n", result.RetryCount)
	if len(result.FailedItems) > 0 {
		fmt.Printf("  Failed books:  %v\n", result.FailedItems)
	}
	if len(result.FailedPages) > 0 {
		fmt.Printf("  Failed pages:  %v\n", result.FailedPages)
	}
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
	}
	fmt.Printf("  Duration:      %v\n", duration.Round(time.Millisecond))
	fmt.Printf("  Catalog:       %s (%d books)\n", catalogPath, catalogSize)
	fmt.Println(separator)
}
