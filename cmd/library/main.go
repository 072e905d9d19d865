package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/aluiziolira/go-scrape-library/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "library",
		Short:         "Download an online library catalog and render it as static pages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "YAML config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().String("dest-folder", ".", "Folder for books, images and the catalog")
	root.PersistentFlags().String("json-path", "books.json", "Catalog file, relative to dest-folder unless absolute")

	root.AddCommand(newCrawlCmd(), newRenderCmd())
	return root
}

// loadConfig layers defaults, the config file, LIBRARY_* variables and the
// flags the user set explicitly, then installs the logger.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	flags := cmd.Flags()

	if path, _ := flags.GetString("config"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := applyFlags(flags, cfg); err != nil {
		return nil, err
	}

	slog.SetDefault(newLogger(cfg.Verbose))
	return cfg, nil
}

func applyFlags(flags *pflag.FlagSet, cfg *config.Config) error {
	var err error
	setInt := func(name string, dst *int) {
		if err == nil && flags.Lookup(name) != nil && flags.Changed(name) {
			*dst, err = flags.GetInt(name)
		}
	}
	setBool := func(name string, dst *bool) {
		if err == nil && flags.Lookup(name) != nil && flags.Changed(name) {
			*dst, err = flags.GetBool(name)
		}
	}
	setString := func(name string, dst *string) {
		if err == nil && flags.Lookup(name) != nil && flags.Changed(name) {
			*dst, err = flags.GetString(name)
		}
	}
	setDuration := func(name string, dst *time.Duration) {
		if err == nil && flags.Lookup(name) != nil && flags.Changed(name) {
			*dst, err = flags.GetDuration(name)
		}
	}

	setBool("verbose", &cfg.Verbose)
	setString("dest-folder", &cfg.DestFolder)
	setString("json-path", &cfg.CatalogFile)

	setInt("start-page", &cfg.StartPage)
	setInt("end-page", &cfg.EndPage)
	setInt("start-id", &cfg.StartID)
	setInt("end-id", &cfg.EndID)
	setBool("skip-txt", &cfg.SkipDocuments)
	setBool("skip-imgs", &cfg.SkipImages)
	setBool("merge", &cfg.Merge)
	setString("listing-url", &cfg.ListingURL)
	setString("document-url", &cfg.DocumentURL)
	setString("item-url-format", &cfg.ItemURLFormat)
	setDuration("timeout", &cfg.Timeout)
	setInt("max-retries", &cfg.MaxRetries)
	setDuration("retry-backoff", &cfg.RetryBackoff)
	setDuration("retry-backoff-max", &cfg.RetryBackoffMax)
	setDuration("retry-max-elapsed", &cfg.RetryMaxElapsed)
	setString("metrics-addr", &cfg.MetricsAddr)

	setString("template", &cfg.TemplateFile)
	setString("pages-dir", &cfg.PagesDir)
	setInt("columns", &cfg.Columns)
	setInt("rows", &cfg.RowsPerPage)

	if err != nil {
		return fmt.Errorf("read flags: %w", err)
	}
	return nil
}

func newLogger(verbose bool) *slog.Logger {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
