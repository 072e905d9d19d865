package main

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-library/config"
	"github.com/aluiziolira/go-scrape-library/pipeline"
	"github.com/aluiziolira/go-scrape-library/render"
)

func newRenderCmd() *cobra.Command {
	defaults := config.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the catalog into paginated HTML pages",
		Args:  cobra.NoArgs,
		RunE:  runRender,
	}

	f := cmd.Flags()
	f.String("template", "", "HTML template file, the built-in template when empty")
	f.String("pages-dir", defaults.PagesDir, "Output directory for pages, relative to dest-folder")
	f.Int("columns", defaults.Columns, "Books per row")
	f.Int("rows", defaults.RowsPerPage, "Rows per page")
	return cmd
}

func runRender(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateRender(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	catalog, err := pipeline.LoadCatalog(cfg.CatalogPath())
	if err != nil {
		if errors.Is(err, pipeline.ErrCorruptCatalog) {
			slog.Error("catalog is not valid JSON, run crawl again", slog.String("path", cfg.CatalogPath()))
		}
		return err
	}

	renderer, err := render.NewRenderer(cfg.TemplateFile, filepath.Join(cfg.DestFolder, cfg.PagesDir), cfg.Columns, cfg.RowsPerPage)
	if err != nil {
		return err
	}
	written, err := renderer.Render(catalog)
	if err != nil {
		return err
	}
	fmt.Printf("Rendered %d pages for %d books\n", len(written), catalog.Len())
	return nil
}
