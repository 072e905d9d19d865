package render

import (
	"bufio"
	_ "embed"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-scrape-library/models"
)

//go:embed templates/page.html
var defaultTemplate string

const pageFilePrefix = "index"

// PageFileName is the file a page number is written to.
func PageFileName(number int) string {
	return pageFilePrefix + strconv.Itoa(number) + ".html"
}

// Renderer writes paginated catalog pages into a directory.
type Renderer struct {
	tmpl       *template.Template
	outDir     string
	rowWidth   int
	pageHeight int
}

// NewRenderer parses templatePath, or the built-in template when it is
// empty. Asset paths stored in the catalog are rewritten relative to outDir.
func NewRenderer(templatePath, outDir string, rowWidth, pageHeight int) (*Renderer, error) {
	if rowWidth <= 0 || pageHeight <= 0 {
		return nil, ErrInvalidPageSize
	}

	text := defaultTemplate
	if templatePath != "" {
		data, err := os.ReadFile(templatePath)
		if err != nil {
			return nil, fmt.Errorf("read template: %w", err)
		}
		text = string(data)
	}

	r := &Renderer{outDir: outDir, rowWidth: rowWidth, pageHeight: pageHeight}
	tmpl, err := template.New("page").Funcs(template.FuncMap{
		"asset":    r.asset,
		"pageFile": PageFileName,
		"add":      func(a, b int) int { return a + b },
		"sub":      func(a, b int) int { return a - b },
	}).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	r.tmpl = tmpl
	return r, nil
}

type pageView struct {
	Page
	Numbers []int
}

// Render writes one file per page and removes pages left over from a
// larger catalog. It returns the written paths in page order.
func (r *Renderer) Render(catalog *models.Catalog) ([]string, error) {
	pages, err := Paginate(catalog.Books(), r.rowWidth, r.pageHeight)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(r.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %q: %w", r.outDir, err)
	}

	numbers := make([]int, len(pages))
	for i := range pages {
		numbers[i] = i + 1
	}

	written := make([]string, 0, len(pages))
	for _, page := range pages {
		path := filepath.Join(r.outDir, PageFileName(page.Number))
		if err := r.writePage(path, pageView{Page: page, Numbers: numbers}); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	if err := r.removeStale(len(pages)); err != nil {
		return written, err
	}
	slog.Info("catalog rendered",
		slog.Int("books", catalog.Len()),
		slog.Int("pages", len(pages)),
		slog.String("dir", r.outDir),
	)
	return written, nil
}

func (r *Renderer) writePage(path string, view pageView) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create page %q: %w", path, err)
	}
	buffer := bufio.NewWriter(f)
	if err := r.tmpl.Execute(buffer, view); err != nil {
		f.Close()
		return fmt.Errorf("render page %d: %w", view.Number, err)
	}
	if err := buffer.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush page %q: %w", path, err)
	}
	return f.Close()
}

func (r *Renderer) removeStale(total int) error {
	matches, err := filepath.Glob(filepath.Join(r.outDir, pageFilePrefix+"*.html"))
	if err != nil {
		return err
	}
	for _, match := range matches {
		raw := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(match), pageFilePrefix), ".html")
		n, err := strconv.Atoi(raw)
		if err != nil || n <= total {
			continue
		}
		if err := os.Remove(match); err != nil {
			return fmt.Errorf("remove stale page %q: %w", match, err)
		}
	}
	return nil
}

func (r *Renderer) asset(path string) string {
	if path == "" {
		return ""
	}
	absOut, err := filepath.Abs(r.outDir)
	if err != nil {
		return filepath.ToSlash(path)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(absOut, absPath)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
