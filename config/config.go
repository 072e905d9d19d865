package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds crawler and renderer configuration.
type Config struct {
	ListingURL    string `yaml:"listing_url"`
	DocumentURL   string `yaml:"document_url"`
	ItemURLFormat string `yaml:"item_url_format"`

	StartPage int `yaml:"start_page"`
	EndPage   int `yaml:"end_page"` // 0 reads the last page from the pager
	StartID   int `yaml:"start_id"`
	EndID     int `yaml:"end_id"`

	DestFolder    string `yaml:"dest_folder"`
	BooksDir      string `yaml:"books_dir"`
	ImagesDir     string `yaml:"images_dir"`
	CatalogFile   string `yaml:"catalog_file"`
	SkipDocuments bool   `yaml:"skip_txt"`
	SkipImages    bool   `yaml:"skip_imgs"`
	Merge         bool   `yaml:"merge"`

	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      int           `yaml:"max_retries"` // negative retries until success
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
	RetryBackoffMax time.Duration `yaml:"retry_backoff_max"`
	RetryMaxElapsed time.Duration `yaml:"retry_max_elapsed"`
	MaxBodySize     int           `yaml:"max_body_size"`
	ImageCacheSize  int           `yaml:"image_cache_size"`
	UserAgent       string        `yaml:"user_agent"`

	TemplateFile string `yaml:"template_file"`
	PagesDir     string `yaml:"pages_dir"`
	Columns      int    `yaml:"columns"`
	RowsPerPage  int    `yaml:"rows_per_page"`

	Verbose     bool   `yaml:"verbose"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// DefaultConfig returns defaults for the tululu.org science fiction catalog.
func DefaultConfig() *Config {
	return &Config{
		ListingURL:      "https://tululu.org/l55/",
		DocumentURL:     "https://tululu.org/txt.php",
		ItemURLFormat:   "https://tululu.org/b%d/",
		StartPage:       1,
		EndPage:         0,
		DestFolder:      ".",
		BooksDir:        "books",
		ImagesDir:       "images",
		CatalogFile:     "books.json",
		Timeout:         30 * time.Second,
		MaxRetries:      10,
		RetryBackoff:    time.Second,
		RetryBackoffMax: time.Second,
		MaxBodySize:     50 << 20,
		ImageCacheSize:  256,
		UserAgent:       "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		PagesDir:        "pages",
		Columns:         2,
		RowsPerPage:     5,
	}
}

// IDMode reports whether the crawl walks an ID range instead of listing pages.
func (c *Config) IDMode() bool {
	return c.StartID > 0
}

// BooksPath is the directory documents are written to.
func (c *Config) BooksPath() string {
	return filepath.Join(c.DestFolder, c.BooksDir)
}

// ImagesPath is the directory cover images are written to.
func (c *Config) ImagesPath() string {
	return filepath.Join(c.DestFolder, c.ImagesDir)
}

// CatalogPath is the catalog JSON file location. An absolute CatalogFile is
// used as is.
func (c *Config) CatalogPath() string {
	if filepath.IsAbs(c.CatalogFile) {
		return c.CatalogFile
	}
	return filepath.Join(c.DestFolder, c.CatalogFile)
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	for name, raw := range map[string]string{"listing URL": c.ListingURL, "document URL": c.DocumentURL} {
		if err := validateURL(name, raw); err != nil {
			return err
		}
	}
	if !strings.Contains(c.ItemURLFormat, "%d") {
		return fmt.Errorf("item URL format must contain %%d")
	}
	if err := validateURL("item URL format", fmt.Sprintf(c.ItemURLFormat, 1)); err != nil {
		return err
	}

	if c.IDMode() {
		if c.EndID < c.StartID {
			return fmt.Errorf("end id (%d) cannot be lower than start id (%d)", c.EndID, c.StartID)
		}
	} else {
		if c.StartID < 0 || c.EndID != 0 {
			return fmt.Errorf("end id requires a positive start id")
		}
		if c.StartPage <= 0 {
			return fmt.Errorf("start page must be positive")
		}
		if c.EndPage < 0 {
			return fmt.Errorf("end page cannot be negative")
		}
		if c.EndPage != 0 && c.EndPage < c.StartPage {
			return fmt.Errorf("end page (%d) cannot be lower than start page (%d)", c.EndPage, c.StartPage)
		}
	}

	if c.DestFolder == "" {
		return fmt.Errorf("dest folder cannot be empty")
	}
	if c.BooksDir == "" || c.ImagesDir == "" {
		return fmt.Errorf("books and images dirs cannot be empty")
	}
	if c.CatalogFile == "" {
		return fmt.Errorf("catalog file cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.RetryMaxElapsed < 0 {
		return fmt.Errorf("retry max elapsed cannot be negative")
	}
	if c.MaxBodySize < 0 {
		return fmt.Errorf("max body size cannot be negative")
	}
	if c.ImageCacheSize <= 0 {
		return fmt.Errorf("image cache size must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	return c.ValidateRender()
}

// ValidateRender checks only the settings the render command uses.
func (c *Config) ValidateRender() error {
	if c.Columns <= 0 {
		return fmt.Errorf("columns must be positive")
	}
	if c.RowsPerPage <= 0 {
		return fmt.Errorf("rows per page must be positive")
	}
	if c.PagesDir == "" {
		return fmt.Errorf("pages dir cannot be empty")
	}
	if c.CatalogFile == "" {
		return fmt.Errorf("catalog file cannot be empty")
	}
	return nil
}

// LoadFile overlays the YAML document at path onto c. Unknown keys are rejected.
func (c *Config) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays LIBRARY_* environment variables onto c.
func (c *Config) ApplyEnv() error {
	ints := map[string]*int{
		"LIBRARY_START_PAGE":  &c.StartPage,
		"LIBRARY_END_PAGE":    &c.EndPage,
		"LIBRARY_MAX_RETRIES": &c.MaxRetries,
	}
	for key, dst := range ints {
		value, ok, err := EnvInt(key)
		if err != nil {
			return err
		}
		if ok {
			*dst = value
		}
	}
	strs := map[string]*string{
		"LIBRARY_DEST_FOLDER":  &c.DestFolder,
		"LIBRARY_CATALOG_FILE": &c.CatalogFile,
		"LIBRARY_METRICS_ADDR": &c.MetricsAddr,
	}
	for key, dst := range strs {
		if value, ok := EnvString(key); ok {
			*dst = value
		}
	}
	return nil
}

// EnvInt reads an integer environment variable.
func EnvInt(key string) (int, bool, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return 0, false, nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, true, nil
}

// EnvString reads a non-empty string environment variable.
func EnvString(key string) (string, bool) {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return "", false
	}
	return strings.TrimSpace(raw), true
}

func validateURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", name)
	}
	return nil
}
