package pipeline

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aluiziolira/go-scrape-library/models"
)

// ErrCorruptCatalog is returned by LoadCatalog when the file is not an
// object of book objects.
var ErrCorruptCatalog = errors.New("corrupt catalog")

// SaveCatalog writes catalog to path as indented JSON keyed by book ID, in
// insertion order. The file is replaced atomically.
func SaveCatalog(catalog *models.Catalog, path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create catalog temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	buffer := bufio.NewWriter(tmp)
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(catalog); err != nil {
		tmp.Close()
		return fmt.Errorf("encode catalog: %w", err)
	}
	if err := buffer.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close catalog temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace catalog %q: %w", path, err)
	}
	return nil
}

// LoadCatalog reads a catalog written by SaveCatalog.
func LoadCatalog(path string) (*models.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	catalog := models.NewCatalog()
	if err := json.Unmarshal(data, catalog); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptCatalog, path, err)
	}
	return catalog, nil
}

// MergeCatalogs returns a new catalog holding base followed by the entries of
// next. Books of next replace books of base with the same ID in place.
func MergeCatalogs(base, next *models.Catalog) *models.Catalog {
	merged := models.NewCatalog()
	for _, book := range base.Books() {
		merged.Put(book)
	}
	for _, book := range next.Books() {
		merged.Put(book)
	}
	return merged
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
