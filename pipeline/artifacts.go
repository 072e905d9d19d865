// Package pipeline persists crawl output: book documents, cover images and
// the catalog file.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-scrape-library/models"
	"github.com/aluiziolira/go-scrape-library/parser"
)

// Artifacts writes documents and images into their directories.
// Images already written during this process are remembered by URL so a
// cover shared by several books is downloaded once.
type Artifacts struct {
	booksDir  string
	imagesDir string
	images    *lru.Cache[string, string]
}

// NewArtifacts creates both directories and an image cache of cacheSize entries.
func NewArtifacts(booksDir, imagesDir string, cacheSize int) (*Artifacts, error) {
	for _, dir := range []string{booksDir, imagesDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	images, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create image cache: %w", err)
	}
	return &Artifacts{
		booksDir:  booksDir,
		imagesDir: imagesDir,
		images:    images,
	}, nil
}

// SaveDocument writes body as "{title} {id}.txt" and returns the path.
func (a *Artifacts) SaveDocument(book *models.Book, body []byte) (string, error) {
	if err := parser.ValidateBook(book); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s %s.txt", parser.SanitizeFilename(book.Title), book.ID)
	path := filepath.Join(a.booksDir, name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write document %q: %w", path, err)
	}
	return path, nil
}

// SaveImage writes body under the base name of imageURL and returns the path.
func (a *Artifacts) SaveImage(imageURL string, body []byte) (string, error) {
	name, err := parser.ImageName(imageURL)
	if err != nil {
		return "", err
	}
	path := filepath.Join(a.imagesDir, name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write image %q: %w", path, err)
	}
	a.images.Add(imageURL, path)
	return path, nil
}

// ImagePath returns the path an image URL was already written to.
func (a *Artifacts) ImagePath(imageURL string) (string, bool) {
	path, ok := a.images.Get(imageURL)
	if !ok {
		return "", false
	}
	if _, err := os.Stat(path); err != nil {
		a.images.Remove(imageURL)
		return "", false
	}
	return path, true
}
