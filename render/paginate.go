// Package render groups catalog entries into pages and writes them as HTML.
package render

import (
	"errors"

	"github.com/aluiziolira/go-scrape-library/models"
)

// ErrInvalidPageSize is returned for a non-positive row width or page height.
var ErrInvalidPageSize = errors.New("row width and page height must be positive")

// Page is one rendered page: rows of books plus its position in the set.
type Page struct {
	Number int // 1-based
	Total  int
	Rows   [][]*models.Book
}

// Paginate splits books into rows of rowWidth and the rows into pages of
// pageHeight, keeping the order of books. The last row and the last page may
// be shorter. An empty input yields no pages.
func Paginate(books []*models.Book, rowWidth, pageHeight int) ([]Page, error) {
	if rowWidth <= 0 || pageHeight <= 0 {
		return nil, ErrInvalidPageSize
	}

	groups := chunk(chunk(books, rowWidth), pageHeight)
	pages := make([]Page, len(groups))
	for i, rows := range groups {
		pages[i] = Page{
			Number: i + 1,
			Total:  len(groups),
			Rows:   rows,
		}
	}
	return pages, nil
}

func chunk[T any](items []T, size int) [][]T {
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end:end])
	}
	return out
}
