package render

import (
	"errors"
	"reflect"
	"strconv"
	"testing"

	"github.com/aluiziolira/go-scrape-library/models"
)

func books(n int) []*models.Book {
	out := make([]*models.Book, n)
	for i := range out {
		id := strconv.Itoa(i + 1)
		out[i] = &models.Book{ID: id, Title: "Book " + id}
	}
	return out
}

func TestPaginateSevenBooksTwoColumns(t *testing.T) {
	pages, err := Paginate(books(7), 2, 5)
	if err != nil {
		t.Fatalf("paginate: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("pages = %d, want 1", len(pages))
	}
	page := pages[0]
	if page.Number != 1 || page.Total != 1 {
		t.Fatalf("page %d/%d, want 1/1", page.Number, page.Total)
	}
	sizes := make([]int, len(page.Rows))
	for i, row := range page.Rows {
		sizes[i] = len(row)
	}
	if want := []int{2, 2, 2, 1}; !reflect.DeepEqual(sizes, want) {
		t.Fatalf("row sizes = %v, want %v", sizes, want)
	}
}

func TestPaginateShapes(t *testing.T) {
	tests := []struct {
		name       string
		count      int
		rowWidth   int
		pageHeight int
		wantPages  int
	}{
		{name: "empty", count: 0, rowWidth: 2, pageHeight: 5, wantPages: 0},
		{name: "exact fit", count: 20, rowWidth: 2, pageHeight: 5, wantPages: 2},
		{name: "one over", count: 21, rowWidth: 2, pageHeight: 5, wantPages: 3},
		{name: "single column", count: 7, rowWidth: 1, pageHeight: 3, wantPages: 3},
		{name: "wide rows", count: 5, rowWidth: 10, pageHeight: 1, wantPages: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := books(tt.count)
			pages, err := Paginate(input, tt.rowWidth, tt.pageHeight)
			if err != nil {
				t.Fatalf("paginate: %v", err)
			}
			if len(pages) != tt.wantPages {
				t.Fatalf("pages = %d, want %d", len(pages), tt.wantPages)
			}

			var flat []*models.Book
			for i, page := range pages {
				if page.Number != i+1 || page.Total != tt.wantPages {
					t.Fatalf("page %d carries %d/%d", i, page.Number, page.Total)
				}
				if i < len(pages)-1 && len(page.Rows) != tt.pageHeight {
					t.Fatalf("page %d has %d rows, want %d", i+1, len(page.Rows), tt.pageHeight)
				}
				for _, row := range page.Rows {
					flat = append(flat, row...)
				}
			}
			if len(flat) != tt.count {
				t.Fatalf("flattened %d books, want %d", len(flat), tt.count)
			}
			for i := range flat {
				if flat[i] != input[i] {
					t.Fatalf("order changed at %d", i)
				}
			}

			for i, page := range pages {
				for j, row := range page.Rows {
					last := i == len(pages)-1 && j == len(page.Rows)-1
					if !last && len(row) != tt.rowWidth {
						t.Fatalf("row %d of page %d has %d books, want %d", j, i+1, len(row), tt.rowWidth)
					}
				}
			}
		})
	}
}

func TestPaginateDeterministic(t *testing.T) {
	input := books(13)
	first, err := Paginate(input, 3, 2)
	if err != nil {
		t.Fatalf("paginate: %v", err)
	}
	second, err := Paginate(input, 3, 2)
	if err != nil {
		t.Fatalf("paginate: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("paginate is not deterministic")
	}
}

func TestPaginateRowsDoNotAlias(t *testing.T) {
	input := books(4)
	pages, err := Paginate(input, 2, 2)
	if err != nil {
		t.Fatalf("paginate: %v", err)
	}
	row := pages[0].Rows[0]
	_ = append(row, &models.Book{ID: "x"})
	if input[2].ID != "3" {
		t.Fatalf("appending to a row overwrote the input")
	}
}

func TestPaginateInvalidSizes(t *testing.T) {
	for _, sizes := range [][2]int{{0, 5}, {2, 0}, {-1, 3}} {
		if _, err := Paginate(books(3), sizes[0], sizes[1]); !errors.Is(err, ErrInvalidPageSize) {
			t.Fatalf("Paginate(%v) error = %v, want ErrInvalidPageSize", sizes, err)
		}
	}
}
