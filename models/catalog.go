package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrMalformedCatalog is returned when decoded JSON is not an object of book objects.
var ErrMalformedCatalog = errors.New("catalog: malformed document")

// Catalog maps book IDs to entries and keeps insertion order.
// A Catalog is not safe for concurrent use.
type Catalog struct {
	books *orderedmap.OrderedMap[string, *Book]
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{books: orderedmap.New[string, *Book]()}
}

// Put inserts book under its ID. An existing ID is overwritten in place and
// keeps its original position.
func (c *Catalog) Put(book *Book) {
	if book == nil {
		return
	}
	c.init()
	c.books.Set(book.ID, book)
}

// Get returns the book stored under id.
func (c *Catalog) Get(id string) (*Book, bool) {
	c.init()
	return c.books.Get(id)
}

// Len reports the number of entries.
func (c *Catalog) Len() int {
	if c == nil || c.books == nil {
		return 0
	}
	return c.books.Len()
}

// IDs returns the book IDs in insertion order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, c.Len())
	if c.Len() == 0 {
		return ids
	}
	for pair := c.books.Oldest(); pair != nil; pair = pair.Next() {
		ids = append(ids, pair.Key)
	}
	return ids
}

// Books returns the entries in insertion order.
func (c *Catalog) Books() []*Book {
	out := make([]*Book, 0, c.Len())
	if c.Len() == 0 {
		return out
	}
	for pair := c.books.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// MarshalJSON encodes the catalog as a JSON object keyed by ID.
func (c *Catalog) MarshalJSON() ([]byte, error) {
	c.init()
	return c.books.MarshalJSON()
}

// UnmarshalJSON decodes an object of book objects, preserving key order.
func (c *Catalog) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("%w: top level is not an object", ErrMalformedCatalog)
	}

	books := orderedmap.New[string, *Book]()
	if err := json.Unmarshal(trimmed, books); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedCatalog, err)
	}
	for pair := books.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value == nil {
			return fmt.Errorf("%w: entry %q is null", ErrMalformedCatalog, pair.Key)
		}
		if strings.TrimSpace(pair.Value.Title) == "" {
			return fmt.Errorf("%w: entry %q has no title", ErrMalformedCatalog, pair.Key)
		}
		pair.Value.ID = pair.Key
	}

	c.books = books
	return nil
}

func (c *Catalog) init() {
	if c.books == nil {
		c.books = orderedmap.New[string, *Book]()
	}
}
