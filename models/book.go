// Package models defines data structures for the scraper.
package models

import "time"

// Book represents one catalog entry extracted from a detail page.
type Book struct {
	ID        string   `json:"-"`
	Title     string   `json:"title"`
	Author    string   `json:"author"`
	ImageURL  string   `json:"image_url"`
	ImagePath string   `json:"image_path,omitempty"`
	BookPath  string   `json:"book_path,omitempty"`
	Comments  []string `json:"comments"`
	Genres    []string `json:"genres"`
}

// CrawlResult holds the overall result of a crawl run.
type CrawlResult struct {
	Catalog       *Catalog
	StartTime     time.Time
	EndTime       time.Time
	PageCount     int
	RecordedCount int
	AbsentCount   int
	ErrorCount    int
	FailedItems   []string
	FailedPages   []int
	ErrorsByType  map[string]int
	RetryCount    int
	RequestCount  int
}
