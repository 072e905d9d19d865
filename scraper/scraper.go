// Package scraper walks the catalog and turns detail pages into catalog entries.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-library/config"
	"github.com/aluiziolira/go-scrape-library/models"
	"github.com/aluiziolira/go-scrape-library/parser"
)

// PageParser extracts data from catalog pages.
type PageParser interface {
	ExtractListingLinks(body []byte, base *url.URL) ([]string, error)
	ExtractItemMetadata(body []byte, base *url.URL) (*models.Book, error)
}

// LastPageFinder is implemented by parsers that can read the pager of a
// listing page.
type LastPageFinder interface {
	LastPage(body []byte) (int, error)
}

// ArtifactStore persists downloaded documents and images.
type ArtifactStore interface {
	SaveDocument(book *models.Book, body []byte) (string, error)
	SaveImage(imageURL string, body []byte) (string, error)
	ImagePath(imageURL string) (string, bool)
}

// Scraper crawls the catalog one request at a time.
type Scraper struct {
	cfg       *config.Config
	fetcher   *CollyFetcher
	retry     *RetryingFetcher
	parser    PageParser
	artifacts ArtifactStore
	Metrics   *Metrics

	listingBase *url.URL
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config, p PageParser, artifacts ArtifactStore) (*Scraper, error) {
	listing, err := url.Parse(cfg.ListingURL)
	if err != nil {
		return nil, fmt.Errorf("parse listing url: %w", err)
	}
	if listing.Host == "" {
		return nil, fmt.Errorf("listing url must include a host")
	}
	if !strings.HasSuffix(listing.Path, "/") {
		listing.Path += "/"
	}

	metrics := NewMetrics()
	fetcher := NewCollyFetcher(cfg, metrics)
	return &Scraper{
		cfg:         cfg,
		fetcher:     fetcher,
		retry:       NewRetryingFetcher(fetcher, PolicyFromConfig(cfg), metrics),
		parser:      p,
		artifacts:   artifacts,
		Metrics:     metrics,
		listingBase: listing,
	}, nil
}

// Run crawls the listing pages StartPage..EndPage. With EndPage 0 the last
// page is read from the pager of the first listing page. Failures of single
// pages or books are logged and counted; a cancelled ctx stops the crawl and
// returns what was collected so far together with the context error.
func (s *Scraper) Run(ctx context.Context) (*models.CrawlResult, error) {
	run := s.newRun()

	end := s.cfg.EndPage
	if end == 0 {
		last, err := s.discoverLastPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("discover last page: %w", err)
		}
		end = last
		slog.Info("discovered last listing page", slog.Int("end_page", end))
	}

	for page := s.cfg.StartPage; page <= end; page++ {
		if ctx.Err() != nil {
			break
		}
		s.crawlPage(ctx, run, page)
	}
	return run.result(s), ctx.Err()
}

// RunIDs crawls book IDs StartID..EndID directly, without listing pages.
func (s *Scraper) RunIDs(ctx context.Context) (*models.CrawlResult, error) {
	run := s.newRun()
	for id := s.cfg.StartID; id <= s.cfg.EndID; id++ {
		if ctx.Err() != nil {
			break
		}
		s.crawlItem(ctx, run, strconv.Itoa(id), fmt.Sprintf(s.cfg.ItemURLFormat, id))
	}
	return run.result(s), ctx.Err()
}

func (s *Scraper) discoverLastPage(ctx context.Context) (int, error) {
	finder, ok := s.parser.(LastPageFinder)
	if !ok {
		return 0, fmt.Errorf("parser cannot read the pager, set an end page")
	}
	resp, err := s.retry.Fetch(ctx, Request{URL: s.listingBase.String(), FollowRedirects: true, Phase: phaseListing})
	if err != nil {
		return 0, err
	}
	return finder.LastPage(resp.Body)
}

func (s *Scraper) listingURL(page int) string {
	return s.listingBase.ResolveReference(&url.URL{Path: strconv.Itoa(page)}).String()
}

func (s *Scraper) documentURL(id string) string {
	u, err := url.Parse(s.cfg.DocumentURL)
	if err != nil {
		return s.cfg.DocumentURL
	}
	q := u.Query()
	q.Set("id", id)
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *Scraper) crawlPage(ctx context.Context, run *crawlRun, page int) {
	pageURL := s.listingURL(page)
	slog.Info("parsing listing page", slog.Int("page", page), slog.String("url", pageURL))

	resp, err := s.retry.Fetch(ctx, Request{URL: pageURL, FollowRedirects: true, Phase: phaseListing})
	if err != nil {
		run.failPage(s, page, err)
		return
	}
	links, err := s.parser.ExtractListingLinks(resp.Body, resp.URL)
	if err != nil {
		run.failPage(s, page, err)
		return
	}
	run.pages++
	slog.Debug("listing page parsed", slog.Int("page", page), slog.Int("books", len(links)))

	for _, link := range links {
		if ctx.Err() != nil {
			return
		}
		id, err := parser.ItemIDFromURL(link)
		if err != nil {
			run.failItem(s, link, err)
			continue
		}
		s.crawlItem(ctx, run, id, link)
	}
}

func (s *Scraper) crawlItem(ctx context.Context, run *crawlRun, id, itemURL string) {
	slog.Info("downloading book", slog.String("id", id))
	book, err := s.fetchItem(ctx, run, id, itemURL)
	switch {
	case err == nil:
		run.record(s, book)
	case errors.Is(err, ErrRedirected):
		run.markAbsent(s, id)
	case ctx.Err() != nil:
		slog.Warn("crawl cancelled", slog.String("id", id))
	default:
		run.failItem(s, id, err)
	}
}

func (s *Scraper) fetchItem(ctx context.Context, run *crawlRun, id, itemURL string) (*models.Book, error) {
	var document []byte
	if !s.cfg.SkipDocuments {
		resp, err := s.retry.Fetch(ctx, Request{URL: s.documentURL(id), Phase: phaseDocument})
		if err != nil {
			return nil, fmt.Errorf("fetch document: %w", err)
		}
		if ClassifyRedirect(resp.StatusCode) == RedirectedAway {
			return nil, fmt.Errorf("%w: document endpoint answered %d", ErrRedirected, resp.StatusCode)
		}
		document = resp.Body
	}

	// Without the document probe the detail page itself has to reveal
	// missing IDs, so its redirects are not followed.
	resp, err := s.retry.Fetch(ctx, Request{URL: itemURL, FollowRedirects: !s.cfg.SkipDocuments, Phase: phaseDetail})
	if err != nil {
		return nil, fmt.Errorf("fetch detail page: %w", err)
	}
	if ClassifyRedirect(resp.StatusCode) == RedirectedAway {
		return nil, fmt.Errorf("%w: detail page answered %d", ErrRedirected, resp.StatusCode)
	}

	book, err := s.parser.ExtractItemMetadata(resp.Body, resp.URL)
	if err != nil {
		return nil, fmt.Errorf("parse detail page: %w", err)
	}
	book.ID = id
	if err := parser.ValidateBook(book); err != nil {
		return nil, fmt.Errorf("%w: %v", parser.ErrParse, err)
	}

	if !s.cfg.SkipDocuments {
		path, err := s.artifacts.SaveDocument(book, document)
		if err != nil {
			return nil, fmt.Errorf("save document: %w", err)
		}
		book.BookPath = path
	}

	if !s.cfg.SkipImages && book.ImageURL != "" {
		path, err := s.downloadImage(ctx, book.ImageURL)
		switch {
		case err == nil:
			book.ImagePath = path
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			run.noteError(s, err)
			slog.Warn("image download failed, keeping book without image",
				slog.String("id", id),
				slog.String("image_url", book.ImageURL),
				slog.String("category", errorTypeLabel(err)),
				slog.Any("error", err),
			)
		}
	}
	return book, nil
}

func (s *Scraper) downloadImage(ctx context.Context, imageURL string) (string, error) {
	if path, ok := s.artifacts.ImagePath(imageURL); ok {
		return path, nil
	}
	resp, err := s.retry.Fetch(ctx, Request{URL: imageURL, FollowRedirects: true, Phase: phaseImage})
	if err != nil {
		return "", fmt.Errorf("fetch image: %w", err)
	}
	if ClassifyRedirect(resp.StatusCode) == RedirectedAway {
		return "", fmt.Errorf("%w: image answered %d", ErrRedirected, resp.StatusCode)
	}
	path, err := s.artifacts.SaveImage(imageURL, resp.Body)
	if err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}
	return path, nil
}

// crawlRun is the state of one Run or RunIDs call.
type crawlRun struct {
	catalog        *models.Catalog
	start          time.Time
	pages          int
	recorded       int
	absent         int
	errorCount     int
	failedItems    []string
	failedPages    []int
	errorsByType   map[string]int
	retriesBefore  int
	requestsBefore int
}

func (s *Scraper) newRun() *crawlRun {
	return &crawlRun{
		catalog:        models.NewCatalog(),
		start:          time.Now(),
		errorsByType:   make(map[string]int),
		retriesBefore:  s.retry.TotalRetries(),
		requestsBefore: s.retry.TotalRequests(),
	}
}

func (r *crawlRun) record(s *Scraper, book *models.Book) {
	r.catalog.Put(book)
	r.recorded++
	s.Metrics.IncRecorded()
}

func (r *crawlRun) markAbsent(s *Scraper, id string) {
	r.absent++
	s.Metrics.IncAbsent()
	slog.Info("book does not exist, redirect detected", slog.String("id", id))
}

func (r *crawlRun) noteError(s *Scraper, err error) string {
	category := errorTypeLabel(err)
	r.errorCount++
	r.errorsByType[category]++
	s.Metrics.IncError(category)
	return category
}

func (r *crawlRun) failItem(s *Scraper, id string, err error) {
	category := r.noteError(s, err)
	r.failedItems = append(r.failedItems, id)
	slog.Error("book skipped",
		slog.String("id", id),
		slog.String("category", category),
		slog.Any("error", err),
	)
}

func (r *crawlRun) failPage(s *Scraper, page int, err error) {
	category := r.noteError(s, err)
	r.failedPages = append(r.failedPages, page)
	slog.Error("listing page skipped",
		slog.Int("page", page),
		slog.String("category", category),
		slog.Any("error", err),
	)
}

func (r *crawlRun) result(s *Scraper) *models.CrawlResult {
	return &models.CrawlResult{
		Catalog:       r.catalog,
		StartTime:     r.start,
		EndTime:       time.Now(),
		PageCount:     r.pages,
		RecordedCount: r.recorded,
		AbsentCount:   r.absent,
		ErrorCount:    r.errorCount,
		FailedItems:   r.failedItems,
		FailedPages:   r.failedPages,
		ErrorsByType:  r.errorsByType,
		RetryCount:    s.retry.TotalRetries() - r.retriesBefore,
		RequestCount:  s.retry.TotalRequests() - r.requestsBefore,
	}
}
