// Package parser extracts catalog data from listing and detail pages.
package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-library/models"
)

// Selectors holds the CSS selectors for the catalog markup.
type Selectors struct {
	ListingLinks string
	LastPage     string
	Heading      string
	Image        string
	Comments     string
	Genres       string
}

// DefaultSelectors matches the tululu.org markup.
func DefaultSelectors() Selectors {
	return Selectors{
		ListingLinks: ".tabs .ow_px_td .d_book .bookimage a",
		LastPage:     ".tabs .ow_px_td .center .npage",
		Heading:      ".tabs .ow_px_td h1",
		Image:        ".tabs .ow_px_td .d_book .bookimage img",
		Comments:     ".tabs .ow_px_td .texts .black",
		Genres:       ".tabs .ow_px_td span.d_book a",
	}
}

// HTMLParser reads catalog pages with goquery.
type HTMLParser struct {
	sel Selectors
}

// NewHTMLParser returns a parser using sel.
func NewHTMLParser(sel Selectors) *HTMLParser {
	return &HTMLParser{sel: sel}
}

// ExtractListingLinks returns the detail page URLs of a listing page in
// document order, resolved against base.
func (p *HTMLParser) ExtractListingLinks(body []byte, base *url.URL) ([]string, error) {
	doc, err := p.document(body)
	if err != nil {
		return nil, err
	}

	var links []string
	doc.Find(p.sel.ListingLinks).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		if abs := resolve(base, href); abs != "" {
			links = append(links, abs)
		}
	})
	return links, nil
}

// ExtractItemMetadata reads the title, author, cover, comments and genres of a
// detail page. Relative URLs are resolved against base, which should be the
// URL the response was served from.
func (p *HTMLParser) ExtractItemMetadata(body []byte, base *url.URL) (*models.Book, error) {
	doc, err := p.document(body)
	if err != nil {
		return nil, err
	}

	heading := doc.Find(p.sel.Heading).First()
	if heading.Length() == 0 {
		return nil, fmt.Errorf("%w: heading %q not found", ErrParse, p.sel.Heading)
	}
	rawTitle, author, err := SplitHeading(heading.Text())
	if err != nil {
		return nil, err
	}
	title := SanitizeFilename(rawTitle)
	if title == "" {
		return nil, fmt.Errorf("%w: empty title in heading %q", ErrParse, heading.Text())
	}

	book := &models.Book{
		Title:    title,
		Author:   author,
		Comments: texts(doc.Find(p.sel.Comments)),
		Genres:   texts(doc.Find(p.sel.Genres)),
	}
	if src, ok := doc.Find(p.sel.Image).First().Attr("src"); ok && strings.TrimSpace(src) != "" {
		book.ImageURL = resolve(base, src)
	}
	return book, nil
}

// LastPage reads the highest page number from the listing pager.
func (p *HTMLParser) LastPage(body []byte) (int, error) {
	doc, err := p.document(body)
	if err != nil {
		return 0, err
	}
	pages := doc.Find(p.sel.LastPage)
	if pages.Length() == 0 {
		return 0, fmt.Errorf("%w: pager %q not found", ErrParse, p.sel.LastPage)
	}
	text := strings.TrimSpace(pages.Last().Text())
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("%w: pager value %q: %v", ErrParse, text, err)
	}
	return n, nil
}

func (p *HTMLParser) document(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return doc, nil
}

func texts(s *goquery.Selection) []string {
	out := make([]string, 0, s.Length())
	s.Each(func(_ int, item *goquery.Selection) {
		if text := strings.TrimSpace(item.Text()); text != "" {
			out = append(out, text)
		}
	})
	return out
}

func resolve(base *url.URL, ref string) string {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ""
	}
	if base == nil {
		return u.String()
	}
	return base.ResolveReference(u).String()
}
