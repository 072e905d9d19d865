package parser

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/aluiziolira/go-scrape-library/models"
)

// ErrParse marks a page that lacks the markup the crawler relies on.
var ErrParse = errors.New("parse error")

const (
	headingSeparator = "::"
	maxFilenameBytes = 200
)

var (
	invalidFilenameChars = regexp.MustCompile(`[\\/:*?"<>|\x00-\x1F\x7F]`)
	whitespaceRun        = regexp.MustCompile(`\s+`)
)

// ValidateBook ensures the scraper captured the required fields.
func ValidateBook(b *models.Book) error {
	if b == nil {
		return fmt.Errorf("book is nil")
	}
	if strings.TrimSpace(b.ID) == "" {
		return fmt.Errorf("book missing id")
	}
	if strings.TrimSpace(b.Title) == "" {
		return fmt.Errorf("book %s missing title", b.ID)
	}
	return nil
}

// SplitHeading splits a "Title :: Author" heading on the first separator.
func SplitHeading(heading string) (title, author string, err error) {
	left, right, found := strings.Cut(heading, headingSeparator)
	if !found {
		return "", "", fmt.Errorf("%w: heading %q has no %q separator", ErrParse, heading, headingSeparator)
	}
	return strings.TrimSpace(left), strings.TrimSpace(right), nil
}

// SanitizeFilename turns a raw title into a name usable as a file name on
// common filesystems. The input is NFC-normalized, path separators, reserved
// punctuation (\ / : * ? " < > |) and control characters are removed, runs of
// whitespace collapse to one space, surrounding spaces and trailing dots are
// trimmed and the result is cut to 200 bytes on a rune boundary.
// An input made only of removed characters yields "".
func SanitizeFilename(raw string) string {
	name := norm.NFC.String(raw)
	name = invalidFilenameChars.ReplaceAllString(name, "")
	name = whitespaceRun.ReplaceAllString(name, " ")
	name = strings.TrimRight(strings.TrimSpace(name), ". ")

	if len(name) > maxFilenameBytes {
		cut := maxFilenameBytes
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = strings.TrimRight(name[:cut], ". ")
	}
	return name
}

// ItemIDFromURL derives the numeric book ID from a detail URL such as
// https://tululu.org/b239/. A segment without a leading letter is used as is.
func ItemIDFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: item url %q: %v", ErrParse, raw, err)
	}
	segment := path.Base(strings.Trim(u.Path, "/"))
	if segment == "" || segment == "." || segment == "/" {
		return "", fmt.Errorf("%w: item url %q has no path segment", ErrParse, raw)
	}
	id := strings.TrimLeftFunc(segment, func(r rune) bool { return !unicode.IsDigit(r) })
	if id == "" {
		return segment, nil
	}
	return id, nil
}

// ImageName returns the file name an image URL is stored under.
func ImageName(imageURL string) (string, error) {
	u, err := url.Parse(imageURL)
	if err != nil {
		return "", fmt.Errorf("image url %q: %w", imageURL, err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("image url %q has no file name", imageURL)
	}
	return name, nil
}
