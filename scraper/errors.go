package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"

	"github.com/aluiziolira/go-scrape-library/parser"
)

var (
	// ErrRedirected marks a book whose endpoint redirected away, which the
	// catalog uses instead of 404 for unknown IDs.
	ErrRedirected = errors.New("redirected away")

	// ErrRetriesExhausted wraps the last transient error once the retry
	// policy gives up.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrHTTPStatus is a client or server error status (4xx/5xx).
type ErrHTTPStatus struct {
	StatusCode int
	URL        string
}

func (e ErrHTTPStatus) Error() string {
	return fmt.Sprintf("http status %d for %s", e.StatusCode, e.URL)
}

// ErrForbidden indicates a forbidden response (HTTP 403).
type ErrForbidden struct {
	Err error
}

func (e ErrForbidden) Error() string {
	return fmt.Errorf("forbidden: %w", e.Err).Error()
}

func (e ErrForbidden) Unwrap() error {
	return e.Err
}

// ErrNotFound indicates a missing resource (HTTP 404).
type ErrNotFound struct {
	Err error
}

func (e ErrNotFound) Error() string {
	return fmt.Errorf("not_found: %w", e.Err).Error()
}

func (e ErrNotFound) Unwrap() error {
	return e.Err
}

// ErrRateLimited indicates the target rate-limited the request.
type ErrRateLimited struct {
	Err error
}

func (e ErrRateLimited) Error() string {
	return fmt.Errorf("rate_limited: %w", e.Err).Error()
}

func (e ErrRateLimited) Unwrap() error {
	return e.Err
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if errors.Is(err, ErrRedirected) {
		return "redirect"
	}
	if errors.Is(err, ErrRetriesExhausted) {
		return "retries_exhausted"
	}
	if errors.Is(err, parser.ErrParse) {
		return "parse"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var forbidden ErrForbidden
	if errors.As(err, &forbidden) {
		return "forbidden"
	}
	var notFound ErrNotFound
	if errors.As(err, &notFound) {
		return "not_found"
	}
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return "rate_limited"
	}
	var status ErrHTTPStatus
	if errors.As(err, &status) {
		return "http_status"
	}
	return "other"
}

// classifyError wraps a transport error or an error status in the
// taxonomy above. It returns nil for a transport success below 400.
func classifyError(err error, statusCode int, rawURL string) error {
	if err == nil && statusCode < http.StatusBadRequest {
		return nil
	}

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout{Err: err}
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ErrTimeout{Err: err}
		}
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			return ErrConnection{Err: err}
		}
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) {
			return ErrConnection{Err: err}
		}
		if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
			errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return ErrConnection{Err: err}
		}
		return err
	}

	wrapped := ErrHTTPStatus{StatusCode: statusCode, URL: rawURL}
	switch statusCode {
	case http.StatusForbidden:
		return ErrForbidden{Err: wrapped}
	case http.StatusNotFound:
		return ErrNotFound{Err: wrapped}
	case http.StatusTooManyRequests:
		return ErrRateLimited{Err: wrapped}
	}
	return wrapped
}

// isTransient reports whether a classified error is worth retrying.
func isTransient(err error) bool {
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return true
	}
	var conn ErrConnection
	return errors.As(err, &conn)
}
