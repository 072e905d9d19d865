package scraper

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/go-scrape-library/config"
)

const (
	ctxKeyStart    = "start"
	ctxKeyResponse = "response"
)

// Request phases, used as metric labels and in log lines.
const (
	phaseListing  = "listing"
	phaseDocument = "document"
	phaseDetail   = "detail"
	phaseImage    = "image"
)

// Request describes a single GET.
type Request struct {
	URL             string
	FollowRedirects bool
	Phase           string
}

// Response is what a fetch observed. URL is the final URL after any
// followed redirects.
type Response struct {
	StatusCode int
	URL        *url.URL
	Header     http.Header
	Body       []byte
}

// Fetcher performs one GET and reports any status it receives. Only
// transport failures are returned as errors.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*Response, error)
}

// CollyFetcher runs requests through two synchronous colly collectors, one
// following redirects and one returning 3xx responses as they are.
type CollyFetcher struct {
	follow   *colly.Collector
	noFollow *colly.Collector
	metrics  *Metrics
}

// NewCollyFetcher builds a fetcher configured from cfg.
func NewCollyFetcher(cfg *config.Config, metrics *Metrics) *CollyFetcher {
	f := &CollyFetcher{metrics: metrics}
	f.follow = f.newCollector(cfg)
	f.noFollow = f.newCollector(cfg)
	f.noFollow.SetRedirectHandler(func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	})
	return f
}

// WithTransport replaces the transport of both collectors.
func (f *CollyFetcher) WithTransport(rt http.RoundTripper) {
	f.follow.WithTransport(rt)
	f.noFollow.WithTransport(rt)
}

// Fetch issues req and waits for the response.
func (f *CollyFetcher) Fetch(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	collector := f.noFollow
	if req.FollowRedirects {
		collector = f.follow
	}

	reqCtx := colly.NewContext()
	if err := collector.Request(http.MethodGet, req.URL, nil, reqCtx, nil); err != nil {
		return nil, err
	}
	resp, ok := reqCtx.GetAny(ctxKeyResponse).(*Response)
	if !ok {
		return nil, fmt.Errorf("no response captured for %s", req.URL)
	}
	return resp, nil
}

func (f *CollyFetcher) newCollector(cfg *config.Config) *colly.Collector {
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(cfg.MaxBodySize),
		colly.ParseHTTPErrorResponse(),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put(ctxKeyStart, time.Now())
	})

	collector.OnResponse(func(r *colly.Response) {
		if start, ok := r.Ctx.GetAny(ctxKeyStart).(time.Time); ok {
			f.metrics.ObserveDuration(time.Since(start))
		}
		final := *r.Request.URL
		header := http.Header{}
		if r.Headers != nil {
			header = r.Headers.Clone()
		}
		r.Ctx.Put(ctxKeyResponse, &Response{
			StatusCode: r.StatusCode,
			URL:        &final,
			Header:     header,
			Body:       r.Body,
		})
	})

	return collector
}
