package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/go-scrape-library/config"
)

// Outcome is the verdict on a single fetch attempt.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRetryable
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeFatal:
		return "fatal"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// classifyOutcome maps a fetch result to an Outcome. Redirects are a
// success here; deciding what they mean is left to the caller.
func classifyOutcome(req Request, resp *Response, err error) (Outcome, error) {
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	classified := classifyError(err, status, req.URL)
	switch {
	case classified == nil:
		return OutcomeSuccess, nil
	case isTransient(classified):
		return OutcomeRetryable, classified
	default:
		return OutcomeFatal, classified
	}
}

// RetryPolicy bounds how transient failures are retried.
type RetryPolicy struct {
	MaxRetries int           // negative means no limit
	MaxElapsed time.Duration // zero means no limit
	Backoff    time.Duration
	BackoffMax time.Duration
}

// PolicyFromConfig reads the retry settings of cfg.
func PolicyFromConfig(cfg *config.Config) RetryPolicy {
	return RetryPolicy{
		MaxRetries: cfg.MaxRetries,
		MaxElapsed: cfg.RetryMaxElapsed,
		Backoff:    cfg.RetryBackoff,
		BackoffMax: cfg.RetryBackoffMax,
	}
}

func (p RetryPolicy) allows(retries int, elapsed time.Duration) bool {
	if p.MaxRetries >= 0 && retries >= p.MaxRetries {
		return false
	}
	if p.MaxElapsed > 0 && elapsed >= p.MaxElapsed {
		return false
	}
	return true
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	if attempt > 16 {
		attempt = 16
	}

	base := p.Backoff
	if base <= 0 {
		return 0
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := p.BackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

// RetryingFetcher retries transient failures of an underlying Fetcher.
// Error statuses are returned at once together with the response.
type RetryingFetcher struct {
	fetcher Fetcher
	policy  RetryPolicy
	metrics *Metrics

	sleep func(context.Context, time.Duration) error
	now   func() time.Time

	requests int64
	retries  int64
}

// NewRetryingFetcher wraps fetcher with policy.
func NewRetryingFetcher(fetcher Fetcher, policy RetryPolicy, metrics *Metrics) *RetryingFetcher {
	return &RetryingFetcher{
		fetcher: fetcher,
		policy:  policy,
		metrics: metrics,
		sleep:   sleepContext,
		now:     time.Now,
	}
}

// Fetch runs req until it succeeds, fails fatally, the policy gives up or
// ctx is done.
func (r *RetryingFetcher) Fetch(ctx context.Context, req Request) (*Response, error) {
	start := r.now()
	for retries := 0; ; retries++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		atomic.AddInt64(&r.requests, 1)
		r.metrics.IncRequest(req.Phase)
		resp, err := r.fetcher.Fetch(ctx, req)

		outcome, classified := classifyOutcome(req, resp, err)
		switch outcome {
		case OutcomeSuccess:
			return resp, nil
		case OutcomeFatal:
			return resp, classified
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !r.policy.allows(retries, r.now().Sub(start)) {
			return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, retries+1, classified)
		}

		delay := r.policy.backoff(retries + 1)
		atomic.AddInt64(&r.retries, 1)
		r.metrics.IncRetries()
		slog.Warn("connection error, retrying",
			slog.String("url", req.URL),
			slog.String("phase", req.Phase),
			slog.String("category", errorTypeLabel(classified)),
			slog.Int("attempt", retries+1),
			slog.Duration("delay", delay),
			slog.Any("error", err),
		)
		if err := r.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("waiting to retry %s: %w", req.URL, err)
		}
	}
}

// TotalRetries reports the retries scheduled so far.
func (r *RetryingFetcher) TotalRetries() int {
	return int(atomic.LoadInt64(&r.retries))
}

// TotalRequests reports the attempts issued so far.
func (r *RetryingFetcher) TotalRequests() int {
	return int(atomic.LoadInt64(&r.requests))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
