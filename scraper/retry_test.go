package scraper

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-library/config"
)

type fetchStep struct {
	resp *Response
	err  error
}

// scriptedFetcher replays steps in order and repeats the last one.
type scriptedFetcher struct {
	steps []fetchStep
	calls int
}

func (f *scriptedFetcher) Fetch(_ context.Context, _ Request) (*Response, error) {
	step := f.steps[min(f.calls, len(f.steps)-1)]
	f.calls++
	return step.resp, step.err
}

func connRefused() fetchStep {
	return fetchStep{err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}}
}

func status(code int) fetchStep {
	return fetchStep{resp: &Response{StatusCode: code, Body: []byte("body")}}
}

// newTestRetrying replaces sleeping with a fake clock that advances by each
// delay.
func newTestRetrying(f Fetcher, policy RetryPolicy) (*RetryingFetcher, *[]time.Duration) {
	r := NewRetryingFetcher(f, policy, NewMetrics())
	clock := time.Unix(0, 0)
	delays := &[]time.Duration{}
	r.now = func() time.Time { return clock }
	r.sleep = func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		clock = clock.Add(d)
		return ctx.Err()
	}
	return r, delays
}

var testRequest = Request{URL: "http://example.test/b1/", FollowRedirects: true, Phase: phaseDetail}

func TestRetryingFetcherRecoversFromTransientErrors(t *testing.T) {
	f := &scriptedFetcher{steps: []fetchStep{connRefused(), connRefused(), status(http.StatusOK)}}
	r, delays := newTestRetrying(f, PolicyFromConfig(config.DefaultConfig()))

	resp, err := r.Fetch(context.Background(), testRequest)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if resp.StatusCode != http.StatusOK || string(resp.Body) != "body" {
		t.Fatalf("response = %d %q", resp.StatusCode, resp.Body)
	}
	if f.calls != 3 {
		t.Fatalf("calls = %d, want 3", f.calls)
	}
	if got := r.TotalRetries(); got != 2 {
		t.Fatalf("retries = %d, want 2", got)
	}
	if got := r.TotalRequests(); got != 3 {
		t.Fatalf("requests = %d, want 3", got)
	}
	for _, d := range *delays {
		if d != time.Second {
			t.Fatalf("delays = %v, want a fixed 1s", *delays)
		}
	}
}

func TestRetryingFetcherDoesNotRetryErrorStatus(t *testing.T) {
	f := &scriptedFetcher{steps: []fetchStep{status(http.StatusNotFound)}}
	r, _ := newTestRetrying(f, PolicyFromConfig(config.DefaultConfig()))

	resp, err := r.Fetch(context.Background(), testRequest)
	var notFound ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("response should be returned with the error, got %+v", resp)
	}
	if f.calls != 1 {
		t.Fatalf("calls = %d, want 1", f.calls)
	}
}

func TestRetryingFetcherPassesRedirectsThrough(t *testing.T) {
	f := &scriptedFetcher{steps: []fetchStep{status(http.StatusFound)}}
	r, _ := newTestRetrying(f, PolicyFromConfig(config.DefaultConfig()))

	resp, err := r.Fetch(context.Background(), testRequest)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("status = %d, want 302", resp.StatusCode)
	}
}

func TestRetryingFetcherExhaustsRetries(t *testing.T) {
	f := &scriptedFetcher{steps: []fetchStep{connRefused()}}
	r, _ := newTestRetrying(f, RetryPolicy{MaxRetries: 2, Backoff: time.Millisecond})

	_, err := r.Fetch(context.Background(), testRequest)
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("err = %v, want ErrRetriesExhausted", err)
	}
	if got := errorTypeLabel(err); got != "retries_exhausted" {
		t.Fatalf("label = %q", got)
	}
	var conn ErrConnection
	if !errors.As(err, &conn) {
		t.Fatalf("last cause should be kept, got %v", err)
	}
	if f.calls != 3 {
		t.Fatalf("calls = %d, want 3", f.calls)
	}
}

func TestRetryingFetcherUnlimitedRetries(t *testing.T) {
	steps := make([]fetchStep, 0, 26)
	for i := 0; i < 25; i++ {
		steps = append(steps, connRefused())
	}
	steps = append(steps, status(http.StatusOK))
	f := &scriptedFetcher{steps: steps}
	r, _ := newTestRetrying(f, RetryPolicy{MaxRetries: -1, Backoff: time.Second, BackoffMax: time.Second})

	if _, err := r.Fetch(context.Background(), testRequest); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if f.calls != 26 {
		t.Fatalf("calls = %d, want 26", f.calls)
	}
}

func TestRetryingFetcherMaxElapsed(t *testing.T) {
	f := &scriptedFetcher{steps: []fetchStep{connRefused()}}
	r, _ := newTestRetrying(f, RetryPolicy{MaxRetries: -1, MaxElapsed: 3 * time.Second, Backoff: time.Second, BackoffMax: time.Second})

	_, err := r.Fetch(context.Background(), testRequest)
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("err = %v, want ErrRetriesExhausted", err)
	}
	if f.calls != 4 {
		t.Fatalf("calls = %d, want 4", f.calls)
	}
}

func TestRetryingFetcherStopsWhenCancelled(t *testing.T) {
	f := &scriptedFetcher{steps: []fetchStep{connRefused()}}
	r := NewRetryingFetcher(f, RetryPolicy{MaxRetries: -1, Backoff: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	r.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return sleepContext(ctx, d)
	}

	_, err := r.Fetch(ctx, testRequest)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if f.calls != 1 {
		t.Fatalf("calls = %d, want 1", f.calls)
	}
}

func TestRetryPolicyBackoffCapped(t *testing.T) {
	policy := RetryPolicy{Backoff: 200 * time.Millisecond, BackoffMax: 500 * time.Millisecond}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: 200 * time.Millisecond},
		{attempt: 1, want: 200 * time.Millisecond},
		{attempt: 2, want: 400 * time.Millisecond},
		{attempt: 3, want: 500 * time.Millisecond},
		{attempt: 40, want: 500 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := policy.backoff(tt.attempt); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}

	if got := (RetryPolicy{}).backoff(3); got != 0 {
		t.Fatalf("zero base backoff = %v, want 0", got)
	}
}

func TestRetryPolicyAllows(t *testing.T) {
	tests := []struct {
		name    string
		policy  RetryPolicy
		retries int
		elapsed time.Duration
		want    bool
	}{
		{name: "under limit", policy: RetryPolicy{MaxRetries: 2}, retries: 1, want: true},
		{name: "at limit", policy: RetryPolicy{MaxRetries: 2}, retries: 2, want: false},
		{name: "zero retries", policy: RetryPolicy{MaxRetries: 0}, retries: 0, want: false},
		{name: "unlimited", policy: RetryPolicy{MaxRetries: -1}, retries: 1000, want: true},
		{name: "elapsed budget", policy: RetryPolicy{MaxRetries: -1, MaxElapsed: time.Minute}, retries: 3, elapsed: time.Minute, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.allows(tt.retries, tt.elapsed); got != tt.want {
				t.Fatalf("allows(%d, %v) = %v, want %v", tt.retries, tt.elapsed, got, tt.want)
			}
		})
	}
}

func TestOutcomeString(t *testing.T) {
	if OutcomeRetryable.String() != "retryable" || Outcome(9).String() != "outcome(9)" {
		t.Fatalf("unexpected outcome names")
	}
}
