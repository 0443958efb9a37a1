package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"path"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/bigbio/mad-decoy/internal/resilience"
)

// AdaptiveLimiter wraps a rate.Limiter with adaptive rate adjustment.
// On success it increases the rate by 20% (up to 2x initial).
// On 429 it halves the rate (down to initial/4 minimum).
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	maxRate     rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates an adaptive rate limiter. A non-positive rate
// disables limiting.
func NewAdaptiveLimiter(initialRate rate.Limit, burst int) *AdaptiveLimiter {
	if initialRate <= 0 {
		initialRate = rate.Inf
	}
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(initialRate, burst),
		maxRate:     initialRate * 2,
		minRate:     initialRate / 4,
		currentRate: initialRate,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess increases the rate by 20%, up to 2x initial.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.currentRate == rate.Inf {
		return
	}
	a.currentRate = min(a.currentRate*1.2, a.maxRate)
	a.limiter.SetLimit(a.currentRate)
}

// OnRateLimit halves the rate on 429 responses.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.currentRate == rate.Inf {
		return
	}
	a.currentRate = max(a.currentRate*0.5, a.minRate)
	a.limiter.SetLimit(a.currentRate)
	zap.L().Warn("adaptive rate limit: reducing rate after 429",
		zap.Float64("new_rate", float64(a.currentRate)),
	)
}

// Limit returns the current rate limit.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// HTTPSource downloads a fixed list of table URLs.
type HTTPSource struct {
	urls      []string
	client    *http.Client
	limiter   *AdaptiveLimiter
	retry     resilience.RetryConfig
	userAgent string
}

// NewHTTPSource creates an HTTPSource over urls.
func NewHTTPSource(urls []string, opts Options) *HTTPSource {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     20,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "mad-decoy/1.0"
	}
	return &HTTPSource{
		urls:      urls,
		client:    client,
		limiter:   NewAdaptiveLimiter(rate.Limit(opts.RateLimit), 1),
		retry:     opts.Retry,
		userAgent: userAgent,
	}
}

// List returns one entry per URL, named after the last path segment.
func (s *HTTPSource) List(_ context.Context) ([]Entry, error) {
	entries := make([]Entry, 0, len(s.urls))
	for _, raw := range s.urls {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: parse url %s", raw)
		}
		name := path.Base(u.Path)
		if name == "/" || name == "." {
			name = u.Host
		}
		entries = append(entries, Entry{Name: name, Location: raw, Size: -1})
	}
	sortEntries(entries)
	return entries, nil
}

// Open downloads the entry, retrying transient failures and 408/429/5xx
// responses.
func (s *HTTPSource) Open(ctx context.Context, e Entry) (io.ReadCloser, error) {
	retry := s.retry
	retry.OnRetry = resilience.RetryLogger("http", e.Location)

	return resilience.DoVal(ctx, retry, func(ctx context.Context) (io.ReadCloser, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.Location, nil)
		if err != nil {
			return nil, eris.Wrap(err, "create request")
		}
		req.Header.Set("User-Agent", s.userAgent)

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "download")
		}

		if resp.StatusCode == http.StatusOK {
			s.limiter.OnSuccess()
			return resp.Body, nil
		}

		_ = resp.Body.Close()
		statusErr := eris.Errorf("download: unexpected status %d from %s", resp.StatusCode, e.Location)
		if resp.StatusCode == http.StatusTooManyRequests {
			s.limiter.OnRateLimit()
		}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	})
}

// Close releases idle connections.
func (s *HTTPSource) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
