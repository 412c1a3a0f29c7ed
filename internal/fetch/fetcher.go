package fetch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/voltmarket/catalog-scraper/internal/monitoring"
)

// Fetcher issues HTTP GETs against the upstream site with bounded
// concurrency and a fixed inter-request delay. It never retries: a failed
// fetch is reported as a miss and the caller moves on.
type Fetcher struct {
	client    *http.Client
	gate      *semaphore.Weighted
	limiter   *rate.Limiter
	userAgent string
	metrics   *monitoring.Metrics
	logger    *slog.Logger
}

type Options struct {
	ConcurrentLimit int
	RequestTimeout  time.Duration
	RequestDelay    time.Duration
	UserAgent       string
	Metrics         *monitoring.Metrics
}

func New(opts Options, logger *slog.Logger) *Fetcher {
	if opts.ConcurrentLimit < 1 {
		opts.ConcurrentLimit = 1
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.RequestDelay <= 0 {
		opts.RequestDelay = 500 * time.Millisecond
	}
	return &Fetcher{
		client:    &http.Client{Timeout: opts.RequestTimeout},
		gate:      semaphore.NewWeighted(int64(opts.ConcurrentLimit)),
		limiter:   rate.NewLimiter(rate.Every(opts.RequestDelay), 1),
		userAgent: opts.UserAgent,
		metrics:   opts.Metrics,
		logger:    logger.With("component", "fetcher"),
	}
}

// Get fetches a page and parses it. The second return is false on any
// transport error, timeout, or non-2xx status.
func (f *Fetcher) Get(ctx context.Context, url string) (*goquery.Document, bool) {
	body, _, ok := f.do(ctx, url)
	if !ok {
		return nil, false
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		f.logger.Warn("failed to parse page", "url", url, "error", err)
		return nil, false
	}
	if f.metrics != nil {
		f.metrics.PagesFetched.Inc()
	}
	return doc, true
}

// GetBytes fetches raw bytes, returning the body and the response content
// type. Used for image downloads.
func (f *Fetcher) GetBytes(ctx context.Context, url string) ([]byte, string, bool) {
	body, contentType, ok := f.do(ctx, url)
	if !ok {
		return nil, "", false
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		f.logger.Warn("failed to read body", "url", url, "error", err)
		return nil, "", false
	}
	return data, contentType, true
}

func (f *Fetcher) do(ctx context.Context, url string) (io.ReadCloser, string, bool) {
	if err := f.gate.Acquire(ctx, 1); err != nil {
		return nil, "", false
	}
	defer f.gate.Release(1)

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, "", false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		f.logger.Warn("failed to build request", "url", url, "error", err)
		return nil, "", false
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("fetch failed", "url", url, "error", err)
		if f.metrics != nil {
			f.metrics.FetchErrors.WithLabelValues("transport").Inc()
		}
		return nil, "", false
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		f.logger.Warn("fetch returned non-success status", "url", url, "status", resp.StatusCode)
		if f.metrics != nil {
			f.metrics.FetchErrors.WithLabelValues("status").Inc()
		}
		return nil, "", false
	}

	return resp.Body, resp.Header.Get("Content-Type"), true
}
