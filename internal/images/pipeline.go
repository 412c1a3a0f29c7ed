package images

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/voltmarket/catalog-scraper/internal/fetch"
	"github.com/voltmarket/catalog-scraper/internal/models"
	"github.com/voltmarket/catalog-scraper/internal/monitoring"
)

// Uploader stores image bytes and returns a durable public URL.
type Uploader interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
}

// Pipeline fetches candidate product images, re-keys them, and uploads them
// to object storage. Image work runs on its own small pool so it never
// stalls page-fetch scheduling. Every failure path returns nil rather than
// an error: a record with fewer images is a valid outcome.
type Pipeline struct {
	fetcher  *fetch.Fetcher
	uploader Uploader
	pool     *semaphore.Weighted
	metrics  *monitoring.Metrics
	logger   *slog.Logger
}

func NewPipeline(f *fetch.Fetcher, uploader Uploader, workers int, metrics *monitoring.Metrics, logger *slog.Logger) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		fetcher:  f,
		uploader: uploader,
		pool:     semaphore.NewWeighted(int64(workers)),
		metrics:  metrics,
		logger:   logger.With("component", "image_pipeline"),
	}
}

// Materialize fetches one image and uploads it under a collision-resistant
// storage key. Decorative assets are filtered before any fetch happens.
func (p *Pipeline) Materialize(ctx context.Context, imageURL, productName string) *models.ImageRef {
	if !IsProductImageURL(imageURL) {
		return nil
	}
	if p.uploader == nil {
		return nil
	}

	if err := p.pool.Acquire(ctx, 1); err != nil {
		return nil
	}
	defer p.pool.Release(1)

	data, contentType, ok := p.fetcher.GetBytes(ctx, imageURL)
	if !ok || len(data) == 0 {
		p.countFailure()
		return nil
	}

	if contentType == "" {
		contentType = "image/jpeg"
	}

	key := StorageKey(productName, contentType)
	publicURL, err := p.uploader.Upload(ctx, key, data, contentType)
	if err != nil {
		p.logger.Warn("image upload failed", "url", imageURL, "error", err)
		p.countFailure()
		return nil
	}

	if p.metrics != nil {
		p.metrics.ImagesUploaded.Inc()
	}
	return &models.ImageRef{
		SourceURL:   imageURL,
		StorageKey:  key,
		PublicURL:   publicURL,
		ContentType: contentType,
	}
}

// MaterializeAll processes up to max image URLs for one record, preserving
// input order in the result.
func (p *Pipeline) MaterializeAll(ctx context.Context, urls []string, productName string, max int) []models.ImageRef {
	if len(urls) > max {
		urls = urls[:max]
	}

	results := make([]*models.ImageRef, len(urls))
	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			results[i] = p.Materialize(ctx, u, productName)
		}(i, u)
	}
	wg.Wait()

	var refs []models.ImageRef
	for _, r := range results {
		if r != nil {
			refs = append(refs, *r)
		}
	}
	return refs
}

func (p *Pipeline) countFailure() {
	if p.metrics != nil {
		p.metrics.ImageFailures.Inc()
	}
}

var unsafeKeyChars = regexp.MustCompile(`[^\w\-.]`)

// StorageKey derives a source-namespaced object path from a sanitized product
// name plus a random suffix, with the extension inferred from the content
// type.
func StorageKey(productName, contentType string) string {
	clean := unsafeKeyChars.ReplaceAllString(productName, "_")
	if len(clean) > 50 {
		clean = clean[:50]
	}
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("mantech/mantech_%s_%s%s", clean, suffix, extensionFor(contentType))
}

func extensionFor(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "png"):
		return ".png"
	case strings.Contains(ct, "gif"):
		return ".gif"
	case strings.Contains(ct, "webp"):
		return ".webp"
	default:
		return ".jpg"
	}
}
