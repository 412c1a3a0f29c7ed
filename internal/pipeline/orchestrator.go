package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/voltmarket/catalog-scraper/internal/dedup"
	"github.com/voltmarket/catalog-scraper/internal/fetch"
	"github.com/voltmarket/catalog-scraper/internal/models"
	"github.com/voltmarket/catalog-scraper/internal/monitoring"
	"github.com/voltmarket/catalog-scraper/internal/scrape"
)

// Mode selects how product records are obtained for each search token.
type Mode string

const (
	// ModeLinks walks result pages for product links, then extracts each
	// product detail page.
	ModeLinks Mode = "links"
	// ModeDirect extracts records straight from the result grid.
	ModeDirect Mode = "direct"
)

// CatalogStore is the destination-store surface the orchestrator needs.
type CatalogStore interface {
	ResolveSellerID(ctx context.Context, email string) (string, error)
	WriteBatch(ctx context.Context, sellerID string, offset int, records []models.Product) models.BatchResult
}

// ImageMaterializer turns candidate image URLs into durable references.
type ImageMaterializer interface {
	MaterializeAll(ctx context.Context, urls []string, productName string, max int) []models.ImageRef
}

// TokenEnumerator produces the search tokens for a run.
type TokenEnumerator interface {
	Enumerate(ctx context.Context) map[string]struct{}
}

const maxImagesPerRecord = 3

type Options struct {
	Mode        Mode
	SellerEmail string
	BatchSize   int
	BatchDelay  time.Duration
	// Tokens overrides the enumerator when non-empty.
	Tokens []string
	// MaxPages caps the per-token page walk; zero means the configured default.
	MaxPages int
}

// Orchestrator sequences discovery, extraction, validation, dedup, image
// materialization, and batched writes. Token- and URL-level failures never
// abort a run; only a failed seller resolution does, and that happens before
// any crawling.
type Orchestrator struct {
	opts      Options
	fetcher   *fetch.Fetcher
	enum      TokenEnumerator
	collector *scrape.Collector
	extractor *scrape.Extractor
	validator *scrape.Validator
	visited   dedup.Deduplicator
	images    ImageMaterializer
	store     CatalogStore
	metrics   *monitoring.Metrics
	logger    *slog.Logger

	mu       sync.Mutex
	counters models.RunCounters
}

func NewOrchestrator(
	opts Options,
	fetcher *fetch.Fetcher,
	enum TokenEnumerator,
	collector *scrape.Collector,
	extractor *scrape.Extractor,
	validator *scrape.Validator,
	visited dedup.Deduplicator,
	images ImageMaterializer,
	store CatalogStore,
	metrics *monitoring.Metrics,
	logger *slog.Logger,
) *Orchestrator {
	if opts.Mode == "" {
		opts.Mode = ModeLinks
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 5
	}
	return &Orchestrator{
		opts:      opts,
		fetcher:   fetcher,
		enum:      enum,
		collector: collector,
		extractor: extractor,
		validator: validator,
		visited:   visited,
		images:    images,
		store:     store,
		metrics:   metrics,
		logger:    logger.With("component", "orchestrator"),
	}
}

// Counters returns a snapshot of the run's progress accounting.
func (o *Orchestrator) Counters() models.RunCounters {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counters
}

// Run drives one full extraction run and returns its final counters.
func (o *Orchestrator) Run(ctx context.Context) (models.RunCounters, error) {
	sellerID, err := o.store.ResolveSellerID(ctx, o.opts.SellerEmail)
	if err != nil {
		return o.Counters(), fmt.Errorf("failed to resolve seller identity: %w", err)
	}

	tokens := o.tokens(ctx)
	o.logger.Info("starting extraction run", "mode", string(o.opts.Mode), "tokens", len(tokens))

	var pending []models.Product
	written := 0

	flush := func() {
		if len(pending) == 0 {
			return
		}
		o.writeBatch(ctx, sellerID, written, pending)
		written += len(pending)
		pending = nil
	}

	for _, token := range tokens {
		if ctx.Err() != nil {
			break
		}

		records := o.recordsForToken(ctx, token)
		o.bump(func(c *models.RunCounters) { c.TokensProcessed++ })

		for _, rec := range records {
			pending = append(pending, rec)
			if len(pending) >= o.opts.BatchSize {
				flush()
				if o.opts.BatchDelay > 0 {
					select {
					case <-ctx.Done():
					case <-time.After(o.opts.BatchDelay):
					}
				}
			}
		}
	}
	flush()

	counters := o.Counters()
	o.logger.Info("extraction run complete",
		"records_written", counters.RecordsWritten,
		"images_uploaded", counters.ImagesUploaded,
		"records_rejected", counters.RecordsRejected,
		"batch_failures", counters.BatchFailures)
	return counters, nil
}

// tokens returns the run's token list in stable order for predictable logs.
func (o *Orchestrator) tokens(ctx context.Context) []string {
	if len(o.opts.Tokens) > 0 {
		return o.opts.Tokens
	}
	set := o.enum.Enumerate(ctx)
	tokens := make([]string, 0, len(set))
	for t := range set {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)
	return tokens
}

// recordsForToken produces validated records for one search token.
func (o *Orchestrator) recordsForToken(ctx context.Context, token string) []models.Product {
	var candidates []models.CandidateRecord

	switch o.opts.Mode {
	case ModeDirect:
		candidates = o.collector.CollectRecords(ctx, token)
	default:
		for _, link := range o.collector.CollectLinks(ctx, token) {
			canonical := dedup.CanonicalURL(link)
			if !o.visited.ShouldProcess(ctx, canonical) {
				continue
			}
			if c, ok := o.extractProduct(ctx, link); ok {
				candidates = append(candidates, c)
			}
		}
	}

	var validated []models.Product
	for _, c := range candidates {
		rec, rejection := o.validator.Validate(c)
		if rejection != scrape.RejectNone {
			o.logger.Warn("candidate rejected", "token", token, "reason", string(rejection), "name", c.Name)
			o.bump(func(cs *models.RunCounters) { cs.RecordsRejected++ })
			if o.metrics != nil {
				o.metrics.RecordsRejected.WithLabelValues(string(rejection)).Inc()
			}
			continue
		}
		if !o.visited.ShouldProcess(ctx, rec.NaturalKey) {
			continue
		}
		o.bump(func(cs *models.RunCounters) { cs.RecordsExtracted++ })
		if o.metrics != nil {
			o.metrics.RecordsExtracted.Inc()
		}
		validated = append(validated, attachImages(rec, c.ImageURLs))
	}
	return validated
}

// attachImages stages the candidate image URLs on the record; materialization
// happens at batch time.
func attachImages(rec models.Product, urls []string) models.Product {
	refs := make([]models.ImageRef, 0, len(urls))
	for _, u := range urls {
		refs = append(refs, models.ImageRef{SourceURL: u})
	}
	rec.Images = refs
	return rec
}

func (o *Orchestrator) extractProduct(ctx context.Context, link string) (models.CandidateRecord, bool) {
	doc, ok := o.fetcher.Get(ctx, link)
	if !ok {
		return models.CandidateRecord{}, false
	}
	o.bump(func(c *models.RunCounters) { c.PagesFetched++ })

	switch o.extractor.DetectShape(doc) {
	case scrape.ShapeResultsGrid:
		if recs := o.extractor.ExtractGrid(doc, link); len(recs) > 0 {
			return recs[0], true
		}
		return models.CandidateRecord{}, false
	case scrape.ShapeDetailTable:
		return o.extractor.ExtractDetail(doc, link)
	default:
		return models.CandidateRecord{}, false
	}
}

// writeBatch materializes images for the batch, then upserts it. A failed
// batch is reported with its extent and the run moves on.
func (o *Orchestrator) writeBatch(ctx context.Context, sellerID string, offset int, batch []models.Product) {
	for i := range batch {
		urls := make([]string, 0, len(batch[i].Images))
		for _, ref := range batch[i].Images {
			urls = append(urls, ref.SourceURL)
		}
		refs := o.images.MaterializeAll(ctx, urls, batch[i].Name, maxImagesPerRecord)
		batch[i].Images = refs
		o.bump(func(c *models.RunCounters) { c.ImagesUploaded += len(refs) })
	}

	result := o.store.WriteBatch(ctx, sellerID, offset, batch)
	if result.Error != "" {
		o.logger.Error("batch write failed", "offset", result.Offset, "size", result.Size, "error", result.Error)
		o.bump(func(c *models.RunCounters) { c.BatchFailures++ })
		if o.metrics != nil {
			o.metrics.BatchFailures.Inc()
		}
		return
	}

	o.bump(func(c *models.RunCounters) { c.RecordsWritten += result.Written })
	if o.metrics != nil {
		o.metrics.BatchesWritten.Inc()
	}
	o.logger.Info("progress", "offset", result.Offset, "written", result.Written,
		"total_written", o.Counters().RecordsWritten, "images", o.Counters().ImagesUploaded)
}

func (o *Orchestrator) bump(fn func(*models.RunCounters)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(&o.counters)
}
