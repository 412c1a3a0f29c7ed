package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/voltmarket/catalog-scraper/internal/fetch"
	"github.com/voltmarket/catalog-scraper/internal/models"
)

// Collector walks a search token's result pages in strict page order. Page 1
// has no pagination parameter; later pages add one. A page that yields
// nothing ends the walk: the site offers no reliable last-page signal, so
// emptiness is the conservative termination heuristic.
type Collector struct {
	fetcher   *fetch.Fetcher
	extractor *Extractor
	baseURL   string
	maxPages  int
	pageDelay time.Duration
	logger    *slog.Logger
}

func NewCollector(f *fetch.Fetcher, x *Extractor, baseURL string, maxPages int, pageDelay time.Duration, logger *slog.Logger) *Collector {
	return &Collector{
		fetcher:   f,
		extractor: x,
		baseURL:   strings.TrimRight(baseURL, "/"),
		maxPages:  maxPages,
		pageDelay: pageDelay,
		logger:    logger.With("component", "collector"),
	}
}

func (c *Collector) pageURL(token string, page int) string {
	query := url.QueryEscape(token)
	if page <= 1 {
		return fmt.Sprintf("%s/Stock.aspx?Query=%s", c.baseURL, query)
	}
	return fmt.Sprintf("%s/Stock.aspx?Query=%s&Page=%d", c.baseURL, query, page)
}

// CollectLinks returns the unique product URLs reachable from one search
// token, in discovery order.
func (c *Collector) CollectLinks(ctx context.Context, token string) []string {
	var links []string
	seen := make(map[string]struct{})

	for page := 1; page <= c.maxPages; page++ {
		pageURL := c.pageURL(token, page)
		doc, ok := c.fetcher.Get(ctx, pageURL)
		if !ok {
			break
		}

		pageLinks := c.productLinks(doc, pageURL, seen)
		if len(pageLinks) == 0 {
			break
		}
		links = append(links, pageLinks...)

		c.logger.Info("collected links", "token", token, "page", page, "count", len(pageLinks))

		if !hasNextPageSignal(doc) {
			break
		}
		if !c.pause(ctx) {
			break
		}
	}

	return links
}

func (c *Collector) productLinks(doc *goquery.Document, pageURL string, seen map[string]struct{}) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	var links []string
	doc.Find(`a[href*="ProductInfo.aspx"]`).Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})
	return links
}

// CollectRecords is the direct-extraction mode: candidate records are pulled
// straight from each result page using the grid regime, no product-page
// round trips.
func (c *Collector) CollectRecords(ctx context.Context, token string) []models.CandidateRecord {
	var records []models.CandidateRecord

	for page := 1; page <= c.maxPages; page++ {
		pageURL := c.pageURL(token, page)
		doc, ok := c.fetcher.Get(ctx, pageURL)
		if !ok {
			break
		}

		pageRecords := c.extractor.ExtractGrid(doc, pageURL)
		if len(pageRecords) == 0 {
			break
		}
		records = append(records, pageRecords...)

		c.logger.Info("extracted records", "token", token, "page", page, "count", len(pageRecords))

		if !hasNextPageSignal(doc) {
			break
		}
		if !c.pause(ctx) {
			break
		}
	}

	return records
}

func (c *Collector) pause(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(c.pageDelay):
		return true
	}
}

var nextPagePattern = regexp.MustCompile(`(?i)^(next|last|next page|>+|»|\d+)$`)

// hasNextPageSignal looks for a pagination control pointing past the current
// page. Absence degrades to "no more pages", which under-collects if the
// markup changes; that is the intended conservative failure mode.
func hasNextPageSignal(doc *goquery.Document) bool {
	found := false
	doc.Find("a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if nextPagePattern.MatchString(text) {
			found = true
			return false
		}
		return true
	})
	return found
}
