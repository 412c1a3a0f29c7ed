package models

import (
	"regexp"
	"strings"
	"time"
)

// Brand assigned to every record extracted from this source.
const Brand = "Mantech"

// CatchAllCategory is the generic fallback category. Records that resolve to
// it are rejected rather than persisted.
const CatchAllCategory = "Electronics Components"

// CandidateRecord is an unvalidated product extracted from a single page or
// grid row. It is discarded after validation.
type CandidateRecord struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	SourceURL    string   `json:"source_url"`
	StockCode    string   `json:"stock_code,omitempty"`
	Price        float64  `json:"price"`
	Stock        int      `json:"stock_quantity"`
	ImageURLs    []string `json:"image_urls,omitempty"`
	RawFragments []string `json:"raw_fragments,omitempty"`
}

// ImageRef points at a materialized product image. PublicURL is empty until
// the upload has succeeded.
type ImageRef struct {
	SourceURL   string `json:"source_url"`
	StorageKey  string `json:"storage_key"`
	PublicURL   string `json:"public_url,omitempty"`
	ContentType string `json:"content_type"`
}

// Product is a validated catalog record, immutable once created.
type Product struct {
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Category       string            `json:"category"`
	Brand          string            `json:"brand"`
	Price          float64           `json:"price"`
	StockQuantity  int               `json:"stock_quantity"`
	Images         []ImageRef        `json:"images"`
	Specifications map[string]string `json:"specifications"`
	NaturalKey     string            `json:"natural_key"`
	SourceURL      string            `json:"source_url"`
	ExtractedAt    time.Time         `json:"extracted_at"`
}

// PrimaryImageURL returns the public URL of the first uploaded image, or
// empty when no image was materialized.
func (p *Product) PrimaryImageURL() string {
	for _, img := range p.Images {
		if img.PublicURL != "" {
			return img.PublicURL
		}
	}
	return ""
}

var keyClean = regexp.MustCompile(`[^a-z0-9]+`)

// DeriveNaturalKey builds the store-level dedup key: the stock code when one
// was recovered from the page, otherwise a slug of the cleaned name. Two
// crawls of the same product must converge to the same key.
func DeriveNaturalKey(stockCode, name string) string {
	if stockCode != "" {
		return "mantech:" + strings.ToLower(stockCode)
	}
	slug := keyClean.ReplaceAllString(strings.ToLower(name), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 80 {
		slug = slug[:80]
	}
	return "mantech:" + slug
}

// BatchResult reports the outcome of one store write extent.
type BatchResult struct {
	Offset  int    `json:"offset"`
	Size    int    `json:"size"`
	Written int    `json:"written"`
	Error   string `json:"error,omitempty"`
}

// RunCounters is the per-run progress accounting kept by the orchestrator.
type RunCounters struct {
	TokensProcessed  int `json:"tokens_processed"`
	PagesFetched     int `json:"pages_fetched"`
	RecordsExtracted int `json:"records_extracted"`
	RecordsRejected  int `json:"records_rejected"`
	RecordsWritten   int `json:"records_written"`
	ImagesUploaded   int `json:"images_uploaded"`
	BatchFailures    int `json:"batch_failures"`
}
