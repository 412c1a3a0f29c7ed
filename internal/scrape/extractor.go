package scrape

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/voltmarket/catalog-scraper/internal/images"
	"github.com/voltmarket/catalog-scraper/internal/models"
)

// PageShape classifies the markup variant a page was generated with.
type PageShape int

const (
	ShapeUnknown PageShape = iota
	// ShapeResultsGrid is the label-indexed span layout of search/category
	// result pages.
	ShapeResultsGrid
	// ShapeDetailTable is the plain table layout of product detail pages.
	ShapeDetailTable
)

// gridRules is the versioned rule table for the label-indexed span variant.
// The page generator's field ordering is not fixed across variants, so price
// and quantity lookups probe an ordered set of candidate label offsets.
type gridRules struct {
	version      int
	nameLabel    int
	descLabel    int
	priceLabels  []int
	stockLabels  []int
	priceMin     float64
	priceMax     float64
	stockMin     int
	stockMax     int
	defaultStock int
	maxImages    int
}

// tableRules is the versioned rule table for the detail-table variant.
type tableRules struct {
	version      int
	minColumns   int
	nameColFirst int // inclusive, zero-based
	nameColLast  int // exclusive
	minNameLen   int
	maxNameLen   int
	defaultStock int
	maxImages    int
}

var resultsGridRules = gridRules{
	version:      1,
	nameLabel:    42,
	descLabel:    43,
	priceLabels:  []int{44, 45, 46, 47, 48},
	stockLabels:  []int{49, 50, 51, 52},
	priceMin:     0.1,
	priceMax:     5000,
	stockMin:     1,
	stockMax:     1000,
	defaultStock: 10,
	maxImages:    3,
}

var detailTableRules = tableRules{
	version:      1,
	minColumns:   4,
	nameColFirst: 3,
	nameColLast:  6,
	minNameLen:   5,
	maxNameLen:   200,
	defaultStock: 50,
	maxImages:    2,
}

const gridSpanPrefix = "ContentPlaceHolder1_GridView1_Label"

var gridNamePattern = regexp.MustCompile(`^` + gridSpanPrefix + `42_(\d+)$`)

var pricePattern = regexp.MustCompile(`(\d+(?:[.,]\d{1,2})?)`)

// Extractor turns one fetched document into zero or more candidate records.
// One extractor serves both page variants; DetectShape picks the rule table.
type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger.With("component", "extractor")}
}

// DetectShape inspects the markup and selects the extraction regime.
func (x *Extractor) DetectShape(doc *goquery.Document) PageShape {
	if doc.Find(fmt.Sprintf(`span[id^="%s42_"]`, gridSpanPrefix)).Length() > 0 {
		return ShapeResultsGrid
	}
	if doc.Find("table tr").Length() > 0 {
		return ShapeDetailTable
	}
	return ShapeUnknown
}

// ExtractGrid pulls every candidate row from a label-indexed results page.
// Rows that are pure boilerplate clean down to nothing and are dropped here;
// everything else is left to the validator.
func (x *Extractor) ExtractGrid(doc *goquery.Document, pageURL string) []models.CandidateRecord {
	rules := resultsGridRules
	var records []models.CandidateRecord

	doc.Find(fmt.Sprintf(`span[id^="%s%d_"]`, gridSpanPrefix, rules.nameLabel)).Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("id")
		m := gridNamePattern.FindStringSubmatch(id)
		if len(m) < 2 {
			return
		}
		index := m[1]

		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}

		stockCode := LeadingStockCode(raw)
		name := Clean(raw)
		if name == "" {
			return
		}

		desc := Clean(x.gridLabelText(doc, rules.descLabel, index))

		price, ok := x.gridPrice(doc, rules, index)
		if !ok {
			return
		}

		stock := x.gridStock(doc, rules, index)

		records = append(records, models.CandidateRecord{
			Name:        name,
			Description: desc,
			SourceURL:   pageURL,
			StockCode:   stockCode,
			Price:       price,
			Stock:       stock,
			ImageURLs:   x.rowImages(s, pageURL, rules.maxImages),
		})
	})

	return records
}

func (x *Extractor) gridLabelText(doc *goquery.Document, label int, index string) string {
	sel := fmt.Sprintf(`span[id="%s%d_%s"]`, gridSpanPrefix, label, index)
	return strings.TrimSpace(doc.Find(sel).Text())
}

// gridPrice probes the candidate price labels in order until one yields a
// numeric value inside the variant's accepted range.
func (x *Extractor) gridPrice(doc *goquery.Document, rules gridRules, index string) (float64, bool) {
	for _, label := range rules.priceLabels {
		text := x.gridLabelText(doc, label, index)
		if text == "" {
			continue
		}
		m := pricePattern.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		price, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
		if err != nil {
			continue
		}
		if price >= rules.priceMin && price <= rules.priceMax {
			return price, true
		}
	}
	return 0, false
}

// gridStock probes the candidate quantity labels. The default applies only
// when no quantity label exists for the row at all; an out-of-range value in
// a present label also falls through to the default, matching the page
// generator's habit of reusing labels for footer text.
func (x *Extractor) gridStock(doc *goquery.Document, rules gridRules, index string) int {
	for _, label := range rules.stockLabels {
		text := x.gridLabelText(doc, label, index)
		if text == "" {
			continue
		}
		qty, err := strconv.Atoi(text)
		if err != nil {
			continue
		}
		if qty >= rules.stockMin && qty <= rules.stockMax {
			return qty
		}
	}
	return rules.defaultStock
}

// rowImages collects candidate image URLs from the span's enclosing row,
// filtered for decorative assets.
func (x *Extractor) rowImages(s *goquery.Selection, pageURL string, max int) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	var urls []string
	seen := make(map[string]struct{})
	s.Closest("tr, div").Find("img[src]").Each(func(_ int, img *goquery.Selection) {
		if len(urls) >= max {
			return
		}
		src, _ := img.Attr("src")
		if len(src) <= 10 {
			return
		}
		ref, err := url.Parse(src)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		if _, dup := seen[abs]; dup {
			return
		}
		if !images.IsProductImageURL(abs) {
			return
		}
		seen[abs] = struct{}{}
		urls = append(urls, abs)
	})
	return urls
}

// ExtractDetail scans a product detail page's tables for the single record it
// describes. A row qualifies as the name source only when it has enough
// columns and one of the description columns carries a component-class
// keyword free of administrative terms.
func (x *Extractor) ExtractDetail(doc *goquery.Document, pageURL string) (models.CandidateRecord, bool) {
	rules := detailTableRules

	var name, stockCode string
	doc.Find("table tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cols := row.Find("td, th")
		if cols.Length() < rules.minColumns {
			return true
		}
		last := rules.nameColLast
		if cols.Length() < last {
			last = cols.Length()
		}
		for i := rules.nameColFirst; i < last; i++ {
			raw := strings.TrimSpace(cols.Eq(i).Text())
			code := LeadingStockCode(raw)
			text := Clean(raw)
			if len(text) <= rules.minNameLen || len(text) >= rules.maxNameLen {
				continue
			}
			if !containsAllowedKeyword(text) || containsDeniedKeyword(text) {
				continue
			}
			name = text
			stockCode = code
			return false
		}
		return true
	})

	if name == "" {
		return models.CandidateRecord{}, false
	}

	price, priceOK := x.detailPrice(doc)
	if !priceOK {
		// Out-of-range or missing prices are rejected rather than clamped;
		// the validator reports the reason.
		price = 0
	}

	return models.CandidateRecord{
		Name:         name,
		Description:  "Electronic component: " + name,
		SourceURL:    pageURL,
		StockCode:    stockCode,
		Price:        price,
		Stock:        rules.defaultStock,
		ImageURLs:    x.detailImages(doc, pageURL, rules.maxImages),
		RawFragments: x.technicalFragments(doc),
	}, true
}

// detailPrice takes the first in-range numeric token on the page. Detail
// pages carry no label-indexed price field.
func (x *Extractor) detailPrice(doc *goquery.Document) (float64, bool) {
	m := pricePattern.FindStringSubmatch(doc.Text())
	if len(m) < 2 {
		return 0, false
	}
	price, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return 0, false
	}
	if price <= 0 || price > 10000 {
		return 0, false
	}
	return price, true
}

func (x *Extractor) detailImages(doc *goquery.Document, pageURL string, max int) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	var urls []string
	seen := make(map[string]struct{})
	doc.Find("img[src]").Each(func(_ int, img *goquery.Selection) {
		if len(urls) >= max {
			return
		}
		src, _ := img.Attr("src")
		if len(src) <= 10 {
			return
		}
		ref, err := url.Parse(src)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		if _, dup := seen[abs]; dup {
			return
		}
		if !images.IsProductImageURL(abs) {
			return
		}
		seen[abs] = struct{}{}
		urls = append(urls, abs)
	})
	return urls
}

var technicalTerms = []string{
	"RESISTOR", "CAPACITOR", "VOLTAGE", "CURRENT", "POWER", "SIZE", "DIMENSIONS",
	"PACKAGE", "MOUNTING", "TEMPERATURE", "TOLERANCE", "FREQUENCY", "IMPEDANCE",
	"GAIN", "OUTPUT", "INPUT",
}

// technicalFragments mines up to two spec-bearing lines for the description.
func (x *Extractor) technicalFragments(doc *goquery.Document) []string {
	var fragments []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if len(fragments) >= 2 {
			break
		}
		line = Clean(line)
		if len(line) <= 10 || len(line) >= 300 {
			continue
		}
		if containsDeniedKeyword(line) {
			continue
		}
		upper := strings.ToUpper(line)
		for _, term := range technicalTerms {
			if strings.Contains(upper, term) {
				fragments = append(fragments, line)
				break
			}
		}
	}
	return fragments
}
