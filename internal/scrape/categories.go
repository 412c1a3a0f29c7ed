package scrape

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/voltmarket/catalog-scraper/internal/fetch"
)

// DefaultSearchTokens is the curated set of component-class search terms used
// when the site's own category index is unavailable or unparseable.
var DefaultSearchTokens = []string{
	"RESISTOR", "CAPACITOR", "TRANSISTOR", "DIODE", "LED", "IC", "INTEGRATED CIRCUIT",
	"RELAY", "SWITCH", "CONNECTOR", "SENSOR", "INDUCTOR", "COIL", "POTENTIOMETER",
	"FUSE", "BATTERY", "WIRE", "CABLE", "REGULATOR", "AMPLIFIER", "OSCILLATOR",
	"CRYSTAL", "ANTENNA", "MOTOR", "SERVO", "DISPLAY", "MODULE", "BOARD",
	"MICROCONTROLLER", "OPTOCOUPLER", "PHOTOTRANSISTOR", "PHOTODIODE", "VARISTOR",
	"THERMISTOR", "BUZZER", "SPEAKER", "MICROPHONE", "TERMINAL", "HEADER", "SOCKET",
}

// CategoryEnumerator produces the set of search tokens to query. It prefers
// tokens discovered from the site's own index page and falls back to the
// curated list.
type CategoryEnumerator struct {
	fetcher  *fetch.Fetcher
	baseURL  string
	discover bool
	logger   *slog.Logger
}

func NewCategoryEnumerator(f *fetch.Fetcher, baseURL string, discover bool, logger *slog.Logger) *CategoryEnumerator {
	return &CategoryEnumerator{
		fetcher:  f,
		baseURL:  strings.TrimRight(baseURL, "/"),
		discover: discover,
		logger:   logger.With("component", "category_enumerator"),
	}
}

var queryParamPattern = regexp.MustCompile(`Query=([^&]+)`)

// Enumerate returns the token set for this run. No ordering guarantee, no
// duplicates.
func (e *CategoryEnumerator) Enumerate(ctx context.Context) map[string]struct{} {
	if e.discover {
		if tokens, ok := e.discoverTokens(ctx); ok && len(tokens) > 0 {
			e.logger.Info("discovered category tokens", "count", len(tokens))
			return tokens
		}
		e.logger.Warn("category discovery failed, falling back to curated list")
	}

	tokens := make(map[string]struct{}, len(DefaultSearchTokens))
	for _, t := range DefaultSearchTokens {
		tokens[t] = struct{}{}
	}
	return tokens
}

// discoverTokens scrapes Stock.aspx for search-parameterized links. Tokens of
// 100+ chars or purely numeric ones are product-specific queries, not
// category-level ones, and are dropped.
func (e *CategoryEnumerator) discoverTokens(ctx context.Context) (map[string]struct{}, bool) {
	doc, ok := e.fetcher.Get(ctx, e.baseURL+"/Stock.aspx")
	if !ok {
		return nil, false
	}

	tokens := make(map[string]struct{})
	doc.Find(`a[href*="Stock.aspx?Query="]`).Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists {
			return
		}
		m := queryParamPattern.FindStringSubmatch(href)
		if len(m) < 2 {
			return
		}
		token, err := url.QueryUnescape(m[1])
		if err != nil {
			return
		}
		token = strings.TrimSpace(token)
		if token == "" || len(token) >= 100 || isNumeric(token) {
			return
		}
		tokens[token] = struct{}{}
	})

	return tokens, true
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
