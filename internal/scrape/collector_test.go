package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltmarket/catalog-scraper/internal/fetch"
)

func testFetcher() *fetch.Fetcher {
	return fetch.New(fetch.Options{
		ConcurrentLimit: 2,
		RequestTimeout:  5 * time.Second,
		RequestDelay:    time.Millisecond,
		UserAgent:       "test-agent",
	}, testLogger())
}

// pageServer serves a fixed body per requested page number and records every
// request it sees.
type pageServer struct {
	mu       sync.Mutex
	requests []string
	pages    map[int]string
}

func newPageServer(pages map[int]string) (*pageServer, *httptest.Server) {
	ps := &pageServer{pages: pages}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ps.mu.Lock()
		ps.requests = append(ps.requests, r.URL.String())
		ps.mu.Unlock()

		page := 1
		if p := r.URL.Query().Get("Page"); p != "" {
			fmt.Sscanf(p, "%d", &page)
		}
		body, ok := ps.pages[page]
		if !ok {
			body = "<html><body></body></html>"
		}
		fmt.Fprint(w, body)
	}))
	return ps, srv
}

func (ps *pageServer) requestCount() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return len(ps.requests)
}

func linkPage(items []string, next bool) string {
	body := "<html><body>"
	for _, item := range items {
		body += fmt.Sprintf(`<a href="ProductInfo.aspx?Item=%s">View item %s</a>`, item, item)
	}
	if next {
		body += `<a href="Stock.aspx?Query=RELAY&Page=2">Next</a>`
	}
	return body + "</body></html>"
}

func TestCollectLinksWalksPagesInOrder(t *testing.T) {
	ps, srv := newPageServer(map[int]string{
		1: linkPage([]string{"100", "101"}, true),
		2: linkPage([]string{"102"}, false),
	})
	defer srv.Close()

	c := NewCollector(testFetcher(), NewExtractor(testLogger()), srv.URL, 10, time.Millisecond, testLogger())
	links := c.CollectLinks(context.Background(), "RELAY")

	require.Len(t, links, 3)
	assert.Contains(t, links[0], "ProductInfo.aspx?Item=100")
	assert.Contains(t, links[2], "ProductInfo.aspx?Item=102")
	// Page 2 has no pagination control, so page 3 is never requested.
	assert.Equal(t, 2, ps.requestCount())
}

func TestCollectLinksStopsOnEmptyPage(t *testing.T) {
	ps, srv := newPageServer(map[int]string{
		1: linkPage(nil, true),
	})
	defer srv.Close()

	c := NewCollector(testFetcher(), NewExtractor(testLogger()), srv.URL, 10, time.Millisecond, testLogger())
	links := c.CollectLinks(context.Background(), "RELAY")

	assert.Empty(t, links)
	assert.Equal(t, 1, ps.requestCount())
}

func TestCollectLinksHonoursMaxPages(t *testing.T) {
	ps, srv := newPageServer(map[int]string{
		1: linkPage([]string{"1"}, true),
		2: linkPage([]string{"2"}, true),
		3: linkPage([]string{"3"}, true),
	})
	defer srv.Close()

	c := NewCollector(testFetcher(), NewExtractor(testLogger()), srv.URL, 2, time.Millisecond, testLogger())
	links := c.CollectLinks(context.Background(), "RELAY")

	assert.Len(t, links, 2)
	assert.Equal(t, 2, ps.requestCount())
}

func TestCollectLinksDeduplicatesAcrossPages(t *testing.T) {
	_, srv := newPageServer(map[int]string{
		1: linkPage([]string{"100", "100"}, true),
		2: linkPage([]string{"100"}, false),
	})
	defer srv.Close()

	c := NewCollector(testFetcher(), NewExtractor(testLogger()), srv.URL, 10, time.Millisecond, testLogger())
	links := c.CollectLinks(context.Background(), "RELAY")

	// The duplicate on page 1 collapses; page 2 then yields nothing new.
	assert.Len(t, links, 1)
}

func TestCollectLinksStopsOnFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewCollector(testFetcher(), NewExtractor(testLogger()), srv.URL, 10, time.Millisecond, testLogger())
	assert.Empty(t, c.CollectLinks(context.Background(), "RELAY"))
}

func TestCollectRecordsDirectMode(t *testing.T) {
	page1 := `<html><body>
<span id="ContentPlaceHolder1_GridView1_Label42_0">RESISTOR CARBON FILM 1/4W 1K0 5%</span>
<span id="ContentPlaceHolder1_GridView1_Label44_0">R 1.50</span>
</body></html>`

	ps, srv := newPageServer(map[int]string{1: page1})
	defer srv.Close()

	c := NewCollector(testFetcher(), NewExtractor(testLogger()), srv.URL, 10, time.Millisecond, testLogger())
	records := c.CollectRecords(context.Background(), "RESISTOR")

	require.Len(t, records, 1)
	assert.Equal(t, "RESISTOR CARBON FILM 1/4W 1K0 5%", records[0].Name)
	assert.Equal(t, 1.50, records[0].Price)
	// No pagination control on the only page.
	assert.Equal(t, 1, ps.requestCount())
}

func TestPageURL(t *testing.T) {
	c := NewCollector(testFetcher(), NewExtractor(testLogger()), "https://mantech.co.za/", 10, 0, testLogger())

	assert.Equal(t, "https://mantech.co.za/Stock.aspx?Query=RELAY", c.pageURL("RELAY", 1))
	assert.Equal(t, "https://mantech.co.za/Stock.aspx?Query=RELAY&Page=2", c.pageURL("RELAY", 2))
	assert.Equal(t, "https://mantech.co.za/Stock.aspx?Query=INTEGRATED+CIRCUIT", c.pageURL("INTEGRATED CIRCUIT", 1))
}
