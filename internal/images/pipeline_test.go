package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltmarket/catalog-scraper/internal/fetch"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFetcher() *fetch.Fetcher {
	return fetch.New(fetch.Options{
		ConcurrentLimit: 2,
		RequestTimeout:  5 * time.Second,
		RequestDelay:    time.Millisecond,
		UserAgent:       "test-agent",
	}, testLogger())
}

// fakeUploader records uploads and returns deterministic public URLs.
type fakeUploader struct {
	mu      sync.Mutex
	uploads map[string][]byte
	fail    bool
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{uploads: make(map[string][]byte)}
}

func (f *fakeUploader) Upload(_ context.Context, path string, data []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", errors.New("storage unavailable")
	}
	f.uploads[path] = data
	return "https://storage.example.com/public/" + path, nil
}

func (f *fakeUploader) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

func newImageServer(t *testing.T) (*httptest.Server, *sync.Map) {
	t.Helper()
	var requested sync.Map
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested.Store(r.URL.Path, true)
		w.Header().Set("Content-Type", "image/jpeg")
		fmt.Fprint(w, "jpeg-bytes")
	}))
	return srv, &requested
}

func TestMaterializeUploadsProductImage(t *testing.T) {
	srv, _ := newImageServer(t)
	defer srv.Close()

	uploader := newFakeUploader()
	p := NewPipeline(testFetcher(), uploader, 2, nil, testLogger())

	ref := p.Materialize(context.Background(), srv.URL+"/images/products/relay.jpg", "RELAY DPDT 12V")
	require.NotNil(t, ref)

	assert.Equal(t, srv.URL+"/images/products/relay.jpg", ref.SourceURL)
	assert.True(t, strings.HasPrefix(ref.StorageKey, "mantech/mantech_RELAY_DPDT_12V_"))
	assert.True(t, strings.HasSuffix(ref.StorageKey, ".jpg"))
	assert.NotEmpty(t, ref.PublicURL)
	assert.Equal(t, "image/jpeg", ref.ContentType)
	assert.Equal(t, 1, uploader.count())
}

func TestMaterializeFiltersDecorativeWithoutFetching(t *testing.T) {
	srv, requested := newImageServer(t)
	defer srv.Close()

	uploader := newFakeUploader()
	p := NewPipeline(testFetcher(), uploader, 2, nil, testLogger())

	ref := p.Materialize(context.Background(), srv.URL+"/images/logo-header.png", "RELAY DPDT 12V")
	assert.Nil(t, ref)
	assert.Equal(t, 0, uploader.count())

	_, fetched := requested.Load("/images/logo-header.png")
	assert.False(t, fetched, "decorative assets must be filtered before any fetch")
}

func TestMaterializeReturnsNilOnUploadFailure(t *testing.T) {
	srv, _ := newImageServer(t)
	defer srv.Close()

	uploader := newFakeUploader()
	uploader.fail = true
	p := NewPipeline(testFetcher(), uploader, 2, nil, testLogger())

	ref := p.Materialize(context.Background(), srv.URL+"/images/products/relay.jpg", "RELAY DPDT 12V")
	assert.Nil(t, ref)
}

func TestMaterializeReturnsNilWithoutUploader(t *testing.T) {
	p := NewPipeline(testFetcher(), nil, 2, nil, testLogger())
	ref := p.Materialize(context.Background(), "https://mantech.co.za/images/products/relay.jpg", "RELAY")
	assert.Nil(t, ref)
}

func TestMaterializeAllCapsAndKeepsOrder(t *testing.T) {
	srv, _ := newImageServer(t)
	defer srv.Close()

	uploader := newFakeUploader()
	p := NewPipeline(testFetcher(), uploader, 2, nil, testLogger())

	urls := []string{
		srv.URL + "/images/products/a.jpg",
		srv.URL + "/images/logo-strip.jpg", // filtered
		srv.URL + "/images/products/c.jpg",
		srv.URL + "/images/products/d.jpg", // beyond the cap
	}

	refs := p.MaterializeAll(context.Background(), urls, "RESISTOR NETWORK", 3)

	require.Len(t, refs, 2)
	assert.Equal(t, urls[0], refs[0].SourceURL)
	assert.Equal(t, urls[2], refs[1].SourceURL)
}

func TestStorageKey(t *testing.T) {
	key := StorageKey("RESISTOR CARBON FILM 1/4W 1K0 5%", "image/png")

	assert.True(t, strings.HasPrefix(key, "mantech/mantech_"))
	assert.True(t, strings.HasSuffix(key, ".png"))
	assert.NotContains(t, key, " ")
	assert.NotContains(t, key, "%")

	// Random suffix keeps repeated uploads of the same product distinct.
	assert.NotEqual(t, key, StorageKey("RESISTOR CARBON FILM 1/4W 1K0 5%", "image/png"))
}

func TestExtensionFor(t *testing.T) {
	tests := []struct {
		contentType string
		expected    string
	}{
		{"image/png", ".png"},
		{"image/gif", ".gif"},
		{"image/webp", ".webp"},
		{"image/jpeg", ".jpg"},
		{"", ".jpg"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, extensionFor(tt.contentType))
	}
}
