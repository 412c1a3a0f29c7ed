package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFetcher() *Fetcher {
	return New(Options{
		ConcurrentLimit: 2,
		RequestTimeout:  5 * time.Second,
		RequestDelay:    time.Millisecond,
		UserAgent:       "catalog-test/1.0",
	}, testLogger())
}

func TestGetParsesDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><h1 id="title">hello</h1></body></html>`)
	}))
	defer srv.Close()

	doc, ok := newFetcher().Get(context.Background(), srv.URL)
	require.True(t, ok)
	assert.Equal(t, "hello", doc.Find("#title").Text())
}

func TestGetSendsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, "<html></html>")
	}))
	defer srv.Close()

	_, ok := newFetcher().Get(context.Background(), srv.URL)
	require.True(t, ok)
	assert.Equal(t, "catalog-test/1.0", gotUA)
}

func TestGetReportsMissOnErrorStatus(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError, http.StatusTooManyRequests} {
		t.Run(fmt.Sprint(status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}))
			defer srv.Close()

			_, ok := newFetcher().Get(context.Background(), srv.URL)
			assert.False(t, ok)
		})
	}
}

func TestGetReportsMissOnTransportError(t *testing.T) {
	_, ok := newFetcher().Get(context.Background(), "http://127.0.0.1:1/unreachable")
	assert.False(t, ok)
}

func TestGetBytesReturnsContentType(t *testing.T) {
	payload := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(payload)
	}))
	defer srv.Close()

	data, contentType, ok := newFetcher().GetBytes(context.Background(), srv.URL)
	require.True(t, ok)
	assert.Equal(t, payload, data)
	assert.Equal(t, "image/jpeg", contentType)
}

func TestGetRespectsCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html></html>")
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := newFetcher().Get(ctx, srv.URL)
	assert.False(t, ok)
}
