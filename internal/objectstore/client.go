package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client uploads binary objects to a Supabase-style storage bucket over its
// REST surface and derives the stable public URL for each object.
type Client struct {
	endpoint   string
	serviceKey string
	bucket     string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(endpoint, serviceKey, bucket string, logger *slog.Logger) *Client {
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		serviceKey: serviceKey,
		bucket:     bucket,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger.With("component", "objectstore"),
	}
}

// Upload stores an object under the given path and returns its public URL.
// The upsert header makes re-uploads of the same path idempotent.
func (c *Client) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	uploadURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.endpoint, c.bucket, path)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("upload rejected with status %d: %s", resp.StatusCode, string(body))
	}

	return c.PublicURL(path), nil
}

// PublicURL returns the stable public URL for an object path.
func (c *Client) PublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.endpoint, c.bucket, path)
}
