package report

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// =============================================================================
// Image Download
// =============================================================================

// ImageData holds downloaded image data for embedding in reports.
type ImageData struct {
	Data        []byte
	ContentType string
}

// ImageDownloader abstracts image fetching for report generation.
// This allows testing report generation without network I/O.
type ImageDownloader interface {
	Download(ctx context.Context, url string) (*ImageData, error)
}

// HTTPImageDownloader fetches images over HTTP with retries.
type HTTPImageDownloader struct {
	client *resty.Client
}

// NewHTTPImageDownloader creates an ImageDownloader that fetches images over HTTP.
func NewHTTPImageDownloader(timeout time.Duration) *HTTPImageDownloader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Accept", "image/*")

	return &HTTPImageDownloader{client: client}
}

// Download fetches an image from a URL and returns its data.
// Returns nil, nil if the URL is empty.
func (d *HTTPImageDownloader) Download(ctx context.Context, url string) (*ImageData, error) {
	if url == "" {
		return nil, nil
	}

	resp, err := d.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("download failed with status: %d", resp.StatusCode())
	}

	contentType := resp.Header().Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg" // Default fallback
	}

	return &ImageData{
		Data:        resp.Body(),
		ContentType: contentType,
	}, nil
}
