package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// LogoFetcher supplies the company logo drawn on reports.
type LogoFetcher interface {
	FetchLogo(ctx context.Context) ([]byte, error)
}

// URLLogoFetcher downloads the logo from a fixed URL on every call.
type URLLogoFetcher struct {
	url        string
	downloader ImageDownloader
}

// NewURLLogoFetcher creates a LogoFetcher for url.
func NewURLLogoFetcher(url string, downloader ImageDownloader) *URLLogoFetcher {
	return &URLLogoFetcher{url: url, downloader: downloader}
}

// FetchLogo downloads the logo.
func (f *URLLogoFetcher) FetchLogo(ctx context.Context) ([]byte, error) {
	if f.url == "" {
		return nil, errors.New("no logo URL configured")
	}
	img, err := f.downloader.Download(ctx, f.url)
	if err != nil {
		return nil, err
	}
	if img == nil || len(img.Data) == 0 {
		return nil, fmt.Errorf("empty logo from %s", f.url)
	}
	return img.Data, nil
}

// CachedLogoFetcher keeps the logo in Redis so report generation does not
// hit the logo host on every compilation. Redis failures fall through to
// the wrapped fetcher.
type CachedLogoFetcher struct {
	client *redis.Client
	next   LogoFetcher
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedLogoFetcher wraps next with a Redis cache entry at key.
func NewCachedLogoFetcher(client *redis.Client, next LogoFetcher, key string, ttl time.Duration, logger *slog.Logger) *CachedLogoFetcher {
	return &CachedLogoFetcher{
		client: client,
		next:   next,
		key:    key,
		ttl:    ttl,
		logger: logger,
	}
}

// FetchLogo returns the cached logo, fetching and caching it on a miss.
func (f *CachedLogoFetcher) FetchLogo(ctx context.Context) ([]byte, error) {
	data, err := f.client.Get(ctx, f.key).Bytes()
	switch {
	case err == nil && len(data) > 0:
		return data, nil
	case err != nil && !errors.Is(err, redis.Nil):
		f.logger.Warn("logo cache read failed", "key", f.key, "error", err)
	}

	data, err = f.next.FetchLogo(ctx)
	if err != nil {
		return nil, err
	}

	if err := f.client.Set(ctx, f.key, data, f.ttl).Err(); err != nil {
		f.logger.Warn("logo cache write failed", "key", f.key, "error", err)
	}
	return data, nil
}
