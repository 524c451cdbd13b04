package assets

import (
	"context"
	"net/http"

	"sjsage522/estateworker/helpers"
	"sjsage522/estateworker/internal/crawler"

	"golang.org/x/time/rate"
)

// Fetcher retrieves the bytes behind an image URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher downloads images directly, paced by a token bucket.
type HTTPFetcher struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPFetcher creates a fetcher allowing perSecond requests per second.
// A non-positive rate disables pacing.
func NewHTTPFetcher(client *http.Client, perSecond float64) *HTTPFetcher {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &HTTPFetcher{client: client, limiter: rate.NewLimiter(limit, 1)}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return helpers.FetchBytes(ctx, f.client, url)
}

// PageFetcher retrieves images through the open browser page, reusing its
// session and proxy.
type PageFetcher struct {
	page crawler.Page
}

// NewPageFetcher wraps page as a Fetcher
func NewPageFetcher(page crawler.Page) *PageFetcher {
	return &PageFetcher{page: page}
}

func (f *PageFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f.page.FetchResource(ctx, url)
}
