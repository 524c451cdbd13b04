package crawler

import (
	"context"
	"errors"
	"time"
)

// ErrUnsupported is returned by page fetchers that cannot run an operation,
// such as clicking on a page fetched over plain HTTP.
var ErrUnsupported = errors.New("operation not supported by page fetcher")

// Page is one browser tab. It is owned by a single message and must be
// closed on every exit path.
type Page interface {
	// Navigate loads url and waits for the document.
	Navigate(ctx context.Context, url string) error
	// HTML returns the rendered document.
	HTML(ctx context.Context) (string, error)
	// WaitVisible waits until selector matches a visible element.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// Exists reports whether selector matches anything right now.
	Exists(ctx context.Context, selector string) (bool, error)
	// Evaluate runs script in the page and decodes its result into out.
	Evaluate(ctx context.Context, script string, out any) error
	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string) error
	// FetchResource retrieves the bytes of a sub-resource such as an image.
	FetchResource(ctx context.Context, url string) ([]byte, error)
	// URL returns the address of the last navigation.
	URL() string
	Close() error
}

// Browser opens pages. One browser is scoped to one process.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}
