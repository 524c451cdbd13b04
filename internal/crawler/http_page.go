package crawler

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"sjsage522/estateworker/helpers"
	apperrors "sjsage522/estateworker/pkg/errors"

	"github.com/PuerkitoBio/goquery"
)

// HTTPBrowser fetches pages over plain HTTP. It serves the hydration
// payloads embedded in server-rendered HTML but cannot run scripts or click.
type HTTPBrowser struct {
	client *http.Client
}

// NewHTTPBrowser creates a page fetcher using client
func NewHTTPBrowser(client *http.Client) *HTTPBrowser {
	return &HTTPBrowser{client: client}
}

func (b *HTTPBrowser) NewPage(ctx context.Context) (Page, error) {
	return &HTTPPage{client: b.client}, nil
}

func (b *HTTPBrowser) Close() error { return nil }

// HTTPPage holds the last document fetched over HTTP
type HTTPPage struct {
	client *http.Client

	mu   sync.RWMutex
	url  string
	html string
	doc  *goquery.Document
}

func (p *HTTPPage) Navigate(ctx context.Context, url string) error {
	reader, err := helpers.FetchWithRandomHeaders(ctx, p.client, url)
	if err != nil {
		return err
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return apperrors.NewNavigation("http", "failed to read page", err)
	}
	doc, err := createDocument(strings.NewReader(string(body)))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
	p.html = string(body)
	p.doc = doc
	return nil
}

func (p *HTTPPage) HTML(ctx context.Context) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.doc == nil {
		return "", apperrors.NewExtraction("http", "no page loaded", nil)
	}
	return p.html, nil
}

// WaitVisible succeeds when the selector is present in the static document.
func (p *HTTPPage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	found, err := p.Exists(ctx, selector)
	if err != nil {
		return err
	}
	if !found {
		return apperrors.NewNavigation("http", "selector "+selector+" not present", nil)
	}
	return nil
}

func (p *HTTPPage) Exists(ctx context.Context, selector string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.doc == nil {
		return false, apperrors.NewExtraction("http", "no page loaded", nil)
	}
	return p.doc.Find(selector).Length() > 0, nil
}

func (p *HTTPPage) Evaluate(ctx context.Context, script string, out any) error {
	return ErrUnsupported
}

func (p *HTTPPage) Click(ctx context.Context, selector string) error {
	return ErrUnsupported
}

func (p *HTTPPage) FetchResource(ctx context.Context, url string) ([]byte, error) {
	return helpers.FetchBytes(ctx, p.client, url)
}

func (p *HTTPPage) URL() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.url
}

func (p *HTTPPage) Close() error { return nil }
