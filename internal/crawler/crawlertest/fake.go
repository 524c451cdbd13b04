// Package crawlertest provides in-memory Browser and Page fakes that serve
// canned HTML.
package crawlertest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"sjsage522/estateworker/internal/crawler"

	"github.com/PuerkitoBio/goquery"
)

// Browser serves pages from a URL to HTML map.
type Browser struct {
	mu        sync.Mutex
	Pages     map[string]string
	NavErrors map[string]error
	Resources map[string][]byte
	// OnClick maps a selector to the HTML the page shows after it is clicked.
	OnClick map[string]string

	Opened   int
	Closed   int
	Visited  []string
	shutdown bool
}

// NewBrowser creates a fake browser serving pages
func NewBrowser(pages map[string]string) *Browser {
	return &Browser{
		Pages:     pages,
		NavErrors: map[string]error{},
		Resources: map[string][]byte{},
		OnClick:   map[string]string{},
	}
}

func (b *Browser) NewPage(ctx context.Context) (crawler.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.shutdown {
		return nil, errors.New("browser closed")
	}
	b.Opened++
	return &Page{browser: b}, nil
}

func (b *Browser) Close() error {
	b.mu.Lock()
	b.shutdown = true
	b.mu.Unlock()
	return nil
}

// OpenPages returns how many pages were opened and not closed.
func (b *Browser) OpenPages() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Opened - b.Closed
}

// Page is one fake tab.
type Page struct {
	browser *Browser
	mu      sync.Mutex
	url     string
	html    string
	Clicks  []string
	closed  bool
}

// NewPage returns a standalone page already showing html at url.
func NewPage(url, html string) *Page {
	return &Page{browser: NewBrowser(nil), url: url, html: html}
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b := p.browser
	b.mu.Lock()
	b.Visited = append(b.Visited, url)
	err := b.NavErrors[url]
	html, ok := b.Pages[url]
	b.mu.Unlock()

	if err != nil {
		return err
	}
	if !ok {
		return errors.New("no page for " + url)
	}
	p.mu.Lock()
	p.url, p.html = url, html
	p.mu.Unlock()
	return nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.html, nil
}

func (p *Page) doc() (*goquery.Document, error) {
	p.mu.Lock()
	html := p.html
	p.mu.Unlock()
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

func (p *Page) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	ok, err := p.Exists(ctx, selector)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("timeout waiting for " + selector)
	}
	return nil
}

func (p *Page) Exists(ctx context.Context, selector string) (bool, error) {
	doc, err := p.doc()
	if err != nil {
		return false, err
	}
	return doc.Find(selector).Length() > 0, nil
}

func (p *Page) Evaluate(ctx context.Context, script string, out any) error {
	return crawler.ErrUnsupported
}

func (p *Page) Click(ctx context.Context, selector string) error {
	ok, err := p.Exists(ctx, selector)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("no element " + selector)
	}

	p.browser.mu.Lock()
	next, swap := p.browser.OnClick[selector]
	p.browser.mu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.Clicks = append(p.Clicks, selector)
	if swap {
		p.html = next
	}
	return nil
}

func (p *Page) FetchResource(ctx context.Context, url string) ([]byte, error) {
	p.browser.mu.Lock()
	defer p.browser.mu.Unlock()
	data, ok := p.browser.Resources[url]
	if !ok {
		return nil, errors.New("no resource " + url)
	}
	return data, nil
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *Page) Close() error {
	p.mu.Lock()
	already := p.closed
	p.closed = true
	p.mu.Unlock()
	if !already {
		p.browser.mu.Lock()
		p.browser.Closed++
		p.browser.mu.Unlock()
	}
	return nil
}
