package crawler

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"sync"
	"time"

	"sjsage522/estateworker/logger"
	apperrors "sjsage522/estateworker/pkg/errors"
	"sjsage522/estateworker/services/proxy"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// ChromeOptions configures the headless browser
type ChromeOptions struct {
	Headless          bool
	ExecPath          string
	UserAgent         string
	NavigationTimeout time.Duration
	Proxy             *proxy.ProxyInfo
}

// ChromeBrowser drives a local Chrome through the DevTools protocol.
// A single browser process is shared by every page it opens.
type ChromeBrowser struct {
	opts         ChromeOptions
	allocCtx     context.Context
	cancelAlloc  context.CancelFunc
	browserCtx   context.Context
	cancelBrowse context.CancelFunc
	logger       *logger.Logger
	closeOnce    sync.Once
}

// NewChromeBrowser starts Chrome and verifies it answers
func NewChromeBrowser(ctx context.Context, opts ChromeOptions, log *logger.Logger) (*ChromeBrowser, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.WindowSize(1920, 1080),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.Proxy != nil {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.Proxy.ServerURL()))
	}

	b := &ChromeBrowser{opts: opts, logger: log.ForComponent("chrome")}
	b.allocCtx, b.cancelAlloc = chromedp.NewExecAllocator(ctx, allocOpts...)
	b.browserCtx, b.cancelBrowse = chromedp.NewContext(b.allocCtx)

	// The first Run launches the browser process.
	if err := chromedp.Run(b.browserCtx); err != nil {
		b.Close()
		return nil, apperrors.NewNavigation("chrome", "failed to launch browser", err)
	}

	b.logger.Info().
		Bool("headless", opts.Headless).
		Bool("proxy", opts.Proxy != nil).
		Msg("Browser launched")
	return b, nil
}

// NewPage opens a new tab
func (b *ChromeBrowser) NewPage(ctx context.Context) (Page, error) {
	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	p := &chromePage{ctx: tabCtx, cancel: cancel, navTimeout: b.opts.NavigationTimeout}

	if b.opts.Proxy != nil && b.opts.Proxy.HasCredentials() {
		p.handleProxyAuth(b.opts.Proxy.Username, b.opts.Proxy.Password)
		if err := p.run(ctx, 30*time.Second, fetch.Enable().WithHandleAuthRequests(true)); err != nil {
			cancel()
			return nil, apperrors.NewNavigation("chrome", "failed to enable proxy authentication", err)
		}
	} else if err := p.run(ctx, 30*time.Second); err != nil {
		cancel()
		return nil, apperrors.NewNavigation("chrome", "failed to open tab", err)
	}
	return p, nil
}

// Close shuts the browser down
func (b *ChromeBrowser) Close() error {
	b.closeOnce.Do(func() {
		b.cancelBrowse()
		b.cancelAlloc()
		b.logger.Info().Msg("Browser closed")
	})
	return nil
}

type chromePage struct {
	ctx        context.Context
	cancel     context.CancelFunc
	navTimeout time.Duration

	mu  sync.Mutex
	url string
}

// handleProxyAuth answers proxy challenges with the configured credentials
func (p *chromePage) handleProxyAuth(username, password string) {
	chromedp.ListenTarget(p.ctx, func(ev interface{}) {
		switch ev := ev.(type) {
		case *fetch.EventRequestPaused:
			go func() {
				_ = chromedp.Run(p.ctx, fetch.ContinueRequest(ev.RequestID))
			}()
		case *fetch.EventAuthRequired:
			go func() {
				_ = chromedp.Run(p.ctx, fetch.ContinueWithAuth(ev.RequestID, &fetch.AuthChallengeResponse{
					Response: fetch.AuthChallengeResponseResponseProvideCredentials,
					Username: username,
					Password: password,
				}))
			}()
		}
	})
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx
func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	timeout := p.navTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if err := p.run(ctx, timeout, chromedp.Navigate(url)); err != nil {
		return apperrors.NewNavigation("chrome", "failed to navigate to "+url, err)
	}
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
	return nil
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, 30*time.Second, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", apperrors.NewExtraction("chrome", "failed to read page HTML", err)
	}
	return html, nil
}

func (p *chromePage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if err := p.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return apperrors.NewNavigation("chrome", fmt.Sprintf("selector %s not visible after %s", selector, timeout), err)
	}
	return nil
}

func (p *chromePage) Exists(ctx context.Context, selector string) (bool, error) {
	var found bool
	script := fmt.Sprintf(`document.querySelector(%s) !== null`, strconv.Quote(selector))
	if err := p.run(ctx, 10*time.Second, chromedp.Evaluate(script, &found)); err != nil {
		return false, apperrors.NewExtraction("chrome", "failed to query "+selector, err)
	}
	return found, nil
}

func (p *chromePage) Evaluate(ctx context.Context, script string, out any) error {
	if err := p.run(ctx, 30*time.Second, chromedp.Evaluate(script, out)); err != nil {
		return apperrors.NewExtraction("chrome", "script evaluation failed", err)
	}
	return nil
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	if err := p.run(ctx, 15*time.Second, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return apperrors.NewExtraction("chrome", "failed to click "+selector, err)
	}
	return nil
}

// fetchResourceScript downloads a URL from inside the page, reusing its
// cookies and proxy, and returns the body base64 encoded.
const fetchResourceScript = `(async () => {
	const res = await fetch(%s, {credentials: "include"});
	if (!res.ok) { throw new Error("status " + res.status); }
	const buf = new Uint8Array(await res.arrayBuffer());
	let bin = "";
	for (let i = 0; i < buf.length; i += 0x8000) {
		bin += String.fromCharCode.apply(null, buf.subarray(i, i + 0x8000));
	}
	return btoa(bin);
})()`

func (p *chromePage) FetchResource(ctx context.Context, url string) ([]byte, error) {
	var encoded string
	script := fmt.Sprintf(fetchResourceScript, strconv.Quote(url))
	err := p.run(ctx, 60*time.Second, chromedp.Evaluate(script, &encoded, func(params *runtime.EvaluateParams) *runtime.EvaluateParams {
		return params.WithAwaitPromise(true)
	}))
	if err != nil {
		return nil, apperrors.NewNavigation("chrome", "failed to fetch "+url, err)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, apperrors.NewExtraction("chrome", "invalid resource encoding", err)
	}
	return data, nil
}

func (p *chromePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}
