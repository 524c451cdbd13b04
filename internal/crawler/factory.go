package crawler

import (
	"context"
	"fmt"
	"net/url"

	"sjsage522/estateworker/config"
	"sjsage522/estateworker/helpers"
	"sjsage522/estateworker/logger"
	"sjsage522/estateworker/services/proxy"
)

// NewBrowser creates the page fetcher selected by cfg.PageFetcher. px may be
// nil when no proxy is configured.
func NewBrowser(ctx context.Context, cfg *config.Config, px *proxy.ProxyInfo, log *logger.Logger) (Browser, error) {
	switch cfg.PageFetcher {
	case config.FetcherChrome:
		b, err := NewChromeBrowser(ctx, ChromeOptions{
			Headless:          cfg.ChromeHeadless,
			ExecPath:          cfg.ChromeExecPath,
			UserAgent:         cfg.UserAgent,
			NavigationTimeout: cfg.NavigationTimeout,
			Proxy:             px,
		}, log)
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.FetcherHTTP:
		var proxyURL *url.URL
		if px != nil {
			proxyURL = px.URL()
		}
		return NewHTTPBrowser(helpers.NewHTTPClient(cfg.NavigationTimeout, proxyURL)), nil
	default:
		return nil, fmt.Errorf("unknown page fetcher %q", cfg.PageFetcher)
	}
}

// NewImageStrategy creates the image discovery strategy selected by
// cfg.ImageStrategy.
func NewImageStrategy(cfg *config.Config, sel Selectors, log *logger.Logger) ImageStrategy {
	if cfg.ImageStrategy == config.ImageStrategyGallery {
		return NewGalleryModal(sel, cfg.SelectorTimeout, log)
	}
	return NewDirectDOM(sel)
}

// NewExtractorFromConfig wires an Extractor with the configured strategies.
func NewExtractorFromConfig(cfg *config.Config, log *logger.Logger) *Extractor {
	sel := DefaultSelectors()
	return NewExtractor(ExtractorOptions{
		Selectors:       sel,
		Images:          NewImageStrategy(cfg, sel, log),
		AgencyModal:     cfg.AgencyModal,
		SelectorTimeout: cfg.SelectorTimeout,
	}, log)
}
