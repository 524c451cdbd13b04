// Package dispatcher walks the paginated search results and publishes one
// queue message per listing URL.
package dispatcher

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"sjsage522/estateworker/helpers"
	"sjsage522/estateworker/internal/crawler"
	"sjsage522/estateworker/logger"
	"sjsage522/estateworker/pkg/retry"
	"sjsage522/estateworker/services/cache"
	"sjsage522/estateworker/services/queue"

	"github.com/PuerkitoBio/goquery"
)

// Observer receives dispatcher metrics
type Observer interface {
	ObservePage()
	ObserveURL(result string)
}

// Options configures a Dispatcher
type Options struct {
	// SearchURL holds a %d placeholder for the 1-based page number.
	SearchURL string
	MaxPages  int

	WaitTimeout time.Duration
	DelayMin    time.Duration
	DelayMax    time.Duration
	Retry       retry.Policy

	// SeenTTL is how long a published URL is remembered across runs when a
	// cache is configured.
	SeenTTL time.Duration
}

// Stats summarises one run
type Stats struct {
	Pages      int
	Failed     int
	Found      int
	Published  int
	Duplicates int
}

// Dispatcher publishes listing URLs found on search result pages
type Dispatcher struct {
	browser  crawler.Browser
	queue    queue.Queue
	seen     cache.CacheService
	observer Observer
	sel      crawler.Selectors
	opts     Options
	logger   *logger.Logger
	now      func() time.Time
}

// NewDispatcher creates a dispatcher. seen and observer may be nil.
func NewDispatcher(browser crawler.Browser, q queue.Queue, seen cache.CacheService, observer Observer, sel crawler.Selectors, opts Options, log *logger.Logger) *Dispatcher {
	if opts.MaxPages <= 0 {
		opts.MaxPages = 1
	}
	return &Dispatcher{
		browser:  browser,
		queue:    q,
		seen:     seen,
		observer: observer,
		sel:      sel,
		opts:     opts,
		logger:   log.ForComponent("dispatcher"),
		now:      time.Now,
	}
}

// Run crawls pages 1..MaxPages and stops early at the end of the results
func (d *Dispatcher) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	page, err := d.browser.NewPage(ctx)
	if err != nil {
		return stats, err
	}
	defer page.Close()

	inRun := make(map[string]struct{})
	for n := 1; n <= d.opts.MaxPages; n++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		pageURL := fmt.Sprintf(d.opts.SearchURL, n)
		log := d.logger.WithField("page", n)

		links, done, err := d.readPage(ctx, page, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			stats.Failed++
			log.Error().Err(err).Str("url", pageURL).Msg("Failed to load search page, skipping")
			continue
		}
		stats.Pages++
		if d.observer != nil {
			d.observer.ObservePage()
		}
		if done {
			log.Info().Msg("No more results")
			break
		}

		stats.Found += len(links)
		for _, link := range links {
			if _, ok := inRun[link]; ok {
				d.count(&stats, "duplicate")
				continue
			}
			inRun[link] = struct{}{}
			d.publish(ctx, link, &stats)
		}
		log.Info().
			Int("links", len(links)).
			Int("published", stats.Published).
			Msg("Processed search page")

		if n < d.opts.MaxPages {
			if err := helpers.Sleep(ctx, helpers.Jitter(d.opts.DelayMin, d.opts.DelayMax)); err != nil {
				return stats, err
			}
		}
	}

	if t, ok := d.queue.(queue.Trimmer); ok {
		if err := t.Trim(ctx); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to trim queue")
		}
	}

	d.logger.Info().
		Int("pages", stats.Pages).
		Int("failed_pages", stats.Failed).
		Int("found", stats.Found).
		Int("published", stats.Published).
		Int("duplicates", stats.Duplicates).
		Msg("Dispatch finished")
	return stats, nil
}

// readPage loads one search page. done is true when the page shows the
// no-results marker or no listing links.
func (d *Dispatcher) readPage(ctx context.Context, page crawler.Page, pageURL string) (links []string, done bool, err error) {
	err = d.opts.Retry.Do(ctx, func(ctx context.Context) error {
		return page.Navigate(ctx, pageURL)
	})
	if err != nil {
		return nil, false, err
	}

	if err := page.WaitVisible(ctx, d.sel.SearchItem, d.opts.WaitTimeout); err != nil {
		d.logger.Debug().Err(err).Str("url", pageURL).Msg("Search items did not appear")
	}

	doc, err := crawler.Snapshot(ctx, page)
	if err != nil {
		return nil, false, err
	}
	if d.sel.NoResultsText != "" && strings.Contains(doc.Find("body").Text(), d.sel.NoResultsText) {
		return nil, true, nil
	}

	doc.Find(d.sel.SearchLink).Each(func(i int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		links = append(links, helpers.ResolveURL(pageURL, href))
	})
	return links, len(links) == 0, nil
}

func (d *Dispatcher) publish(ctx context.Context, link string, stats *Stats) {
	key := ""
	if d.seen != nil {
		key = seenKey(link)
		added, err := d.seen.Add(key, []byte{1}, d.opts.SeenTTL)
		switch {
		case err != nil:
			d.logger.Warn().Err(err).Msg("Seen-URL cache unavailable")
			key = ""
		case !added:
			d.count(stats, "seen")
			return
		}
	}

	msg := queue.NewMessage(link, stats.Published+1, d.now())
	err := d.queue.Publish(ctx, msg)
	switch {
	case errors.Is(err, queue.ErrDuplicate):
		d.count(stats, "duplicate")
	case err != nil:
		d.logger.Error().Err(err).Str("url", link).Msg("Failed to publish URL")
		if d.observer != nil {
			d.observer.ObserveURL("failed")
		}
		if key != "" {
			d.seen.Delete(key)
		}
	default:
		stats.Published++
		if d.observer != nil {
			d.observer.ObserveURL("published")
		}
		d.logger.Debug().Str("url", link).Int("url_number", msg.URLNumber).Msg("Published URL")
	}
}

func (d *Dispatcher) count(stats *Stats, result string) {
	stats.Duplicates++
	if d.observer != nil {
		d.observer.ObserveURL(result)
	}
}

func seenKey(url string) string {
	sum := sha1.Sum([]byte(url))
	return "estate:seen:" + hex.EncodeToString(sum[:])
}
