package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sjsage522/estateworker/internal/crawler"
	"sjsage522/estateworker/internal/crawler/crawlertest"
	"sjsage522/estateworker/logger"
	"sjsage522/estateworker/pkg/retry"
	"sjsage522/estateworker/services/cache"
	"sjsage522/estateworker/services/queue/queuetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchURL = "https://www.luxuryestate.com/spain?pag=%d"

func resultsPage(hrefs ...string) string {
	html := `<html><body><ul>`
	for _, h := range hrefs {
		html += `<li class="search-list__item"><a href="` + h + `">listing</a></li>`
	}
	return html + `</ul></body></html>`
}

const noResults = `<html><body><p>No properties found</p></body></html>`

type memCache struct {
	mu   sync.Mutex
	keys map[string][]byte
}

func newMemCache() *memCache { return &memCache{keys: map[string][]byte{}} }

func (c *memCache) Get(key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.keys[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return v, nil
}

func (c *memCache) Set(key string, value []byte, exp time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[key] = value
	return nil
}

func (c *memCache) Add(key string, value []byte, exp time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.keys[key]; ok {
		return false, nil
	}
	c.keys[key] = value
	return true, nil
}

func (c *memCache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.keys, key)
	return nil
}

type countingObserver struct {
	pages int
	urls  map[string]int
}

func (o *countingObserver) ObservePage()             { o.pages++ }
func (o *countingObserver) ObserveURL(result string) { o.urls[result]++ }

func testOptions(maxPages int) Options {
	return Options{
		SearchURL:   searchURL,
		MaxPages:    maxPages,
		WaitTimeout: time.Second,
		Retry:       retry.Policy{MaxAttempts: 3, Backoff: retry.Fixed(0), Retryable: retry.Always},
	}
}

func TestRunPublishesUniqueURLsUntilNoResults(t *testing.T) {
	browser := crawlertest.NewBrowser(map[string]string{
		"https://www.luxuryestate.com/spain?pag=1": resultsPage(
			"https://www.luxuryestate.com/p1-villa",
			"https://www.luxuryestate.com/p2-flat",
			"https://www.luxuryestate.com/p2-flat",
		),
		"https://www.luxuryestate.com/spain?pag=2": resultsPage(
			"https://www.luxuryestate.com/p3-house",
			"https://www.luxuryestate.com/p1-villa",
			"https://other.example/p9",
		),
		"https://www.luxuryestate.com/spain?pag=3": noResults,
	})
	q := queuetest.New()
	obs := &countingObserver{urls: map[string]int{}}

	d := NewDispatcher(browser, q, nil, obs, crawler.DefaultSelectors(), testOptions(10), logger.Nop())
	stats, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Stats{Pages: 3, Found: 5, Published: 3, Duplicates: 2}, stats)
	require.Len(t, q.Published, 3)
	assert.Equal(t, "https://www.luxuryestate.com/p1-villa", q.Published[0].URL)
	assert.Equal(t, 1, q.Published[0].URLNumber)
	assert.Equal(t, "https://www.luxuryestate.com/p3-house", q.Published[2].URL)
	assert.Equal(t, 3, q.Published[2].URLNumber)
	assert.False(t, q.Published[0].Timestamp.IsZero())

	assert.Equal(t, 3, obs.pages)
	assert.Equal(t, 3, obs.urls["published"])
	assert.Equal(t, 2, obs.urls["duplicate"])
	assert.Equal(t, 0, browser.OpenPages())
}

func TestRunStopsOnEmptyPage(t *testing.T) {
	browser := crawlertest.NewBrowser(map[string]string{
		"https://www.luxuryestate.com/spain?pag=1": resultsPage("https://www.luxuryestate.com/p1-villa"),
		"https://www.luxuryestate.com/spain?pag=2": resultsPage(),
	})
	q := queuetest.New()

	stats, err := NewDispatcher(browser, q, nil, nil, crawler.DefaultSelectors(), testOptions(50), logger.Nop()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Pages)
	assert.Equal(t, 1, stats.Published)
	assert.NotContains(t, browser.Visited, "https://www.luxuryestate.com/spain?pag=3")
}

func TestRunSkipsPageAfterRetries(t *testing.T) {
	browser := crawlertest.NewBrowser(map[string]string{
		"https://www.luxuryestate.com/spain?pag=2": resultsPage("https://www.luxuryestate.com/p2-flat"),
	})
	browser.NavErrors["https://www.luxuryestate.com/spain?pag=1"] = errors.New("timeout")
	q := queuetest.New()

	stats, err := NewDispatcher(browser, q, nil, nil, crawler.DefaultSelectors(), testOptions(2), logger.Nop()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Published)

	attempts := 0
	for _, v := range browser.Visited {
		if v == "https://www.luxuryestate.com/spain?pag=1" {
			attempts++
		}
	}
	assert.Equal(t, 3, attempts)
}

func TestRunRemembersURLsAcrossRuns(t *testing.T) {
	pages := map[string]string{
		"https://www.luxuryestate.com/spain?pag=1": resultsPage("https://www.luxuryestate.com/p1-villa"),
	}
	seen := newMemCache()
	q := queuetest.New()

	stats, err := NewDispatcher(crawlertest.NewBrowser(pages), q, seen, nil, crawler.DefaultSelectors(), testOptions(1), logger.Nop()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Published)

	stats, err = NewDispatcher(crawlertest.NewBrowser(pages), q, seen, nil, crawler.DefaultSelectors(), testOptions(1), logger.Nop()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Published)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Len(t, q.Published, 1)
}

func TestRunForgetsURLWhenPublishFails(t *testing.T) {
	pages := map[string]string{
		"https://www.luxuryestate.com/spain?pag=1": resultsPage("https://www.luxuryestate.com/p1-villa"),
	}
	seen := newMemCache()
	q := queuetest.New()
	q.PublishErr = errors.New("queue down")

	stats, err := NewDispatcher(crawlertest.NewBrowser(pages), q, seen, nil, crawler.DefaultSelectors(), testOptions(1), logger.Nop()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Published)
	assert.Empty(t, seen.keys)
}

func TestRunCountsQueueDuplicates(t *testing.T) {
	pages := map[string]string{
		"https://www.luxuryestate.com/spain?pag=1": resultsPage("https://www.luxuryestate.com/p1-villa"),
	}
	q := queuetest.New()
	q.Dedup = true

	_, err := NewDispatcher(crawlertest.NewBrowser(pages), q, nil, nil, crawler.DefaultSelectors(), testOptions(1), logger.Nop()).Run(context.Background())
	require.NoError(t, err)
	stats, err := NewDispatcher(crawlertest.NewBrowser(pages), q, nil, nil, crawler.DefaultSelectors(), testOptions(1), logger.Nop()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Duplicates)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDispatcher(crawlertest.NewBrowser(nil), queuetest.New(), nil, nil, crawler.DefaultSelectors(), testOptions(5), logger.Nop()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
