// Package pipeline turns one listing URL into a persisted property record.
package pipeline

import (
	"context"
	"time"

	"sjsage522/estateworker/helpers"
	"sjsage522/estateworker/internal/crawler"
	"sjsage522/estateworker/internal/normalize"
	"sjsage522/estateworker/logger"
	apperrors "sjsage522/estateworker/pkg/errors"
	"sjsage522/estateworker/pkg/retry"
	"sjsage522/estateworker/services/assets"
	"sjsage522/estateworker/services/queue"
	"sjsage522/estateworker/services/store"
)

// Options configures a Pipeline
type Options struct {
	Selectors      crawler.Selectors
	Policy         store.DuplicatePolicy
	Retry          retry.Policy
	ContentTimeout time.Duration
	DelayMin       time.Duration
	DelayMax       time.Duration
	// BrowserImages fetches images through the listing's page instead of the
	// transferer's own fetcher.
	BrowserImages bool
}

// Pipeline runs extract, asset transfer and save for one message
type Pipeline struct {
	browser    crawler.Browser
	extractor  *crawler.Extractor
	transferer *assets.Transferer
	sink       store.Sink
	vocabulary *normalize.Vocabulary
	opts       Options
	logger     *logger.Logger
	now        func() time.Time
}

// New creates a pipeline. vocabulary may be nil.
func New(browser crawler.Browser, extractor *crawler.Extractor, transferer *assets.Transferer, sink store.Sink, vocabulary *normalize.Vocabulary, opts Options, log *logger.Logger) *Pipeline {
	if opts.Selectors == (crawler.Selectors{}) {
		opts.Selectors = crawler.DefaultSelectors()
	}
	if opts.Policy == "" {
		opts.Policy = store.PolicySkip
	}
	return &Pipeline{
		browser:    browser,
		extractor:  extractor,
		transferer: transferer,
		sink:       sink,
		vocabulary: vocabulary,
		opts:       opts,
		logger:     log.ForComponent("pipeline"),
		now:        time.Now,
	}
}

// Process scrapes msg.URL and saves the record. The page opened for it is
// closed on every path.
func (p *Pipeline) Process(ctx context.Context, msg queue.Message) (store.Outcome, error) {
	log := p.logger.WithFields(logger.Fields{
		"url":        msg.URL,
		"listing_id": helpers.ListingIDFromURL(msg.URL),
	})

	page, err := p.browser.NewPage(ctx)
	if err != nil {
		return "", apperrors.NewNavigation("pipeline", "failed to open page", err)
	}
	defer page.Close()

	if err := helpers.Sleep(ctx, helpers.Jitter(p.opts.DelayMin, p.opts.DelayMax)); err != nil {
		return "", err
	}

	err = p.opts.Retry.Do(ctx, func(ctx context.Context) error {
		return page.Navigate(ctx, msg.URL)
	})
	if err != nil {
		return "", apperrors.NewNavigation("pipeline", "failed to load "+msg.URL, err)
	}
	if err := page.WaitVisible(ctx, p.opts.Selectors.ContentReady, p.opts.ContentTimeout); err != nil {
		return "", apperrors.NewNavigation("pipeline", "listing content never appeared", err)
	}

	raw, err := p.extractor.Extract(ctx, page)
	if err != nil {
		return "", apperrors.NewExtraction("pipeline", "failed to extract listing", err)
	}

	rec := crawler.BuildRecord(raw, p.now())
	rec.SourceURL = msg.URL
	log = log.WithField("reference", rec.Reference())

	if p.opts.Policy == store.PolicySkip {
		exists, err := p.sink.Exists(ctx, rec.Reference())
		if err != nil {
			return "", err
		}
		if exists {
			log.Info().Msg("Property already stored, skipping")
			return store.OutcomeSkipped, nil
		}
	}

	transferer := p.transferer
	if p.opts.BrowserImages {
		transferer = transferer.WithFetcher(assets.NewPageFetcher(page))
	}
	rec.Media.Images = transferer.Transfer(ctx, rec.ExternalID, raw.Images)

	if p.vocabulary != nil {
		p.vocabulary.Add(rec.ExteriorAmenities, rec.InteriorAmenities)
	}

	outcome, err := p.sink.Save(ctx, &rec, p.opts.Policy)
	if err != nil {
		return "", err
	}
	log.Info().
		Str("title", rec.Title).
		Int("images", len(rec.Media.Images)).
		Str("outcome", string(outcome)).
		Msg("Processed listing")
	return outcome, nil
}
