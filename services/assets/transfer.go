// Package assets moves listing photos from the source site into a blob store.
package assets

import (
	"context"
	"math/rand"
	"net/http"
	"sort"
	"sync"
	"time"

	"sjsage522/estateworker/internal/models"
	"sjsage522/estateworker/logger"
	"sjsage522/estateworker/services/blob"
)

// Image transfer statuses reported to the observer.
const (
	StatusStored = "stored"
	StatusFailed = "failed"
)

// Observer is told about every image transfer attempt.
type Observer interface {
	ObserveImage(status string)
}

// Sampler picks a random subset of images. Max 0 keeps every image; when
// sampling is on at least one image is kept.
type Sampler struct {
	Min, Max int

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSampler creates a sampler with bounds min and max
func NewSampler(min, max int) *Sampler {
	return &Sampler{Min: min, Max: max, rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Select returns the indices to keep out of n, in ascending order.
func (s *Sampler) Select(n int) []int {
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	if s == nil || s.Max <= 0 || n == 0 {
		return all
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	count := s.Min
	if s.Max > s.Min {
		count += s.rnd.Intn(s.Max - s.Min + 1)
	}
	if count < 1 {
		count = 1
	}
	if count >= n {
		return all
	}

	s.rnd.Shuffle(n, func(i, j int) { all[i], all[j] = all[j], all[i] })
	picked := all[:count]
	sort.Ints(picked)
	return picked
}

// Transferer fetches listing photos and stores them.
type Transferer struct {
	store    blob.Store
	fetcher  Fetcher
	sampler  *Sampler
	observer Observer
	logger   *logger.Logger
}

// NewTransferer creates a transferer. sampler and observer may be nil.
func NewTransferer(store blob.Store, fetcher Fetcher, sampler *Sampler, observer Observer, log *logger.Logger) *Transferer {
	return &Transferer{
		store:    store,
		fetcher:  fetcher,
		sampler:  sampler,
		observer: observer,
		logger:   log.ForComponent("assets"),
	}
}

// WithFetcher returns a copy of t fetching through f.
func (t *Transferer) WithFetcher(f Fetcher) *Transferer {
	cp := *t
	cp.fetcher = f
	return &cp
}

// Transfer stores the selected photos of a property and returns them in
// extraction order. A failed photo is logged and skipped. The first stored
// photo is the primary one.
func (t *Transferer) Transfer(ctx context.Context, propertyID string, sources []string) []models.Image {
	log := t.logger.WithField("property_id", propertyID)
	selected := t.sampler.Select(len(sources))

	images := make([]models.Image, 0, len(selected))
	for n, idx := range selected {
		if ctx.Err() != nil {
			log.Warn().Err(ctx.Err()).Msg("Image transfer interrupted")
			break
		}
		src := sources[idx]
		key := blob.ImageKey(propertyID, n+1)

		data, err := t.fetcher.Fetch(ctx, src)
		if err != nil {
			t.observe(StatusFailed)
			log.Warn().Err(err).Str("source", src).Msg("Failed to fetch image")
			continue
		}
		ref, err := t.store.Put(ctx, key, data, http.DetectContentType(data))
		if err != nil {
			t.observe(StatusFailed)
			log.Warn().Err(err).Str("key", key).Msg("Failed to store image")
			continue
		}

		t.observe(StatusStored)
		images = append(images, models.Image{
			URL:       ref,
			SourceURL: src,
			IsPrimary: len(images) == 0,
			Position:  len(images),
		})
	}

	log.Info().
		Int("found", len(sources)).
		Int("selected", len(selected)).
		Int("stored", len(images)).
		Msg("Transferred images")
	return images
}

func (t *Transferer) observe(status string) {
	if t.observer != nil {
		t.observer.ObserveImage(status)
	}
}
