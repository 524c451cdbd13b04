package assets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"sjsage522/estateworker/internal/crawler/crawlertest"
	"sjsage522/estateworker/logger"
	"sjsage522/estateworker/services/blob"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapFetcher map[string][]byte

func (m mapFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if data, ok := m[url]; ok {
		return data, nil
	}
	return nil, errors.New("not found")
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	failKey string
}

func (s *memStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key == s.failKey {
		return "", errors.New("upload failed")
	}
	if s.objects == nil {
		s.objects = map[string][]byte{}
	}
	s.objects[key] = data
	return "mem://" + key, nil
}

type countingObserver map[string]int

func (c countingObserver) ObserveImage(status string) { c[status]++ }

func TestTransferKeepsOrderAndPrimary(t *testing.T) {
	store := &memStore{}
	fetcher := mapFetcher{"a": []byte("A"), "b": []byte("B"), "c": []byte("C")}
	obs := countingObserver{}

	images := NewTransferer(store, fetcher, nil, obs, logger.Nop()).
		Transfer(context.Background(), "123", []string{"a", "b", "c"})

	require.Len(t, images, 3)
	for i, img := range images {
		assert.Equal(t, i == 0, img.IsPrimary)
		assert.Equal(t, i, img.Position)
	}
	assert.Equal(t, "mem://properties/123/image_1.jpg", images[0].URL)
	assert.Equal(t, "a", images[0].SourceURL)
	assert.Equal(t, "c", images[2].SourceURL)
	assert.Equal(t, 3, obs[StatusStored])
}

func TestTransferSkipsFailures(t *testing.T) {
	store := &memStore{failKey: blob.ImageKey("9", 3)}
	fetcher := mapFetcher{"b": []byte("B"), "c": []byte("C"), "d": []byte("D")}
	obs := countingObserver{}

	images := NewTransferer(store, fetcher, nil, obs, logger.Nop()).
		Transfer(context.Background(), "9", []string{"a", "b", "c", "d"})

	require.Len(t, images, 2)
	assert.Equal(t, "b", images[0].SourceURL)
	assert.True(t, images[0].IsPrimary)
	assert.Equal(t, "d", images[1].SourceURL)
	assert.False(t, images[1].IsPrimary)
	assert.Equal(t, 2, obs[StatusFailed])
}

func TestSamplerSelect(t *testing.T) {
	assert.Equal(t, []int{0, 1, 2}, (*Sampler)(nil).Select(3))
	assert.Equal(t, []int{0, 1, 2}, NewSampler(0, 0).Select(3))
	assert.Equal(t, []int{0, 1}, NewSampler(15, 21).Select(2), "capped at available count")

	s := NewSampler(3, 5)
	for i := 0; i < 50; i++ {
		picked := s.Select(30)
		assert.GreaterOrEqual(t, len(picked), 3)
		assert.LessOrEqual(t, len(picked), 5)
		assert.IsIncreasing(t, picked)
	}
}

func TestSamplerKeepsAtLeastOneImage(t *testing.T) {
	s := NewSampler(0, 2)
	for i := 0; i < 50; i++ {
		picked := s.Select(10)
		assert.NotEmpty(t, picked)
		assert.LessOrEqual(t, len(picked), 2)
	}
	assert.Len(t, NewSampler(0, 1).Select(4), 1)
}

func TestHTTPFetcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("image-bytes"))
	}))
	defer server.Close()

	f := NewHTTPFetcher(server.Client(), 0)
	data, err := f.Fetch(context.Background(), server.URL+"/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))

	_, err = f.Fetch(context.Background(), server.URL+"/missing.jpg")
	assert.Error(t, err)
}

func TestHTTPFetcherHonoursContext(t *testing.T) {
	f := NewHTTPFetcher(http.DefaultClient, 0.001)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// The first token is free; the second would need far longer than the deadline.
	f.limiter.Allow()
	_, err := f.Fetch(ctx, "http://127.0.0.1:1/a.jpg")
	assert.Error(t, err)
}

func TestPageFetcher(t *testing.T) {
	browser := crawlertest.NewBrowser(nil)
	browser.Resources["https://cdn.example/a.jpg"] = []byte("A")
	page, err := browser.NewPage(context.Background())
	require.NoError(t, err)

	store := &memStore{}
	images := NewTransferer(store, nil, nil, nil, logger.Nop()).
		WithFetcher(NewPageFetcher(page)).
		Transfer(context.Background(), "1", []string{"https://cdn.example/a.jpg"})

	require.Len(t, images, 1)
	assert.Equal(t, []byte("A"), store.objects["properties/1/image_1.jpg"])
}
