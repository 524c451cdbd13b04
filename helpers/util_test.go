package helpers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetSplitPart(t *testing.T) {
	part, err := GetSplitPart("a-b-c", "-", 1)
	assert.NoError(t, err)
	assert.Equal(t, "b", part)

	_, err = GetSplitPart("a-b-c", "-", 3)
	assert.Error(t, err)
}

func TestListingIDFromURL(t *testing.T) {
	assert.Equal(t, "123456", ListingIDFromURL("https://www.luxuryestate.com/p123456-villa-for-sale-marbella"))
	assert.Equal(t, "123", ListingIDFromURL("https://site/p/123"))
	assert.Equal(t, "", ListingIDFromURL("https://www.luxuryestate.com/spain"))
	assert.Equal(t, "", ListingIDFromURL("::not a url"))
}

func TestResolveURL(t *testing.T) {
	assert.Equal(t, "https://www.luxuryestate.com/p1-villa", ResolveURL("https://www.luxuryestate.com/spain?pag=2", "/p1-villa"))
	assert.Equal(t, "https://cdn.example.com/a.jpg", ResolveURL("https://www.luxuryestate.com/", "https://cdn.example.com/a.jpg"))
	assert.Equal(t, "/x", ResolveURL("", "/x"))
}

func TestJitter(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := Jitter(2*time.Second, 5*time.Second)
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.LessOrEqual(t, d, 5*time.Second)
	}
	assert.Equal(t, time.Second, Jitter(time.Second, time.Second))
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
}
