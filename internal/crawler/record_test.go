package crawler_test

import (
	"context"
	"testing"
	"time"

	"sjsage522/estateworker/internal/crawler"
	"sjsage522/estateworker/internal/crawler/crawlertest"
	"sjsage522/estateworker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRecordFromFullListing(t *testing.T) {
	page := crawlertest.NewPage(listingURL, fullListing)
	raw, err := newExtractor(crawler.ExtractorOptions{}).Extract(context.Background(), page)
	require.NoError(t, err)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rec := crawler.BuildRecord(raw, now)

	assert.Equal(t, "123", rec.ExternalID)
	assert.Equal(t, "EXT-123", rec.Reference())
	assert.Equal(t, "Villa X", rec.Title)
	require.NotNil(t, rec.Price.Amount)
	assert.Equal(t, 1200000.0, *rec.Price.Amount)
	assert.Equal(t, "EUR", rec.Price.Currency)

	assert.Equal(t, "Marbella", rec.Location.City)
	assert.Equal(t, "Andalusia", rec.Location.Province)
	assert.Equal(t, "Spain", rec.Location.Country)
	assert.Equal(t, "29660", rec.Location.ZipCode)

	require.NotNil(t, rec.Features.Rooms)
	assert.Equal(t, 5, *rec.Features.Rooms)
	require.NotNil(t, rec.Features.Bathrooms)
	assert.Equal(t, 4, *rec.Features.Bathrooms)
	require.NotNil(t, rec.Features.AreaM2)
	assert.Equal(t, 450, *rec.Features.AreaM2)
	assert.Nil(t, rec.Features.YearBuilt)

	assert.Equal(t, "Villa", rec.PropertyType)
	assert.Equal(t, "sale", rec.Transaction)
	assert.Equal(t, "available", rec.Status)
	assert.Equal(t, "Sea, Mountain", rec.GeneralView)
	assert.Equal(t, "2024-01-02", rec.CreatedAt)

	assert.True(t, rec.Amenities.Has(models.HasPool))
	assert.True(t, rec.Amenities.Has(models.HasGarage))
	assert.True(t, rec.Amenities.Has(models.HasFireplace))
	assert.True(t, rec.Amenities.Has(models.HasSauna))
	assert.True(t, rec.Amenities.Has(models.HasSeaView))
	assert.True(t, rec.Amenities.Has(models.NearBeach))
	assert.False(t, rec.Amenities.Has(models.HasHelipad))

	require.Len(t, rec.Media.Images, 2)
	assert.True(t, rec.Media.Images[0].IsPrimary)
	assert.False(t, rec.Media.Images[1].IsPrimary)
	assert.Equal(t, []string{"https://img.example/plan1.jpg"}, rec.Media.Floorplans)
	assert.Equal(t, "https://video.example/v", rec.Media.VideoURL)

	require.NotNil(t, rec.Agency)
	assert.Equal(t, "Costa Homes", rec.Agency.Name)
	assert.Equal(t, "https://img.example/logo.png", rec.Agency.LogoURL)
	assert.Equal(t, now, rec.ScrapedAt)
}

func TestBuildRecordDefaults(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	rec := crawler.BuildRecord(&crawler.RawListing{URL: listingURL}, now)

	assert.Equal(t, "fallback-1700000000000", rec.ExternalID)
	assert.Equal(t, "Property Unknown", rec.Title)
	assert.Nil(t, rec.Price.Amount)
	assert.Equal(t, "EUR", rec.Price.Currency)
	assert.Equal(t, "Spain", rec.Location.Country)
	assert.Equal(t, "Other", rec.PropertyType)
	assert.Nil(t, rec.Features.Rooms)
	assert.Nil(t, rec.Agency)
	assert.Empty(t, rec.Amenities.Raised())
	assert.NotNil(t, rec.ExteriorAmenities)
}

func TestBuildRecordUnparsablePrice(t *testing.T) {
	raw := &crawler.RawListing{URL: listingURL, HasProperty: true}
	raw.Property.Price.Amount = "on request"

	rec := crawler.BuildRecord(raw, time.Now())
	assert.Nil(t, rec.Price.Amount)
}
