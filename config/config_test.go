package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	// Test with default values
	config := LoadConfig()
	assert.Equal(t, "worker", config.Mode)
	assert.Equal(t, "localhost:6379", config.RedisAddr)
	assert.Equal(t, 0, config.RedisDB)
	assert.Equal(t, 300*time.Second, config.VisibilityTimeout)
	assert.Equal(t, 10*time.Second, config.ReceiveWait)
	assert.Equal(t, 5, config.MaxEmptyReceives)
	assert.Equal(t, 60*time.Second, config.NavigationTimeout)
	assert.Equal(t, 15*time.Second, config.SelectorTimeout)
	assert.Equal(t, 5000, config.MaxPages)
	assert.Equal(t, ImageStrategyDOM, config.ImageStrategy)
	assert.Equal(t, OnDuplicateSkip, config.OnDuplicate)
	assert.Empty(t, config.ProxyURLs)

	// Test with environment variables
	t.Setenv("REDIS_ADDR", "redis.example.com:6379")
	t.Setenv("REDIS_DB", "1")
	t.Setenv("MAX_EMPTY_RECEIVES", "0")
	t.Setenv("IMAGE_STRATEGY", "Gallery")
	t.Setenv("ON_DUPLICATE", "overwrite")
	t.Setenv("QUEUE_VISIBILITY_TIMEOUT_SECONDS", "600")
	t.Setenv("PROXY_URLS", "http://u:p@10.0.0.1:8080, http://10.0.0.2:8080")
	t.Setenv("CHROME_HEADLESS", "false")

	config = LoadConfig()
	assert.Equal(t, "redis.example.com:6379", config.RedisAddr)
	assert.Equal(t, 1, config.RedisDB)
	assert.Equal(t, 0, config.MaxEmptyReceives)
	assert.Equal(t, ImageStrategyGallery, config.ImageStrategy)
	assert.Equal(t, OnDuplicateOverwrite, config.OnDuplicate)
	assert.Equal(t, 600*time.Second, config.VisibilityTimeout)
	assert.Equal(t, []string{"http://u:p@10.0.0.1:8080", "http://10.0.0.2:8080"}, config.ProxyURLs)
	assert.False(t, config.ChromeHeadless)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := LoadConfig()
		c.DatabaseURL = "postgres://localhost/estate"
		c.BlobBucket = "listings"
		return c
	}

	assert.NoError(t, valid().Validate())

	c := valid()
	c.ImageStrategy = "carousel"
	assert.ErrorContains(t, c.Validate(), "IMAGE_STRATEGY")

	c = valid()
	c.DatabaseURL = ""
	assert.ErrorContains(t, c.Validate(), "DATABASE_URL")

	c = valid()
	c.RecordSink = SinkJSONFile
	c.DatabaseURL = ""
	assert.NoError(t, c.Validate())

	c = valid()
	c.StorageBackend = StorageBlob
	c.BlobBucket = ""
	assert.ErrorContains(t, c.Validate(), "BLOB_BUCKET")

	c = valid()
	c.ImageStrategy = ImageStrategyGallery
	c.PageFetcher = FetcherHTTP
	assert.Error(t, c.Validate())

	c = valid()
	c.Mode = "dispatch"
	c.SearchURL = "https://www.luxuryestate.com/spain"
	assert.ErrorContains(t, c.Validate(), "SEARCH_URL")

	c = valid()
	c.ImageSampleMin, c.ImageSampleMax = 21, 15
	assert.Error(t, c.Validate())
}
