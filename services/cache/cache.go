package cache

import (
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent.
var ErrMiss = errors.New("cache miss")

// CacheService represents a generic cache service
type CacheService interface {
	// Get retrieves a value from the cache
	Get(key string) ([]byte, error)

	// Set stores a value in the cache with an expiration time
	Set(key string, value []byte, expiration time.Duration) error

	// Add stores a value only if the key is absent and reports whether it did
	Add(key string, value []byte, expiration time.Duration) (bool, error)

	// Delete removes a value from the cache
	Delete(key string) error
}
