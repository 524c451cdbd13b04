package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// This test requires a running memcached instance
// If memcached is not available, the test will be skipped
func TestMemcacheService(t *testing.T) {
	mc := NewMemcacheService("localhost:11211")

	if err := mc.Ping(); err != nil {
		t.Skip("Memcached is not available, skipping test")
	}

	key := fmt.Sprintf("estate_test_%d", time.Now().UnixNano())

	_, err := mc.Get(key)
	assert.ErrorIs(t, err, ErrMiss)

	added, err := mc.Add(key, []byte("first"), 5*time.Second)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = mc.Add(key, []byte("second"), 5*time.Second)
	require.NoError(t, err)
	assert.False(t, added, "existing key is not replaced")

	value, err := mc.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "first", string(value))

	require.NoError(t, mc.Set(key, []byte("third"), 5*time.Second))
	value, err = mc.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "third", string(value))

	assert.NoError(t, mc.Delete(key))
	assert.NoError(t, mc.Delete(key), "deleting a missing key is not an error")

	_, err = mc.Get(key)
	assert.ErrorIs(t, err, ErrMiss)
}
