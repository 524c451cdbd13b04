// Package blob stores listing photos on local disk or in an S3-compatible
// bucket.
package blob

import (
	"context"
	"fmt"
)

// Store puts objects and returns a durable reference to them.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// ImageKey is the object key of the n-th (1-based) photo of a property.
func ImageKey(propertyID string, n int) string {
	return fmt.Sprintf("properties/%s/image_%d.jpg", propertyID, n)
}
