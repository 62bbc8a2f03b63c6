// Package storage holds the object storage backends used for generated
// images.
package storage

import (
	"context"
	"errors"
)

// ErrNoStore is returned by nil backends.
var ErrNoStore = errors.New("storage: no store configured")

// Store is the object storage contract: keyed puts, a public URL per key and
// deletes. Put overwrites an existing object under the same key.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType, cacheControl string) error
	PublicURL(key string) string
	Delete(ctx context.Context, key string) error
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*S3Store)(nil)
)
