// Package storage defines the blob storage port used for resolved media.
package storage

import (
	"context"
	"io"
)

// Provider stores media blobs under opaque keys and serves them back over
// HTTP at a stable URL.
type Provider interface {
	Put(ctx context.Context, key string, r io.Reader) error
	PublicURL(key string) string
}
