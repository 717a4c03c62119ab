// Package blob provides content-addressed storage for texture bytes.
package blob

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("blob: not found")

// Store is a content-addressed byte store. Keys are the texture content
// hashes, so writes are idempotent.
type Store interface {
	// Save stores the bytes under the given hash.
	Save(ctx context.Context, hash string, data []byte) error

	// Read returns the bytes stored under hash, or ErrNotFound.
	Read(ctx context.Context, hash string) ([]byte, error)

	// Delete removes the bytes under hash. Missing blobs are not an error.
	Delete(ctx context.Context, hash string) error
}
