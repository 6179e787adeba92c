// Package storage defines the compile cache contract and the compiler
// wrapper that uses it.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// ErrNotFound is returned when a manifest is not cached.
var ErrNotFound = errors.New("record not found")

// ManifestKey addresses a compiled manifest by protocol name and the SHA-256
// of its source. A changed source always maps to a new key, so a cached
// entry is never stale.
type ManifestKey struct {
	Name       string
	SourceHash string
}

// KeyFor derives the cache key of a protocol source.
func KeyFor(name, source string) ManifestKey {
	sum := sha256.Sum256([]byte(source))
	return ManifestKey{Name: name, SourceHash: hex.EncodeToString(sum[:])}
}

// ManifestStore persists compiled manifests.
type ManifestStore interface {
	GetManifest(ctx context.Context, key ManifestKey) ([]byte, error)
	PutManifest(ctx context.Context, key ManifestKey, manifest []byte) error
	PruneManifests(ctx context.Context, cutoff time.Time) (int64, error)
}
