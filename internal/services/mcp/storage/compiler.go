package storage

import (
	"context"
	"errors"
	"fmt"
	"log"

	"golang.org/x/sync/singleflight"

	"github.com/louisbranch/tx3-mcp/internal/tx3"
)

// CachingCompiler serves compiled protocols from a ManifestStore and falls
// back to the wrapped compiler on a miss. Concurrent compiles of the same
// source share one call. Every caller receives its own decoded Protocol.
type CachingCompiler struct {
	next  tx3.Compiler
	store ManifestStore
	group singleflight.Group
}

var _ tx3.Compiler = (*CachingCompiler)(nil)

// NewCachingCompiler wraps next with store.
func NewCachingCompiler(next tx3.Compiler, store ManifestStore) (*CachingCompiler, error) {
	if next == nil {
		return nil, errors.New("compiler is required")
	}
	if store == nil {
		return nil, errors.New("manifest store is required")
	}
	return &CachingCompiler{next: next, store: store}, nil
}

// Compile returns the cached protocol for source, compiling and caching it on
// a miss. Cache failures are logged and never fail the compile.
//
// A shared compile runs detached from any single caller's cancellation, so a
// caller that gives up does not fail the others waiting on the same source.
// The wrapped compiler bounds its own run time.
func (c *CachingCompiler) Compile(ctx context.Context, name, source string) (*tx3.Protocol, error) {
	key := KeyFor(name, source)

	manifest, err := c.store.GetManifest(ctx, key)
	switch {
	case err == nil:
		protocol, decodeErr := tx3.DecodeManifest(name, manifest)
		if decodeErr == nil {
			return protocol, nil
		}
		log.Printf("compile cache: discard protocol=%s: %v", name, decodeErr)
	case !errors.Is(err, ErrNotFound):
		log.Printf("compile cache: read protocol=%s: %v", name, err)
	}

	compileCtx := context.WithoutCancel(ctx)
	results := c.group.DoChan(key.Name+"/"+key.SourceHash, func() (any, error) {
		protocol, err := c.next.Compile(compileCtx, name, source)
		if err != nil {
			return nil, err
		}
		encoded, err := tx3.EncodeManifest(protocol)
		if err != nil {
			return nil, fmt.Errorf("encode manifest: %w", err)
		}
		if err := c.store.PutManifest(compileCtx, key, encoded); err != nil {
			log.Printf("compile cache: write protocol=%s: %v", name, err)
		}
		return encoded, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-results:
		if result.Err != nil {
			return nil, result.Err
		}
		return tx3.DecodeManifest(name, result.Val.([]byte))
	}
}
