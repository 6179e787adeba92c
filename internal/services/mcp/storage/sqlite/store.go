// Package sqlite provides a SQLite-backed compile cache.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/tx3-mcp/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/tx3-mcp/internal/services/mcp/storage"
	"github.com/louisbranch/tx3-mcp/internal/services/mcp/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists compiled protocol manifests keyed by protocol name and
// source hash.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

var _ storage.ManifestStore = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// Open opens a SQLite cache and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlitemigrate.Apply(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// GetManifest returns the cached manifest for a protocol source and marks it
// as used.
func (s *Store) GetManifest(ctx context.Context, key storage.ManifestKey) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	var manifest []byte
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT manifest FROM compiled_protocols WHERE name = ? AND source_hash = ?`,
		key.Name, key.SourceHash,
	).Scan(&manifest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get manifest: %w", err)
	}
	if _, err := s.sqlDB.ExecContext(ctx,
		`UPDATE compiled_protocols SET last_used_at = ? WHERE name = ? AND source_hash = ?`,
		toMillis(s.now()), key.Name, key.SourceHash,
	); err != nil {
		return nil, fmt.Errorf("touch manifest: %w", err)
	}
	return manifest, nil
}

// PutManifest stores a manifest, replacing any previous entry for the key.
func (s *Store) PutManifest(ctx context.Context, key storage.ManifestKey, manifest []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(key.Name) == "" || strings.TrimSpace(key.SourceHash) == "" {
		return fmt.Errorf("manifest key is required")
	}
	now := toMillis(s.now())
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO compiled_protocols (name, source_hash, manifest, created_at, last_used_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(name, source_hash) DO UPDATE SET
    manifest = excluded.manifest,
    last_used_at = excluded.last_used_at
`, key.Name, key.SourceHash, manifest, now, now)
	if err != nil {
		return fmt.Errorf("put manifest: %w", err)
	}
	return nil
}

// PruneManifests deletes entries not used since before cutoff and returns
// how many were removed.
func (s *Store) PruneManifests(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM compiled_protocols WHERE last_used_at < ?`, toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune manifests: %w", err)
	}
	return res.RowsAffected()
}
