package migrations

import "embed"

// FS contains embedded SQLite migrations for the compile cache.
//
//go:embed *.sql
var FS embed.FS
