package migrations

import "embed"

// SQLite holds the migrations for modernc.org/sqlite.
//
//go:embed sqlite/*.sql
var SQLite embed.FS

// Postgres holds the migrations for lib/pq.
//
//go:embed postgres/*.sql
var Postgres embed.FS
