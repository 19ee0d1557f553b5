// Package sqldocs embeds the garden table DDL shipped with the repository so
// the SQL backends can apply it on startup.
package sqldocs

import _ "embed"

// SQLite contains the SQLite DDL for plants, favorites, chores and schedules.
//
//go:embed sqlite.sql
var SQLite string

// Postgres contains the Postgres DDL, including the owner row-level security
// policies the hosted store enforces.
//
//go:embed postgres.sql
var Postgres string
