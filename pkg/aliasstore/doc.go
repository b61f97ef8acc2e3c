// Package aliasstore persists the mapping from client-facing thread aliases
// to the upstream's current internal thread ids.
//
// Each alias owns one record:
//
//	alias               conv-42
//	internal_thread_id  t_987
//	refresh_count       1
//
// A record is written with a single atomic upsert, so concurrent writers
// for the same alias never produce duplicates and the refresh count never
// loses an increment.
//
// # Backends
//
//   - sqlite: pure-Go SQLite (modernc.org/sqlite), the default
//   - sqlite3: cgo SQLite (mattn/go-sqlite3)
//   - postgres: database/sql with lib/pq
//   - pgx: native pgx connection pool
//   - bolt: embedded bbolt key/value file
//   - memory: process memory, lost on restart
//
// The relational backends create the thread_aliases table lazily on first
// use. Every storage failure wraps ErrUnavailable, which the proxy treats as
// "relay without alias handling".
package aliasstore
