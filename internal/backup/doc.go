// Package backup mirrors the signer state snapshot to local durable storage.
//
// A Backend keeps exactly one snapshot: Save replaces the stored entries with
// the given records and Load returns them in key order. Save never lowers a
// stored version; an entry arriving with an older version than the stored one
// is kept at the stored version and reported in SaveResult.Stale.
//
// Two backends are provided:
//
//   - SQLite (driver "sqlite"): single file, WAL mode, schema migrations
//     tracked through PRAGMA user_version
//   - Pebble (driver "pebble"): LSM directory, entries under the "e/" prefix
//
// Versions are stored as signed 64-bit integers in SQLite. Both backends
// refuse versions above math.MaxInt64, so a Pebble backup always fits SQLite.
package backup
