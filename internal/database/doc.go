// Package database provides the SQLite-based places store for socialmark.
//
// This package implements PlacesDB, which stores:
//   - History entries (places) keyed by URL, with a SHA3 URL hash
//   - Visits recorded for each place
//   - Page annotations, including the "action/saved" list
//
// Design decision: We use SQLite (via modernc.org/sqlite) because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. WAL mode lets report commands read while the watcher writes
//
// Annotations belong to a history entry. Forgetting a URL removes its
// visits and annotations with it, and annotating a URL that has no
// history entry is refused.
package database
