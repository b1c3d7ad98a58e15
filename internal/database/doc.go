// Package database provides the SQLite run history of appscout.
//
// The HistoryDB stores:
//   - one row per run (explore or update) with its counts and warnings
//   - the outcome of every visited URL of the run
//   - a snapshot of the knowledge each run produced
//
// The artifact directory holds only the latest knowledge plus file
// backups; the database is what `appscout history` reads to list past
// versions and to compare two snapshots.
//
// Design decision: We use SQLite (via modernc.org/sqlite) because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. WAL mode lets `history` read while a run is writing
package database
