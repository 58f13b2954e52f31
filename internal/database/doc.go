// Package database provides SQLite-based storage of verification history.
//
// HistoryDB stores:
//   - every completed run, whole, as JSON together with its verdict counts
//   - every individual result, indexed by address
//
// SQLite (via modernc.org/sqlite) keeps the history in a single file under
// the XDG data directory and needs no CGO.
package database
