// Package session drives the verify-then-export cycle.
//
// A Session moves through idle, file-selected, parsing, verifying and
// results-displayed, and on to exported once the results are written out.
// Any error moves it to failed and drops the results of the previous run.
// Only one Verify may be in flight; concurrent callers get ErrBusy.
// Export always writes the in-memory results, never re-reads rendered output.
package session
