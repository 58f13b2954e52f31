// Package model defines the data structures shared by bulkverify packages.
//
// This package contains the following main types:
//   - Result: One verification verdict returned by the backend
//   - Progress: Completed fraction of a verification run
//   - Summary: Counts of verdicts across a result list
//   - Run: One verify-then-export cycle, as stored in history
//
// The verifier, session, report and database packages all exchange these
// types and import nothing from each other through this package.
//
// Result and Run carry JSON tags matching the backend responses and the
// documents stored in the history database.
package model
