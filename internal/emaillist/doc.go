// Package emaillist loads the user-supplied list of email addresses.
//
// The input is plain text with one address per line. Lines are trimmed and
// empty lines are dropped; order and duplicates are preserved so that the
// verification results line up with the input file.
//
// The package also offers an optional local syntax check that lets obviously
// malformed addresses be rejected without a round-trip to the backend.
package emaillist
