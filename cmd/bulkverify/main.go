// Package main provides the entry point for the bulkverify CLI.
//
// bulkverify reads a file of email addresses, one per line, sends them to an
// email verification service, shows the verdicts as a table and exports them
// to CSV.
//
// Usage:
//
//	bulkverify verify emails.csv
//	bulkverify verify --mode sequential --format rich emails.csv
//	bulkverify history list
//
// See --help for all available options.
package main

// main is the entry point for bulkverify.
func main() {
	Execute()
}
