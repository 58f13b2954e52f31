// Package log provides secure logging built on top of the standard slog package.
//
// The SecureHandler sanitizes log output before it is written:
//   - Secret values (Authorization headers, API keys, bearer tokens) are
//     replaced with MaskValue, even in verbose mode
//   - Email addresses are masked to "a***@example.com" unless the user asks
//     to see them, so a verbose log of a verification run can be shared
//     without leaking the verified list
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose, false)
//	slog.SetDefault(logger)
//
//	logger.Debug("request sent",
//	    "email", "alice@example.com",       // logged as a***@example.com
//	    "authorization", "Bearer abc123",   // logged as ***REDACTED***
//	)
package log
