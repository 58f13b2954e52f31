// Package verifier talks to the remote email verification backend.
//
// Client wraps the HTTP transport: request building, optional SOCKS5 proxy,
// client-side rate limiting, a circuit breaker and response validation.
// It exposes the two request shapes the backend understands:
//   - VerifyBatch: the whole list as one multipart upload, answered with a
//     JSON array of results
//   - VerifyOne: a single {"email": ...} JSON request, answered with one
//     result object
//
// A Strategy decides how a list is submitted:
//   - Batch: one VerifyBatch call, progress reported once
//   - Sequential: one VerifyOne call per email, strictly in list order,
//     progress reported after every response
//   - Concurrent: emails grouped by domain, groups verified in parallel with
//     a bounded number of workers, results kept in input order
//
// No strategy retries. The first error ends the run.
package verifier
