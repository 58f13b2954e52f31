package verifier

import (
	"errors"
	"fmt"
)

// Verification errors.
var (
	// ErrInvalidData is returned when a batch response is valid JSON but not
	// an array of results.
	ErrInvalidData = errors.New("server returned invalid data: expected a JSON array")

	// ErrMalformedResponse is returned when a response body is not valid JSON
	// of the expected shape.
	ErrMalformedResponse = errors.New("malformed response from server")

	// ErrResultCount is returned when a batch response holds a different
	// number of results than addresses were uploaded.
	ErrResultCount = errors.New("result count does not match submitted addresses")

	// ErrBodyTooLarge is returned when a response exceeds the size limit.
	ErrBodyTooLarge = errors.New("response body exceeds size limit")

	// ErrUnknownMode is returned by NewStrategy for an unsupported mode.
	ErrUnknownMode = errors.New("unknown verification mode")
)

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	// Code is the HTTP status code.
	Code int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("http error: status %d", e.Code)
}
