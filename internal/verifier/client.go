package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/nao1215/bulkverify/internal/config"
	"github.com/nao1215/bulkverify/internal/model"
)

// Multipart upload details of a batch request.
const (
	uploadField       = "file"
	uploadFileName    = "emails.csv"
	uploadContentType = "text/csv"
)

// Client sends verification requests to the backend.
// A Client is safe for concurrent use.
type Client struct {
	endpoint    string
	httpClient  *http.Client
	headers     map[string]string
	userAgent   string
	maxBodySize int64
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
	logger      *slog.Logger

	// options collected before the HTTP client is built
	timeout         time.Duration
	proxyAddress    string
	breakerFailures uint32
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the timeout of a single request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithProxy routes requests through a SOCKS5 proxy at "host:port".
func WithProxy(address string) Option {
	return func(c *Client) {
		c.proxyAddress = address
	}
}

// WithHeaders adds headers to every request.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		for k, v := range headers {
			c.headers[k] = v
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithMaxBodySize limits how many bytes of a response are read.
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}

// WithRateLimit limits requests to rps per second. Zero disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			c.limiter = nil
		}
	}
}

// WithBreakerFailures sets how many consecutive failures open the circuit.
func WithBreakerFailures(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.breakerFailures = uint32(n) //nolint:gosec // n is validated positive and small
		}
	}
}

// WithLogger sets the logger used for request-level debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client for the backend at endpoint.
// It does not contact the backend.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	c := &Client{
		endpoint:        endpoint,
		headers:         make(map[string]string),
		userAgent:       config.DefaultUserAgent,
		maxBodySize:     config.DefaultMaxBodySize,
		timeout:         config.DefaultTimeout,
		breakerFailures: config.DefaultBreakerFailures,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	httpClient, err := newHTTPClient(c.timeout, c.proxyAddress)
	if err != nil {
		return nil, err
	}
	c.httpClient = httpClient

	threshold := c.breakerFailures
	logger := c.logger
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "verify-backend",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return c, nil
}

// Endpoint returns the backend URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// VerifyBatch uploads emails as one newline-joined CSV file and returns the
// backend's result array. A response that is not a JSON array yields
// ErrInvalidData.
func (c *Client) VerifyBatch(ctx context.Context, emails []string) ([]model.Result, error) {
	body, contentType, err := buildUpload(emails)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("sending batch request", "endpoint", c.endpoint, "count", len(emails))

	data, err := c.post(ctx, contentType, body)
	if err != nil {
		return nil, err
	}

	return decodeBatch(data)
}

// VerifyOne sends a single {"email": ...} request and returns its result.
// If the backend omits the email in its answer, the requested one is used.
func (c *Client) VerifyOne(ctx context.Context, email string) (model.Result, error) {
	payload, err := json.Marshal(struct {
		Email string `json:"email"`
	}{Email: email})
	if err != nil {
		return model.Result{}, fmt.Errorf("failed to encode request: %w", err)
	}

	c.logger.Debug("sending single request", "endpoint", c.endpoint, "email", email)

	data, err := c.post(ctx, "application/json", payload)
	if err != nil {
		return model.Result{}, err
	}

	var result model.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return model.Result{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if result.Email == "" {
		result.Email = email
	}
	return result, nil
}

// post sends body to the endpoint through the rate limiter and the circuit
// breaker and returns the response body of a 2xx answer.
func (c *Client) post(ctx context.Context, contentType string, body []byte) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doPost(ctx, contentType, body)
	})
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}

// doPost performs one HTTP round-trip.
func (c *Client) doPost(ctx context.Context, contentType string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("received response",
		"status", resp.StatusCode,
		"bytes", len(data),
		"elapsed", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode}
	}
	if int64(len(data)) > c.maxBodySize {
		return nil, ErrBodyTooLarge
	}
	return data, nil
}

// buildUpload encodes emails as the multipart form of a batch request.
func buildUpload(emails []string) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, uploadField, uploadFileName))
	header.Set("Content-Type", uploadContentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create upload part: %w", err)
	}
	if _, err := io.WriteString(part, strings.Join(emails, "\n")); err != nil {
		return nil, "", fmt.Errorf("failed to write upload part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish upload: %w", err)
	}

	return buf.Bytes(), mw.FormDataContentType(), nil
}

// decodeBatch checks that data is a JSON array and decodes its results.
func decodeBatch(data []byte) ([]model.Result, error) {
	var raw json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrInvalidData
	}

	var results []model.Result
	if err := json.Unmarshal(trimmed, &results); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if results == nil {
		results = []model.Result{}
	}
	return results, nil
}

// IsOpenCircuit reports whether err means the circuit breaker refused the request.
func IsOpenCircuit(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
