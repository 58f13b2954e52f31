package config

import (
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Verification modes.
const (
	// ModeBatch uploads the whole list in one multipart request.
	ModeBatch = "batch"

	// ModeSequential sends one JSON request per email, strictly in order.
	ModeSequential = "sequential"

	// ModeConcurrent sends one JSON request per email, grouping emails by
	// domain and running domain groups in parallel.
	ModeConcurrent = "concurrent"
)

// Export formats.
const (
	// FormatSimple writes "Email,Status" rows, unquoted, with status glyphs stripped.
	FormatSimple = "simple"

	// FormatRich writes "Email,Status,Reason" rows with every field quoted.
	FormatRich = "rich"
)

// Report formats for the optional summary report.
const (
	ReportMarkdown = "markdown"
	ReportJSON     = "json"
)

// Default configuration values.
const (
	// DefaultEndpoint is the verification service on a local development host.
	DefaultEndpoint = "http://localhost:5000/verify"

	// DefaultMode uploads the whole file in one request.
	DefaultMode = ModeBatch

	// DefaultTimeout bounds a single HTTP request. A batch request verifies the
	// whole list server side, so this is generous.
	DefaultTimeout = 120 * time.Second

	// DefaultWorkers is the number of domain groups verified in parallel in
	// concurrent mode.
	DefaultWorkers = 5

	// DefaultOutputFile is the CSV export file name.
	DefaultOutputFile = "verified_emails.csv"

	// DefaultBreakerFailures is how many consecutive request failures open the
	// circuit breaker.
	DefaultBreakerFailures = 5

	// DefaultUserAgent identifies bulkverify in HTTP requests.
	DefaultUserAgent = "bulkverify/1.0 (+https://github.com/nao1215/bulkverify)"

	// DefaultMaxBodySize limits how much of a response body is read.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// AppName is the application name used for XDG directory paths.
	AppName = "bulkverify"
)

// Config holds all configuration options for bulkverify.
// It is populated from defaults, then the configuration file, then CLI flags,
// and passed through the application rather than kept in global state.
type Config struct {
	// Endpoint is the URL of the verification backend.
	Endpoint string

	// Mode selects the verification strategy: batch, sequential or concurrent.
	Mode string

	// Format selects the CSV export layout: simple or rich.
	// When empty, batch mode exports simple and the per-email modes export rich.
	Format string

	// Timeout is the timeout of a single HTTP request.
	Timeout time.Duration

	// Workers is the number of parallel domain groups in concurrent mode.
	Workers int

	// Rate limits requests per second. Zero disables limiting.
	Rate float64

	// Proxy is an optional SOCKS5 proxy address in "host:port" format.
	Proxy string

	// Headers are extra HTTP headers sent with every request
	// (for example an Authorization header for a protected backend).
	Headers map[string]string

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes.
	MaxBodySize int64

	// BreakerFailures is the number of consecutive failures that open the
	// circuit breaker.
	BreakerFailures int

	// Precheck enables the local syntax check. Addresses failing it are marked
	// invalid without contacting the backend.
	Precheck bool

	// Decorate prefixes statuses with ✅/❌ glyphs in the rendered table.
	Decorate bool

	// StripGlyphs removes ✅/❌ from statuses in simple CSV exports.
	StripGlyphs bool

	// InputFile is the path of the email list to verify.
	InputFile string

	// OutputFile is the CSV export path.
	OutputFile string

	// ReportFormat optionally selects a summary report (markdown or json).
	ReportFormat string

	// ReportFile is where the summary report is written. Stdout when empty.
	ReportFile string

	// ConfigFilePath is the path to the configuration file.
	// If empty, the standard locations are searched.
	ConfigFilePath string

	// Verbose enables debug logging.
	Verbose bool

	// SaveHistory stores each run in the history database.
	SaveHistory bool

	// DBDir is the directory of the history database.
	DBDir string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Endpoint:        DefaultEndpoint,
		Mode:            DefaultMode,
		Timeout:         DefaultTimeout,
		Workers:         DefaultWorkers,
		UserAgent:       DefaultUserAgent,
		MaxBodySize:     DefaultMaxBodySize,
		BreakerFailures: DefaultBreakerFailures,
		Decorate:        true,
		StripGlyphs:     true,
		OutputFile:      DefaultOutputFile,
		SaveHistory:     true,
		DBDir:           XDGDataDir(),
	}
}

// ExportFormat returns the effective CSV export format.
// An explicit Format wins; otherwise batch mode exports simple and the
// per-email modes export rich, since only they receive reasons.
func (c *Config) ExportFormat() string {
	if c.Format != "" {
		return c.Format
	}
	if c.Mode == ModeBatch {
		return FormatSimple
	}
	return FormatRich
}

// XDGDataDir returns the XDG data directory for bulkverify.
// On Linux: ~/.local/share/bulkverify
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for bulkverify.
// On Linux: ~/.config/bulkverify
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if err := validateEndpoint(c.Endpoint); err != nil {
		return err
	}

	switch c.Mode {
	case ModeBatch, ModeSequential, ModeConcurrent:
	default:
		return ErrInvalidMode
	}

	switch c.Format {
	case "", FormatSimple, FormatRich:
	default:
		return ErrInvalidFormat
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}

	if c.Rate < 0 {
		return ErrInvalidRate
	}

	if c.Proxy != "" && !IsValidProxyAddress(c.Proxy) {
		return ErrInvalidProxyAddress
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.BreakerFailures <= 0 {
		return ErrInvalidBreakerFailures
	}

	switch c.ReportFormat {
	case "", ReportMarkdown, ReportJSON:
	default:
		return ErrInvalidReportFormat
	}

	if c.OutputFile == "" {
		return ErrNoOutputFile
	}

	return nil
}

// validateEndpoint requires an absolute http or https URL.
func validateEndpoint(endpoint string) error {
	if endpoint == "" {
		return ErrNoEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidEndpoint
	}
	return nil
}

// IsValidProxyAddress checks that address is "host:port" with a port in 1..65535.
func IsValidProxyAddress(address string) bool {
	host, port, ok := strings.Cut(address, ":")
	if !ok || host == "" || strings.Contains(port, ":") {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil || port[0] == '+' || port[0] == '-' {
		return false
	}
	return n >= 1 && n <= 65535
}
