package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected default values.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default Endpoint is the local backend", func(t *testing.T) {
		t.Parallel()
		if cfg.Endpoint != "http://localhost:5000/verify" {
			t.Errorf("expected local endpoint, got '%s'", cfg.Endpoint)
		}
	})

	t.Run("default Mode is batch", func(t *testing.T) {
		t.Parallel()
		if cfg.Mode != ModeBatch {
			t.Errorf("expected Mode to be batch, got '%s'", cfg.Mode)
		}
	})

	t.Run("default OutputFile is verified_emails.csv", func(t *testing.T) {
		t.Parallel()
		if cfg.OutputFile != "verified_emails.csv" {
			t.Errorf("expected verified_emails.csv, got '%s'", cfg.OutputFile)
		}
	})

	t.Run("default Timeout is 120 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 120*time.Second {
			t.Errorf("expected Timeout to be 120s, got %v", cfg.Timeout)
		}
	})

	t.Run("decoration and glyph stripping are on", func(t *testing.T) {
		t.Parallel()
		if !cfg.Decorate || !cfg.StripGlyphs {
			t.Error("expected Decorate and StripGlyphs to be true")
		}
	})

	t.Run("history is saved by default", func(t *testing.T) {
		t.Parallel()
		if !cfg.SaveHistory {
			t.Error("expected SaveHistory to be true")
		}
		if cfg.DBDir == "" {
			t.Error("expected non-empty DBDir")
		}
	})

	t.Run("defaults are valid", func(t *testing.T) {
		t.Parallel()
		if err := NewConfig().Validate(); err != nil {
			t.Errorf("expected defaults to validate, got %v", err)
		}
	})
}

// TestConfigExportFormat tests the mode-dependent default export format.
func TestConfigExportFormat(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		mode     string
		format   string
		expected string
	}{
		{"batch defaults to simple", ModeBatch, "", FormatSimple},
		{"sequential defaults to rich", ModeSequential, "", FormatRich},
		{"concurrent defaults to rich", ModeConcurrent, "", FormatRich},
		{"explicit format wins", ModeBatch, FormatRich, FormatRich},
		{"explicit simple in sequential", ModeSequential, FormatSimple, FormatSimple},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := NewConfig()
			cfg.Mode = tc.mode
			cfg.Format = tc.format
			if got := cfg.ExportFormat(); got != tc.expected {
				t.Errorf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}

// TestConfigValidate tests the Validate method with various configurations.
// Each test case breaks one specific validation rule.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"empty endpoint", func(c *Config) { c.Endpoint = "" }, ErrNoEndpoint},
		{"relative endpoint", func(c *Config) { c.Endpoint = "/verify" }, ErrInvalidEndpoint},
		{"ftp endpoint", func(c *Config) { c.Endpoint = "ftp://host/verify" }, ErrInvalidEndpoint},
		{"unknown mode", func(c *Config) { c.Mode = "parallel" }, ErrInvalidMode},
		{"unknown format", func(c *Config) { c.Format = "fancy" }, ErrInvalidFormat},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, ErrInvalidTimeout},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }, ErrInvalidTimeout},
		{"zero workers", func(c *Config) { c.Workers = 0 }, ErrInvalidWorkers},
		{"negative rate", func(c *Config) { c.Rate = -1 }, ErrInvalidRate},
		{"bad proxy", func(c *Config) { c.Proxy = "localhost" }, ErrInvalidProxyAddress},
		{"negative body size", func(c *Config) { c.MaxBodySize = -1 }, ErrInvalidMaxBodySize},
		{"zero breaker failures", func(c *Config) { c.BreakerFailures = 0 }, ErrInvalidBreakerFailures},
		{"unknown report format", func(c *Config) { c.ReportFormat = "html" }, ErrInvalidReportFormat},
		{"empty output", func(c *Config) { c.OutputFile = "" }, ErrNoOutputFile},
		{"https endpoint is valid", func(c *Config) { c.Endpoint = "https://verify.example.com/verify" }, nil},
		{"proxy is valid", func(c *Config) { c.Proxy = "127.0.0.1:9050" }, nil},
		{"markdown report is valid", func(c *Config) { c.ReportFormat = ReportMarkdown }, nil},
		{"json report is valid", func(c *Config) { c.ReportFormat = ReportJSON }, nil},
		{"concurrent mode is valid", func(c *Config) { c.Mode = ModeConcurrent }, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := NewConfig()
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.wantErr == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

// TestIsValidProxyAddress tests host:port validation.
func TestIsValidProxyAddress(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		address string
		valid   bool
	}{
		{"127.0.0.1:9050", true},
		{"localhost:1080", true},
		{"proxy:65535", true},
		{"proxy:0", false},
		{"proxy:65536", false},
		{"proxy:", false},
		{":9050", false},
		{"proxy", false},
		{"proxy:90a", false},
		{"proxy:+80", false},
		{"a:b:c", false},
	}

	for _, tc := range testCases {
		t.Run(tc.address, func(t *testing.T) {
			t.Parallel()
			if got := IsValidProxyAddress(tc.address); got != tc.valid {
				t.Errorf("IsValidProxyAddress(%q) = %v, expected %v", tc.address, got, tc.valid)
			}
		})
	}
}

// TestFileApply tests merging the configuration file into a Config.
func TestFileApply(t *testing.T) {
	t.Parallel()

	t.Run("nil file is a no-op", func(t *testing.T) {
		t.Parallel()
		cfg := NewConfig()
		var f *File
		f.Apply(cfg)
		if cfg.Mode != ModeBatch {
			t.Errorf("expected Mode unchanged, got %q", cfg.Mode)
		}
	})

	t.Run("overrides set values only", func(t *testing.T) {
		t.Parallel()
		cfg := NewConfig()
		off := false
		f := &File{
			Endpoint: "https://api.example.com/verify",
			Mode:     ModeSequential,
			Workers:  8,
			Decorate: &off,
			Output:   "out.csv",
		}
		f.Apply(cfg)

		if cfg.Endpoint != "https://api.example.com/verify" {
			t.Errorf("unexpected Endpoint %q", cfg.Endpoint)
		}
		if cfg.Mode != ModeSequential {
			t.Errorf("unexpected Mode %q", cfg.Mode)
		}
		if cfg.Workers != 8 {
			t.Errorf("unexpected Workers %d", cfg.Workers)
		}
		if cfg.Decorate {
			t.Error("expected Decorate false")
		}
		if !cfg.StripGlyphs {
			t.Error("expected StripGlyphs to keep its default")
		}
		if cfg.OutputFile != "out.csv" {
			t.Errorf("unexpected OutputFile %q", cfg.OutputFile)
		}
		if cfg.Timeout != DefaultTimeout {
			t.Errorf("expected default Timeout, got %v", cfg.Timeout)
		}
	})

	t.Run("merges headers", func(t *testing.T) {
		t.Parallel()
		cfg := NewConfig()
		cfg.Headers = map[string]string{"X-Team": "ops", "Authorization": "old"}
		f := &File{Headers: map[string]string{"Authorization": "Bearer new"}}
		f.Apply(cfg)

		if cfg.Headers["Authorization"] != "Bearer new" {
			t.Errorf("expected file header to win, got %q", cfg.Headers["Authorization"])
		}
		if cfg.Headers["X-Team"] != "ops" {
			t.Errorf("expected existing header to remain, got %q", cfg.Headers["X-Team"])
		}
	})
}

// TestLoadConfigFile tests loading the YAML configuration file.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		content := `endpoint: https://verify.example.com/verify
mode: concurrent
format: rich
timeout: 30s
workers: 3
rate: 2.5
headers:
  Authorization: "Bearer abc"
precheck: true
stripGlyphs: false
history: false
`
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		f, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if f.Mode != ModeConcurrent {
			t.Errorf("unexpected Mode %q", f.Mode)
		}
		if f.Timeout != 30*time.Second {
			t.Errorf("unexpected Timeout %v", f.Timeout)
		}
		if f.Rate != 2.5 {
			t.Errorf("unexpected Rate %v", f.Rate)
		}
		if f.Headers["Authorization"] != "Bearer abc" {
			t.Errorf("unexpected Authorization header %q", f.Headers["Authorization"])
		}
		if f.Precheck == nil || !*f.Precheck {
			t.Error("expected Precheck true")
		}
		if f.StripGlyphs == nil || *f.StripGlyphs {
			t.Error("expected StripGlyphs false")
		}

		cfg := NewConfig()
		f.Apply(cfg)
		if cfg.SaveHistory {
			t.Error("expected SaveHistory false after apply")
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected loaded config to validate, got %v", err)
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("mode: [unclosed"), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})
}

// TestFindConfigFile tests configuration file discovery.
func TestFindConfigFile(t *testing.T) {
	t.Run("returns explicit path if exists", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "explicit.yaml")
		if err := os.WriteFile(path, []byte("mode: batch\n"), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		if got := FindConfigFile(path); got != path {
			t.Errorf("expected %q, got %q", path, got)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		if got := FindConfigFile(filepath.Join(t.TempDir(), "nope.yaml")); got != "" {
			t.Errorf("expected empty path, got %q", got)
		}
	})
}

// TestXDGDirs tests that XDG directories end with the application name.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	for name, dir := range map[string]string{
		"data":   XDGDataDir(),
		"config": XDGConfigDir(),
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if filepath.Base(dir) != AppName {
				t.Errorf("expected %s dir to end with %q, got %q", name, AppName, dir)
			}
		})
	}
}
