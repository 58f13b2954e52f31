package config

import "time"

// File represents the structure of the .bulkverify configuration file.
// Pointer fields distinguish "not set" from zero values so that a file can
// turn a default-on option off.
type File struct {
	Endpoint        string            `yaml:"endpoint,omitempty"`
	Mode            string            `yaml:"mode,omitempty"`
	Format          string            `yaml:"format,omitempty"`
	Timeout         time.Duration     `yaml:"timeout,omitempty"`
	Workers         int               `yaml:"workers,omitempty"`
	Rate            float64           `yaml:"rate,omitempty"`
	Proxy           string            `yaml:"proxy,omitempty"`
	Headers         map[string]string `yaml:"headers,omitempty"`
	UserAgent       string            `yaml:"userAgent,omitempty"`
	MaxBodySize     int64             `yaml:"maxBodySize,omitempty"`
	BreakerFailures int               `yaml:"breakerFailures,omitempty"`
	Precheck        *bool             `yaml:"precheck,omitempty"`
	Decorate        *bool             `yaml:"decorate,omitempty"`
	StripGlyphs     *bool             `yaml:"stripGlyphs,omitempty"`
	Output          string            `yaml:"output,omitempty"`
	History         *bool             `yaml:"history,omitempty"`
}

// Apply overrides c with every value set in the file.
// Headers are merged, with file entries replacing existing keys.
func (f *File) Apply(c *Config) {
	if f == nil {
		return
	}
	if f.Endpoint != "" {
		c.Endpoint = f.Endpoint
	}
	if f.Mode != "" {
		c.Mode = f.Mode
	}
	if f.Format != "" {
		c.Format = f.Format
	}
	if f.Timeout > 0 {
		c.Timeout = f.Timeout
	}
	if f.Workers > 0 {
		c.Workers = f.Workers
	}
	if f.Rate > 0 {
		c.Rate = f.Rate
	}
	if f.Proxy != "" {
		c.Proxy = f.Proxy
	}
	if len(f.Headers) > 0 {
		if c.Headers == nil {
			c.Headers = make(map[string]string, len(f.Headers))
		}
		for k, v := range f.Headers {
			c.Headers[k] = v
		}
	}
	if f.UserAgent != "" {
		c.UserAgent = f.UserAgent
	}
	if f.MaxBodySize > 0 {
		c.MaxBodySize = f.MaxBodySize
	}
	if f.BreakerFailures > 0 {
		c.BreakerFailures = f.BreakerFailures
	}
	if f.Precheck != nil {
		c.Precheck = *f.Precheck
	}
	if f.Decorate != nil {
		c.Decorate = *f.Decorate
	}
	if f.StripGlyphs != nil {
		c.StripGlyphs = *f.StripGlyphs
	}
	if f.Output != "" {
		c.OutputFile = f.Output
	}
	if f.History != nil {
		c.SaveHistory = *f.History
	}
}
