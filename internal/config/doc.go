// Package config provides configuration structures and utilities for bulkverify.
// It defines the backend endpoint, verification mode, transport limits and
// export preferences, and loads them from the .bulkverify YAML file.
package config
