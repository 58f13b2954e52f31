package emaillist

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrNoFile is returned when no input file was selected.
// It is raised before anything touches the network.
var ErrNoFile = errors.New("please select a file first")

// Load reads and parses the email list at path.
func Load(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrNoFile
	}

	f, err := os.Open(path) //nolint:gosec // User-selected input file is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open email list: %w", err)
	}
	defer f.Close()

	emails, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read email list %s: %w", path, err)
	}
	return emails, nil
}

// Parse splits r into lines, trims each line and drops empty ones.
//
// The text is decoded as UTF-8 unless it starts with a UTF-8 or UTF-16
// byte order mark, which spreadsheet exports commonly add. Trimming
// removes the carriage return of CRLF line endings.
func Parse(r io.Reader) ([]string, error) {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	data, err := io.ReadAll(transform.NewReader(r, decoder))
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(data), "\n")
	emails := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		emails = append(emails, line)
	}
	return emails, nil
}
