// Package session persists login cookies between action runs as a TSV file
// of name/value pairs.
// Uses atomic writes (temp+rename) to prevent data corruption.
package session

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// TSV columns: name, value
const numColumns = 2

// Load reads the session file at path. A missing file yields no cookies and no error.
func Load(path string) ([]*http.Cookie, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening session: %w", err)
	}
	defer f.Close()

	var cookies []*http.Cookie
	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		c, err := parseLine(line)
		if err != nil {
			continue // Skip malformed lines
		}
		cookies = append(cookies, c)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}

	return cookies, nil
}

// Save replaces the session file at path with cookies.
// Uses atomic write (write to temp file, then rename) to prevent corruption.
func Save(path string, cookies []*http.Cookie) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating session dir: %w", err)
	}

	// Last value wins for duplicate names.
	byName := make(map[string]string, len(cookies))
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		byName[c.Name] = c.Value
	}
	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)

	tmpFile, err := os.CreateTemp(dir, "session-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	writer := bufio.NewWriter(tmpFile)
	for _, n := range names {
		if _, err := writer.WriteString(formatLine(n, byName[n]) + "\n"); err != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("writing session: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("flushing session: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming session file: %w", err)
	}

	return nil
}

// Remove deletes the session file. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing session: %w", err)
	}
	return nil
}

func parseLine(line string) (*http.Cookie, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < numColumns {
		return nil, fmt.Errorf("expected %d columns, got %d", numColumns, len(fields))
	}
	if fields[0] == "" {
		return nil, fmt.Errorf("empty cookie name")
	}
	return &http.Cookie{Name: fields[0], Value: fields[1]}, nil
}

func formatLine(name, value string) string {
	return name + "\t" + strings.NewReplacer("\t", "", "\n", "").Replace(value)
}
