package storage

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ValidateKey rejects keys that are empty, absolute, contain backslashes
// or would resolve outside the backend root.
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

// ComputePath maps a validated key to a file below basePath.
//
// Example:
//
//	key: "reports/2024/03/15/statistics-20240315T100000Z.json"
//	basePath: "/data"
//	result: "/data/reports/2024/03/15/statistics-20240315T100000Z.json"
func ComputePath(basePath, key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(basePath, filepath.FromSlash(key)), nil
}

// ReportKey returns the key of the statistics report generated at t.
// Reports are sharded by UTC day so listings stay small.
//
// Example:
//
//	prefix: "reports"
//	t: 2024-03-15 10:00:00 UTC
//	result: "reports/2024/03/15/statistics-20240315T100000Z.json"
func ReportKey(prefix string, t time.Time) string {
	t = t.UTC()
	name := "statistics-" + t.Format("20060102T150405Z") + ".json"
	return path.Join(strings.Trim(prefix, "/"), t.Format("2006/01/02"), name)
}
