package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

func MissingFileName(today time.Time) string {
	return today.Format("2006-01-02") + "-missing-patrons.json"
}

// WriteMissing stores the raw source records of unmatched people so they
// can be created later.
func WriteMissing(dir string, today time.Time, records []json.RawMessage) (string, error) {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal missing patrons: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, MissingFileName(today))
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("failed to write missing patrons: %w", err)
	}
	return path, nil
}
