// Package registry persists the identifier-to-record map as pretty-printed
// JSON, the interchange format downstream viewers consume.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go-civitai-scrape/internal/models"
)

// Write serializes records to path, creating parent directories as needed.
// The output is indented and stable enough to diff between runs.
func Write(path string, records map[string]models.ModelRecord) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("creating output directory %s: %w", dir, err)
		}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling registry: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing registry %s: %w", path, err)
	}
	return nil
}

// Load reads a registry previously produced by Write.
func Load(path string) (map[string]models.ModelRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading registry %s: %w", path, err)
	}
	records := make(map[string]models.ModelRecord)
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing registry %s: %w", path, err)
	}
	return records, nil
}
