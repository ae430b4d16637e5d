package literal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Marshal renders a literal as YAML.
func Marshal(l *Literal) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(l); err != nil {
		return nil, fmt.Errorf("encoding literal: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding literal: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal parses a YAML (or JSON, which is valid YAML) literal and checks
// that it carries a structured dataset with a URI.
func Unmarshal(data []byte) (*Literal, error) {
	var l Literal
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parsing literal: %w", err)
	}
	sd, err := l.StructuredDataset()
	if err != nil {
		return nil, err
	}
	if sd.URI == "" {
		return nil, fmt.Errorf("parsing literal: structured dataset has no uri")
	}
	return &l, nil
}

// ReadFile loads a literal from disk.
func ReadFile(path string) (*Literal, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is a user-supplied literal file
	if err != nil {
		return nil, fmt.Errorf("reading literal: %w", err)
	}
	return Unmarshal(data)
}

// WriteFile stores a literal on disk. Files ending in .json are written as
// indented JSON, everything else as YAML.
func WriteFile(path string, l *Literal) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(l, "", "  ")
		if err == nil {
			data = append(data, '\n')
		}
	} else {
		data, err = Marshal(l)
	}
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating literal directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing literal: %w", err)
	}
	return nil
}
