package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/structds/internal/log"
)

// SaveTypeDefaults updates the type_defaults section in the config file.
// This preserves comments and formatting in other sections by using yaml.Node.
func SaveTypeDefaults(configPath string, defs []TypeDefaultConfig) error {
	if err := ValidateTypeDefaults(defs); err != nil {
		return err
	}
	node, err := buildTypeDefaultsNode(defs)
	if err != nil {
		return fmt.Errorf("building type_defaults node: %w", err)
	}
	return saveSection(configPath, "type_defaults", node)
}

// SetTypeDefault replaces the entry for def.Type, or appends it, and saves.
func SetTypeDefault(configPath string, def TypeDefaultConfig, existing []TypeDefaultConfig) ([]TypeDefaultConfig, error) {
	updated := slices.Clone(existing)
	idx := slices.IndexFunc(updated, func(d TypeDefaultConfig) bool { return d.Type == def.Type })
	if idx >= 0 {
		updated[idx] = def
	} else {
		updated = append(updated, def)
	}
	if err := SaveTypeDefaults(configPath, updated); err != nil {
		return nil, err
	}
	log.Info(log.CatConfig, "Saved type default", "type", def.Type, "protocol", def.Protocol, "format", def.Format)
	return updated, nil
}

// saveSection replaces or appends a top-level key and writes the file atomically.
func saveSection(configPath, key string, value *yaml.Node) error {
	data, err := os.ReadFile(configPath) //nolint:gosec // G304: user-selected config path
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}

	// Parse into yaml.Node to preserve comments
	var doc yaml.Node
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	switch {
	case doc.Kind == 0:
		doc = yaml.Node{
			Kind: yaml.DocumentNode,
			Content: []*yaml.Node{{
				Kind: yaml.MappingNode,
				Content: []*yaml.Node{
					{Kind: yaml.ScalarNode, Value: key},
					value,
				},
			}},
		}
	case doc.Kind == yaml.DocumentNode && len(doc.Content) > 0:
		root := doc.Content[0]
		if root.Kind != yaml.MappingNode {
			return fmt.Errorf("parsing config: top level is not a mapping")
		}
		found := false
		for i := 0; i < len(root.Content)-1; i += 2 {
			if root.Content[i].Value == key {
				root.Content[i+1] = value
				found = true
				break
			}
		}
		if !found {
			root.Content = append(root.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: key},
				value,
			)
		}
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_ = encoder.Close()

	// Write atomically (write to temp, then rename)
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".structds.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(buf.Bytes()); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, configPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func buildTypeDefaultsNode(defs []TypeDefaultConfig) (*yaml.Node, error) {
	node := &yaml.Node{
		Kind:    yaml.SequenceNode,
		Content: make([]*yaml.Node, 0, len(defs)),
	}
	for _, d := range defs {
		var item yaml.Node
		if err := item.Encode(d); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &item)
	}
	return node, nil
}
