// Package dataset reads seed documents from JSON, YAML or TOML files.
//
// JSON and YAML files hold either a top-level list of records or an object
// with a "documents" list. TOML files use a [[documents]] array of tables.
package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type envelope struct {
	Documents []map[string]any `json:"documents" yaml:"documents" toml:"documents"`
}

// Load reads the records stored at path, choosing a decoder by extension.
func Load(path string) ([]map[string]any, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return decodeJSON(content)
	case ".yaml", ".yml":
		return decodeYAML(content)
	case ".toml":
		var env envelope
		if err := toml.Unmarshal(content, &env); err != nil {
			return nil, fmt.Errorf("parse toml dataset: %w", err)
		}
		return env.Documents, nil
	default:
		return nil, errors.New("dataset file must be .json, .yaml, .yml, or .toml")
	}
}

// decodeJSON keeps numbers as json.Number so integer ids survive unchanged.
func decodeJSON(content []byte) ([]map[string]any, error) {
	trimmed := bytes.TrimSpace(content)
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	if len(trimmed) > 0 && trimmed[0] == '[' {
		var docs []map[string]any
		if err := dec.Decode(&docs); err != nil {
			return nil, fmt.Errorf("parse json dataset: %w", err)
		}
		return docs, nil
	}

	var env envelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("parse json dataset: %w", err)
	}
	return env.Documents, nil
}

func decodeYAML(content []byte) ([]map[string]any, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(content, &node); err != nil {
		return nil, fmt.Errorf("parse yaml dataset: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	if node.Content[0].Kind == yaml.SequenceNode {
		var docs []map[string]any
		if err := node.Decode(&docs); err != nil {
			return nil, fmt.Errorf("decode yaml dataset: %w", err)
		}
		return docs, nil
	}

	var env envelope
	if err := node.Decode(&env); err != nil {
		return nil, fmt.Errorf("decode yaml dataset: %w", err)
	}
	return env.Documents, nil
}
