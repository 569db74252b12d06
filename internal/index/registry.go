package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Definition represents a fully resolved index definition.
type Definition struct {
	Name      string   `json:"name"`
	Fields    []string `json:"fields"`
	TagField  string   `json:"tagField,omitempty"`
	Tokenizer string   `json:"tokenizer"`
}

// CreateRequest captures the payload for creating an index.
type CreateRequest struct {
	Name      string   `json:"name"`
	Fields    []string `json:"fields"`
	TagField  string   `json:"tagField,omitempty"`
	Tokenizer string   `json:"tokenizer,omitempty"`
}

// CreateDefaults supplies values applied to requests that leave them unset.
type CreateDefaults struct {
	Tokenizer string
}

// Registry persists index definitions on disk and serves them at runtime.
// Only definitions are stored; documents live in memory.
type Registry struct {
	basePath string
	defaults CreateDefaults
	indexes  map[string]Definition
	mu       sync.RWMutex
}

const (
	defaultTokenizer = string(StrategyStrict)
	maxFields        = 64
	maxNameLength    = 64
)

// NewRegistry loads existing index definitions from disk, ensuring the storage path exists.
func NewRegistry(basePath string) (*Registry, error) {
	return NewRegistryWithDefaults(basePath, CreateDefaults{})
}

// NewRegistryWithDefaults is NewRegistry with configurable creation defaults.
func NewRegistryWithDefaults(basePath string, defaults CreateDefaults) (*Registry, error) {
	if defaults.Tokenizer == "" {
		defaults.Tokenizer = defaultTokenizer
	}
	if _, err := ParseStrategy(defaults.Tokenizer); err != nil {
		return nil, fmt.Errorf("default tokenizer: %w", err)
	}

	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	r := &Registry{
		basePath: basePath,
		defaults: defaults,
		indexes:  make(map[string]Definition),
	}

	if err := r.loadFromDisk(); err != nil {
		return nil, err
	}

	return r, nil
}

// Create registers and persists a new index definition.
func (r *Registry) Create(req CreateRequest) (Definition, error) {
	if err := req.validate(); err != nil {
		return Definition{}, err
	}

	def := Definition{
		Name:      strings.TrimSpace(req.Name),
		Fields:    req.Fields,
		TagField:  req.TagField,
		Tokenizer: r.defaults.Tokenizer,
	}
	if req.Tokenizer != "" {
		def.Tokenizer = req.Tokenizer
	}

	def, err := def.normalize()
	if err != nil {
		return Definition{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.indexes[def.Name]; exists {
		return Definition{}, fmt.Errorf("%w: '%s'", ErrIndexExists, def.Name)
	}

	if err := r.persist(def); err != nil {
		return Definition{}, err
	}

	r.indexes[def.Name] = def
	return def, nil
}

// List returns all known index definitions ordered by name.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	definitions := make([]Definition, 0, len(r.indexes))
	for _, def := range r.indexes {
		definitions = append(definitions, def)
	}
	sort.Slice(definitions, func(i, j int) bool {
		return definitions[i].Name < definitions[j].Name
	})

	return definitions
}

// Get retrieves an index definition by name.
func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.indexes[name]
	return def, ok
}

// Delete forgets a definition and removes its file.
func (r *Registry) Delete(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.indexes[name]; !ok {
		return fmt.Errorf("%w: index '%s'", ErrNotFound, name)
	}

	path := filepath.Join(r.basePath, fmt.Sprintf("%s.json", name))
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove definition: %w", err)
	}

	delete(r.indexes, name)
	return nil
}

func (r *Registry) persist(def Definition) error {
	path := filepath.Join(r.basePath, fmt.Sprintf("%s.json", def.Name))
	content, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize definition: %w", err)
	}

	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write definition: %w", err)
	}

	return nil
}

func (r *Registry) loadFromDisk() error {
	if err := r.load(os.DirFS(r.basePath), "."); err != nil {
		return fmt.Errorf("load definitions from %s: %w", r.basePath, err)
	}
	return nil
}

// LoadFromFS reconstructs a read-only view of the definitions stored under
// root in fsys. The returned registry cannot persist new definitions.
func LoadFromFS(fsys fs.FS, root string) (*Registry, error) {
	r := &Registry{
		basePath: root,
		defaults: CreateDefaults{Tokenizer: defaultTokenizer},
		indexes:  make(map[string]Definition),
	}
	if err := r.load(fsys, root); err != nil {
		return nil, err
	}
	return r, nil
}

// load decodes every *.json definition below root.
func (r *Registry) load(fsys fs.FS, root string) error {
	return fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(d.Name()) != ".json" {
			return nil
		}

		content, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		def, err := decodeDefinition(d.Name(), content)
		if err != nil {
			return err
		}
		if _, dup := r.indexes[def.Name]; dup {
			return fmt.Errorf("definition %s declared twice", def.Name)
		}
		r.indexes[def.Name] = def
		return nil
	})
}

func decodeDefinition(file string, content []byte) (Definition, error) {
	var def Definition
	if err := json.Unmarshal(content, &def); err != nil {
		return Definition{}, fmt.Errorf("decode definition %s: %w", file, err)
	}

	if err := (CreateRequest{Name: def.Name}).validate(); err != nil {
		return Definition{}, fmt.Errorf("definition file %s: %w", file, err)
	}

	normalized, err := def.normalize()
	if err != nil {
		return Definition{}, fmt.Errorf("definition %s: %w", def.Name, err)
	}
	return normalized, nil
}

func (req CreateRequest) validate() error {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}

	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name must be <= %d characters", ErrInvalidConfig, maxNameLength)
	}

	if strings.ContainsAny(name, `/\.`) {
		return fmt.Errorf("%w: name must not contain path separators or dots", ErrInvalidConfig)
	}

	return nil
}

// normalize trims names, applies the default tokenizer and checks the
// structural rules every index must satisfy.
func (def Definition) normalize() (Definition, error) {
	if len(def.Fields) == 0 {
		return Definition{}, fmt.Errorf("%w: at least one field is required", ErrInvalidConfig)
	}

	if len(def.Fields) > maxFields {
		return Definition{}, fmt.Errorf("%w: field count exceeds limit of %d", ErrInvalidConfig, maxFields)
	}

	fields := make([]string, 0, len(def.Fields))
	seen := make(map[string]struct{}, len(def.Fields))
	for _, name := range def.Fields {
		key := strings.TrimSpace(name)
		if key == "" {
			return Definition{}, fmt.Errorf("%w: field name cannot be empty", ErrInvalidConfig)
		}
		if _, dup := seen[key]; dup {
			return Definition{}, fmt.Errorf("%w: field '%s' listed twice", ErrInvalidConfig, key)
		}
		seen[key] = struct{}{}
		fields = append(fields, key)
	}

	tagField := strings.TrimSpace(def.TagField)
	if _, clash := seen[tagField]; tagField != "" && clash {
		return Definition{}, fmt.Errorf("%w: tag field '%s' is also an indexed field", ErrInvalidConfig, tagField)
	}

	strategy, err := ParseStrategy(def.Tokenizer)
	if err != nil {
		return Definition{}, err
	}

	def.Name = strings.TrimSpace(def.Name)
	def.Fields = fields
	def.TagField = tagField
	def.Tokenizer = string(strategy)
	return def, nil
}
