package index

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"testing/fstest"
)

func TestCreateAndGetDefinition(t *testing.T) {
	dir := t.TempDir()
	registry, err := NewRegistry(dir)
	if err != nil {
		t.Fatalf("failed to init registry: %v", err)
	}

	req := CreateRequest{
		Name:      "browsers",
		Fields:    []string{"engine", "title"},
		TagField:  "tag",
		Tokenizer: "forward",
	}

	def, err := registry.Create(req)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if def.Name != req.Name {
		t.Errorf("expected name %s got %s", req.Name, def.Name)
	}

	loaded, ok := registry.Get("browsers")
	if !ok {
		t.Fatalf("expected index to be retrievable")
	}
	if !reflect.DeepEqual(loaded, def) {
		t.Errorf("definition mismatch: %+v vs %+v", loaded, def)
	}

	// Verify persisted
	data, err := os.ReadFile(filepath.Join(dir, "browsers.json"))
	if err != nil {
		t.Fatalf("expected persisted definition: %v", err)
	}

	var persisted Definition
	if err := json.Unmarshal(data, &persisted); err != nil {
		t.Fatalf("unmarshal persisted: %v", err)
	}
	if persisted.Tokenizer != "forward" || persisted.TagField != "tag" {
		t.Errorf("unexpected persisted definition: %+v", persisted)
	}

	if _, err := registry.Create(req); !errors.Is(err, ErrIndexExists) {
		t.Fatalf("expected ErrIndexExists, got %v", err)
	}
}

func TestRegistryReloadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	registry, err := NewRegistryWithDefaults(dir, CreateDefaults{Tokenizer: "full"})
	if err != nil {
		t.Fatalf("init registry: %v", err)
	}
	if _, err := registry.Create(CreateRequest{Name: "titles", Fields: []string{"title"}}); err != nil {
		t.Fatalf("create: %v", err)
	}

	reopened, err := NewRegistry(dir)
	if err != nil {
		t.Fatalf("reopen registry: %v", err)
	}
	def, ok := reopened.Get("titles")
	if !ok {
		t.Fatalf("expected definition to survive reopen")
	}
	if def.Tokenizer != "full" {
		t.Fatalf("expected default tokenizer to be persisted, got %s", def.Tokenizer)
	}
}

func TestRegistryDelete(t *testing.T) {
	dir := t.TempDir()
	registry, err := NewRegistry(dir)
	if err != nil {
		t.Fatalf("init registry: %v", err)
	}
	if _, err := registry.Create(CreateRequest{Name: "tmp", Fields: []string{"title"}}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := registry.Delete("tmp"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "tmp.json")); !os.IsNotExist(err) {
		t.Fatalf("expected definition file to be removed, stat err=%v", err)
	}
	if err := registry.Delete("tmp"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name    string
		req     CreateRequest
		wantErr bool
	}{
		{"missing name", CreateRequest{}, true},
		{"path name", CreateRequest{Name: "../etc", Fields: []string{"title"}}, true},
		{"missing fields", CreateRequest{Name: "abc"}, true},
		{"too many fields", CreateRequest{Name: "abc", Fields: generateFields(maxFields + 1)}, true},
		{"tag clash", CreateRequest{Name: "abc", Fields: []string{"title", "tag"}, TagField: "tag"}, true},
		{"bad tokenizer", CreateRequest{Name: "abc", Fields: []string{"title"}, Tokenizer: "ngram"}, true},
		{"valid", CreateRequest{Name: "abc", Fields: []string{"title"}, Tokenizer: "reverse"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			registry, err := NewRegistry(t.TempDir())
			if err != nil {
				t.Fatalf("init registry: %v", err)
			}
			_, err = registry.Create(tc.req)
			if tc.wantErr && !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestListReturnsAll(t *testing.T) {
	dir := t.TempDir()
	registry, err := NewRegistry(dir)
	if err != nil {
		t.Fatalf("init registry: %v", err)
	}

	_, _ = registry.Create(CreateRequest{Name: "b", Fields: []string{"title"}}) //nolint:errcheck
	_, _ = registry.Create(CreateRequest{Name: "a", Fields: []string{"title"}}) //nolint:errcheck

	indexes := registry.List()
	if len(indexes) != 2 {
		t.Fatalf("expected 2 indexes got %d", len(indexes))
	}
	if indexes[0].Name != "a" || indexes[1].Name != "b" {
		t.Fatalf("expected definitions ordered by name, got %+v", indexes)
	}
}

func TestLoadFromFS(t *testing.T) {
	fsys := fstest.MapFS{
		"defs/browsers.json": {Data: []byte(`{"name":"browsers","fields":["engine","title"],"tagField":"tag","tokenizer":"FULL"}`)},
		"defs/readme.txt":    {Data: []byte("ignored")},
	}

	registry, err := LoadFromFS(fsys, "defs")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def, ok := registry.Get("browsers")
	if !ok {
		t.Fatalf("expected browsers definition")
	}
	if def.Tokenizer != "full" {
		t.Fatalf("expected tokenizer name to be normalized, got %q", def.Tokenizer)
	}

	bad := fstest.MapFS{"defs/bad.json": {Data: []byte(`{"name":"bad","fields":[]}`)}}
	if _, err := LoadFromFS(bad, "defs"); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected invalid definition to be rejected, got %v", err)
	}
}

func generateFields(n int) []string {
	fields := make([]string, 0, n)
	for i := 0; i < n; i++ {
		fields = append(fields, "f"+string(rune('a'+i%26))+string(rune('a'+(i/26)%26)))
	}
	return fields
}

func TestLoadRejectsUnsafeDefinitionNames(t *testing.T) {
	for _, name := range []string{"../x", "a/b", "dotted.name", " "} {
		payload, _ := json.Marshal(Definition{Name: name, Fields: []string{"title"}})
		fsys := fstest.MapFS{"defs/evil.json": {Data: payload}}
		if _, err := LoadFromFS(fsys, "defs"); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("name %q: expected ErrInvalidConfig, got %v", name, err)
		}
	}

	dir := t.TempDir()
	payload, _ := json.Marshal(Definition{Name: "../outside", Fields: []string{"title"}})
	if err := os.WriteFile(filepath.Join(dir, "evil.json"), payload, 0o644); err != nil {
		t.Fatalf("write definition: %v", err)
	}
	if _, err := NewRegistry(dir); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected registry to refuse the definition, got %v", err)
	}
}
