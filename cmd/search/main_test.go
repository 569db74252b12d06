package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const browsersJSON = `[
  {"id": 1, "title": "Mozilla Firefox", "engine": "Gecko", "tag": ["servo", "rust", "spider monkey"]},
  {"id": 2, "title": "Google Chrome", "engine": "Chromium", "tag": ["blink", "v8"]},
  {"id": 3, "title": "Microsoft Edge", "engine": "Chromium", "tag": ["blink", "chakra"]},
  {"id": 4, "title": "Apple Safari", "engine": "Webkit", "tag": ["JavaScriptCore", "SquirrelFish", "nitro"]}
]`

func writeDataset(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "browsers.json")
	if err := os.WriteFile(path, []byte(browsersJSON), 0o644); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	return path
}

func TestRunSingleQuery(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-data", writeDataset(t), "-fields", "engine,title", "-tag-field", "tag", "-tokenizer", "reverse", "-tag", "blink", "ium"}, strings.NewReader(""), &stdout, &stderr)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr.String())
	}

	var got report
	if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("decode report: %v\n%s", err, stdout.String())
	}
	if got.Query != "ium" || got.TotalHits != 2 || len(got.Documents) != 2 {
		t.Fatalf("unexpected report %+v", got)
	}
	if len(got.Fields) != 1 || got.Fields[0].Field != "engine" {
		t.Fatalf("expected only engine field to match, got %+v", got.Fields)
	}
}

func TestRunInteractive(t *testing.T) {
	var stdout, stderr bytes.Buffer
	stdin := strings.NewReader("gecko\n\nsafari\nquit\nchrome\n")
	code := run([]string{"-data", writeDataset(t), "-fields", "engine,title"}, stdin, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr.String())
	}

	out := stdout.String()
	if strings.Count(out, `"query"`) != 2 {
		t.Fatalf("expected two reports before quit, got:\n%s", out)
	}
	if strings.Contains(out, `"query": "chrome"`) {
		t.Fatalf("queries after quit must be ignored:\n%s", out)
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(nil, strings.NewReader(""), &stdout, &stderr); code != 2 {
		t.Fatalf("expected usage exit code without -data, got %d", code)
	}
	if code := run([]string{"-data", writeDataset(t), "-tokenizer", "ngram", "x"}, strings.NewReader(""), &stdout, &stderr); code != 1 {
		t.Fatalf("expected failure for unknown tokenizer, got %d", code)
	}
}
