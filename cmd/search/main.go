// Command search loads a dataset into an in-memory index and queries it.
//
// With a query argument it prints one JSON report and exits; without one it
// reads queries from stdin until "quit".
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"fieldsearch/internal/dataset"
	"fieldsearch/internal/index"
	"fieldsearch/internal/logging"
)

type report struct {
	Query     string              `json:"query"`
	Tag       string              `json:"tag,omitempty"`
	Fields    []index.FieldResult `json:"fields"`
	TotalHits int                 `json:"totalHits"`
	Documents []map[string]any    `json:"documents"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("search", flag.ContinueOnError)
	flags.SetOutput(stderr)
	dataPath := flags.String("data", "", "Path to a JSON, YAML or TOML dataset")
	fields := flags.String("fields", "title", "Comma separated list of fields to index")
	tagField := flags.String("tag-field", "", "Field holding document tags")
	tag := flags.String("tag", "", "Only return documents carrying this tag")
	tokenizer := flags.String("tokenizer", "strict", "Tokenizer: strict, forward, reverse or full")
	matchAll := flags.Bool("all", false, "Require every query word to match within a field")
	limit := flags.Int("limit", 0, "Maximum number of documents to print (0 for all)")
	logLevel := flags.String("log-level", "warn", "Log level for diagnostics on stderr")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	logger := logging.WithComponent(logging.New(stderr, *logLevel, "text"), "search")

	if *dataPath == "" {
		fmt.Fprintln(stderr, "-data is required")
		return 2
	}

	docs, err := dataset.Load(*dataPath)
	if err != nil {
		logger.Error("failed to load dataset", "error", err)
		return 1
	}

	idx, err := index.New(index.Definition{
		Name:      "cli",
		Fields:    splitFields(*fields),
		TagField:  *tagField,
		Tokenizer: *tokenizer,
	})
	if err != nil {
		logger.Error("invalid index settings", "error", err)
		return 1
	}

	for i, doc := range docs {
		if err := idx.Add(doc); err != nil {
			logger.Warn("skipping record", "position", i, "error", err)
		}
	}
	logger.Info("index ready", "documents", idx.Len(), "tokenizer", idx.Definition().Tokenizer)

	opts := index.SearchOptions{Tag: *tag, MatchAll: *matchAll, Limit: *limit}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")

	if query := strings.Join(flags.Args(), " "); query != "" {
		if err := enc.Encode(buildReport(idx, query, opts)); err != nil {
			logger.Error("failed to write report", "error", err)
			return 1
		}
		return 0
	}

	scanner := bufio.NewScanner(stdin)
	for {
		fmt.Fprint(stdout, "> ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if query == "quit" || query == "exit" {
			break
		}
		if err := enc.Encode(buildReport(idx, query, opts)); err != nil {
			logger.Error("failed to write report", "error", err)
			return 1
		}
	}
	return 0
}

func buildReport(idx *index.DocumentIndex, query string, opts index.SearchOptions) report {
	res := idx.Search(query, opts)
	docs := make([]map[string]any, 0, len(res.Hits))
	for _, hit := range res.Hits {
		docs = append(docs, hit.Source)
	}
	return report{
		Query:     query,
		Tag:       opts.Tag,
		Fields:    idx.SearchFields(query, opts),
		TotalHits: res.TotalHits,
		Documents: docs,
	}
}

func splitFields(raw string) []string {
	var fields []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			fields = append(fields, part)
		}
	}
	return fields
}
