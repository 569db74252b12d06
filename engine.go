package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fieldsearch/internal/index"
	"golang.org/x/sync/singleflight"
)

// indexEngine wraps one document index with telemetry, logging and
// collapsing of identical concurrent searches.
type indexEngine struct {
	def       index.Definition
	idx       *index.DocumentIndex
	telemetry *telemetry
	logger    *slog.Logger
	searches  singleflight.Group
}

type searchResult struct {
	Response index.SearchResponse
	Fields   []index.FieldResult
}

func newIndexEngine(def index.Definition, tel *telemetry, logger *slog.Logger) (*indexEngine, error) {
	idx, err := index.New(def)
	if err != nil {
		return nil, err
	}
	if tel == nil {
		tel = &telemetry{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	eng := &indexEngine{
		def:       idx.Definition(),
		idx:       idx,
		telemetry: tel,
		logger:    logger.With("index", def.Name),
	}
	tel.observeIndex(def.Name, idx.Stats())
	return eng, nil
}

// indexDocuments adds every record it can and reports per-record failures.
func (e *indexEngine) indexDocuments(ctx context.Context, docs []map[string]any) (int, []error) {
	start := time.Now()

	var errs []error
	indexed := 0
	for i, doc := range docs {
		if err := e.idx.Add(doc); err != nil {
			errs = append(errs, fmt.Errorf("doc %d: %w", i, err))
			continue
		}
		indexed++
	}

	e.telemetry.recordIndexing(ctx, e.def.Name, indexed, 0, len(errs), time.Since(start))
	e.telemetry.observeIndex(e.def.Name, e.idx.Stats())
	e.logger.Info("indexed documents", "documents", len(docs), "indexed", indexed, "errors", len(errs), "duration_ms", time.Since(start).Milliseconds())

	return indexed, errs
}

func (e *indexEngine) replaceDocument(ctx context.Context, doc map[string]any) error {
	start := time.Now()
	if err := e.idx.Replace(doc); err != nil {
		e.telemetry.recordIndexing(ctx, e.def.Name, 0, 0, 1, time.Since(start))
		return err
	}
	e.telemetry.recordIndexing(ctx, e.def.Name, 1, 0, 0, time.Since(start))
	e.telemetry.observeIndex(e.def.Name, e.idx.Stats())
	return nil
}

func (e *indexEngine) removeDocument(ctx context.Context, id string) error {
	start := time.Now()
	if err := e.idx.Remove(id); err != nil {
		return err
	}
	e.telemetry.recordIndexing(ctx, e.def.Name, 0, 1, 0, time.Since(start))
	e.telemetry.observeIndex(e.def.Name, e.idx.Stats())
	e.logger.Debug("document removed", "id", id)
	return nil
}

func (e *indexEngine) getDocument(id string) (index.Document, error) {
	return e.idx.Get(id)
}

// search runs query once per distinct in-flight request; concurrent callers
// with the same arguments and index generation share the result, so a search
// issued after a committed mutation never joins one that started before it.
func (e *indexEngine) search(ctx context.Context, query string, opts index.SearchOptions, withFields bool) searchResult {
	start := time.Now()
	key := searchKey(e.idx.Generation(), query, opts, withFields)

	v, _, shared := e.searches.Do(key, func() (any, error) {
		result := searchResult{Response: e.idx.Search(query, opts)}
		if withFields {
			result.Fields = e.idx.SearchFields(query, opts)
		}
		return result, nil
	})
	result := v.(searchResult)

	e.telemetry.recordSearch(ctx, e.def.Name, result.Response.TotalHits, time.Since(start))
	e.logger.Debug("search executed", "query", query, "tag", opts.Tag, "hits", result.Response.TotalHits, "shared", shared, "duration_ms", time.Since(start).Milliseconds())
	return result
}

func searchKey(generation uint64, query string, opts index.SearchOptions, withFields bool) string {
	return fmt.Sprintf("%d|%q|%q|%t|%d|%d|%t", generation, query, opts.Tag, opts.MatchAll, opts.Offset, opts.Limit, withFields)
}

func (e *indexEngine) stats() index.IndexStats {
	return e.idx.Stats()
}
