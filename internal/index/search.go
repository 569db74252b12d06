package index

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// SearchOptions tune how a query is resolved.
type SearchOptions struct {
	// Tag restricts matches to documents carrying this exact tag. It requires
	// the index to have a tag field; otherwise nothing matches.
	Tag string
	// MatchAll requires every query word to hit within the same field instead
	// of any of them.
	MatchAll bool
	// Offset skips that many hits of the deduplicated result list.
	Offset int
	// Limit caps the number of returned hits; zero or negative returns all.
	Limit int
}

// SearchResponse contains the matched documents plus the total before paging.
type SearchResponse struct {
	TotalHits int         `json:"totalHits"`
	Hits      []SearchHit `json:"hits"`
}

// SearchHit represents a single matched document and the fields it matched in.
type SearchHit struct {
	ID     string         `json:"id"`
	Fields []string       `json:"fields"`
	Source map[string]any `json:"source"`
}

// FieldResult lists the ids matched within one field, in insertion order.
type FieldResult struct {
	Field  string   `json:"field"`
	Result []string `json:"result"`
}

type fieldMatch struct {
	field string
	keys  *roaring.Bitmap
}

// Search resolves query against every configured field. A document matches if
// any field matches (fields are OR-ed); each document is returned once, in
// field order and then insertion order. Queries without words match nothing.
func (idx *DocumentIndex) Search(query string, opts SearchOptions) SearchResponse {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	matches := idx.matchFieldsLocked(query, opts)

	hits := []SearchHit{}
	position := make(map[uint32]int)
	for _, match := range matches {
		it := match.keys.Iterator()
		for it.HasNext() {
			key := it.Next()
			if i, seen := position[key]; seen {
				hits[i].Fields = append(hits[i].Fields, match.field)
				continue
			}
			doc := idx.byKey[key]
			position[key] = len(hits)
			hits = append(hits, SearchHit{ID: doc.ID, Fields: []string{match.field}, Source: doc.Source})
		}
	}

	page := paginate(hits, opts.Offset, opts.Limit)
	for i := range page {
		page[i].Source = cloneDocument(page[i].Source)
	}
	return SearchResponse{TotalHits: len(hits), Hits: page}
}

// SearchFields returns the per-field matches for query before they are merged.
// Fields without matches are omitted.
func (idx *DocumentIndex) SearchFields(query string, opts SearchOptions) []FieldResult {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	matches := idx.matchFieldsLocked(query, opts)
	results := make([]FieldResult, 0, len(matches))
	for _, match := range matches {
		ids := make([]string, 0, match.keys.GetCardinality())
		it := match.keys.Iterator()
		for it.HasNext() {
			ids = append(ids, idx.byKey[it.Next()].ID)
		}
		results = append(results, FieldResult{Field: match.field, Result: ids})
	}
	return results
}

// matchFieldsLocked looks every query word up as a single token. Words are
// never fragmented: substring coverage comes from how documents were indexed.
func (idx *DocumentIndex) matchFieldsLocked(query string, opts SearchOptions) []fieldMatch {
	terms := uniqueStrings(Terms(query))
	if len(terms) == 0 {
		return nil
	}

	var tagged *roaring.Bitmap
	if tag := normalizeTag(opts.Tag); tag != "" {
		if idx.tags == nil {
			return nil
		}
		tagged = idx.tags.Lookup(tag)
		if tagged.IsEmpty() {
			return nil
		}
	}

	matches := make([]fieldMatch, 0, len(idx.fields))
	for _, field := range idx.fields {
		keys := field.Lookup(terms[0])
		for _, term := range terms[1:] {
			if opts.MatchAll {
				if keys.IsEmpty() {
					break
				}
				keys.And(field.Lookup(term))
				continue
			}
			keys.Or(field.Lookup(term))
		}
		if tagged != nil {
			keys.And(tagged)
		}
		if keys.IsEmpty() {
			continue
		}
		matches = append(matches, fieldMatch{field: field.Name(), keys: keys})
	}
	return matches
}

func paginate(hits []SearchHit, offset, limit int) []SearchHit {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(hits) {
		return []SearchHit{}
	}
	hits = hits[offset:]
	if limit > 0 && limit < len(hits) {
		hits = hits[:limit]
	}
	return hits
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
