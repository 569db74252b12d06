package index

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// FieldType represents the supported indexable field types.
type FieldType string

const (
	// FieldTypeText values are split into words and fragmented by the index tokenizer.
	FieldTypeText FieldType = "text"
	// FieldTypeKeyword values are normalized and indexed whole, one token per value.
	FieldTypeKeyword FieldType = "keyword"
)

// FieldIndex owns the postings of a single named field.
type FieldIndex struct {
	name      string
	kind      FieldType
	tokenizer Tokenizer
	store     *PostingStore
}

func newFieldIndex(name string, kind FieldType, tokenizer Tokenizer) *FieldIndex {
	return &FieldIndex{
		name:      name,
		kind:      kind,
		tokenizer: tokenizer,
		store:     NewPostingStore(),
	}
}

// Name returns the field name.
func (f *FieldIndex) Name() string {
	return f.name
}

// Type returns the field type.
func (f *FieldIndex) Type() FieldType {
	return f.kind
}

// Tokens derives the tokens a set of field values contributes.
func (f *FieldIndex) Tokens(values []string) []string {
	if f.kind == FieldTypeKeyword {
		tokens := make([]string, 0, len(values))
		for _, value := range values {
			if tag := normalizeTag(value); tag != "" {
				tokens = append(tokens, tag)
			}
		}
		return tokens
	}

	var tokens []string
	for _, value := range values {
		tokens = append(tokens, f.tokenizer.Tokenize(value)...)
	}
	return tokens
}

// Add indexes values for the document key.
func (f *FieldIndex) Add(key uint32, values []string) {
	f.store.Add(key, f.Tokens(values))
}

// Remove tears down the contribution of the document key.
func (f *FieldIndex) Remove(key uint32) {
	f.store.Remove(key)
}

// Lookup returns the keys posted under token (exact match).
func (f *FieldIndex) Lookup(token string) *roaring.Bitmap {
	return f.store.Lookup(token)
}

// Stats reports the size of the field's postings.
func (f *FieldIndex) Stats() FieldStats {
	return FieldStats{
		Field:    f.name,
		Type:     f.kind,
		Tokens:   f.store.Len(),
		Postings: f.store.Postings(),
	}
}

// FieldStats describes the postings held by one field index.
type FieldStats struct {
	Field    string    `json:"field"`
	Type     FieldType `json:"type"`
	Tokens   int       `json:"tokens"`
	Postings int       `json:"postings"`
}

func normalizeTag(value string) string {
	return Normalize(collapseSpace(value))
}
