package index

import (
	"fmt"
	"math"
	"sync"
)

// DocumentIndex is an in-memory multi-field index. Its definition (fields, tag
// field and tokenizer) is fixed at construction.
//
// Mutations take an exclusive lock; lookups and searches share a read lock.
type DocumentIndex struct {
	def       Definition
	tokenizer *StrategyTokenizer
	fields    []*FieldIndex
	tags      *FieldIndex

	docs    map[string]uint32
	byKey   map[uint32]Document
	nextKey uint64
	// generation advances on every committed mutation.
	generation uint64

	mu sync.RWMutex
}

// IndexStats summarizes an index for diagnostics and metrics.
type IndexStats struct {
	Documents int          `json:"documents"`
	Tokenizer Strategy     `json:"tokenizer"`
	Fields    []FieldStats `json:"fields"`
}

// New validates def and constructs an empty index.
func New(def Definition) (*DocumentIndex, error) {
	def, err := def.normalize()
	if err != nil {
		return nil, err
	}

	tokenizer, err := TokenizerFor(def.Tokenizer)
	if err != nil {
		return nil, err
	}

	idx := &DocumentIndex{
		def:       def,
		tokenizer: tokenizer,
		fields:    make([]*FieldIndex, 0, len(def.Fields)),
		docs:      make(map[string]uint32),
		byKey:     make(map[uint32]Document),
	}
	for _, name := range def.Fields {
		idx.fields = append(idx.fields, newFieldIndex(name, FieldTypeText, tokenizer))
	}
	if def.TagField != "" {
		idx.tags = newFieldIndex(def.TagField, FieldTypeKeyword, nil)
	}
	return idx, nil
}

// Definition returns the normalized definition the index was built with.
func (idx *DocumentIndex) Definition() Definition {
	def := idx.def
	def.Fields = append([]string(nil), idx.def.Fields...)
	return def
}

// Add indexes a raw record. See NewDocument for the id rules.
func (idx *DocumentIndex) Add(raw map[string]any) error {
	doc, err := NewDocument(raw)
	if err != nil {
		return err
	}
	return idx.add(doc)
}

// AddDocument indexes doc. It fails with ErrDuplicateID if the id is present
// and with ErrInvalidDocument if a configured field has an unsupported value;
// the index is left unchanged on failure. doc.Source is copied.
func (idx *DocumentIndex) AddDocument(doc Document) error {
	doc.Source = cloneDocument(doc.Source)
	return idx.add(doc)
}

func (idx *DocumentIndex) add(doc Document) error {
	values, err := idx.extract(doc)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.docs[doc.ID]; exists {
		return fmt.Errorf("%w: id %q", ErrDuplicateID, doc.ID)
	}
	return idx.insertLocked(doc, values)
}

// Replace swaps the stored document with the same id for doc, adding it if absent.
func (idx *DocumentIndex) Replace(raw map[string]any) error {
	doc, err := NewDocument(raw)
	if err != nil {
		return err
	}
	values, err := idx.extract(doc)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.checkCapacityLocked(); err != nil {
		return err
	}
	if key, exists := idx.docs[doc.ID]; exists {
		idx.removeLocked(doc.ID, key)
	}
	return idx.insertLocked(doc, values)
}

// Remove deletes the document with id from every field index and the registry.
func (idx *DocumentIndex) Remove(id any) error {
	docID, err := CanonicalID(id)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	key, ok := idx.docs[docID]
	if !ok {
		return fmt.Errorf("%w: document %q", ErrNotFound, docID)
	}
	idx.removeLocked(docID, key)
	return nil
}

// Get returns the stored document for id.
func (idx *DocumentIndex) Get(id any) (Document, error) {
	docID, err := CanonicalID(id)
	if err != nil {
		return Document{}, err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	key, ok := idx.docs[docID]
	if !ok {
		return Document{}, fmt.Errorf("%w: document %q", ErrNotFound, docID)
	}
	doc := idx.byKey[key]
	doc.Source = cloneDocument(doc.Source)
	return doc, nil
}

// Generation returns a counter that changes whenever a mutation commits.
func (idx *DocumentIndex) Generation() uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.generation
}

// Len returns the number of stored documents.
func (idx *DocumentIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// Stats reports document and per-field posting counts.
func (idx *DocumentIndex) Stats() IndexStats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	stats := IndexStats{
		Documents: len(idx.docs),
		Tokenizer: idx.tokenizer.Strategy(),
		Fields:    make([]FieldStats, 0, len(idx.fields)+1),
	}
	for _, field := range idx.fields {
		stats.Fields = append(stats.Fields, field.Stats())
	}
	if idx.tags != nil {
		stats.Fields = append(stats.Fields, idx.tags.Stats())
	}
	return stats
}

// extract validates every configured field of doc before any state is touched.
func (idx *DocumentIndex) extract(doc Document) (map[string][]string, error) {
	values := make(map[string][]string, len(idx.fields)+1)
	for _, field := range idx.fields {
		v, err := fieldValues(doc, field.Name())
		if err != nil {
			return nil, err
		}
		values[field.Name()] = v
	}
	if idx.tags != nil {
		v, err := fieldValues(doc, idx.tags.Name())
		if err != nil {
			return nil, err
		}
		values[idx.tags.Name()] = v
	}
	return values, nil
}

// checkCapacityLocked fails once every uint32 key has been handed out; keys
// are never reused.
func (idx *DocumentIndex) checkCapacityLocked() error {
	if idx.nextKey > math.MaxUint32 {
		return fmt.Errorf("%w: document keys exhausted", ErrIndexFull)
	}
	return nil
}

func (idx *DocumentIndex) insertLocked(doc Document, values map[string][]string) error {
	if err := idx.checkCapacityLocked(); err != nil {
		return err
	}
	key := uint32(idx.nextKey)
	idx.nextKey++
	idx.generation++

	idx.docs[doc.ID] = key
	idx.byKey[key] = doc

	for _, field := range idx.fields {
		field.Add(key, values[field.Name()])
	}
	if idx.tags != nil {
		idx.tags.Add(key, values[idx.tags.Name()])
	}
	return nil
}

func (idx *DocumentIndex) removeLocked(docID string, key uint32) {
	for _, field := range idx.fields {
		field.Remove(key)
	}
	if idx.tags != nil {
		idx.tags.Remove(key)
	}
	delete(idx.docs, docID)
	delete(idx.byKey, key)
	idx.generation++
}
