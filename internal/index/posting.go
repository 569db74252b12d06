package index

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// PostingStore maps tokens to the set of document keys that contain them.
// A reverse map of key -> tokens keeps removal proportional to the size of the
// removed document rather than the vocabulary.
//
// PostingStore is not safe for concurrent use; DocumentIndex serializes access.
type PostingStore struct {
	postings map[string]*roaring.Bitmap
	byDoc    map[uint32]map[string]struct{}
	total    int
}

// NewPostingStore constructs an empty store.
func NewPostingStore() *PostingStore {
	return &PostingStore{
		postings: make(map[string]*roaring.Bitmap),
		byDoc:    make(map[uint32]map[string]struct{}),
	}
}

// Add records key under every token. Adding the same (key, token) pair twice is a no-op.
func (s *PostingStore) Add(key uint32, tokens []string) {
	if len(tokens) == 0 {
		return
	}

	docTokens, ok := s.byDoc[key]
	if !ok {
		docTokens = make(map[string]struct{}, len(tokens))
		s.byDoc[key] = docTokens
	}

	for _, token := range tokens {
		if token == "" {
			continue
		}
		if _, seen := docTokens[token]; seen {
			continue
		}
		bitmap, exists := s.postings[token]
		if !exists {
			bitmap = roaring.New()
			s.postings[token] = bitmap
		}
		bitmap.Add(key)
		docTokens[token] = struct{}{}
		s.total++
	}

	if len(docTokens) == 0 {
		delete(s.byDoc, key)
	}
}

// Remove drops key from every posting list it appears in. Empty lists are discarded.
// It reports whether the key had any postings.
func (s *PostingStore) Remove(key uint32) bool {
	docTokens, ok := s.byDoc[key]
	if !ok {
		return false
	}

	for token := range docTokens {
		bitmap := s.postings[token]
		if bitmap == nil {
			continue
		}
		bitmap.Remove(key)
		s.total--
		if bitmap.IsEmpty() {
			delete(s.postings, token)
		}
	}
	delete(s.byDoc, key)
	return true
}

// Lookup returns a copy of the posting list for token, or an empty bitmap.
func (s *PostingStore) Lookup(token string) *roaring.Bitmap {
	bitmap, ok := s.postings[token]
	if !ok {
		return roaring.New()
	}
	return bitmap.Clone()
}

// Contains reports whether key is posted under token.
func (s *PostingStore) Contains(token string, key uint32) bool {
	bitmap, ok := s.postings[token]
	return ok && bitmap.Contains(key)
}

// Len returns the number of distinct tokens.
func (s *PostingStore) Len() int {
	return len(s.postings)
}

// Postings returns the total number of (token, key) pairs.
func (s *PostingStore) Postings() int {
	return s.total
}
