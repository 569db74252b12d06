package index

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// maxExactFloatID is the largest integer a float64 id can carry without loss.
const maxExactFloatID = 1 << 53

// Document is a stored record: a canonical id plus the original field values.
type Document struct {
	ID     string
	Source map[string]any
}

// NewDocument builds a document from a raw record. The record must carry an
// "id" that is a non-empty string or an integer.
func NewDocument(raw map[string]any) (Document, error) {
	idRaw, ok := raw["id"]
	if !ok {
		return Document{}, fmt.Errorf("%w: document missing id", ErrInvalidDocument)
	}

	id, err := CanonicalID(idRaw)
	if err != nil {
		return Document{}, err
	}

	return Document{ID: id, Source: cloneDocument(raw)}, nil
}

// CanonicalID converts a string or integer identifier into its string key.
// JSON numbers are accepted as json.Number or as integral floats up to 2^53;
// anything wider must arrive as json.Number to stay exact.
func CanonicalID(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return "", fmt.Errorf("%w: document id must be non-empty", ErrInvalidDocument)
		}
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint32:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float64:
		if v != math.Trunc(v) || math.Abs(v) > maxExactFloatID {
			return "", fmt.Errorf("%w: document id %v is not an exactly representable integer", ErrInvalidDocument, v)
		}
		return strconv.FormatInt(int64(v), 10), nil
	case json.Number:
		return numberID(v)
	}
	return "", fmt.Errorf("%w: document id must be a string or integer, got %T", ErrInvalidDocument, raw)
}

// numberID keeps decoded JSON integers exact, including those beyond int64.
func numberID(n json.Number) (string, error) {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	if isIntegerLiteral(string(n)) {
		return string(n), nil
	}
	f, err := n.Float64()
	if err != nil {
		return "", fmt.Errorf("%w: document id %q is not a number", ErrInvalidDocument, string(n))
	}
	return CanonicalID(f)
}

func isIntegerLiteral(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Value returns the raw value of a field.
func (d Document) Value(field string) (any, bool) {
	v, ok := d.Source[field]
	return v, ok
}

// fieldValues validates a field value against its schema type and flattens it
// into a list of strings. A missing field yields no values.
func fieldValues(doc Document, field string) ([]string, error) {
	value, ok := doc.Source[field]
	if !ok || value == nil {
		return nil, nil
	}

	switch v := value.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		values := make([]string, 0, len(v))
		for i, entry := range v {
			s, ok := entry.(string)
			if !ok {
				return nil, fmt.Errorf("%w: field %q entry %d must be a string, got %T", ErrInvalidDocument, field, i, entry)
			}
			values = append(values, s)
		}
		return values, nil
	}
	return nil, fmt.Errorf("%w: field %q must be a string or list of strings, got %T", ErrInvalidDocument, field, value)
}

func cloneDocument(doc map[string]any) map[string]any {
	clone := make(map[string]any, len(doc))
	for k, v := range doc {
		clone[k] = cloneValue(v)
	}
	return clone
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneDocument(val)
	case []any:
		list := make([]any, len(val))
		for i, item := range val {
			list[i] = cloneValue(item)
		}
		return list
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
