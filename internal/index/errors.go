package index

import "errors"

var (
	// ErrDuplicateID is returned when a document id is already present in the index.
	ErrDuplicateID = errors.New("document already exists")
	// ErrNotFound is returned when a document (or index) id is unknown.
	ErrNotFound = errors.New("not found")
	// ErrInvalidConfig is returned when an index definition cannot be used.
	ErrInvalidConfig = errors.New("invalid index configuration")
	// ErrInvalidDocument is returned when a document does not satisfy the index schema.
	ErrInvalidDocument = errors.New("invalid document")
	// ErrIndexExists is returned by the registry when a definition name is taken.
	ErrIndexExists = errors.New("index already exists")
	// ErrIndexFull is returned when an index has assigned every document key.
	ErrIndexFull = errors.New("index full")
)
