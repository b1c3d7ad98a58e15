package knowledge

import "errors"

var (
	// ErrNoKnowledge is returned when an update finds no stored knowledge.
	ErrNoKnowledge = errors.New("no stored knowledge found: run explore first to create it")

	// ErrMalformedKnowledge is returned when stored knowledge cannot be read
	// or decoded.
	ErrMalformedKnowledge = errors.New("stored knowledge is malformed")

	// ErrInvalidVersion is returned for a version string outside the
	// MAJOR.MINOR.PATCH grammar.
	ErrInvalidVersion = errors.New("invalid knowledge version")

	// ErrUnsupportedSchema is returned for documents written by a newer
	// release.
	ErrUnsupportedSchema = errors.New("unsupported knowledge schema version")
)
