package repository

import "errors"

// ErrNotFound marks lookups that matched no document. Callers that need the
// distinction (the ingestion self-heal branch, stop-flight normalization)
// test with errors.Is.
var ErrNotFound = errors.New("not found")

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
