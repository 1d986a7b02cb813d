// Package fetch provides tile.Fetcher implementations: a REST client driven
// by a URL template and an adapter over local tile readers.
package fetch

import (
	"errors"
	"fmt"
)

// ErrNotFound reports that the source has no tile at the requested index.
var ErrNotFound = errors.New("libmap: tile not found")

// StatusError is returned for non-2xx responses other than "not found".
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("libmap: unexpected status %q from %s", e.Status, e.URL)
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
