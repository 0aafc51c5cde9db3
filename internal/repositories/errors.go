package repositories

import "errors"

// Sentinel errors returned by every repository in this package.
// Handlers map them onto the HTTP error taxonomy.
var (
	// ErrNotFound means no row matched the lookup or referenced target.
	ErrNotFound = errors.New("no matching record")
	// ErrConflict means the write collided with a uniqueness constraint.
	ErrConflict = errors.New("duplicate record")
)
