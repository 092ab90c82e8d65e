package models

import "github.com/pkg/errors"

// Failure classes shared by the geometry packages. Callers classify with
// errors.Is; wrapped messages carry the details.
var (
	// ErrConfiguration marks malformed shapes, non-centerable geometry,
	// unsatisfiable sampling bounds and singular transforms. Never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrOutOfBounds marks a transform whose source region leaves the
	// available volume. Random samplers retry with a fresh transform.
	ErrOutOfBounds = errors.New("out of bounds")
)
