package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped)
// and the use-case layer translates them into domain errors:
//   - ErrNotFound: no record with the requested key
//   - ErrConflict: a uniqueness constraint rejected the write
//   - ErrUnavailable: the backing store could not be reached
//
// Input validation failures use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
