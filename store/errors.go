package store

// errorType is a simple sentinel error: comparable, wrappable with
// fmt.Errorf's %w, and resolvable with errors.Is.
type errorType string

func (e errorType) Error() string { return string(e) }

const (
	// ErrInvalidRange is returned when a range operation supplies neither
	// end nor length, or the range is otherwise malformed.
	ErrInvalidRange = errorType("store: invalid range")
	// ErrNotFound is returned when the object does not exist in the backend.
	ErrNotFound = errorType("store: object not found")
	// ErrInvalidWhence is returned by readers on an unrecognized seek whence.
	ErrInvalidWhence = errorType("store: invalid seek whence")
	// ErrConditionalFailed is returned when an if-match/if-none-match
	// precondition is not satisfied (HTTP 412/304).
	ErrConditionalFailed = errorType("store: conditional precondition failed")
	// ErrInvalidURL is returned when a registry registration carries no
	// scheme, or the URL cannot be parsed.
	ErrInvalidURL = errorType("store: invalid URL")
	// ErrNoMatch is returned by the registry when no registered store
	// covers a resolved URL.
	ErrNoMatch = errorType("store: no matching store for URL")
)
