package loader

import "fmt"

// unreachableSourceError marks a manifest source that could not be read at
// all. It fails the reload attempt but never evicts a published snapshot.
type unreachableSourceError struct {
	source string
	err    error
}

func (e unreachableSourceError) Error() string {
	return fmt.Sprintf("manifest unreachable: %s: %v", e.source, e.err)
}

func (e unreachableSourceError) Unwrap() error { return e.err }

func errUnreachable(source string, err error) error {
	return unreachableSourceError{source: source, err: err}
}

// IsUnreachableSource reports whether err means the manifest source itself
// could not be read.
func IsUnreachableSource(err error) bool {
	_, ok := err.(unreachableSourceError)
	return ok
}
