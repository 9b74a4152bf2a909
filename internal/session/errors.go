package session

// runtimeUnavailableError signals that no inference backend is compiled in
// or the backend failed to initialize, so the HTTP layer can answer 503
// instead of 500.
type runtimeUnavailableError struct{ msg string }

func (e runtimeUnavailableError) Error() string { return e.msg }

// ErrRuntimeUnavailable constructs a runtimeUnavailableError.
func ErrRuntimeUnavailable(msg string) error { return runtimeUnavailableError{msg: msg} }

// IsRuntimeUnavailable reports whether err indicates a missing or failed
// inference backend.
func IsRuntimeUnavailable(err error) bool {
	_, ok := err.(runtimeUnavailableError)
	return ok
}
