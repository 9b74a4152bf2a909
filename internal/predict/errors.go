package predict

// noUsableModelError means every declared model was skipped: unresolved,
// missing its preprocessing bundle, or failing at inference time. The HTTP
// layer answers 503 so callers retry after the next successful reload.
type noUsableModelError struct{ msg string }

func (e noUsableModelError) Error() string { return e.msg }

// ErrNoUsableModel constructs a noUsableModelError.
func ErrNoUsableModel(msg string) error { return noUsableModelError{msg: msg} }

// IsNoUsableModel reports whether err indicates that no model produced a
// prediction.
func IsNoUsableModel(err error) bool {
	_, ok := err.(noUsableModelError)
	return ok
}
