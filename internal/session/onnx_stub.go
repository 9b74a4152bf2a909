//go:build !onnx

package session

// DefaultOpen without the 'onnx' build tag refuses to open sessions. Build
// with -tags=onnx (and the onnxruntime shared library installed) to serve
// real inference; the API surface otherwise still works for status and
// reload operations.
func DefaultOpen(path string) (Runtime, error) {
	return nil, ErrRuntimeUnavailable("inference runtime not compiled in; rebuild with -tags=onnx")
}
