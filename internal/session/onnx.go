//go:build onnx

package session

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// The ONNX Runtime environment is process-wide and initialized once, on the
// first session open.
var (
	ortOnce    sync.Once
	ortInitErr error
)

// DefaultOpen opens an ONNX session for the model at path. Exported models
// use a single "input" tensor and a single "output" tensor of raw scores.
func DefaultOpen(path string) (Runtime, error) {
	ortOnce.Do(func() {
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, ErrRuntimeUnavailable(fmt.Sprintf("onnxruntime init: %v", ortInitErr))
	}
	sess, err := ort.NewDynamicAdvancedSession(path, []string{"input"}, []string{"output"}, nil)
	if err != nil {
		return nil, fmt.Errorf("open onnx session %s: %w", path, err)
	}
	return &onnxRuntime{sess: sess}, nil
}

type onnxRuntime struct {
	// ORT sessions are not documented as safe for concurrent Run calls;
	// serialize per session.
	mu   sync.Mutex
	sess *ort.DynamicAdvancedSession
}

func (r *onnxRuntime) Run(input []float32) ([]float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, err := ort.NewTensor(ort.NewShape(1, int64(len(input))), input)
	if err != nil {
		return nil, fmt.Errorf("input tensor: %w", err)
	}
	defer in.Destroy()
	outputs := []ort.Value{nil}
	if err := r.sess.Run([]ort.Value{in}, outputs); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}
	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok || out == nil {
		return nil, fmt.Errorf("onnx run: unexpected output value %T", outputs[0])
	}
	defer out.Destroy()
	scores := append([]float32(nil), out.GetData()...)
	return scores, nil
}

func (r *onnxRuntime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sess != nil {
		r.sess.Destroy()
		r.sess = nil
	}
	return nil
}
