package session

import (
	"sync"
	"sync/atomic"
	"testing"
)

type fakeRuntime struct {
	closed atomic.Bool
}

func (f *fakeRuntime) Run(input []float32) ([]float32, error) { return []float32{1, 1, 1}, nil }
func (f *fakeRuntime) Close() error                           { f.closed.Store(true); return nil }

func TestGetOrCreateReusesRuntime(t *testing.T) {
	var opens atomic.Int32
	c := NewCache(func(path string) (Runtime, error) {
		opens.Add(1)
		return &fakeRuntime{}, nil
	})
	a, err := c.GetOrCreate("models/m.onnx")
	if err != nil {
		t.Fatal(err)
	}
	// Same file through a different spelling of the path.
	b, err := c.GetOrCreate("./models/../models/m.onnx")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatal("expected the same cached runtime")
	}
	if opens.Load() != 1 {
		t.Fatalf("opens=%d want 1", opens.Load())
	}
	if c.Len() != 1 {
		t.Fatalf("len=%d want 1", c.Len())
	}
}

func TestConcurrentMissesFirstWriterWins(t *testing.T) {
	var opens atomic.Int32
	c := NewCache(func(path string) (Runtime, error) {
		opens.Add(1)
		return &fakeRuntime{}, nil
	})
	const n = 16
	results := make([]Runtime, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rt, err := c.GetOrCreate("m.onnx")
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = rt
		}(i)
	}
	wg.Wait()
	for i := 1; i < n; i++ {
		if results[i] != results[0] {
			t.Fatal("callers observed different runtimes for one key")
		}
	}
	if c.Len() != 1 {
		t.Fatalf("len=%d want 1", c.Len())
	}
	// Redundant constructions are allowed, corruption is not.
	if opens.Load() < 1 || opens.Load() > n {
		t.Fatalf("opens=%d out of range", opens.Load())
	}
}

func TestCloseReleasesRuntimes(t *testing.T) {
	rt := &fakeRuntime{}
	c := NewCache(func(path string) (Runtime, error) { return rt, nil })
	if _, err := c.GetOrCreate("m.onnx"); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if !rt.closed.Load() {
		t.Fatal("runtime not closed")
	}
	if c.Len() != 0 {
		t.Fatal("cache not emptied")
	}
}
