package preprocess

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"matchd/internal/artifact"
	"matchd/pkg/types"
)

func writeBundle(t *testing.T, content string) artifact.Handle {
	t.Helper()
	p := filepath.Join(t.TempDir(), "preprocessing.json")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return artifact.Handle{
		Resource: types.Resource{ID: "performance_dense_preprocessing"},
		Location: artifact.Local(p),
	}
}

func TestLoadAndCache(t *testing.T) {
	h := writeBundle(t, `{"feature_cols": ["a", "b", "c"]}`)
	s := NewStore()
	b1, err := s.Load(h)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(b1.FeatureNames) != 3 || b1.FeatureNames[0] != "a" {
		t.Fatalf("bundle=%+v", b1)
	}
	// Remove the file; the cached bundle must still be served.
	if err := os.Remove(h.Location.Value); err != nil {
		t.Fatal(err)
	}
	b2, err := s.Load(h)
	if err != nil {
		t.Fatalf("cached load: %v", err)
	}
	if b1 != b2 {
		t.Fatal("expected cached bundle pointer")
	}
}

func TestLoadFeatureNameAliases(t *testing.T) {
	for _, content := range []string{
		`{"feature_names": ["x"]}`,
		`{"columns": ["x"]}`,
	} {
		b, err := NewStore().Load(writeBundle(t, content))
		if err != nil {
			t.Fatalf("load %s: %v", content, err)
		}
		if len(b.FeatureNames) != 1 || b.FeatureNames[0] != "x" {
			t.Fatalf("bundle=%+v for %s", b, content)
		}
	}
}

func TestLoadRejectsBundleWithoutFeatures(t *testing.T) {
	if _, err := NewStore().Load(writeBundle(t, `{"scaler": {"mean": [0], "std": [1]}}`)); err == nil {
		t.Fatal("expected error for missing feature list")
	}
}

func TestLoadRejectsRemoteHandle(t *testing.T) {
	h := artifact.Handle{
		Resource: types.Resource{ID: "p"},
		Location: artifact.Remote("https://cdn.example.com/p.json"),
	}
	if _, err := NewStore().Load(h); err == nil {
		t.Fatal("expected error for remote handle")
	}
}

func TestVectorOrderingAndScaling(t *testing.T) {
	b := &Bundle{
		FeatureNames: []string{"a", "b", "c"},
		Scaler:       &Scaler{Mean: []float64{1, 0, 0}, Std: []float64{2, 1, 0}},
	}
	var missing []string
	vec := b.Vector(map[string]float64{"a": 3, "c": 5}, func(name string) { missing = append(missing, name) })
	if len(vec) != 3 {
		t.Fatalf("len=%d", len(vec))
	}
	// a: (3-1)/2 = 1; b missing -> 0; c: std=0 -> unscaled 5.
	if math.Abs(float64(vec[0])-1) > 1e-9 || vec[1] != 0 || vec[2] != 5 {
		t.Fatalf("vec=%v", vec)
	}
	if len(missing) != 1 || missing[0] != "b" {
		t.Fatalf("missing=%v", missing)
	}
}

func TestMatchExactThenPrefix(t *testing.T) {
	model := artifact.Handle{Resource: types.Resource{ID: "performance_dense"}}
	exact := artifact.Handle{Resource: types.Resource{ID: "performance_dense"}}
	prefixed := artifact.Handle{Resource: types.Resource{ID: "performance_dense_preprocessing"}}
	other := artifact.Handle{Resource: types.Resource{ID: "market_odds_preprocessing"}}

	if got, ok := Match(model, []artifact.Handle{other, prefixed, exact}); !ok || got.Resource.ID != "performance_dense" {
		t.Fatalf("exact match wanted, got %+v ok=%v", got.Resource.ID, ok)
	}
	if got, ok := Match(model, []artifact.Handle{other, prefixed}); !ok || got.Resource.ID != "performance_dense_preprocessing" {
		t.Fatalf("prefix match wanted, got %+v ok=%v", got.Resource.ID, ok)
	}
	if _, ok := Match(model, []artifact.Handle{other}); ok {
		t.Fatal("expected no match")
	}
	// "performance" must not prefix-match "performance_dense_preprocessing"
	// for a different model id boundary.
	short := artifact.Handle{Resource: types.Resource{ID: "performance_dense2"}}
	if _, ok := Match(short, []artifact.Handle{prefixed}); ok {
		t.Fatal("prefix match must respect the underscore boundary")
	}
}
