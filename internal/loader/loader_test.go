package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"matchd/internal/manifest"
)

func writeManifest(t *testing.T, dir string, doc map[string]any) string {
	t.Helper()
	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(dir, "manifest.json")
	if err := os.WriteFile(p, b, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func resource(id, path string) map[string]any {
	return map[string]any{"id": id, "path": path, "sha256": "abc", "size_bytes": 1}
}

func baseDoc(models ...map[string]any) map[string]any {
	return map[string]any{
		"run_id":          "run-1",
		"dataset_version": "7",
		"trained_at":      "2024-05-20T12:00:00Z",
		"models":          models,
		"preprocessing":   []map[string]any{},
		"attribution":     []map[string]any{},
	}
}

func writeArtifact(t *testing.T, dir, rel string) {
	t.Helper()
	p := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte("bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestEnsureLoadedPartialResolution(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "good/model.onnx")
	path := writeManifest(t, dir, baseDoc(
		resource("good", "good/model.onnx"),
		resource("broken", "missing/model.onnx"),
	))

	l := New(Options{ManifestPath: path, Logger: zerolog.Nop()})
	snap, err := l.EnsureLoaded(context.Background(), false)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	usable := 0
	for _, h := range snap.Models {
		if h.Runnable() {
			usable++
		}
	}
	if usable != 1 {
		t.Fatalf("usable=%d want 1", usable)
	}
	if len(snap.Errors) != 1 {
		t.Fatalf("errors=%v want exactly one", snap.Errors)
	}
}

func TestEnsureLoadedIsIdempotentWithoutForce(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "m.onnx")
	path := writeManifest(t, dir, baseDoc(resource("m", "m.onnx")))
	l := New(Options{ManifestPath: path, Logger: zerolog.Nop()})

	first, err := l.EnsureLoaded(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	// Corrupt the manifest after the first load; without force the cached
	// snapshot must be returned with no I/O at all.
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	second, err := l.EnsureLoaded(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatal("expected the same snapshot pointer without force")
	}
}

func TestForceReloadIdempotentInEffect(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "m.onnx")
	path := writeManifest(t, dir, baseDoc(resource("m", "m.onnx")))
	l := New(Options{ManifestPath: path, Logger: zerolog.Nop()})

	a, err := l.ForceReload(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	b, err := l.ForceReload(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("force reload should build a new snapshot value")
	}
	if a.Manifest.RunID != b.Manifest.RunID {
		t.Fatalf("run ids differ: %s vs %s", a.Manifest.RunID, b.Manifest.RunID)
	}
	if a.Models[0].Location.Value != b.Models[0].Location.Value {
		t.Fatal("resolved locations differ across identical reloads")
	}
}

func TestFailedValidationKeepsPreviousSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "m.onnx")
	path := writeManifest(t, dir, baseDoc(resource("m", "m.onnx")))
	l := New(Options{ManifestPath: path, Logger: zerolog.Nop()})

	if _, err := l.EnsureLoaded(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	// Publish a manifest with no models; validation must reject it.
	writeManifest(t, dir, baseDoc())
	if _, err := l.ForceReload(context.Background()); err == nil {
		t.Fatal("expected validation failure")
	} else if !manifest.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := l.Current().Manifest.RunID; got != "run-1" {
		t.Fatalf("previous snapshot lost: run_id=%s", got)
	}
}

func TestUnreachableFileSource(t *testing.T) {
	l := New(Options{ManifestPath: filepath.Join(t.TempDir(), "nope.json"), Logger: zerolog.Nop()})
	_, err := l.EnsureLoaded(context.Background(), false)
	if err == nil || !IsUnreachableSource(err) {
		t.Fatalf("expected unreachable source, got %v", err)
	}
}

func TestRemoteManifestSource(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "m.onnx")
	doc := baseDoc(resource("m", "m.onnx"))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(doc)
	}))
	defer srv.Close()

	l := New(Options{ManifestURL: srv.URL + "/manifest.json", ArtifactRoot: dir, Logger: zerolog.Nop()})
	snap, err := l.EnsureLoaded(context.Background(), false)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if snap.Source.Kind != SourceKindRemote {
		t.Fatalf("source kind=%s want remote", snap.Source.Kind)
	}
	if !snap.Models[0].Runnable() {
		t.Fatal("artifact under override root should resolve locally")
	}
}

func TestRemoteManifestFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusInternalServerError)
	}))
	defer srv.Close()
	l := New(Options{ManifestURL: srv.URL, Logger: zerolog.Nop()})
	_, err := l.EnsureLoaded(context.Background(), false)
	if err == nil || !IsUnreachableSource(err) {
		t.Fatalf("expected unreachable source, got %v", err)
	}
}

func TestConcurrentReadersDuringReload(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "m.onnx")
	path := writeManifest(t, dir, baseDoc(resource("m", "m.onnx")))
	l := New(Options{ManifestPath: path, Logger: zerolog.Nop()})
	if _, err := l.EnsureLoaded(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				snap, err := l.EnsureLoaded(context.Background(), false)
				if err != nil || snap == nil {
					t.Errorf("reader observed nil snapshot: %v", err)
					return
				}
				// A grabbed snapshot must stay internally consistent.
				if snap.Manifest.RunID == "" || len(snap.Models) == 0 {
					t.Error("reader observed torn snapshot")
					return
				}
			}
		}()
	}
	for i := 0; i < 5; i++ {
		if _, err := l.ForceReload(context.Background()); err != nil {
			t.Fatalf("reload %d: %v", i, err)
		}
	}
	wg.Wait()
}

func TestStatusProjection(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "m.onnx")
	doc := baseDoc(resource("m", "m.onnx"), resource("gone", "missing.onnx"))
	doc["metrics"] = map[string]any{"accuracy": 0.61}
	path := writeManifest(t, dir, doc)
	l := New(Options{ManifestPath: path, Logger: zerolog.Nop()})
	snap, err := l.EnsureLoaded(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	st := snap.Status()
	if st.RunID != "run-1" || st.DatasetVersion != "7" {
		t.Fatalf("bad status header: %+v", st)
	}
	if st.Source.Kind != SourceKindFile || st.Source.Value != path {
		t.Fatalf("bad source: %+v", st.Source)
	}
	if len(st.Models) != 2 {
		t.Fatalf("models=%d want 2", len(st.Models))
	}
	var withErr, withLoc int
	for _, ms := range st.Models {
		if ms.Error != "" {
			withErr++
		}
		if ms.Location != nil {
			withLoc++
		}
	}
	if withErr != 1 || withLoc != 1 {
		t.Fatalf("status models=%+v", st.Models)
	}
	if fmt.Sprint(st.Metrics["accuracy"]) != "0.61" {
		t.Fatalf("metrics not carried: %v", st.Metrics)
	}
}
