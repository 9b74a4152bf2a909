package matchctl

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"matchd/internal/features"
)

func writeDataset(t *testing.T, dir string) {
	t.Helper()
	csv := "match_id,season,league,home_team_name,away_team_name,home_shots_for,away_shots_for\n" +
		"1,2024,Premier League,Arsenal,Chelsea,12,8\n" +
		"2,2024,Premier League,Chelsea,Liverpool,9,11\n"
	if err := os.WriteFile(filepath.Join(dir, "Dataset_Version_5.csv"), []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := BuildRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestTeamsCommand(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir)

	out, err := runCommand(t, "teams", "--dataset-dir", dir, "--dataset-version", "5", "--output", "json")
	if err != nil {
		t.Fatalf("teams: %v", err)
	}
	var teams []features.Team
	if err := json.Unmarshal([]byte(out), &teams); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(teams) != 3 {
		t.Errorf("got %d teams, want 3", len(teams))
	}
}

func TestFeaturesCommand(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir)

	out, err := runCommand(t, "features", "Arsenal", "Chelsea", "--dataset-dir", dir, "--dataset-version", "5")
	if err != nil {
		t.Fatalf("features: %v", err)
	}
	if !strings.Contains(out, "Arsenal vs Chelsea (2024), match 1") {
		t.Errorf("missing fixture header:\n%s", out)
	}
	if !strings.Contains(out, "home_shots_for_avg5") {
		t.Errorf("missing derived feature:\n%s", out)
	}
}

func TestManifestCheckCommand(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "model.onnx"), []byte("weights"), 0o644); err != nil {
		t.Fatal(err)
	}
	manifest := `{"run_id":"run-1","dataset_version":"5","trained_at":"t",
"models":[{"id":"m1","path":"model.onnx","sha256":"aa","size_bytes":7}],
"preprocessing":[],"attribution":[]}`
	manifestPath := filepath.Join(dir, "manifest.json")
	if err := os.WriteFile(manifestPath, []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCommand(t, "manifest", "check", "--manifest", manifestPath)
	if err != nil {
		t.Fatalf("manifest check: %v\n%s", err, out)
	}
	if !strings.Contains(out, "run run-1") || !strings.Contains(out, "m1") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestManifestCheckReportsBrokenResources(t *testing.T) {
	dir := t.TempDir()
	manifest := `{"run_id":"run-1","dataset_version":"5","trained_at":"t",
"models":[{"id":"m1","path":"missing.onnx","sha256":"aa","size_bytes":7}],
"preprocessing":[],"attribution":[]}`
	manifestPath := filepath.Join(dir, "manifest.json")
	if err := os.WriteFile(manifestPath, []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCommand(t, "manifest", "check", "--manifest", manifestPath)
	if err == nil {
		t.Fatalf("expected failure for unresolved resources:\n%s", out)
	}
	if !strings.Contains(out, "ERROR") {
		t.Errorf("output should flag the broken resource:\n%s", out)
	}
}

func TestManifestFlagValidation(t *testing.T) {
	if _, err := runCommand(t, "manifest", "check"); err == nil {
		t.Error("missing --manifest should fail")
	}
	if _, err := runCommand(t, "predict", "Arsenal", "Chelsea"); err == nil {
		t.Error("predict without a manifest source should fail")
	}
}
