package types

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Manifest describes the artifacts of one training run: the models to serve,
// their preprocessing bundles, and optional attribution caches. It is decoded
// once, validated, and never mutated; a reload produces a new value.
type Manifest struct {
	// Opaque identity of the training run that produced these artifacts.
	// example: 2024-05-20-v7
	RunID string `json:"run_id" example:"2024-05-20-v7"`
	// Dataset version the models were trained against. Accepts a JSON
	// string or number; normalized to a string.
	DatasetVersion DatasetVersion `json:"dataset_version"`
	// Timestamp string recorded at training time.
	// example: 2024-05-20T12:00:00Z
	TrainedAt string `json:"trained_at" example:"2024-05-20T12:00:00Z"`
	// Free-form training metrics, passed through to status untouched.
	Metrics map[string]any `json:"metrics,omitempty"`
	// Base URL used to synthesize remote artifact addresses when a
	// resource carries no URI of its own.
	ArtefactBaseURL string `json:"artefact_base_url,omitempty"`
	// Scoring models. Must be non-empty.
	Models []Resource `json:"models"`
	// Preprocessing bundles, matched to models by id convention.
	Preprocessing []Resource `json:"preprocessing"`
	// Attribution caches (status-only; never used for inference).
	Attribution []Resource `json:"attribution"`
}

// Resource is one artifact entry inside a manifest.
type Resource struct {
	// Identifier, unique within its list.
	// example: performance_dense
	ID string `json:"id" example:"performance_dense"`
	// Model format tag (models only).
	// example: onnx
	Format string `json:"format,omitempty" example:"onnx"`
	// Path as published, relative to the artifact root or a full URL.
	Path string `json:"path"`
	// Optional local filesystem override for Path.
	LocalPath string `json:"local_path,omitempty"`
	// Optional absolute remote address.
	URI string `json:"uri,omitempty"`
	// Content hash of the artifact file.
	SHA256 string `json:"sha256"`
	// Size of the artifact file in bytes.
	SizeBytes int64 `json:"size_bytes"`
	// Attribution view label (attribution entries only).
	View string `json:"view,omitempty"`
}

// DatasetVersion tolerates manifests that encode the version as a bare
// number instead of a string.
type DatasetVersion string

func (v *DatasetVersion) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*v = DatasetVersion(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*v = DatasetVersion(n.String())
		return nil
	}
	return fmt.Errorf("dataset_version must be a string or number, got %s", string(b))
}

func (v DatasetVersion) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(string(v))), nil
}

func (v DatasetVersion) String() string { return string(v) }
