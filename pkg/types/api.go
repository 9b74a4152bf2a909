package types

// PredictRequest asks for an outcome estimate for one fixture.
type PredictRequest struct {
	// Required home team name (display name, slug, or short code).
	// example: Arsenal
	Home string `json:"home" example:"Arsenal"`
	// Required away team name.
	// example: Chelsea
	Away string `json:"away" example:"Chelsea"`
	// Optional season identifier; defaults to the latest known season.
	// example: 2025
	Season string `json:"season,omitempty" example:"2025"`
}

// FixtureContext identifies the resolved matchup a prediction was made for.
type FixtureContext struct {
	// Dataset match id for the fixture row.
	// example: 481191
	MatchID int64 `json:"match_id" example:"481191"`
	// Canonical home team display name.
	Home string `json:"home"`
	// Canonical away team display name.
	Away string `json:"away"`
	// Season the fixture belongs to.
	Season string `json:"season"`
	// Dataset version the feature vector was built from.
	DatasetVersion string `json:"dataset_version"`
}

// Outcome is a three-way probability distribution over the match result.
// Home+Draw+Away sums to 1 within floating tolerance.
type Outcome struct {
	Home float64 `json:"home"`
	Draw float64 `json:"draw"`
	Away float64 `json:"away"`
}

// ModelPrediction is one model's contribution to the ensemble.
type ModelPrediction struct {
	// Model id from the manifest.
	// example: performance_dense
	ModelID string `json:"model_id" example:"performance_dense"`
	// Model format tag from the manifest.
	// example: onnx
	Format string `json:"format,omitempty" example:"onnx"`
	// Where the model artifact was resolved (kind + value), for provenance.
	Location ResourceLocation `json:"location"`
	// Normalized outcome distribution.
	Probabilities Outcome `json:"probabilities"`
}

// Ensemble is the combined distribution across all usable models.
type Ensemble struct {
	// Combination method tag.
	// example: mean
	Method string `json:"method" example:"mean"`
	// Number of per-model distributions combined.
	// example: 3
	ModelCount int `json:"model_count" example:"3"`
	// Combined outcome distribution.
	Probabilities Outcome `json:"probabilities"`
}

// PredictResponse is returned by POST /predict.
type PredictResponse struct {
	Fixture  FixtureContext     `json:"fixture"`
	Features map[string]float64 `json:"features"`
	Models   []ModelPrediction  `json:"models"`
	Ensemble Ensemble           `json:"ensemble"`
}

// ResourceLocation reports where an artifact was resolved to.
type ResourceLocation struct {
	// Either "local" or "remote".
	// example: local
	Kind string `json:"kind" example:"local"`
	// Filesystem path for local, URL for remote.
	Value string `json:"value"`
}

// ModelStatus summarizes one declared model for GET /status.
type ModelStatus struct {
	// Model id from the manifest.
	ID string `json:"id"`
	// Model format tag.
	Format string `json:"format,omitempty"`
	// Resolved location, omitted when resolution failed.
	Location *ResourceLocation `json:"location,omitempty"`
	// Resolution error, when the model could not be located.
	Error string `json:"error,omitempty"`
}

// ManifestSource describes where the active manifest was read from.
type ManifestSource struct {
	// Either "file" or "remote".
	// example: file
	Kind string `json:"kind" example:"file"`
	// File path or URL of the manifest document.
	Value string `json:"value"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Active training run id.
	// example: 2024-05-20-v7
	RunID string `json:"run_id" example:"2024-05-20-v7"`
	// Dataset version declared by the active manifest.
	// example: 7
	DatasetVersion string `json:"dataset_version" example:"7"`
	// Training timestamp declared by the active manifest.
	TrainedAt string `json:"trained_at"`
	// Where the manifest came from.
	Source ManifestSource `json:"source"`
	// When the active snapshot was loaded (unix seconds).
	// example: 1700000000
	LoadedAtUnix int64 `json:"loaded_at_unix" example:"1700000000"`
	// Per-model resolution summary.
	Models []ModelStatus `json:"models"`
	// Non-fatal resolution errors collected during the last load.
	Errors []string `json:"errors,omitempty"`
	// Free-form metrics carried over from the manifest.
	Metrics map[string]any `json:"metrics,omitempty"`
}

// ReloadResponse is returned by POST /reload on success.
type ReloadResponse struct {
	// Run id of the freshly published snapshot.
	RunID string `json:"run_id"`
	// When the new snapshot was loaded (unix seconds).
	ReloadedAtUnix int64 `json:"reloaded_at_unix"`
	// Number of models declared by the new manifest.
	ModelCount int `json:"model_count"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: unknown team: Unknown FC
	Error string `json:"error" example:"unknown team: Unknown FC"`
	// HTTP status code.
	// example: 404
	Code int `json:"code" example:"404"`
}
