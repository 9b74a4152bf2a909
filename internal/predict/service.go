// Package predict orchestrates one prediction: resolve the fixture, build
// its feature vector, run every usable model against it, and combine the
// per-model distributions into an ensemble.
package predict

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"matchd/internal/artifact"
	"matchd/internal/features"
	"matchd/internal/loader"
	"matchd/internal/preprocess"
	"matchd/internal/session"
	"matchd/pkg/types"
)

const ensembleMethod = "mean"

// outcomeClasses is the fixed output layout of every scoring model:
// home win, draw, away win.
const outcomeClasses = 3

// Service ties the snapshot loader, feature builder, preprocessing store
// and runtime cache together behind the API operations.
type Service struct {
	loader   *loader.Loader
	sessions *session.Cache
	bundles  *preprocess.Store
	builder  *features.Builder
	log      zerolog.Logger
}

// New assembles a Service from its parts.
func New(l *loader.Loader, sessions *session.Cache, bundles *preprocess.Store, builder *features.Builder, log zerolog.Logger) *Service {
	return &Service{loader: l, sessions: sessions, bundles: bundles, builder: builder, log: log}
}

// Predict scores one fixture with every model the active snapshot can run.
// A model that cannot run is skipped, not fatal; the request only fails
// when no model at all produces a distribution.
func (s *Service) Predict(ctx context.Context, req types.PredictRequest) (*types.PredictResponse, error) {
	snap, err := s.loader.EnsureLoaded(ctx, false)
	if err != nil {
		return nil, err
	}
	fixture, err := s.builder.Build(ctx, req.Home, req.Away, req.Season, snap.Manifest.DatasetVersion.String())
	if err != nil {
		return nil, err
	}

	var (
		predictions []types.ModelPrediction
		runtimeErr  error
	)
	for _, model := range snap.Models {
		probs, err := s.runModel(model, snap.Preprocessing, fixture)
		if err != nil {
			if session.IsRuntimeUnavailable(err) && runtimeErr == nil {
				runtimeErr = err
			}
			s.log.Warn().Str("model", model.Resource.ID).Err(err).Msg("model skipped")
			continue
		}
		predictions = append(predictions, types.ModelPrediction{
			ModelID:       model.Resource.ID,
			Format:        model.Resource.Format,
			Location:      *model.Status(),
			Probabilities: probs,
		})
	}
	if len(predictions) == 0 {
		if runtimeErr != nil {
			return nil, runtimeErr
		}
		return nil, ErrNoUsableModel("no usable model produced a prediction")
	}

	return &types.PredictResponse{
		Fixture: types.FixtureContext{
			MatchID:        fixture.MatchID,
			Home:           fixture.Home.Name,
			Away:           fixture.Away.Name,
			Season:         fixture.Season,
			DatasetVersion: snap.Manifest.DatasetVersion.String(),
		},
		Features: fixture.Features,
		Models:   predictions,
		Ensemble: combine(predictions),
	}, nil
}

func (s *Service) runModel(model artifact.Handle, preprocessing []artifact.Handle, fixture *features.Fixture) (types.Outcome, error) {
	if !model.Runnable() {
		if model.Err != "" {
			return types.Outcome{}, fmt.Errorf("not resolved: %s", model.Err)
		}
		return types.Outcome{}, fmt.Errorf("remote artifact %s is status-only", model.Resource.ID)
	}
	bundleHandle, ok := preprocess.Match(model, preprocessing)
	if !ok {
		return types.Outcome{}, fmt.Errorf("no preprocessing bundle for model %s", model.Resource.ID)
	}
	bundle, err := s.bundles.Load(bundleHandle)
	if err != nil {
		return types.Outcome{}, err
	}
	rt, err := s.sessions.GetOrCreate(model.Location.Value)
	if err != nil {
		return types.Outcome{}, err
	}

	input := bundle.Vector(fixture.Features, func(name string) {
		s.log.Debug().
			Str("model", model.Resource.ID).
			Str("feature", name).
			Msg("feature missing from vector, defaulting to zero")
	})
	scores, err := rt.Run(input)
	if err != nil {
		return types.Outcome{}, fmt.Errorf("inference failed: %w", err)
	}
	if len(scores) < outcomeClasses {
		return types.Outcome{}, fmt.Errorf("model %s returned %d scores, want %d", model.Resource.ID, len(scores), outcomeClasses)
	}
	return normalize(scores[:outcomeClasses]), nil
}

// normalize turns raw scores into a distribution summing to 1. Degenerate
// outputs (non-positive or non-finite sum) collapse to uniform rather than
// leaking NaN into the response.
func normalize(scores []float32) types.Outcome {
	var sum float64
	for _, v := range scores {
		sum += float64(v)
	}
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		u := 1.0 / float64(outcomeClasses)
		return types.Outcome{Home: u, Draw: u, Away: u}
	}
	return types.Outcome{
		Home: float64(scores[0]) / sum,
		Draw: float64(scores[1]) / sum,
		Away: float64(scores[2]) / sum,
	}
}

// combine averages the per-model distributions with equal weight and
// renormalizes against accumulated float error.
func combine(predictions []types.ModelPrediction) types.Ensemble {
	n := float64(len(predictions))
	var home, draw, away float64
	for _, p := range predictions {
		home += p.Probabilities.Home
		draw += p.Probabilities.Draw
		away += p.Probabilities.Away
	}
	home, draw, away = home/n, draw/n, away/n
	if total := home + draw + away; total > 0 {
		home, draw, away = home/total, draw/total, away/total
	}
	return types.Ensemble{
		Method:        ensembleMethod,
		ModelCount:    len(predictions),
		Probabilities: types.Outcome{Home: home, Draw: draw, Away: away},
	}
}

// Status reports the active snapshot, loading one on first call.
func (s *Service) Status(ctx context.Context) (*types.StatusResponse, error) {
	snap, err := s.loader.EnsureLoaded(ctx, false)
	if err != nil {
		return nil, err
	}
	resp := snap.Status()
	return &resp, nil
}

// Reload rebuilds the snapshot from the manifest source and publishes it.
// On failure the previous snapshot stays active and the error is returned.
func (s *Service) Reload(ctx context.Context) (*types.ReloadResponse, error) {
	snap, err := s.loader.ForceReload(ctx)
	if err != nil {
		return nil, err
	}
	return &types.ReloadResponse{
		RunID:          snap.Manifest.RunID,
		ReloadedAtUnix: snap.LoadedAt.Unix(),
		ModelCount:     len(snap.Models),
	}, nil
}

// Ready reports whether the service can answer predictions: a snapshot is
// published and at least one model resolved to a runnable artifact.
func (s *Service) Ready(ctx context.Context) error {
	snap, err := s.loader.EnsureLoaded(ctx, false)
	if err != nil {
		return err
	}
	for _, model := range snap.Models {
		if model.Runnable() {
			return nil
		}
	}
	return ErrNoUsableModel("no runnable model in the active snapshot")
}
