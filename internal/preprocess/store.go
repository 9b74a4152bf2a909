// Package preprocess loads the per-model preprocessing bundles: the ordered
// feature list a model expects, plus optional scaling parameters.
package preprocess

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"matchd/internal/artifact"
	"matchd/internal/common/fsutil"
)

// Scaler holds positional standardization parameters. Entries with a
// non-positive std pass through unscaled.
type Scaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// Bundle describes how to turn a named feature vector into the dense input
// one model expects.
type Bundle struct {
	FeatureNames []string
	Scaler       *Scaler
}

// Vector reorders features into the bundle's dense layout. Names absent
// from the vector default to 0 and are reported through onMissing; one
// missing feature never fails the request.
func (b *Bundle) Vector(features map[string]float64, onMissing func(name string)) []float32 {
	out := make([]float32, len(b.FeatureNames))
	for i, name := range b.FeatureNames {
		v, ok := features[name]
		if !ok {
			if onMissing != nil {
				onMissing(name)
			}
			v = 0
		}
		if b.Scaler != nil && i < len(b.Scaler.Mean) && i < len(b.Scaler.Std) && b.Scaler.Std[i] > 0 {
			v = (v - b.Scaler.Mean[i]) / b.Scaler.Std[i]
		}
		out[i] = float32(v)
	}
	return out
}

// bundleDoc tolerates the field spellings different exporter versions have
// used for the same content.
type bundleDoc struct {
	FeatureCols  []string `json:"feature_cols"`
	FeatureNames []string `json:"feature_names"`
	Columns      []string `json:"columns"`
	Scaler       *Scaler  `json:"scaler"`
	Mean         []float64 `json:"mean"`
	Std          []float64 `json:"std"`
}

// Store caches parsed bundles per resolved local path. A reload that moves
// a model's bundle to a new path lands on a new cache key; entries are
// immutable once loaded.
type Store struct {
	mu      sync.Mutex
	bundles map[string]*Bundle
}

func NewStore() *Store {
	return &Store{bundles: make(map[string]*Bundle)}
}

// Load returns the bundle behind a resolved handle, reading and parsing it
// on first use. Only local handles can be loaded.
func (s *Store) Load(h artifact.Handle) (*Bundle, error) {
	if !h.Runnable() {
		return nil, fmt.Errorf("preprocessing %q has no local file", h.Resource.ID)
	}
	key := fsutil.Canonical(h.Location.Value)
	s.mu.Lock()
	if b, ok := s.bundles[key]; ok {
		s.mu.Unlock()
		return b, nil
	}
	s.mu.Unlock()

	b, err := parseFile(key)
	if err != nil {
		return nil, fmt.Errorf("preprocessing %q: %w", h.Resource.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.bundles[key]; ok {
		return existing, nil
	}
	s.bundles[key] = b
	return b, nil
}

func parseFile(path string) (*Bundle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc bundleDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	names := doc.FeatureCols
	if len(names) == 0 {
		names = doc.FeatureNames
	}
	if len(names) == 0 {
		names = doc.Columns
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("parse %s: no feature name list", path)
	}
	b := &Bundle{FeatureNames: names, Scaler: doc.Scaler}
	if b.Scaler == nil && len(doc.Mean) > 0 && len(doc.Std) > 0 {
		b.Scaler = &Scaler{Mean: doc.Mean, Std: doc.Std}
	}
	return b, nil
}

// Match finds the preprocessing handle for a model: exact id match first,
// then "<model_id>_" prefix. A model with no match cannot run; guessing a
// feature order would silently misorder every input.
func Match(model artifact.Handle, preprocessing []artifact.Handle) (artifact.Handle, bool) {
	for _, h := range preprocessing {
		if h.Resource.ID == model.Resource.ID {
			return h, true
		}
	}
	prefix := model.Resource.ID + "_"
	for _, h := range preprocessing {
		if strings.HasPrefix(h.Resource.ID, prefix) {
			return h, true
		}
	}
	return artifact.Handle{}, false
}
