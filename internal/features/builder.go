package features

import (
	"context"
	"math"
	"strings"

	"github.com/rs/zerolog"
)

const logRatioEpsilon = 1e-3

// Row is one dataset fixture row: the match id plus every numeric column.
type Row struct {
	MatchID int64
	Values  map[string]float64
}

// RowProvider supplies dataset rows and season metadata. Implementations
// own dataset loading; the builder only derives features.
type RowProvider interface {
	// LatestSeason returns the most recent season present for the
	// dataset version ("" picks the provider default version).
	LatestSeason(datasetVersion string) (string, error)
	// Roster returns the canonical team roster for a season.
	Roster(season, datasetVersion string) (*Roster, error)
	// Row fetches the fixture row keyed by canonical team ids. A missing
	// matchup returns a fixture-not-found error.
	Row(season, homeCanonical, awayCanonical, datasetVersion string) (*Row, error)
	// ModTime reports the dataset's modification stamp (unix seconds,
	// fractional), used to invalidate cached feature vectors.
	ModTime(datasetVersion string) float64
}

// Fixture is the feature-builder output for one matchup.
type Fixture struct {
	MatchID        int64
	Home           Team
	Away           Team
	Season         string
	DatasetVersion string
	Features       map[string]float64
}

// Builder turns a requested matchup into a named numeric feature vector.
// It is pure given the provider's data: same inputs, same vector.
type Builder struct {
	provider RowProvider
	cache    *FeatureCache
	log      zerolog.Logger
}

// NewBuilder wires a builder to its dataset provider. cache may be nil to
// disable fixture-level caching.
func NewBuilder(provider RowProvider, cache *FeatureCache, log zerolog.Logger) *Builder {
	return &Builder{provider: provider, cache: cache, log: log}
}

// Build resolves the fixture and produces its feature vector. Season ""
// defaults to the latest known season for the dataset version.
func (b *Builder) Build(ctx context.Context, home, away, season, datasetVersion string) (*Fixture, error) {
	if sameTeam(home, away) {
		return nil, ErrInvalidRequest("home and away must be different teams")
	}
	if strings.TrimSpace(home) == "" || strings.TrimSpace(away) == "" {
		return nil, ErrInvalidRequest("home and away team names are required")
	}
	if season == "" {
		latest, err := b.provider.LatestSeason(datasetVersion)
		if err != nil {
			return nil, err
		}
		season = latest
	}
	roster, err := b.provider.Roster(season, datasetVersion)
	if err != nil {
		return nil, err
	}
	homeTeam, ok := roster.Resolve(home)
	if !ok {
		return nil, ErrUnknownTeam(home)
	}
	awayTeam, ok := roster.Resolve(away)
	if !ok {
		return nil, ErrUnknownTeam(away)
	}
	if homeTeam.Canonical == awayTeam.Canonical {
		return nil, ErrInvalidRequest("home and away must be different teams")
	}

	if b.cache != nil {
		if cached, matchID, ok := b.cache.Get(ctx, datasetVersion, season, homeTeam.Canonical, awayTeam.Canonical, b.provider.ModTime(datasetVersion)); ok {
			return &Fixture{
				MatchID:        matchID,
				Home:           homeTeam,
				Away:           awayTeam,
				Season:         season,
				DatasetVersion: datasetVersion,
				Features:       cached,
			}, nil
		}
	}

	row, err := b.provider.Row(season, homeTeam.Canonical, awayTeam.Canonical, datasetVersion)
	if err != nil {
		return nil, err
	}

	vector := make(map[string]float64, len(defaultFeatures)+len(row.Values))
	for _, name := range defaultFeatures {
		vector[name] = 0
	}
	for name, value := range row.Values {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			continue
		}
		vector[name] = value
	}
	fillAliases(vector, row.Values)
	fillDerived(vector, row.Values)

	if b.cache != nil {
		if err := b.cache.Put(ctx, datasetVersion, season, homeTeam.Canonical, awayTeam.Canonical, b.provider.ModTime(datasetVersion), row.MatchID, vector); err != nil {
			b.log.Warn().Err(err).Msg("feature cache write failed")
		}
	}
	return &Fixture{
		MatchID:        row.MatchID,
		Home:           homeTeam,
		Away:           awayTeam,
		Season:         season,
		DatasetVersion: datasetVersion,
		Features:       vector,
	}, nil
}

func sameTeam(a, b string) bool {
	return collapse(a) == collapse(b) && collapse(a) != ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// featureAliases maps short gap/edge/form names to the longer rolling
// source columns they shadow. The alias is filled only when absent from
// the row itself.
var featureAliases = map[string]string{
	"att_gap":           "att_gap_avg5",
	"def_gap":           "def_gap_avg5",
	"points_gap":        "points_gap_avg5",
	"xg_att_gap":        "xg_att_gap_avg5",
	"xg_def_gap":        "xg_def_gap_avg5",
	"shot_vol_gap":      "shot_vol_gap_avg5",
	"shot_suppress_gap": "shot_suppress_gap_avg5",
	"log_shot_ratio":    "log_shot_ratio_avg5",
	"shots_tempo":       "shots_tempo_avg5",
	"market_edge":       "market_home_edge",
	"form_diff":         "form_diff_last5",
	"form_pct_diff":     "form_pct_diff_last5",
}

func fillAliases(vector, row map[string]float64) {
	for alias, source := range featureAliases {
		if _, ok := row[alias]; ok {
			continue
		}
		if v, ok := row[source]; ok && isFinite(v) {
			vector[alias] = v
		}
	}
	// prob_edge is the forecast spread when the dataset does not carry it
	// as a column of its own.
	if _, ok := row["prob_edge"]; !ok {
		h, hok := row["forecast_home_win"]
		a, aok := row["forecast_away_win"]
		if hok && aok && isFinite(h-a) {
			vector["prob_edge"] = h - a
		}
	}
}

// fillDerived computes the second-order shot features the dataset is not
// guaranteed to carry. The epsilon and non-finite guard on the log ratio
// must not change: golden fixtures depend on them.
func fillDerived(vector, row map[string]float64) {
	homeFor := row["home_shots_for_avg5"]
	awayFor := row["away_shots_for_avg5"]
	homeAllowed := row["home_shots_allowed_avg5"]
	awayAllowed := row["away_shots_allowed_avg5"]

	if _, ok := row["shot_vol_gap_avg5"]; !ok {
		vector["shot_vol_gap_avg5"] = homeFor - awayFor
	}
	if _, ok := row["shot_suppress_gap_avg5"]; !ok {
		vector["shot_suppress_gap_avg5"] = awayAllowed - homeAllowed
	}
	if _, ok := row["log_shot_ratio_avg5"]; !ok {
		ratio := math.Log((homeFor + logRatioEpsilon) / (awayFor + logRatioEpsilon))
		if !isFinite(ratio) {
			ratio = 0
		}
		vector["log_shot_ratio_avg5"] = ratio
	}
	if _, ok := row["shots_tempo_avg5"]; !ok {
		vector["shots_tempo_avg5"] = (homeFor + awayFor) / 2
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
