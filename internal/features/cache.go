package features

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// FeatureCache stores computed feature vectors per dataset version in a
// sqlite file, keyed by (dataset_version, season, home, away). Entries are
// stamped with the dataset's modification time and ignored once the
// dataset changes underneath them.
type FeatureCache struct {
	db *sql.DB
}

// OpenCache opens (or creates) the cache database at path.
func OpenCache(path string) (*FeatureCache, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	c := &FeatureCache{db: db}
	if err := c.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func (c *FeatureCache) migrate() error {
	_, err := c.db.Exec(`
CREATE TABLE IF NOT EXISTS feature_cache (
  dataset_version TEXT NOT NULL,
  season TEXT NOT NULL,
  home TEXT NOT NULL,
  away TEXT NOT NULL,
  match_id INTEGER NOT NULL,
  dataset_mtime REAL NOT NULL,
  payload TEXT NOT NULL,
  PRIMARY KEY (dataset_version, season, home, away)
);`)
	return err
}

// Get returns the cached vector and match id for a fixture, or ok=false on
// a miss or a stale dataset stamp.
func (c *FeatureCache) Get(ctx context.Context, datasetVersion, season, home, away string, datasetMtime float64) (map[string]float64, int64, bool) {
	if c == nil {
		return nil, 0, false
	}
	row := c.db.QueryRowContext(ctx, `
SELECT payload, match_id, dataset_mtime FROM feature_cache
WHERE dataset_version = ? AND season = ? AND home = ? AND away = ?`,
		datasetVersion, cacheKeyPart(season), cacheKeyPart(home), cacheKeyPart(away))
	var payload string
	var matchID int64
	var cachedMtime float64
	if err := row.Scan(&payload, &matchID, &cachedMtime); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, 0, false
		}
		return nil, 0, false
	}
	if math.Abs(cachedMtime-datasetMtime) > 1e-6 {
		return nil, 0, false
	}
	var features map[string]float64
	if err := json.Unmarshal([]byte(payload), &features); err != nil {
		return nil, 0, false
	}
	return features, matchID, true
}

// Put stores or replaces the vector for a fixture.
func (c *FeatureCache) Put(ctx context.Context, datasetVersion, season, home, away string, datasetMtime float64, matchID int64, features map[string]float64) error {
	if c == nil {
		return nil
	}
	payload, err := json.Marshal(features)
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx, `
INSERT OR REPLACE INTO feature_cache
(dataset_version, season, home, away, match_id, dataset_mtime, payload)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		datasetVersion, cacheKeyPart(season), cacheKeyPart(home), cacheKeyPart(away),
		matchID, datasetMtime, string(payload))
	return err
}

// Close releases the underlying database.
func (c *FeatureCache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func cacheKeyPart(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
