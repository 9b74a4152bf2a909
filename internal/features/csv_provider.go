package features

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

const (
	datasetFilePattern = "Dataset_Version_%s.csv"
	rollingWindow      = 5
)

// CSVProvider serves dataset rows from versioned CSV exports
// (Dataset_Version_{v}.csv). Datasets are parsed once per version and the
// rolling shot features the exported models expect are derived at load
// time, mirroring the training-side preprocessing.
type CSVProvider struct {
	dir            string
	defaultVersion string
	rosterCacheDir string
	log            zerolog.Logger

	mu       sync.Mutex
	datasets map[string]*dataset
}

// NewCSVProvider creates a provider rooted at dir. rosterCacheDir may be
// empty to skip writing roster cache files.
func NewCSVProvider(dir, defaultVersion, rosterCacheDir string, log zerolog.Logger) *CSVProvider {
	return &CSVProvider{
		dir:            dir,
		defaultVersion: defaultVersion,
		rosterCacheDir: rosterCacheDir,
		log:            log,
		datasets:       make(map[string]*dataset),
	}
}

type fixtureKey struct {
	season string
	home   string
	away   string
}

type dataset struct {
	version      string
	path         string
	mtime        float64
	latestSeason string
	seasons      map[string]bool
	rosters      map[string]*Roster
	rows         map[fixtureKey]*Row
}

func (p *CSVProvider) LatestSeason(datasetVersion string) (string, error) {
	ds, err := p.dataset(datasetVersion)
	if err != nil {
		return "", err
	}
	return ds.latestSeason, nil
}

func (p *CSVProvider) Roster(season, datasetVersion string) (*Roster, error) {
	ds, err := p.dataset(datasetVersion)
	if err != nil {
		return nil, err
	}
	roster, ok := ds.rosters[season]
	if !ok {
		return nil, ErrFixtureNotFound(fmt.Sprintf("season %s not present in dataset version %s", season, ds.version))
	}
	return roster, nil
}

func (p *CSVProvider) Row(season, homeCanonical, awayCanonical, datasetVersion string) (*Row, error) {
	ds, err := p.dataset(datasetVersion)
	if err != nil {
		return nil, err
	}
	row, ok := ds.rows[fixtureKey{season: season, home: homeCanonical, away: awayCanonical}]
	if !ok {
		return nil, ErrFixtureNotFound(fmt.Sprintf("fixture %s vs %s (%s) not found", homeCanonical, awayCanonical, season))
	}
	return row, nil
}

func (p *CSVProvider) ModTime(datasetVersion string) float64 {
	ds, err := p.dataset(datasetVersion)
	if err != nil {
		return 0
	}
	return ds.mtime
}

func (p *CSVProvider) dataset(version string) (*dataset, error) {
	if version == "" {
		version = p.defaultVersion
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if ds, ok := p.datasets[version]; ok {
		return ds, nil
	}
	ds, err := p.load(version)
	if err != nil {
		return nil, err
	}
	p.datasets[version] = ds
	return ds, nil
}

type rawMatch struct {
	matchID int64
	season  string
	league  string
	home    string
	away    string
	values  map[string]float64
}

func (p *CSVProvider) load(version string) (*dataset, error) {
	path := filepath.Join(p.dir, fmt.Sprintf(datasetFilePattern, version))
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("dataset not found at %s; rebuild the dataset or point the config at an available CSV: %w", path, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	matches, err := readDataset(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("dataset %s contains no fixtures", path)
	}
	deriveShotFeatures(matches)

	ds := &dataset{
		version: version,
		path:    path,
		mtime:   float64(info.ModTime().UnixNano()) / 1e9,
		seasons: make(map[string]bool),
		rosters: make(map[string]*Roster),
		rows:    make(map[fixtureKey]*Row, len(matches)),
	}
	namesBySeason := make(map[string][]string)
	for _, m := range matches {
		ds.seasons[m.season] = true
		namesBySeason[m.season] = append(namesBySeason[m.season], m.home, m.away)
		key := fixtureKey{season: m.season, home: Slugify(m.home), away: Slugify(m.away)}
		ds.rows[key] = &Row{MatchID: m.matchID, Values: m.values}
	}
	for season, names := range namesBySeason {
		ds.rosters[season] = NewRoster(names)
	}
	ds.latestSeason = latestSeason(ds.seasons)

	p.writeRosterCaches(ds, matches)
	p.log.Info().
		Str("dataset", path).
		Str("version", version).
		Int("fixtures", len(ds.rows)).
		Str("latest_season", ds.latestSeason).
		Msg("dataset loaded")
	return ds, nil
}

// writeRosterCaches persists one roster cache per league for its latest
// season, so the web layer can resolve upcoming fixtures.
func (p *CSVProvider) writeRosterCaches(ds *dataset, matches []rawMatch) {
	if p.rosterCacheDir == "" {
		return
	}
	latestByLeague := make(map[string]string)
	for _, m := range matches {
		if m.league == "" {
			continue
		}
		if current, ok := latestByLeague[m.league]; !ok || seasonLess(current, m.season) {
			latestByLeague[m.league] = m.season
		}
	}
	for league, season := range latestByLeague {
		var names []string
		for _, m := range matches {
			if m.league == league && m.season == season {
				names = append(names, m.home, m.away)
			}
		}
		if _, err := NewRoster(names).WriteCache(p.rosterCacheDir, league, season); err != nil {
			p.log.Warn().Err(err).Str("league", league).Msg("roster cache write failed")
		}
	}
}

func readDataset(r io.Reader) ([]rawMatch, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, err
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"season", "home_team_name", "away_team_name"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	var matches []rawMatch
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		get := func(name string) string {
			idx, ok := col[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}
		m := rawMatch{
			season: get("season"),
			league: get("league"),
			home:   get("home_team_name"),
			away:   get("away_team_name"),
			values: make(map[string]float64, len(header)),
		}
		if m.season == "" || m.home == "" || m.away == "" {
			continue
		}
		if id, err := strconv.ParseInt(get("match_id"), 10, 64); err == nil {
			m.matchID = id
		}
		for name, idx := range col {
			if idx >= len(record) {
				continue
			}
			if v, err := strconv.ParseFloat(strings.TrimSpace(record[idx]), 64); err == nil && isFinite(v) {
				m.values[name] = v
			}
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// deriveShotFeatures fills the prior rolling shot averages the model
// bundles expect: for each team, the mean of its previous (up to) five
// matches in the same role, never including the current match. Teams with
// no history fall back to the column median.
func deriveShotFeatures(matches []rawMatch) {
	if len(matches) == 0 {
		return
	}
	if !columnPresent(matches, "home_shots_for") {
		return
	}
	homeMedian := columnMedian(matches, "home_shots_for")
	awayMedian := columnMedian(matches, "away_shots_for")
	for i := range matches {
		if _, ok := matches[i].values["home_shots_for"]; !ok {
			matches[i].values["home_shots_for"] = homeMedian
		}
		if _, ok := matches[i].values["away_shots_for"]; !ok {
			matches[i].values["away_shots_for"] = awayMedian
		}
		// A side's shots allowed are the opponent's shots for.
		matches[i].values["home_shots_allowed"] = matches[i].values["away_shots_for"]
		matches[i].values["away_shots_allowed"] = matches[i].values["home_shots_for"]
	}

	type series struct {
		team   func(m *rawMatch) string
		source string
		target string
	}
	for _, s := range []series{
		{func(m *rawMatch) string { return m.home }, "home_shots_for", "home_shots_for_avg5"},
		{func(m *rawMatch) string { return m.away }, "away_shots_for", "away_shots_for_avg5"},
		{func(m *rawMatch) string { return m.home }, "home_shots_allowed", "home_shots_allowed_avg5"},
		{func(m *rawMatch) string { return m.away }, "away_shots_allowed", "away_shots_allowed_avg5"},
	} {
		median := columnMedian(matches, s.source)
		history := make(map[string][]float64)
		for i := range matches {
			m := &matches[i]
			if _, ok := m.values[s.target]; ok {
				// Dataset already carries the column; keep it and
				// still extend the history for later rows.
				history[s.team(m)] = appendWindow(history[s.team(m)], m.values[s.source])
				continue
			}
			prior := history[s.team(m)]
			if len(prior) == 0 {
				m.values[s.target] = median
			} else {
				m.values[s.target] = mean(prior)
			}
			history[s.team(m)] = appendWindow(prior, m.values[s.source])
		}
	}
}

func appendWindow(window []float64, v float64) []float64 {
	window = append(window, v)
	if len(window) > rollingWindow {
		window = window[len(window)-rollingWindow:]
	}
	return window
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func columnPresent(matches []rawMatch, name string) bool {
	for i := range matches {
		if _, ok := matches[i].values[name]; ok {
			return true
		}
	}
	return false
}

func columnMedian(matches []rawMatch, name string) float64 {
	var values []float64
	for i := range matches {
		if v, ok := matches[i].values[name]; ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return 0
	}
	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid]
	}
	return (values[mid-1] + values[mid]) / 2
}

func latestSeason(seasons map[string]bool) string {
	var all []string
	for s := range seasons {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool { return seasonLess(all[i], all[j]) })
	if len(all) == 0 {
		return ""
	}
	return all[len(all)-1]
}

// seasonLess orders seasons numerically when both parse, else lexically.
func seasonLess(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}
