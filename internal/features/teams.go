package features

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var (
	slugPattern  = regexp.MustCompile(`[^a-z0-9]+`)
	shortPattern = regexp.MustCompile(`[^A-Za-z ]+`)
)

// Slugify turns a display name into its canonical id: lowercase, runs of
// non-alphanumerics collapsed to single underscores.
func Slugify(name string) string {
	s := slugPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
	return strings.Trim(s, "_")
}

// ShortName derives the roster short code: initials of up to three words,
// or the first three letters of a single word.
func ShortName(name string) string {
	clean := strings.TrimSpace(shortPattern.ReplaceAllString(name, ""))
	if clean == "" {
		if len(name) < 3 {
			return strings.ToUpper(name)
		}
		return strings.ToUpper(name[:3])
	}
	parts := strings.Fields(clean)
	if len(parts) == 1 {
		word := parts[0]
		if len(word) > 3 {
			word = word[:3]
		}
		return strings.ToUpper(word)
	}
	if len(parts) > 3 {
		parts = parts[:3]
	}
	var b strings.Builder
	for _, part := range parts {
		b.WriteString(strings.ToUpper(part[:1]))
	}
	return b.String()
}

// Team is one canonical roster entry.
type Team struct {
	Canonical string `json:"canonical"`
	Name      string `json:"name"`
	ShortName string `json:"shortName"`
}

// Roster resolves raw team names for one season to canonical entries.
type Roster struct {
	teams       []Team
	byCanonical map[string]Team
	bySlug      map[string]Team
	byName      map[string]Team
	byShort     map[string]Team
}

// NewRoster builds a roster from the distinct display names seen in a
// season's fixtures.
func NewRoster(names []string) *Roster {
	uniq := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" {
			uniq[n] = true
		}
	}
	sorted := make([]string, 0, len(uniq))
	for n := range uniq {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	r := &Roster{
		byCanonical: make(map[string]Team, len(sorted)),
		bySlug:      make(map[string]Team, len(sorted)),
		byName:      make(map[string]Team, len(sorted)),
		byShort:     make(map[string]Team, len(sorted)),
	}
	for _, name := range sorted {
		team := Team{Canonical: Slugify(name), Name: name, ShortName: ShortName(name)}
		r.teams = append(r.teams, team)
		r.byCanonical[team.Canonical] = team
		r.bySlug[Slugify(name)] = team
		r.byName[strings.ToLower(name)] = team
		if _, taken := r.byShort[team.ShortName]; !taken {
			r.byShort[team.ShortName] = team
		}
	}
	return r
}

// Teams returns the roster entries in name order.
func (r *Roster) Teams() []Team { return append([]Team(nil), r.teams...) }

// Resolve maps a raw name to its roster entry: canonical id first, then
// slugified name, then display name, then short code.
func (r *Roster) Resolve(raw string) (Team, bool) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return Team{}, false
	}
	if t, ok := r.byCanonical[name]; ok {
		return t, true
	}
	if t, ok := r.bySlug[Slugify(name)]; ok {
		return t, true
	}
	if t, ok := r.byName[strings.ToLower(name)]; ok {
		return t, true
	}
	if t, ok := r.byShort[strings.ToUpper(name)]; ok {
		return t, true
	}
	return Team{}, false
}

// rosterCacheDoc matches the JSON layout the publishing pipeline writes, so
// existing consumers keep reading the same files.
type rosterCacheDoc struct {
	League string `json:"league"`
	Season string `json:"season"`
	Teams  []Team `json:"teams"`
}

// WriteCache persists the roster for (league, season) under dir unless a
// cache file already exists. Returns the cache path.
func (r *Roster) WriteCache(dir, league, season string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.json", strings.ToUpper(Slugify(league)), season))
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	doc := rosterCacheDoc{League: league, Season: season, Teams: r.teams}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
